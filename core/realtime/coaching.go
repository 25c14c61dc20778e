package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Tool is a coaching function the remote service may call back into during a
// session.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

type SuggestFollowUpArgs struct {
	Question string `json:"question" jsonschema:"title=Question,description=The follow-up question to suggest to the interviewer"`
	Topic    string `json:"topic,omitempty" jsonschema:"title=Topic,description=The topic the question relates to"`
}

type FlagLeadingQuestionArgs struct {
	Quote      string `json:"quote" jsonschema:"title=Quote,description=The leading question as asked"`
	Suggestion string `json:"suggestion,omitempty" jsonschema:"title=Suggestion,description=A neutral rephrasing"`
}

type HighlightQuoteArgs struct {
	Quote  string `json:"quote" jsonschema:"title=Quote,description=The participant quote worth highlighting"`
	Reason string `json:"reason,omitempty" jsonschema:"title=Reason,description=Why the quote matters"`
}

// CoachingTools returns the function definitions offered to the realtime
// service when a session is configured in coached mode.
func CoachingTools() []Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}

	return []Tool{
		{
			Name:        "suggest_follow_up",
			Description: "Suggest a follow-up question the interviewer could ask next.",
			Parameters:  reflector.Reflect(SuggestFollowUpArgs{}),
		},
		{
			Name:        "flag_leading_question",
			Description: "Flag an interviewer question that leads the participant.",
			Parameters:  reflector.Reflect(FlagLeadingQuestionArgs{}),
		},
		{
			Name:        "highlight_quote",
			Description: "Mark a participant quote as a potential highlight.",
			Parameters:  reflector.Reflect(HighlightQuoteArgs{}),
		},
	}
}

// DecodeArguments unmarshals a function call's arguments into out.
func (c FunctionCall) DecodeArguments(out any) error {
	if err := json.Unmarshal(c.Arguments, out); err != nil {
		return fmt.Errorf("failed to decode %q arguments: %w", c.Name, err)
	}
	return nil
}
