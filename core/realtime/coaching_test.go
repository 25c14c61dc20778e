package realtime

import "testing"

func TestCoachingToolsHaveSchemas(t *testing.T) {
	tools := CoachingTools()

	if len(tools) != 3 {
		t.Fatalf("expected three coaching tools, got %d", len(tools))
	}

	for _, tool := range tools {
		if tool.Name == "" {
			t.Fatalf("expected every tool to be named, got %+v", tool)
		}
		if tool.Parameters == nil {
			t.Fatalf("expected tool %q to carry a parameter schema", tool.Name)
		}
		if tool.Parameters.Type != "object" {
			t.Fatalf("expected tool %q schema to be an object, got %q", tool.Name, tool.Parameters.Type)
		}
	}
}

func TestFunctionCallDecodeArguments(t *testing.T) {
	call := FunctionCall{
		Name:      "suggest_follow_up",
		Arguments: []byte(`{"question":"What happened next?","topic":"onboarding"}`),
	}

	var args SuggestFollowUpArgs
	if err := call.DecodeArguments(&args); err != nil {
		t.Fatalf("expected arguments to decode, got %v", err)
	}

	if args.Question != "What happened next?" {
		t.Fatalf("expected question to round-trip, got %q", args.Question)
	}
	if args.Topic != "onboarding" {
		t.Fatalf("expected topic to round-trip, got %q", args.Topic)
	}
}

func TestFunctionCallDecodeArgumentsRejectsMalformedPayload(t *testing.T) {
	call := FunctionCall{Name: "highlight_quote", Arguments: []byte(`{`)}

	var args HighlightQuoteArgs
	if err := call.DecodeArguments(&args); err == nil {
		t.Fatalf("expected malformed arguments to fail decoding")
	}
}
