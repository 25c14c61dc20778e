package events

import "github.com/mlenarte/interview-core/core/realtime"

// KindCoachingFunctionCall identifies coaching tool invocations from the
// realtime service.
const KindCoachingFunctionCall Kind = "coaching.function_call"

// CoachingFunctionCall carries a coaching tool invocation.
type CoachingFunctionCall struct {
	Base
	Call realtime.FunctionCall
}

// NewCoachingFunctionCall creates a coaching function call event.
func NewCoachingFunctionCall(call realtime.FunctionCall) CoachingFunctionCall {
	return CoachingFunctionCall{Base: NewBase(KindCoachingFunctionCall), Call: call}
}
