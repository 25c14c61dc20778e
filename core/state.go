package session

import "time"

// State is the session lifecycle state. Initial state is [StateIdle];
// [StateEnded] and [StateFailed] are terminal until an explicit Reset.
type State string

const (
	StateIdle        State = "idle"
	StateConfiguring State = "configuring"
	StateReady       State = "ready"
	StateRunning     State = "running"
	StatePaused      State = "paused"
	StateEnding      State = "ending"
	StateEnded       State = "ended"
	StateError       State = "error"
	StateFailed      State = "failed"
)

// validTransitions is the complete transition table. Anything not listed is
// illegal and is dropped by the manager with a warning.
var validTransitions = map[State][]State{
	StateIdle:        {StateConfiguring},
	StateConfiguring: {StateReady, StateFailed},
	StateReady:       {StateRunning, StateEnding, StateFailed},
	StateRunning:     {StatePaused, StateEnding, StateError, StateFailed},
	StatePaused:      {StateRunning, StateEnding, StateError, StateFailed},
	StateError:       {StateRunning, StateEnding, StateFailed, StateIdle},
	StateEnding:      {StateEnded, StateFailed},
	StateEnded:       {StateIdle},
	StateFailed:      {StateIdle},
}

// TransitionIsValid reports whether from -> to appears in the transition
// table.
func TransitionIsValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// isTerminal reports whether the state requires an explicit Reset to leave.
func (s State) isTerminal() bool {
	return s == StateEnded || s == StateFailed
}

// canEnd reports whether End is a legal operation from this state.
func (s State) canEnd() bool {
	return TransitionIsValid(s, StateEnding)
}

// Transition is one entry in the manager's state history log.
type Transition struct {
	From   State
	To     State
	Reason string
	At     time.Time
}
