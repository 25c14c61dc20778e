package events

const (
	// KindSessionStateChanged identifies lifecycle state transitions.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindSessionErrorOccurred identifies classified steady-state failures.
	KindSessionErrorOccurred Kind = "session.error"
	// KindSessionDegraded identifies entry into a reduced-functionality mode.
	KindSessionDegraded Kind = "session.degraded"
)

// SessionStateChanged marks a transition between two lifecycle states.
// States are carried by name so the event contract stays decoupled from the
// manager's state type.
type SessionStateChanged struct {
	Base
	From   string
	To     string
	Reason string
}

// NewSessionStateChanged creates a state transition event.
func NewSessionStateChanged(from, to, reason string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), From: from, To: to, Reason: reason}
}

// SessionErrorOccurred carries a classified steady-state failure.
type SessionErrorOccurred struct {
	Base
	Err         error
	Recoverable bool
	Suggestion  string
}

// NewSessionErrorOccurred creates a session error event.
func NewSessionErrorOccurred(err error, recoverable bool, suggestion string) SessionErrorOccurred {
	return SessionErrorOccurred{Base: NewBase(KindSessionErrorOccurred), Err: err, Recoverable: recoverable, Suggestion: suggestion}
}

// SessionDegraded marks entry into a reduced-functionality mode.
type SessionDegraded struct {
	Base
	Mode string
}

// NewSessionDegraded creates a degraded-mode event.
func NewSessionDegraded(mode string) SessionDegraded {
	return SessionDegraded{Base: NewBase(KindSessionDegraded), Mode: mode}
}
