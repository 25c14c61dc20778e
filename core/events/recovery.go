package events

import (
	"time"

	"github.com/mlenarte/interview-core/core/recovery"
)

// KindRecoveryAttempted identifies recovery attempts about to run.
const KindRecoveryAttempted Kind = "recovery.attempted"

// RecoveryAttempted marks a recovery action about to run.
type RecoveryAttempted struct {
	Base
	Action  recovery.Action
	Attempt int
	Delay   time.Duration
}

// NewRecoveryAttempted creates a recovery attempt event.
func NewRecoveryAttempted(action recovery.Action, attempt int, delay time.Duration) RecoveryAttempted {
	return RecoveryAttempted{Base: NewBase(KindRecoveryAttempted), Action: action, Attempt: attempt, Delay: delay}
}
