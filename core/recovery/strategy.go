package recovery

import "time"

// FailureKind classifies what broke, independent of how the session layer
// represents its errors.
type FailureKind string

const (
	FailureConnectionFailed       FailureKind = "connection_failed"
	FailureConnectionLost         FailureKind = "connection_lost"
	FailureReconnectionFailed     FailureKind = "reconnection_failed"
	FailureServerError            FailureKind = "server_error"
	FailureAudioCaptureFailed     FailureKind = "audio_capture_failed"
	FailureAudioDeviceUnavailable FailureKind = "audio_device_unavailable"
	FailurePersistenceFailed      FailureKind = "persistence_failed"
	FailureUnknown                FailureKind = "unknown"
)

func (k FailureKind) isConnectionRelated() bool {
	switch k {
	case FailureConnectionFailed, FailureConnectionLost, FailureReconnectionFailed, FailureServerError:
		return true
	}
	return false
}

func (k FailureKind) isAudioRelated() bool {
	switch k {
	case FailureAudioCaptureFailed, FailureAudioDeviceUnavailable:
		return true
	}
	return false
}

// Failure is the recovery-facing view of a session error.
type Failure struct {
	Kind        FailureKind
	Recoverable bool
}

// DegradedMode is a reduced-functionality operating mode used when full
// capability cannot be restored within the retry budget.
type DegradedMode string

const (
	DegradedTranscriptionOnly  DegradedMode = "transcription_only"
	DegradedLocalRecordingOnly DegradedMode = "local_recording_only"
	DegradedManualNotesOnly    DegradedMode = "manual_notes_only"
)

// Action is the side-effecting operation an [Executor] performs on the
// service's behalf.
type Action string

const (
	ActionReconnect          Action = "reconnect"
	ActionRestartAudio       Action = "restart_audio"
	ActionRetryPersistence   Action = "retry_persistence"
	ActionRequestPermissions Action = "request_permissions"
)

// Condition is an externally observable predicate a wait-for-condition
// strategy polls until satisfied.
type Condition string

const ConditionAudioDeviceAvailable Condition = "audio_device_available"

type StrategyKind string

const (
	StrategyRetry            StrategyKind = "retry"
	StrategyDegrade          StrategyKind = "degrade"
	StrategyWaitForCondition StrategyKind = "wait_for_condition"
	StrategyTerminate        StrategyKind = "terminate"
)

// Strategy describes what the service decided to do about a failure. Only
// the fields relevant to Kind are populated.
type Strategy struct {
	Kind StrategyKind

	Delay  time.Duration
	Action Action

	Mode DegradedMode

	Condition Condition
	Timeout   time.Duration

	Reason string
}

func RetryStrategy(delay time.Duration, action Action) Strategy {
	return Strategy{Kind: StrategyRetry, Delay: delay, Action: action}
}

func DegradeStrategy(mode DegradedMode) Strategy {
	return Strategy{Kind: StrategyDegrade, Mode: mode}
}

func WaitForConditionStrategy(condition Condition, timeout time.Duration) Strategy {
	return Strategy{Kind: StrategyWaitForCondition, Condition: condition, Timeout: timeout}
}

func TerminateStrategy(reason string) Strategy {
	return Strategy{Kind: StrategyTerminate, Reason: reason}
}

type OutcomeKind string

const (
	OutcomeRecovered         OutcomeKind = "recovered"
	OutcomeFailed            OutcomeKind = "failed"
	OutcomeDegraded          OutcomeKind = "degraded"
	OutcomeTerminated        OutcomeKind = "terminated"
	OutcomeAlreadyRecovering OutcomeKind = "already_recovering"
)

// Outcome reports how a recovery execution ended.
type Outcome struct {
	Kind   OutcomeKind
	Mode   DegradedMode
	Reason string
	Err    error
}

// Attempt is one historical recovery attempt, kept for session statistics.
type Attempt struct {
	At     time.Time
	Kind   FailureKind
	Action Action
	Delay  time.Duration
}
