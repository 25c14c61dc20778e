package session

import (
	"errors"
	"fmt"

	"github.com/mlenarte/interview-core/core/realtime"
	"github.com/mlenarte/interview-core/core/recovery"
)

// ErrorKind classifies session failures for routing: the manager uses it to
// pick the error or failed state, the recovery service to pick a strategy.
type ErrorKind string

const (
	ErrInvalidStateTransition     ErrorKind = "invalid_state_transition"
	ErrMissingDependency          ErrorKind = "missing_dependency"
	ErrInvalidConfiguration       ErrorKind = "invalid_configuration"
	ErrConnectionFailed           ErrorKind = "connection_failed"
	ErrConnectionLost             ErrorKind = "connection_lost"
	ErrReconnectionFailed         ErrorKind = "reconnection_failed"
	ErrAudioCaptureFailed         ErrorKind = "audio_capture_failed"
	ErrAudioDeviceUnavailable     ErrorKind = "audio_device_unavailable"
	ErrMicrophonePermissionDenied ErrorKind = "microphone_permission_denied"
	ErrServerError                ErrorKind = "server_error"
	ErrPersistenceFailed          ErrorKind = "persistence_failed"
	ErrUnknown                    ErrorKind = "unknown"
)

// SessionError is the session-level error taxonomy. Every failure surfaced
// by the manager or coordinator is one of these.
type SessionError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func newSessionError(kind ErrorKind, message string, cause error) *SessionError {
	return &SessionError{Kind: kind, Message: message, Cause: cause}
}

func (e *SessionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *SessionError) Unwrap() error { return e.Cause }

// IsRecoverable reports whether the recovery service should be given a shot
// before the session is failed outright.
func (e *SessionError) IsRecoverable() bool {
	switch e.Kind {
	case ErrConnectionFailed, ErrConnectionLost, ErrReconnectionFailed,
		ErrAudioCaptureFailed, ErrAudioDeviceUnavailable,
		ErrServerError, ErrPersistenceFailed:
		return true
	}
	return false
}

// Suggestion returns the user-facing guidance shown alongside the error
// state.
func (e *SessionError) Suggestion() string {
	switch e.Kind {
	case ErrConnectionFailed:
		return "Could not connect to the transcription service. Check your network and try again."
	case ErrConnectionLost:
		return "Connection lost. Attempting to reconnect…"
	case ErrReconnectionFailed:
		return "Reconnection failed. Retrying…"
	case ErrAudioCaptureFailed:
		return "Microphone capture failed. Attempting to restart audio…"
	case ErrAudioDeviceUnavailable:
		return "No audio device available. Waiting for a device to appear…"
	case ErrMicrophonePermissionDenied:
		return "Microphone access was denied. Grant permission in system settings and reset the session."
	case ErrServerError:
		return "The transcription service reported an error. Retrying…"
	case ErrPersistenceFailed:
		return "Saving the transcript failed. Retrying in the background…"
	case ErrInvalidConfiguration:
		return "The session configuration is invalid. Fix it and configure again."
	default:
		return "An unexpected error occurred. Reset the session to start over."
	}
}

// failure maps the error into the recovery service's failure taxonomy.
func (e *SessionError) failure() recovery.Failure {
	kind := recovery.FailureUnknown
	switch e.Kind {
	case ErrConnectionFailed:
		kind = recovery.FailureConnectionFailed
	case ErrConnectionLost:
		kind = recovery.FailureConnectionLost
	case ErrReconnectionFailed:
		kind = recovery.FailureReconnectionFailed
	case ErrServerError:
		kind = recovery.FailureServerError
	case ErrAudioCaptureFailed:
		kind = recovery.FailureAudioCaptureFailed
	case ErrAudioDeviceUnavailable:
		kind = recovery.FailureAudioDeviceUnavailable
	case ErrPersistenceFailed:
		kind = recovery.FailurePersistenceFailed
	}
	return recovery.Failure{Kind: kind, Recoverable: e.IsRecoverable()}
}

// classifyStreamingError folds a transport send failure into the session
// taxonomy. Backpressure never reaches here; the coordinator swallows it.
func classifyStreamingError(err error) *SessionError {
	streamingErr := &realtime.StreamingError{}
	if errors.As(err, &streamingErr) && streamingErr.IsFatal() {
		return newSessionError(ErrConnectionLost, "realtime stream is no longer writable", err)
	}
	return newSessionError(ErrUnknown, "audio send failed", err)
}
