package realtime

import "fmt"

// StreamingErrorKind classifies failures of SendAudio.
type StreamingErrorKind string

const (
	StreamingErrorNotConnected       StreamingErrorKind = "not_connected"
	StreamingErrorEncodingFailed     StreamingErrorKind = "encoding_failed"
	StreamingErrorBackpressure       StreamingErrorKind = "backpressure"
	StreamingErrorInvalidAudioFormat StreamingErrorKind = "invalid_audio_format"
	StreamingErrorStreamClosed       StreamingErrorKind = "stream_closed"
)

// StreamingError wraps a transport failure with a kind the coordinator can
// route on. Backpressure is transient; NotConnected and StreamClosed are
// fatal for the current connection.
type StreamingError struct {
	Kind StreamingErrorKind
	Err  error
}

func (e *StreamingError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StreamingError) Unwrap() error { return e.Err }

// IsFatal reports whether the error ends the current connection.
func (e *StreamingError) IsFatal() bool {
	return e.Kind == StreamingErrorNotConnected || e.Kind == StreamingErrorStreamClosed
}

func NewStreamingError(kind StreamingErrorKind, err error) *StreamingError {
	return &StreamingError{Kind: kind, Err: err}
}
