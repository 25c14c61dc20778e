package realtime

import (
	"context"
	"time"

	"github.com/mlenarte/interview-core/core/audio"
)

// ConnectionState describes the realtime connection lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
)

// ConnectConfig carries everything a provider needs to open a realtime
// transcription/coaching stream.
type ConnectConfig struct {
	APIKey       string
	SystemPrompt string
	Topics       []string

	EncodingInfo   audio.EncodingInfo
	InterimResults bool
	Diarize        bool

	// Tools are the coaching function definitions offered to the remote
	// service. Providers without function-call support ignore them.
	Tools []Tool
}

// Speaker identifies who an event is attributed to.
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerParticipant Speaker = "participant"
	SpeakerUnknown     Speaker = "unknown"
)

// TranscriptionEvent is one streamed transcription delta. Partial events
// carry cumulative text for the in-progress utterance; final events close it.
type TranscriptionEvent struct {
	Text       string
	IsFinal    bool
	Speaker    Speaker
	Confidence float64
	Timestamp  time.Time
}

// FunctionCall is a coaching action requested by the remote service.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments []byte
	Timestamp time.Time
}

// Client is the realtime service contract owned by a single session
// coordinator. Transcriptions and FunctionCalls are independent streams,
// each exhausted only on Disconnect.
type Client interface {
	State() ConnectionState

	Connect(ctx context.Context, cfg ConnectConfig) error
	SendAudio(chunk []byte) error

	Transcriptions() <-chan TranscriptionEvent
	FunctionCalls() <-chan FunctionCall

	// Disconnect is idempotent and closes both streams.
	Disconnect(ctx context.Context) error
}
