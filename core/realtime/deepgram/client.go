package deepgram

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mlenarte/interview-core/core/realtime"
)

const (
	transcriptionChannelCapacity = 64
	audioChannelCapacity         = 32
)

// Client streams microphone audio to Deepgram's realtime listen endpoint and
// emits speaker-attributed transcription events.
//
// Deepgram has no server-side function calling; the function-call stream
// stays empty and is closed on disconnect to satisfy the realtime contract.
type Client struct {
	connMu sync.Mutex
	conn   *websocket.Conn

	stateMu sync.Mutex
	state   realtime.ConnectionState

	transcriptions chan realtime.TranscriptionEvent
	functionCalls  chan realtime.FunctionCall
	audio          chan []byte

	sendMu     sync.RWMutex
	sendClosed bool

	disconnectOnce *sync.Once
	readDone       chan struct{}
	writeDone      chan struct{}
	closing        chan struct{}

	lastMsgTs time.Time

	// Cumulative transcript of the in-progress utterance. Deepgram finalizes
	// in segments; the session buffer expects cumulative partial text.
	accumulatedTranscript string
	unendedUtterance      bool
	currentSpeaker        realtime.Speaker
	utteranceConfidence   float64
}

func NewClient() *Client {
	return &Client{state: realtime.ConnectionStateDisconnected}
}

func (c *Client) State() realtime.ConnectionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) setState(state realtime.ConnectionState) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}

func (c *Client) Transcriptions() <-chan realtime.TranscriptionEvent { return c.transcriptions }
func (c *Client) FunctionCalls() <-chan realtime.FunctionCall       { return c.functionCalls }
