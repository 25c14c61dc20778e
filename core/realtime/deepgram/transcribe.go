package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/mlenarte/interview-core/core/audio"
	"github.com/mlenarte/interview-core/core/realtime"
)

func (c *Client) Connect(ctx context.Context, cfg realtime.ConnectConfig) error {
	c.setState(realtime.ConnectionStateConnecting)

	encodingInfo := cfg.EncodingInfo
	if encodingInfo.IsZero() {
		encodingInfo = audio.DefaultEncodingInfo()
	}

	encoding, err := convertEncoding(encodingInfo)
	if err != nil {
		c.setState(realtime.ConnectionStateDisconnected)
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := connectWebsocket(ctx, connectionOptions{
		apiKey:     cfg.APIKey,
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),

		interimResults: cfg.InterimResults,
		diarize:        cfg.Diarize,
		topics:         cfg.Topics,
	})
	if err != nil {
		c.setState(realtime.ConnectionStateDisconnected)
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.lastMsgTs = time.Now()
	c.accumulatedTranscript = ""
	c.unendedUtterance = false
	c.currentSpeaker = realtime.SpeakerUnknown
	c.connMu.Unlock()

	c.transcriptions = make(chan realtime.TranscriptionEvent, transcriptionChannelCapacity)
	c.functionCalls = make(chan realtime.FunctionCall)
	c.audio = make(chan []byte, audioChannelCapacity)
	c.readDone = make(chan struct{})
	c.writeDone = make(chan struct{})
	c.closing = make(chan struct{})
	c.disconnectOnce = &sync.Once{}
	c.sendMu.Lock()
	c.sendClosed = false
	c.sendMu.Unlock()

	go c.readAndProcessMessages(ctx, conn, encodingInfo)
	go c.writeLoop(conn)

	c.setState(realtime.ConnectionStateConnected)
	return nil
}

type connectionOptions struct {
	apiKey     string
	sampleRate int
	encoding   string

	interimResults bool
	diarize        bool
	topics         []string
}

func connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	apiKey := options.apiKey
	if apiKey == "" {
		envKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		apiKey = envKey
	}

	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	if options.interimResults {
		queryParams.Set("interim_results", "true")
	}
	if options.diarize {
		queryParams.Set("diarize", "true")
	}
	if len(options.topics) > 0 {
		queryParams.Set("keyterm", strings.Join(options.topics, " "))
	}

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, err
}

// SendAudio queues a chunk for the outbound write loop. A full queue reports
// backpressure; a closed or missing connection reports a fatal kind.
func (c *Client) SendAudio(chunk []byte) error {
	if c.State() != realtime.ConnectionStateConnected {
		return realtime.NewStreamingError(realtime.StreamingErrorNotConnected, nil)
	}

	c.sendMu.RLock()
	closed := c.sendClosed
	c.sendMu.RUnlock()
	if closed {
		return realtime.NewStreamingError(realtime.StreamingErrorStreamClosed, nil)
	}

	copied := append([]byte(nil), chunk...)
	select {
	case c.audio <- copied:
		return nil
	default:
		return realtime.NewStreamingError(realtime.StreamingErrorBackpressure, nil)
	}
}

func (c *Client) writeLoop(conn *websocket.Conn) {
	defer close(c.writeDone)

	for chunk := range c.audio {
		c.connMu.Lock()
		c.lastMsgTs = time.Now()
		err := conn.WriteMessage(websocket.BinaryMessage, chunk)
		c.connMu.Unlock()
		if err != nil {
			return
		}
	}

	c.connMu.Lock()
	_ = conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
	c.connMu.Unlock()
}

func (c *Client) sendKeepAlive() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}
	if err := c.conn.WriteJSON(
		struct {
			Type string `json:"type"`
		}{
			Type: "KeepAlive",
		}); err != nil {
		log.Println("Failed to write keepalive to deepgram client", "error", err)
	}
}

func (c *Client) sendSilence(chunk []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return realtime.NewStreamingError(realtime.StreamingErrorNotConnected, nil)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// Disconnect closes the audio queue, the websocket, and both outbound event
// streams. Safe to call more than once.
func (c *Client) Disconnect(_ context.Context) error {
	once := c.disconnectOnce
	if once == nil {
		c.setState(realtime.ConnectionStateDisconnected)
		return nil
	}

	once.Do(func() {
		close(c.closing)

		c.sendMu.Lock()
		c.sendClosed = true
		close(c.audio)
		c.sendMu.Unlock()

		select {
		case <-c.writeDone:
		case <-time.After(2 * time.Second):
		}

		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		<-c.readDone
		close(c.transcriptions)
		close(c.functionCalls)
		c.setState(realtime.ConnectionStateDisconnected)
	})

	return nil
}

func (c *Client) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, encodingInfo audio.EncodingInfo) {
	defer close(c.readDone)

	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go c.generateSilence(silenceCtx, encodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("Failed to read deepgram websocket message", "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			c.processMessage(msg)
		}
	}
}

type listenMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Speaker    *int    `json:"speaker"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (c *Client) processMessage(msg []byte) {
	var parsedMsg listenMessage
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		c.processTranscript(parsedMsg)

	case api.TypeUtteranceEndResponse:
		if c.unendedUtterance {
			c.finalizeUtterance()
		}

	case api.TypeSpeechStartedResponse:
		c.unendedUtterance = true
	}
}

func (c *Client) processTranscript(msg listenMessage) {
	if len(msg.Channel.Alternatives) == 0 {
		return
	}

	alternative := msg.Channel.Alternatives[0]
	transcript := strings.TrimSpace(alternative.Transcript)
	if len(transcript) == 0 {
		return
	}

	speaker := c.currentSpeaker
	if len(alternative.Words) > 0 && alternative.Words[0].Speaker != nil {
		speaker = mapSpeaker(*alternative.Words[0].Speaker)
	}

	if msg.IsFinal {
		c.unendedUtterance = true
		if c.accumulatedTranscript == "" {
			c.accumulatedTranscript = transcript
		} else {
			c.accumulatedTranscript += " " + transcript
		}
		c.currentSpeaker = speaker
		c.utteranceConfidence = alternative.Confidence

		if msg.SpeechFinal {
			c.finalizeUtterance()
			return
		}

		c.emit(realtime.TranscriptionEvent{
			Text:       c.accumulatedTranscript,
			IsFinal:    false,
			Speaker:    speaker,
			Confidence: alternative.Confidence,
			Timestamp:  time.Now(),
		})
		return
	}

	cumulative := transcript
	if c.accumulatedTranscript != "" {
		cumulative = c.accumulatedTranscript + " " + transcript
	}
	c.emit(realtime.TranscriptionEvent{
		Text:       cumulative,
		IsFinal:    false,
		Speaker:    speaker,
		Confidence: alternative.Confidence,
		Timestamp:  time.Now(),
	})
}

func (c *Client) finalizeUtterance() {
	c.unendedUtterance = false
	fullTranscript := strings.TrimSpace(c.accumulatedTranscript)
	c.accumulatedTranscript = ""
	if len(fullTranscript) == 0 {
		return
	}

	c.emit(realtime.TranscriptionEvent{
		Text:       fullTranscript,
		IsFinal:    true,
		Speaker:    c.currentSpeaker,
		Confidence: c.utteranceConfidence,
		Timestamp:  time.Now(),
	})
	c.currentSpeaker = realtime.SpeakerUnknown
}

// emit hands an event to the consumer. Only the read loop emits, so blocking
// on a full buffer just backpressures the websocket instead of losing
// transcript text; during a disconnect the event is dropped so shutdown
// cannot deadlock on a departed consumer.
func (c *Client) emit(event realtime.TranscriptionEvent) {
	select {
	case c.transcriptions <- event:
	case <-c.closing:
		log.Println("Discarded transcription event during disconnect", "final", event.IsFinal)
	}
}

// mapSpeaker maps Deepgram's diarization indexes onto interview roles. The
// first speaker heard is assumed to be the interviewer.
func mapSpeaker(index int) realtime.Speaker {
	if index == 0 {
		return realtime.SpeakerInterviewer
	}
	return realtime.SpeakerParticipant
}
