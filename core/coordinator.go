package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlenarte/interview-core/core/audio"
	"github.com/mlenarte/interview-core/core/realtime"
	"github.com/mlenarte/interview-core/core/storage"
	"github.com/mlenarte/interview-core/core/transcription"
)

const levelSampleInterval = 100 * time.Millisecond

// coordinatorCallbacks route the coordinator's outputs back to the manager.
// All callbacks run on coordinator-owned goroutines and must not block.
type coordinatorCallbacks struct {
	onSegment      func(transcription.Segment)
	onPartial      func(transcription.Partial)
	onFunctionCall func(realtime.FunctionCall)
	onError        func(*SessionError)
}

// Coordinator owns one capture device, one realtime client and one
// transcription buffer for the lifetime of a single session. It moves audio
// out and transcripts in; the manager owns policy.
type Coordinator struct {
	captureFactory func() (audio.Capture, error)
	client         realtime.Client
	store          storage.DataManager
	buffer         *transcription.Buffer

	session   *storage.Session
	callbacks coordinatorCallbacks

	mu             sync.Mutex
	capture        audio.Capture
	listenerCancel context.CancelFunc
	listeners      *errgroup.Group
	drainCancel    context.CancelFunc
	drainDone      chan struct{}

	levelsMu sync.Mutex
	levels   audio.Levels

	captureStarted atomic.Bool
	baseContext    context.Context
}

func newCoordinator(
	captureFactory func() (audio.Capture, error),
	client realtime.Client,
	store storage.DataManager,
	callbacks coordinatorCallbacks,
) *Coordinator {
	c := &Coordinator{
		captureFactory: captureFactory,
		client:         client,
		store:          store,
		callbacks:      callbacks,
		baseContext:    context.Background(),
	}
	c.buffer = transcription.NewBuffer(
		transcription.WithSegmentCallback(c.handleSegment),
		transcription.WithPartialCallback(func(partial transcription.Partial) {
			if c.callbacks.onPartial != nil {
				c.callbacks.onPartial(partial)
			}
		}),
	)
	return c
}

// Prepare connects the realtime client, clears the buffer and starts the two
// long-lived listener tasks. It must run before any capture operation.
func (c *Coordinator) Prepare(ctx context.Context, config Config, session *storage.Session) *SessionError {
	ctx, span := tracer.Start(ctx, "coordinator.prepare")
	defer span.End()

	c.mu.Lock()
	c.session = session
	c.baseContext = context.WithoutCancel(ctx)
	capture := c.capture
	c.mu.Unlock()

	if capture == nil {
		created, err := c.captureFactory()
		if err != nil {
			return classifyCaptureError(err)
		}
		c.mu.Lock()
		c.capture = created
		capture = created
		c.mu.Unlock()
	}

	if err := c.client.Connect(ctx, realtime.ConnectConfig{
		APIKey:         config.APIKey,
		SystemPrompt:   config.SystemPrompt,
		Topics:         config.Topics,
		EncodingInfo:   capture.EncodingInfo(),
		InterimResults: config.InterimResults,
		Diarize:        config.Diarize,
		Tools:          realtime.CoachingTools(),
	}); err != nil {
		return newSessionError(ErrConnectionFailed, "failed to connect to realtime service", err)
	}

	c.buffer.Clear()
	c.startListeners()
	return nil
}

// startListeners launches the transcription and function-call consumers.
// They exit when the client closes its streams on disconnect, or when the
// coordinator cancels them.
func (c *Coordinator) startListeners() {
	ctx, cancel := context.WithCancel(c.baseContext)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-c.client.Transcriptions():
				if !ok {
					return nil
				}
				c.buffer.Process(event)
			}
		}
	})

	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case call, ok := <-c.client.FunctionCalls():
				if !ok {
					return nil
				}
				if c.callbacks.onFunctionCall != nil {
					c.callbacks.onFunctionCall(call)
				}
			}
		}
	})

	c.mu.Lock()
	c.listenerCancel = cancel
	c.listeners = group
	c.mu.Unlock()
}

func (c *Coordinator) stopListeners() {
	c.mu.Lock()
	cancel := c.listenerCancel
	group := c.listeners
	c.listenerCancel = nil
	c.listeners = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}
}

// StartCapture opens the microphone and launches the audio-drain task and
// the 10 Hz level sampler.
func (c *Coordinator) StartCapture(ctx context.Context) *SessionError {
	c.mu.Lock()
	capture := c.capture
	c.mu.Unlock()
	if capture == nil {
		return newSessionError(ErrMissingDependency, "no audio capture configured", nil)
	}

	if err := capture.Start(ctx); err != nil {
		return classifyCaptureError(err)
	}
	c.captureStarted.Store(true)
	c.startDrain()
	return nil
}

func (c *Coordinator) PauseCapture() *SessionError {
	c.mu.Lock()
	capture := c.capture
	c.mu.Unlock()
	if capture == nil {
		return newSessionError(ErrMissingDependency, "no audio capture configured", nil)
	}
	if err := capture.Pause(); err != nil {
		return newSessionError(ErrAudioCaptureFailed, "failed to pause capture", err)
	}
	return nil
}

func (c *Coordinator) ResumeCapture() *SessionError {
	c.mu.Lock()
	capture := c.capture
	c.mu.Unlock()
	if capture == nil {
		return newSessionError(ErrMissingDependency, "no audio capture configured", nil)
	}
	if err := capture.Resume(); err != nil {
		return newSessionError(ErrAudioCaptureFailed, "failed to resume capture", err)
	}
	return nil
}

// startDrain launches the task forwarding captured chunks to the realtime
// client, plus the level sampler feeding the UI read model.
func (c *Coordinator) startDrain() {
	ctx, cancel := context.WithCancel(c.baseContext)
	done := make(chan struct{})

	c.mu.Lock()
	c.drainCancel = cancel
	c.drainDone = done
	capture := c.capture
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.drainAudio(ctx, capture)
	}()
	go c.sampleLevels(ctx, capture)
}

func (c *Coordinator) stopDrain() {
	c.mu.Lock()
	cancel := c.drainCancel
	done := c.drainDone
	c.drainCancel = nil
	c.drainDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// drainAudio forwards captured chunks to the realtime client. Backpressure
// is logged and swallowed; a fatal streaming error is reported upward and
// stops forwarding until the next reconnect.
func (c *Coordinator) drainAudio(ctx context.Context, capture audio.Capture) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-capture.Chunks():
			if !ok {
				return
			}
			if err := c.client.SendAudio(chunk); err != nil {
				streamingErr := &realtime.StreamingError{}
				if errors.As(err, &streamingErr) {
					if streamingErr.Kind == realtime.StreamingErrorBackpressure {
						logger.DebugContext(ctx, "Dropping audio chunk under backpressure")
						continue
					}
					if streamingErr.IsFatal() {
						c.reportError(classifyStreamingError(err))
						return
					}
				}
				logger.WarnContext(ctx, "Failed to send audio chunk", "error", err)
			}
		}
	}
}

func (c *Coordinator) sampleLevels(ctx context.Context, capture audio.Capture) {
	ticker := time.NewTicker(levelSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			levels := capture.Levels()
			c.levelsMu.Lock()
			c.levels = levels
			c.levelsMu.Unlock()
		}
	}
}

// AudioLevels returns the most recent sampled level snapshot.
func (c *Coordinator) AudioLevels() audio.Levels {
	c.levelsMu.Lock()
	defer c.levelsMu.Unlock()
	return c.levels
}

// Stop cancels all tasks, flushes the pending partial, disconnects the
// client and releases the capture device.
func (c *Coordinator) Stop(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "coordinator.stop")
	defer span.End()

	c.stopDrain()
	c.captureStarted.Store(false)

	c.buffer.Flush(time.Now())

	var errs []error
	if err := c.client.Disconnect(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to disconnect realtime client: %w", err))
	}
	c.stopListeners()

	c.mu.Lock()
	capture := c.capture
	c.capture = nil
	c.mu.Unlock()
	if capture != nil {
		if err := capture.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop capture: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Reconnect re-establishes the realtime connection and its listener tasks.
// The transcription buffer is deliberately left alone so an in-flight
// partial survives the reconnect.
func (c *Coordinator) Reconnect(ctx context.Context, config Config) *SessionError {
	ctx, span := tracer.Start(ctx, "coordinator.reconnect")
	defer span.End()

	c.stopDrain()
	if err := c.client.Disconnect(ctx); err != nil {
		logger.WarnContext(ctx, "Failed to disconnect before reconnecting", "error", err)
	}
	c.stopListeners()

	c.mu.Lock()
	capture := c.capture
	c.mu.Unlock()
	encodingInfo := audio.EncodingInfo{}
	if capture != nil {
		encodingInfo = capture.EncodingInfo()
	}

	if err := c.client.Connect(ctx, realtime.ConnectConfig{
		APIKey:         config.APIKey,
		SystemPrompt:   config.SystemPrompt,
		Topics:         config.Topics,
		EncodingInfo:   encodingInfo,
		InterimResults: config.InterimResults,
		Diarize:        config.Diarize,
		Tools:          realtime.CoachingTools(),
	}); err != nil {
		return newSessionError(ErrReconnectionFailed, "failed to re-establish realtime connection", err)
	}

	c.startListeners()
	if c.captureStarted.Load() {
		c.startDrain()
	}
	return nil
}

// RestartCapture replaces the capture device with a fresh one from the
// factory, used by the restart-audio recovery action.
func (c *Coordinator) RestartCapture(ctx context.Context) *SessionError {
	c.stopDrain()

	c.mu.Lock()
	old := c.capture
	c.capture = nil
	c.mu.Unlock()
	if old != nil {
		if err := old.Stop(); err != nil {
			logger.WarnContext(ctx, "Failed to stop capture before restart", "error", err)
		}
	}

	capture, err := c.captureFactory()
	if err != nil {
		return classifyCaptureError(err)
	}
	if err := capture.Start(ctx); err != nil {
		return classifyCaptureError(err)
	}

	c.mu.Lock()
	c.capture = capture
	c.mu.Unlock()
	c.captureStarted.Store(true)
	c.startDrain()
	return nil
}

// CaptureAvailable reports whether a fresh capture device can be opened,
// used as the audio-device recovery condition.
func (c *Coordinator) CaptureAvailable() bool {
	capture, err := c.captureFactory()
	if err != nil {
		return false
	}
	if capture != nil {
		_ = capture.Stop()
	}
	return true
}

// Buffer exposes the transcription buffer for read-model queries.
func (c *Coordinator) Buffer() *transcription.Buffer {
	return c.buffer
}

// handleSegment persists every finalized segment as an utterance and then
// forwards it. Persistence failures are reported but never interrupt the
// transcript pipeline.
func (c *Coordinator) handleSegment(segment transcription.Segment) {
	c.mu.Lock()
	session := c.session
	ctx := c.baseContext
	c.mu.Unlock()

	if session != nil && c.store != nil {
		utterance := storage.Utterance{
			ID:         segment.ID,
			SessionID:  session.ID,
			Speaker:    segment.Speaker,
			Text:       segment.Text,
			Confidence: segment.Confidence,
			StartedAt:  segment.StartedAt,
			EndedAt:    segment.EndedAt,
			Reason:     string(segment.Reason),
		}
		if err := c.store.AppendUtterance(ctx, session.ID, utterance); err != nil {
			c.reportError(newSessionError(ErrPersistenceFailed, "failed to persist utterance", err))
		}
	}

	if c.callbacks.onSegment != nil {
		c.callbacks.onSegment(segment)
	}
}

func (c *Coordinator) reportError(err *SessionError) {
	if c.callbacks.onError != nil {
		c.callbacks.onError(err)
	}
}

func classifyCaptureError(err error) *SessionError {
	if errors.Is(err, audio.ErrDeviceUnavailable) {
		return newSessionError(ErrAudioDeviceUnavailable, "no usable audio input device", err)
	}
	return newSessionError(ErrAudioCaptureFailed, "failed to start audio capture", err)
}
