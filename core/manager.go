package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlenarte/interview-core/core/audio"
	"github.com/mlenarte/interview-core/core/connection"
	"github.com/mlenarte/interview-core/core/events"
	"github.com/mlenarte/interview-core/core/realtime"
	"github.com/mlenarte/interview-core/core/recovery"
	"github.com/mlenarte/interview-core/core/storage"
	"github.com/mlenarte/interview-core/core/transcription"
)

const eventBufferSize = 256

// Manager is the top-level session state machine and public API. It owns one
// Coordinator per session, routes coordinator and connection-quality
// failures through the recovery service, and exposes the session as a
// push-updated read model.
//
// A single Manager instance manages at most one live session at a time.
type Manager struct {
	mu sync.Mutex

	state   State
	history []Transition

	config      Config
	session     *storage.Session
	coordinator *Coordinator

	recoveryService *recovery.Service
	recoveryCancel  context.CancelFunc

	lastError    *SessionError
	degradedMode *recovery.DegradedMode
	lastQuality  connection.Quality

	elapsed     time.Duration
	audioLevels audio.Levels
	timerCancel context.CancelFunc

	eventsMu     sync.Mutex
	events       chan events.Event
	eventsClosed bool

	captureFactory  func() (audio.Capture, error)
	client          realtime.Client
	store           storage.DataManager
	recoveryStore   recovery.Store
	recoveryOptions []recovery.ServiceOption
	monitor         *connection.Monitor
	now             func() time.Time
	baseContext     context.Context
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		state:       StateIdle,
		now:         time.Now,
		baseContext: context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.monitor = connection.NewMonitor(connection.WithQualityChangeCallback(m.handleQualityChange))
	m.lastQuality = m.monitor.Quality()
	return m
}

// Configure builds the session's coordinator and recovery service, connects
// the realtime client and persists the initial Session record. Valid only
// from idle.
func (m *Manager) Configure(ctx context.Context, config Config) error {
	ctx, span := tracer.Start(ctx, "session.configure")
	defer span.End()

	if !m.transitionTo(StateConfiguring, "configuring session") {
		return newSessionError(ErrInvalidStateTransition, "configure is only valid from idle", nil)
	}

	if err := config.Validate(); err != nil {
		m.failWith(err)
		return err
	}
	if m.captureFactory == nil || m.client == nil || m.store == nil {
		err := newSessionError(ErrMissingDependency, "capture, realtime client and data manager must all be wired", nil)
		m.failWith(err)
		return err
	}

	session := &storage.Session{
		ID:              uuid.New(),
		Title:           config.Title,
		ParticipantName: config.ParticipantName,
		ProjectName:     config.ProjectName,
		Mode:            string(config.Mode),
		Topics:          config.Topics,
		StartedAt:       m.now(),
	}
	if err := m.store.SaveSession(ctx, session); err != nil {
		sessionErr := newSessionError(ErrPersistenceFailed, "failed to persist session record", err)
		m.failWith(sessionErr)
		return sessionErr
	}

	coordinator := newCoordinator(m.captureFactory, m.client, m.store, coordinatorCallbacks{
		onSegment: func(segment transcription.Segment) {
			m.emit(events.NewTranscriptSegmentFinalized(segment))
		},
		onPartial: func(partial transcription.Partial) {
			m.emit(events.NewTranscriptPartialUpdated(partial.Text, partial.Speaker))
		},
		onFunctionCall: func(call realtime.FunctionCall) {
			m.emit(events.NewCoachingFunctionCall(call))
		},
		onError: m.routeError,
	})

	recoveryOptions := m.recoveryOptions
	if m.recoveryStore != nil {
		recoveryOptions = append([]recovery.ServiceOption{recovery.WithStore(m.recoveryStore)}, recoveryOptions...)
	}

	m.mu.Lock()
	m.config = config
	m.session = session
	m.coordinator = coordinator
	m.recoveryService = recovery.NewService(session.ID, recoveryOptions...)
	m.mu.Unlock()

	m.eventsMu.Lock()
	m.events = make(chan events.Event, eventBufferSize)
	m.eventsClosed = false
	m.eventsMu.Unlock()

	if sessionErr := coordinator.Prepare(ctx, config, session); sessionErr != nil {
		m.failWith(sessionErr)
		return sessionErr
	}

	m.transitionTo(StateReady, "session configured")
	return nil
}

// Start opens the microphone and begins the 1 Hz session timer. Valid only
// from ready.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateReady {
		m.mu.Unlock()
		return newSessionError(ErrInvalidStateTransition, "start is only valid from ready", nil)
	}
	coordinator := m.coordinator
	m.mu.Unlock()

	if sessionErr := coordinator.StartCapture(ctx); sessionErr != nil {
		m.failWith(sessionErr)
		return sessionErr
	}

	timerCtx, cancel := context.WithCancel(m.baseContext)
	m.mu.Lock()
	m.timerCancel = cancel
	m.mu.Unlock()
	go m.runTimer(timerCtx)

	m.transitionTo(StateRunning, "capture started")
	return nil
}

// Pause suspends chunk delivery without closing the device.
func (m *Manager) Pause(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return newSessionError(ErrInvalidStateTransition, "pause is only valid from running", nil)
	}
	coordinator := m.coordinator
	m.mu.Unlock()

	if sessionErr := coordinator.PauseCapture(); sessionErr != nil {
		m.routeError(sessionErr)
		return sessionErr
	}
	m.transitionTo(StatePaused, "paused by caller")
	return nil
}

// Resume restarts chunk delivery from paused, or triggers error recovery
// when the session sits in the error state.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	state := m.state
	coordinator := m.coordinator
	m.mu.Unlock()

	switch state {
	case StateError:
		return m.AttemptRecovery(ctx)
	case StatePaused:
		if sessionErr := coordinator.ResumeCapture(); sessionErr != nil {
			m.routeError(sessionErr)
			return sessionErr
		}
		m.transitionTo(StateRunning, "resumed by caller")
		return nil
	default:
		return newSessionError(ErrInvalidStateTransition, "resume is only valid from paused or error", nil)
	}
}

// End stops the session: timers and recovery are cancelled, the coordinator
// is stopped and flushed, the final duration is persisted and the event
// stream is closed.
func (m *Manager) End(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.end")
	defer span.End()

	m.mu.Lock()
	if !m.state.canEnd() {
		m.mu.Unlock()
		return newSessionError(ErrInvalidStateTransition, "session cannot end from "+string(m.state), nil)
	}
	m.mu.Unlock()

	m.transitionTo(StateEnding, "ending session")
	m.stopTimer()
	m.cancelRecovery()

	m.mu.Lock()
	coordinator := m.coordinator
	session := m.session
	elapsed := m.elapsed
	m.mu.Unlock()

	if coordinator != nil {
		if err := coordinator.Stop(ctx); err != nil {
			logger.WarnContext(ctx, "Failed to cleanly stop coordinator", "error", err)
		}
	}

	if session != nil {
		endedAt := m.now()
		session.EndedAt = &endedAt
		session.TotalDurationSeconds = elapsed.Seconds()
		if err := m.store.SaveSession(ctx, session); err != nil {
			logger.WarnContext(ctx, "Failed to persist final session record", "error", err)
		}
	}

	m.transitionTo(StateEnded, "session ended")
	m.closeEvents()
	return nil
}

// Reset clears all session-scoped state, including recovery state, and
// returns to idle. Valid only from ended, error or failed.
func (m *Manager) Reset() error {
	m.mu.Lock()
	state := m.state
	coordinator := m.coordinator
	service := m.recoveryService
	m.mu.Unlock()

	if state != StateEnded && state != StateError && state != StateFailed {
		return newSessionError(ErrInvalidStateTransition, "reset is only valid from ended, error or failed", nil)
	}

	m.stopTimer()
	m.cancelRecovery()

	// A session abandoned mid-error or mid-failure still holds live resources.
	if (state == StateError || state == StateFailed) && coordinator != nil {
		if err := coordinator.Stop(m.baseContext); err != nil {
			logger.Warn("Failed to stop coordinator during reset", "error", err)
		}
	}
	if service != nil {
		service.RecordSuccess()
	}

	m.transitionTo(StateIdle, "session reset")
	m.closeEvents()

	m.mu.Lock()
	m.config = Config{}
	m.session = nil
	m.coordinator = nil
	m.recoveryService = nil
	m.lastError = nil
	m.degradedMode = nil
	m.elapsed = 0
	m.audioLevels = audio.Levels{}
	m.history = nil
	m.mu.Unlock()
	return nil
}

// AttemptRecovery manually kicks off recovery for the last error. The
// recovery itself runs asynchronously; at most one attempt is in flight.
func (m *Manager) AttemptRecovery(ctx context.Context) error {
	m.mu.Lock()
	lastError := m.lastError
	state := m.state
	m.mu.Unlock()

	if state != StateError || lastError == nil {
		return newSessionError(ErrInvalidStateTransition, "no recoverable error to recover from", nil)
	}
	go m.runRecovery(lastError)
	return nil
}

// SwitchToDegradedMode drops the session into a reduced-functionality mode
// without waiting for the retry budget to run out.
func (m *Manager) SwitchToDegradedMode(mode recovery.DegradedMode) error {
	m.mu.Lock()
	state := m.state
	service := m.recoveryService
	m.mu.Unlock()

	if state != StateRunning && state != StatePaused && state != StateError {
		return newSessionError(ErrInvalidStateTransition, "degraded mode requires a live session", nil)
	}

	if service != nil {
		outcome := service.ExecuteRecovery(m.baseContext, recovery.DegradeStrategy(mode), recovery.Failure{}, nil)
		if outcome.Kind == recovery.OutcomeAlreadyRecovering {
			return newSessionError(ErrInvalidStateTransition, "a recovery attempt is already in flight", nil)
		}
	}

	m.mu.Lock()
	m.degradedMode = &mode
	m.mu.Unlock()
	m.emit(events.NewSessionDegraded(string(mode)))
	if state == StateError {
		m.transitionTo(StateRunning, "degraded to "+string(mode))
	}
	return nil
}

// transitionTo applies a state transition if the table allows it. Illegal
// transitions are logged and dropped, leaving the state unchanged.
func (m *Manager) transitionTo(to State, reason string) bool {
	m.mu.Lock()
	from := m.state
	if !TransitionIsValid(from, to) {
		m.mu.Unlock()
		logger.Warn("Dropping invalid state transition",
			"from", string(from), "to", string(to), "reason", reason)
		return false
	}
	m.state = to
	m.history = append(m.history, Transition{From: from, To: to, Reason: reason, At: m.now()})
	m.mu.Unlock()

	m.emit(events.NewSessionStateChanged(string(from), string(to), reason))
	return true
}

// failWith records a synchronous failure and moves the session to failed.
func (m *Manager) failWith(err *SessionError) {
	m.mu.Lock()
	m.lastError = err
	m.mu.Unlock()
	m.emit(events.NewSessionErrorOccurred(err, err.IsRecoverable(), err.Suggestion()))
	m.transitionTo(StateFailed, err.Error())
}

// routeError handles steady-state failures reported while the session is
// live. Recoverable errors move to the error state and recover
// asynchronously; unrecoverable ones fail the session. Persistence failures
// are retried without interrupting the pipeline.
func (m *Manager) routeError(err *SessionError) {
	m.emit(events.NewSessionErrorOccurred(err, err.IsRecoverable(), err.Suggestion()))

	if err.Kind == ErrPersistenceFailed {
		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()
		go m.runRecovery(err)
		return
	}

	m.mu.Lock()
	m.lastError = err
	m.mu.Unlock()

	if !err.IsRecoverable() {
		m.transitionTo(StateFailed, err.Error())
		return
	}
	if m.transitionTo(StateError, err.Error()) {
		go m.runRecovery(err)
	}
}

// runRecovery drives the recovery loop for one failure until it is
// recovered, degraded, terminated or cancelled.
func (m *Manager) runRecovery(sessionErr *SessionError) {
	ctx, cancel := context.WithCancel(m.baseContext)
	m.mu.Lock()
	if m.recoveryCancel != nil {
		m.mu.Unlock()
		cancel()
		return
	}
	m.recoveryCancel = cancel
	service := m.recoveryService
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.recoveryCancel = nil
		m.mu.Unlock()
	}()

	if service == nil {
		return
	}

	failure := sessionErr.failure()
	executor := &recoveryExecutor{manager: m}

	for {
		strategy := service.DetermineStrategy(failure)
		if strategy.Kind == recovery.StrategyRetry {
			m.emit(events.NewRecoveryAttempted(strategy.Action, service.AttemptCount()+1, strategy.Delay))
		}

		outcome := service.ExecuteRecovery(ctx, strategy, failure, executor)
		switch outcome.Kind {
		case recovery.OutcomeRecovered:
			service.RecordSuccess()
			m.mu.Lock()
			m.lastError = nil
			inErrorState := m.state == StateError
			m.mu.Unlock()
			if inErrorState {
				m.transitionTo(StateRunning, "recovered from "+string(sessionErr.Kind))
			}
			return
		case recovery.OutcomeDegraded:
			m.mu.Lock()
			mode := outcome.Mode
			m.degradedMode = &mode
			inErrorState := m.state == StateError
			m.mu.Unlock()
			m.emit(events.NewSessionDegraded(string(outcome.Mode)))
			if inErrorState {
				m.transitionTo(StateRunning, "degraded to "+string(outcome.Mode))
			}
			return
		case recovery.OutcomeTerminated:
			m.transitionTo(StateFailed, outcome.Reason)
			return
		case recovery.OutcomeAlreadyRecovering:
			return
		case recovery.OutcomeFailed:
			if ctx.Err() != nil {
				return
			}
			// A failed reconnect is its own failure class on the next lap.
			if failure.Kind == recovery.FailureConnectionFailed || failure.Kind == recovery.FailureConnectionLost {
				failure.Kind = recovery.FailureReconnectionFailed
			}
		}
	}
}

func (m *Manager) cancelRecovery() {
	m.mu.Lock()
	cancel := m.recoveryCancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// handleQualityChange runs under the monitor's lock, so the reaction is
// dispatched to a fresh goroutine.
func (m *Manager) handleQualityChange(quality connection.Quality) {
	go func() {
		m.mu.Lock()
		from := m.lastQuality
		m.lastQuality = quality
		state := m.state
		m.mu.Unlock()

		m.emit(events.NewConnectionQualityChanged(from, quality))

		if quality == connection.QualityDisconnected && state == StateRunning {
			m.routeError(newSessionError(ErrConnectionLost, "connection quality dropped to disconnected", nil))
		}
	}()
}

// runTimer is the 1 Hz session clock: it advances elapsed time while
// running and samples audio levels for the read model.
func (m *Manager) runTimer(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.state == StateRunning {
				m.elapsed += time.Second
			}
			coordinator := m.coordinator
			m.mu.Unlock()

			if coordinator != nil {
				levels := coordinator.AudioLevels()
				m.mu.Lock()
				m.audioLevels = levels
				m.mu.Unlock()
			}
		}
	}
}

func (m *Manager) stopTimer() {
	m.mu.Lock()
	cancel := m.timerCancel
	m.timerCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) emit(event events.Event) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	if m.events == nil || m.eventsClosed {
		return
	}
	select {
	case m.events <- event:
	default:
		logger.Warn("Dropping session event", "kind", string(event.Kind()))
	}
}

func (m *Manager) closeEvents() {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	if m.events != nil && !m.eventsClosed {
		close(m.events)
		m.eventsClosed = true
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns a copy of the state transition log.
func (m *Manager) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transition{}, m.history...)
}

// Events returns the session event stream. It is finite: the channel closes
// when the session ends or is reset.
func (m *Manager) Events() <-chan events.Event {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	return m.events
}

func (m *Manager) LastError() *SessionError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

func (m *Manager) DegradedMode() *recovery.DegradedMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.degradedMode == nil {
		return nil
	}
	mode := *m.degradedMode
	return &mode
}

func (m *Manager) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

func (m *Manager) AudioLevels() audio.Levels {
	m.mu.Lock()
	coordinator := m.coordinator
	m.mu.Unlock()
	if coordinator == nil {
		return audio.Levels{}
	}
	return coordinator.AudioLevels()
}

func (m *Manager) ConnectionQuality() connection.Quality {
	return m.monitor.Quality()
}

// Monitor exposes the connection quality monitor so callers can feed it
// probe results or path transitions.
func (m *Manager) Monitor() *connection.Monitor {
	return m.monitor
}

// Segments returns the finalized transcript so far.
func (m *Manager) Segments() []transcription.Segment {
	m.mu.Lock()
	coordinator := m.coordinator
	m.mu.Unlock()
	if coordinator == nil {
		return nil
	}
	return coordinator.Buffer().Segments()
}

// recoveryExecutor adapts the manager's collaborators to the recovery
// service's action contract.
type recoveryExecutor struct {
	manager *Manager
}

func (e *recoveryExecutor) Execute(ctx context.Context, action recovery.Action) error {
	m := e.manager
	m.mu.Lock()
	coordinator := m.coordinator
	config := m.config
	session := m.session
	m.mu.Unlock()

	if coordinator == nil {
		return newSessionError(ErrMissingDependency, "no coordinator to recover", nil)
	}

	switch action {
	case recovery.ActionReconnect:
		if sessionErr := coordinator.Reconnect(ctx, config); sessionErr != nil {
			return sessionErr
		}
		return nil
	case recovery.ActionRestartAudio:
		if sessionErr := coordinator.RestartCapture(ctx); sessionErr != nil {
			return sessionErr
		}
		return nil
	case recovery.ActionRetryPersistence:
		if session == nil {
			return newSessionError(ErrMissingDependency, "no session record to persist", nil)
		}
		return m.store.SaveSession(ctx, session)
	case recovery.ActionRequestPermissions:
		return newSessionError(ErrMicrophonePermissionDenied, "microphone permission must be granted by the user", nil)
	default:
		return newSessionError(ErrUnknown, "unsupported recovery action "+string(action), nil)
	}
}

func (e *recoveryExecutor) CheckCondition(ctx context.Context, condition recovery.Condition) bool {
	if condition != recovery.ConditionAudioDeviceAvailable {
		return false
	}
	m := e.manager
	m.mu.Lock()
	coordinator := m.coordinator
	m.mu.Unlock()
	if coordinator == nil {
		return false
	}
	return coordinator.CaptureAvailable()
}
