package recovery

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	baseDelay        = 1 * time.Second
	maxDelay         = 30 * time.Second
	maxRetryAttempts = 3

	recoveryWindow        = 30 * time.Minute
	conditionPollInterval = 500 * time.Millisecond
)

// Executor performs the side-effecting recovery actions on the service's
// behalf. The service owns policy only; it never touches the coordinator or
// its collaborators directly.
type Executor interface {
	Execute(ctx context.Context, action Action) error
	CheckCondition(ctx context.Context, condition Condition) bool
}

// Service is a per-session recovery policy engine. It decides a [Strategy]
// for each failure, executes it through an injected [Executor], and tracks
// attempt counts durably so a process restart inside the recovery window can
// resume where it left off.
type Service struct {
	sessionID uuid.UUID
	store     Store

	mu              sync.Mutex
	attemptCount    int
	errorOccurredAt time.Time
	degradedMode    *DegradedMode
	attempts        []Attempt

	isRecovering atomic.Bool

	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	jitter       func() float64
	pollInterval time.Duration
}

type ServiceOption func(*Service)

// WithStore sets the durable backing for recovery state. The default keeps
// state in memory only.
func WithStore(store Store) ServiceOption {
	return func(s *Service) { s.store = store }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) { s.sleep = sleep }
}

// WithJitterSource overrides the uniform [0, 1) sample used for backoff
// jitter.
func WithJitterSource(jitter func() float64) ServiceOption {
	return func(s *Service) { s.jitter = jitter }
}

func WithConditionPollInterval(interval time.Duration) ServiceOption {
	return func(s *Service) { s.pollInterval = interval }
}

func NewService(sessionID uuid.UUID, opts ...ServiceOption) *Service {
	s := &Service{
		sessionID:    sessionID,
		store:        &memoryStore{},
		now:          time.Now,
		sleep:        sleepContext,
		jitter:       rand.Float64,
		pollInterval: conditionPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore()
	return s
}

// restore picks up persisted recovery state left behind by a previous
// process, but only if it belongs to this session and is still inside the
// recovery window.
func (s *Service) restore() {
	state, err := s.store.Load()
	if err != nil {
		logger.Warn("Failed to load persisted recovery state", "error", err)
		return
	}
	if state == nil || state.RecoveringSessionID != s.sessionID {
		return
	}
	if s.now().Sub(state.ErrorOccurredAt) > recoveryWindow {
		if err := s.store.Clear(); err != nil {
			logger.Warn("Failed to clear stale recovery state", "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptCount = state.AttemptCount
	s.errorOccurredAt = state.ErrorOccurredAt
	s.degradedMode = state.DegradedMode
}

// DetermineStrategy maps a failure to a recovery strategy based on its kind,
// recoverability and how many attempts have already been burned.
func (s *Service) DetermineStrategy(failure Failure) Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !failure.Recoverable {
		return TerminateStrategy(fmt.Sprintf("%s cannot be recovered from", failure.Kind))
	}

	if s.errorOccurredAt.IsZero() {
		s.errorOccurredAt = s.now()
		s.persistLocked()
	} else if s.now().Sub(s.errorOccurredAt) > recoveryWindow {
		return TerminateStrategy("recovery window expired")
	}

	if s.attemptCount >= maxRetryAttempts {
		switch {
		case failure.Kind.isConnectionRelated():
			return DegradeStrategy(DegradedTranscriptionOnly)
		case failure.Kind.isAudioRelated():
			return DegradeStrategy(DegradedManualNotesOnly)
		default:
			return TerminateStrategy("recovery attempts exhausted with no degraded mode available")
		}
	}

	switch failure.Kind {
	case FailureConnectionLost, FailureReconnectionFailed, FailureServerError:
		return RetryStrategy(s.backoffDelayLocked(), ActionReconnect)
	case FailureConnectionFailed:
		if s.attemptCount == 0 {
			return RetryStrategy(500*time.Millisecond, ActionReconnect)
		}
		return RetryStrategy(s.backoffDelayLocked(), ActionReconnect)
	case FailureAudioCaptureFailed:
		return RetryStrategy(1*time.Second, ActionRestartAudio)
	case FailureAudioDeviceUnavailable:
		return WaitForConditionStrategy(ConditionAudioDeviceAvailable, 30*time.Second)
	case FailurePersistenceFailed:
		return RetryStrategy(500*time.Millisecond, ActionRetryPersistence)
	default:
		return TerminateStrategy(fmt.Sprintf("no recovery strategy for %s", failure.Kind))
	}
}

// CalculateBackoffDelay returns the next exponential backoff delay with
// jitter, capped at 30 seconds.
func (s *Service) CalculateBackoffDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoffDelayLocked()
}

func (s *Service) backoffDelayLocked() time.Duration {
	jitter := 0.5 + s.jitter() // uniform in [0.5, 1.5)
	delay := float64(baseDelay) * math.Pow(2, float64(s.attemptCount)) * jitter
	return min(time.Duration(delay), maxDelay)
}

// ExecuteRecovery carries out a strategy. At most one recovery runs at a
// time per service; concurrent calls get [OutcomeAlreadyRecovering] instead
// of queueing.
func (s *Service) ExecuteRecovery(ctx context.Context, strategy Strategy, failure Failure, executor Executor) Outcome {
	if !s.isRecovering.CompareAndSwap(false, true) {
		return Outcome{Kind: OutcomeAlreadyRecovering}
	}
	defer s.isRecovering.Store(false)

	ctx, span := tracer.Start(ctx, "recovery.execute", trace.WithAttributes(
		attribute.String("recovery.strategy", string(strategy.Kind)),
		attribute.String("recovery.failure_kind", string(failure.Kind)),
	))
	defer span.End()

	switch strategy.Kind {
	case StrategyRetry:
		return s.executeRetry(ctx, strategy, failure, executor)
	case StrategyDegrade:
		s.mu.Lock()
		mode := strategy.Mode
		s.degradedMode = &mode
		s.persistLocked()
		s.mu.Unlock()
		logger.InfoContext(ctx, "Degrading session", "mode", strategy.Mode)
		return Outcome{Kind: OutcomeDegraded, Mode: strategy.Mode}
	case StrategyWaitForCondition:
		return s.executeWaitForCondition(ctx, strategy, failure, executor)
	case StrategyTerminate:
		return Outcome{Kind: OutcomeTerminated, Reason: strategy.Reason}
	default:
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("unknown recovery strategy %q", strategy.Kind)}
	}
}

func (s *Service) executeRetry(ctx context.Context, strategy Strategy, failure Failure, executor Executor) Outcome {
	s.mu.Lock()
	s.attemptCount++
	attempt := s.attemptCount
	s.attempts = append(s.attempts, Attempt{
		At:     s.now(),
		Kind:   failure.Kind,
		Action: strategy.Action,
		Delay:  strategy.Delay,
	})
	s.persistLocked()
	s.mu.Unlock()

	logger.InfoContext(ctx, "Attempting recovery",
		"action", strategy.Action, "attempt", attempt, "delay", strategy.Delay)

	if err := s.sleep(ctx, strategy.Delay); err != nil {
		return Outcome{Kind: OutcomeFailed, Err: err}
	}
	if err := executor.Execute(ctx, strategy.Action); err != nil {
		logger.WarnContext(ctx, "Recovery attempt failed", "action", strategy.Action, "error", err)
		return Outcome{Kind: OutcomeFailed, Err: err}
	}
	return Outcome{Kind: OutcomeRecovered}
}

func (s *Service) executeWaitForCondition(ctx context.Context, strategy Strategy, failure Failure, executor Executor) Outcome {
	deadline := s.now().Add(strategy.Timeout)
	for {
		if executor.CheckCondition(ctx, strategy.Condition) {
			s.mu.Lock()
			s.attemptCount = 0
			s.persistLocked()
			s.mu.Unlock()
			return Outcome{Kind: OutcomeRecovered}
		}
		if s.now().After(deadline) {
			// A full wait window burns an attempt like a failed retry does,
			// so a device that never comes back eventually degrades.
			s.mu.Lock()
			s.attemptCount++
			s.attempts = append(s.attempts, Attempt{
				At:   s.now(),
				Kind: failure.Kind,
			})
			s.persistLocked()
			s.mu.Unlock()
			return Outcome{
				Kind: OutcomeFailed,
				Err:  fmt.Errorf("condition %q was not met within %s", strategy.Condition, strategy.Timeout),
			}
		}
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return Outcome{Kind: OutcomeFailed, Err: err}
		}
	}
}

// RecordSuccess clears all tracked and persisted recovery state after the
// session is healthy again.
func (s *Service) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attemptCount = 0
	s.errorOccurredAt = time.Time{}
	s.degradedMode = nil
	if err := s.store.Clear(); err != nil {
		logger.Warn("Failed to clear recovery state", "error", err)
	}
}

// CanRecover reports whether a recovery for sessionID that began at startTime
// is still resumable, i.e. inside the 30-minute recovery window. A zero
// startTime falls back to the service's tracked error time.
func (s *Service) CanRecover(sessionID uuid.UUID, startTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != s.sessionID {
		return false
	}
	if startTime.IsZero() {
		startTime = s.errorOccurredAt
	}
	if startTime.IsZero() {
		return false
	}
	return s.now().Sub(startTime) <= recoveryWindow
}

func (s *Service) AttemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptCount
}

func (s *Service) DegradedMode() *DegradedMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degradedMode == nil {
		return nil
	}
	mode := *s.degradedMode
	return &mode
}

// Attempts returns a copy of the recovery attempt history.
func (s *Service) Attempts() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attempt{}, s.attempts...)
}

func (s *Service) persistLocked() {
	state := State{
		ErrorOccurredAt:     s.errorOccurredAt,
		RecoveringSessionID: s.sessionID,
		AttemptCount:        s.attemptCount,
		DegradedMode:        s.degradedMode,
	}
	if err := s.store.Save(state); err != nil {
		logger.Warn("Failed to persist recovery state", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
