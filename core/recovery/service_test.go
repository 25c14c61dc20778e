package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubExecutor struct {
	mu            sync.Mutex
	executed      []Action
	executeErr    error
	conditionMet  bool
	conditionHits int
}

func (e *stubExecutor) Execute(_ context.Context, action Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, action)
	return e.executeErr
}

func (e *stubExecutor) CheckCondition(_ context.Context, _ Condition) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conditionHits++
	return e.conditionMet
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithSleep(noSleep), WithConditionPollInterval(time.Millisecond)}, opts...)
	return NewService(uuid.New(), opts...)
}

func TestDetermineStrategyUnrecoverableTerminates(t *testing.T) {
	service := newTestService(t)

	strategy := service.DetermineStrategy(Failure{Kind: FailureUnknown, Recoverable: false})
	if strategy.Kind != StrategyTerminate {
		t.Fatalf("expected terminate for an unrecoverable failure, got %s", strategy.Kind)
	}
}

func TestDetermineStrategyConnectionKindsUseBackoffRetry(t *testing.T) {
	service := newTestService(t)

	for _, kind := range []FailureKind{FailureConnectionLost, FailureReconnectionFailed, FailureServerError} {
		strategy := service.DetermineStrategy(Failure{Kind: kind, Recoverable: true})
		if strategy.Kind != StrategyRetry || strategy.Action != ActionReconnect {
			t.Fatalf("expected reconnect retry for %s, got %+v", kind, strategy)
		}
	}
}

func TestDetermineStrategyFirstConnectionFailureRetriesQuickly(t *testing.T) {
	service := newTestService(t)

	strategy := service.DetermineStrategy(Failure{Kind: FailureConnectionFailed, Recoverable: true})
	if strategy.Kind != StrategyRetry || strategy.Delay != 500*time.Millisecond {
		t.Fatalf("expected a fixed 500ms retry on the first connection failure, got %+v", strategy)
	}
}

func TestDetermineStrategyAudioDeviceWaitsForCondition(t *testing.T) {
	service := newTestService(t)

	strategy := service.DetermineStrategy(Failure{Kind: FailureAudioDeviceUnavailable, Recoverable: true})
	if strategy.Kind != StrategyWaitForCondition {
		t.Fatalf("expected wait-for-condition, got %s", strategy.Kind)
	}
	if strategy.Condition != ConditionAudioDeviceAvailable || strategy.Timeout != 30*time.Second {
		t.Fatalf("unexpected condition strategy %+v", strategy)
	}
}

func TestDetermineStrategyExhaustedConnectionBudgetDegradesToTranscriptionOnly(t *testing.T) {
	service := newTestService(t)
	executor := &stubExecutor{}

	failure := Failure{Kind: FailureConnectionLost, Recoverable: true}
	for range 3 {
		strategy := service.DetermineStrategy(failure)
		executor.executeErr = errors.New("still down")
		if outcome := service.ExecuteRecovery(context.Background(), strategy, failure, executor); outcome.Kind != OutcomeFailed {
			t.Fatalf("expected failed attempt, got %s", outcome.Kind)
		}
	}

	strategy := service.DetermineStrategy(failure)
	if strategy.Kind != StrategyDegrade || strategy.Mode != DegradedTranscriptionOnly {
		t.Fatalf("expected transcription-only degrade after 3 failed attempts, got %+v", strategy)
	}
}

func TestDetermineStrategyExhaustedAudioBudgetDegradesToManualNotes(t *testing.T) {
	service := newTestService(t)
	executor := &stubExecutor{executeErr: errors.New("device gone")}

	failure := Failure{Kind: FailureAudioCaptureFailed, Recoverable: true}
	for range 3 {
		service.ExecuteRecovery(context.Background(), service.DetermineStrategy(failure), failure, executor)
	}

	strategy := service.DetermineStrategy(failure)
	if strategy.Kind != StrategyDegrade || strategy.Mode != DegradedManualNotesOnly {
		t.Fatalf("expected manual-notes degrade for audio failures, got %+v", strategy)
	}
}

func TestCalculateBackoffDelayBoundsAndMonotonicity(t *testing.T) {
	jitterValues := []float64{0, 0.5, 0.999}
	for _, jitter := range jitterValues {
		service := newTestService(t, WithJitterSource(func() float64 { return jitter }))
		executor := &stubExecutor{executeErr: errors.New("down")}
		failure := Failure{Kind: FailureConnectionLost, Recoverable: true}

		previous := time.Duration(0)
		for attempt := range 3 {
			delay := service.CalculateBackoffDelay()

			expected := time.Duration(float64(baseDelay) * float64(int(1)<<attempt) * (0.5 + jitter))
			if expected > maxDelay {
				expected = maxDelay
			}
			if delay != expected {
				t.Fatalf("attempt %d jitter %.3f: expected delay %s, got %s", attempt, jitter, expected, delay)
			}
			if delay < previous {
				t.Fatalf("expected non-decreasing delays, got %s after %s", delay, previous)
			}
			previous = delay

			service.ExecuteRecovery(context.Background(), service.DetermineStrategy(failure), failure, executor)
		}
	}
}

func TestCalculateBackoffDelayIsCapped(t *testing.T) {
	service := newTestService(t, WithJitterSource(func() float64 { return 0.999 }))
	executor := &stubExecutor{executeErr: errors.New("down")}
	failure := Failure{Kind: FailureConnectionLost, Recoverable: true}

	// Burn enough attempts that 2^n * base far exceeds the cap.
	for range 3 {
		service.ExecuteRecovery(context.Background(),
			RetryStrategy(0, ActionReconnect), failure, executor)
	}
	for range 3 {
		service.mu.Lock()
		service.attemptCount += 2
		service.mu.Unlock()
		if delay := service.CalculateBackoffDelay(); delay > maxDelay {
			t.Fatalf("expected delay capped at %s, got %s", maxDelay, delay)
		}
	}
}

func TestExecuteRecoveryRetrySucceeds(t *testing.T) {
	service := newTestService(t)
	executor := &stubExecutor{}

	failure := Failure{Kind: FailureConnectionLost, Recoverable: true}
	outcome := service.ExecuteRecovery(context.Background(),
		RetryStrategy(time.Millisecond, ActionReconnect), failure, executor)

	if outcome.Kind != OutcomeRecovered {
		t.Fatalf("expected recovered, got %s (%v)", outcome.Kind, outcome.Err)
	}
	if len(executor.executed) != 1 || executor.executed[0] != ActionReconnect {
		t.Fatalf("expected one reconnect execution, got %v", executor.executed)
	}
	if service.AttemptCount() != 1 {
		t.Fatalf("expected attempt counter at 1, got %d", service.AttemptCount())
	}
	if attempts := service.Attempts(); len(attempts) != 1 || attempts[0].Action != ActionReconnect {
		t.Fatalf("expected one recorded attempt, got %v", attempts)
	}
}

func TestExecuteRecoveryRejectsConcurrentAttempts(t *testing.T) {
	service := newTestService(t, WithSleep(func(ctx context.Context, _ time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	executor := &stubExecutor{}
	failure := Failure{Kind: FailureConnectionLost, Recoverable: true}

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan Outcome, 1)
	go func() {
		firstDone <- service.ExecuteRecovery(ctx, RetryStrategy(time.Hour, ActionReconnect), failure, executor)
	}()

	// Wait for the first attempt to take the recovering slot.
	deadline := time.After(time.Second)
	for !service.isRecovering.Load() {
		select {
		case <-deadline:
			t.Fatal("first recovery attempt never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	outcome := service.ExecuteRecovery(context.Background(), RetryStrategy(0, ActionReconnect), failure, executor)
	if outcome.Kind != OutcomeAlreadyRecovering {
		t.Fatalf("expected alreadyRecovering for the concurrent call, got %s", outcome.Kind)
	}

	cancel()
	if outcome := <-firstDone; outcome.Kind != OutcomeFailed {
		t.Fatalf("expected the cancelled attempt to fail, got %s", outcome.Kind)
	}
}

func TestExecuteRecoveryWaitForConditionResetsAttempts(t *testing.T) {
	service := newTestService(t)
	executor := &stubExecutor{executeErr: errors.New("down")}
	failure := Failure{Kind: FailureAudioCaptureFailed, Recoverable: true}

	service.ExecuteRecovery(context.Background(), RetryStrategy(0, ActionRestartAudio), failure, executor)
	if service.AttemptCount() != 1 {
		t.Fatalf("expected one burned attempt, got %d", service.AttemptCount())
	}

	executor.conditionMet = true
	outcome := service.ExecuteRecovery(context.Background(),
		WaitForConditionStrategy(ConditionAudioDeviceAvailable, time.Second), failure, executor)

	if outcome.Kind != OutcomeRecovered {
		t.Fatalf("expected recovered once the condition holds, got %s", outcome.Kind)
	}
	if service.AttemptCount() != 0 {
		t.Fatalf("expected attempt counter reset on condition success, got %d", service.AttemptCount())
	}
}

func TestExecuteRecoveryWaitForConditionTimesOut(t *testing.T) {
	service := newTestService(t)
	executor := &stubExecutor{conditionMet: false}
	failure := Failure{Kind: FailureAudioDeviceUnavailable, Recoverable: true}

	outcome := service.ExecuteRecovery(context.Background(),
		WaitForConditionStrategy(ConditionAudioDeviceAvailable, 10*time.Millisecond), failure, executor)

	if outcome.Kind != OutcomeFailed {
		t.Fatalf("expected failure on condition timeout, got %s", outcome.Kind)
	}
	if executor.conditionHits == 0 {
		t.Fatal("expected the condition to be polled at least once")
	}
	if service.AttemptCount() != 1 {
		t.Fatalf("expected the exhausted wait to burn an attempt, got %d", service.AttemptCount())
	}
}

func TestRepeatedWaitTimeoutsDegradeToManualNotes(t *testing.T) {
	service := newTestService(t)
	executor := &stubExecutor{conditionMet: false}
	failure := Failure{Kind: FailureAudioDeviceUnavailable, Recoverable: true}

	for range 3 {
		strategy := service.DetermineStrategy(failure)
		if strategy.Kind != StrategyWaitForCondition {
			t.Fatalf("expected wait-for-condition while the budget lasts, got %s", strategy.Kind)
		}
		strategy.Timeout = 10 * time.Millisecond
		if outcome := service.ExecuteRecovery(context.Background(), strategy, failure, executor); outcome.Kind != OutcomeFailed {
			t.Fatalf("expected failed outcome on timeout, got %s", outcome.Kind)
		}
	}

	strategy := service.DetermineStrategy(failure)
	if strategy.Kind != StrategyDegrade || strategy.Mode != DegradedManualNotesOnly {
		t.Fatalf("expected manual-notes degrade after 3 exhausted waits, got %+v", strategy)
	}
}

func TestDetermineStrategyTerminatesAfterRecoveryWindowExpires(t *testing.T) {
	now := time.Now()
	clock := &now
	service := newTestService(t, WithServiceClock(func() time.Time { return *clock }))
	failure := Failure{Kind: FailureConnectionLost, Recoverable: true}

	if strategy := service.DetermineStrategy(failure); strategy.Kind != StrategyRetry {
		t.Fatalf("expected a retry inside the window, got %s", strategy.Kind)
	}

	later := now.Add(31 * time.Minute)
	clock = &later
	if strategy := service.DetermineStrategy(failure); strategy.Kind != StrategyTerminate {
		t.Fatalf("expected terminate once the recovery window expired, got %s", strategy.Kind)
	}
}

func TestExecuteRecoveryDegradeSetsMode(t *testing.T) {
	service := newTestService(t)
	failure := Failure{Kind: FailureConnectionLost, Recoverable: true}

	outcome := service.ExecuteRecovery(context.Background(),
		DegradeStrategy(DegradedTranscriptionOnly), failure, &stubExecutor{})

	if outcome.Kind != OutcomeDegraded || outcome.Mode != DegradedTranscriptionOnly {
		t.Fatalf("expected degraded(transcriptionOnly), got %+v", outcome)
	}
	if mode := service.DegradedMode(); mode == nil || *mode != DegradedTranscriptionOnly {
		t.Fatalf("expected the degraded mode to stick, got %v", mode)
	}
}

func TestRecordSuccessClearsState(t *testing.T) {
	store := &memoryStore{}
	service := newTestService(t, WithStore(store))
	executor := &stubExecutor{executeErr: errors.New("down")}
	failure := Failure{Kind: FailureConnectionLost, Recoverable: true}

	service.DetermineStrategy(failure)
	service.ExecuteRecovery(context.Background(), RetryStrategy(0, ActionReconnect), failure, executor)

	service.RecordSuccess()

	if service.AttemptCount() != 0 {
		t.Fatalf("expected attempt counter cleared, got %d", service.AttemptCount())
	}
	if state, _ := store.Load(); state != nil {
		t.Fatalf("expected persisted state cleared, got %+v", state)
	}
}

func TestCanRecoverWindowAndSessionMatch(t *testing.T) {
	now := time.Now()
	clock := &now
	sessionID := uuid.New()
	service := NewService(sessionID,
		WithSleep(noSleep),
		WithServiceClock(func() time.Time { return *clock }))

	if service.CanRecover(sessionID, time.Time{}) {
		t.Fatal("expected no recovery window before any failure is tracked")
	}

	service.DetermineStrategy(Failure{Kind: FailureConnectionLost, Recoverable: true})
	if !service.CanRecover(sessionID, time.Time{}) {
		t.Fatal("expected a fresh failure to be recoverable")
	}
	if service.CanRecover(uuid.New(), now) {
		t.Fatal("expected a session id mismatch to deny recovery")
	}
	if !service.CanRecover(sessionID, now.Add(-29*time.Minute)) {
		t.Fatal("expected an explicit start time inside the window to allow recovery")
	}
	if service.CanRecover(sessionID, now.Add(-31*time.Minute)) {
		t.Fatal("expected an explicit start time outside the window to deny recovery")
	}

	later := now.Add(31 * time.Minute)
	clock = &later
	if service.CanRecover(sessionID, time.Time{}) {
		t.Fatal("expected recovery denied after the 30-minute window")
	}
}

func TestServiceRestoresPersistedStateForMatchingSession(t *testing.T) {
	sessionID := uuid.New()
	store := &memoryStore{}
	mode := DegradedTranscriptionOnly
	if err := store.Save(State{
		ErrorOccurredAt:     time.Now().Add(-time.Minute),
		RecoveringSessionID: sessionID,
		AttemptCount:        2,
		DegradedMode:        &mode,
	}); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	service := NewService(sessionID, WithStore(store), WithSleep(noSleep))

	if service.AttemptCount() != 2 {
		t.Fatalf("expected restored attempt count 2, got %d", service.AttemptCount())
	}
	if restored := service.DegradedMode(); restored == nil || *restored != mode {
		t.Fatalf("expected restored degraded mode, got %v", restored)
	}
	if !service.CanRecover(sessionID, time.Time{}) {
		t.Fatal("expected restored state to be inside the recovery window")
	}
}

func TestServiceIgnoresStaleOrForeignPersistedState(t *testing.T) {
	store := &memoryStore{}
	if err := store.Save(State{
		ErrorOccurredAt:     time.Now().Add(-time.Hour),
		RecoveringSessionID: uuid.New(),
		AttemptCount:        3,
	}); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	service := NewService(uuid.New(), WithStore(store), WithSleep(noSleep))

	if service.AttemptCount() != 0 {
		t.Fatalf("expected foreign state ignored, got attempt count %d", service.AttemptCount())
	}
}
