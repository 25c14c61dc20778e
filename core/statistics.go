package session

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/mlenarte/interview-core/core/connection"
	"github.com/mlenarte/interview-core/core/recovery"
	"github.com/mlenarte/interview-core/core/transcription"
)

// Statistics is a read-only snapshot of the whole session, computed on
// demand and never persisted.
type Statistics struct {
	State        State
	Elapsed      time.Duration
	DegradedMode *recovery.DegradedMode

	Buffer     transcription.Statistics
	Connection connection.Statistics

	RecoveryAttempts []recovery.Attempt
	History          []Transition
}

// Statistics assembles the current session snapshot.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	stats := Statistics{
		State:   m.state,
		Elapsed: m.elapsed,
	}
	if m.degradedMode != nil {
		mode := *m.degradedMode
		stats.DegradedMode = &mode
	}
	if err := copier.Copy(&stats.History, &m.history); err != nil {
		logger.Warn("Failed to copy transition history", "error", err)
	}
	coordinator := m.coordinator
	service := m.recoveryService
	m.mu.Unlock()

	if coordinator != nil {
		stats.Buffer = coordinator.Buffer().Statistics()
	}
	if service != nil {
		stats.RecoveryAttempts = service.Attempts()
	}
	stats.Connection = m.monitor.Statistics()
	return stats
}
