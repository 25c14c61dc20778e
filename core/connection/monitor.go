package connection

import (
	"sync"
	"time"
)

const (
	sampleWindowSize   = 10
	qualityHistorySize = 60
)

type sample struct {
	latency time.Duration
	success bool
	at      time.Time
}

// QualityChange is one entry in the bounded quality history ring.
type QualityChange struct {
	Quality Quality
	At      time.Time
}

// Statistics is a read-only snapshot of the monitor's derived state.
type Statistics struct {
	Current          Quality
	AverageLatencyMs float64
	ErrorRate        float64
	TotalSuccesses   uint64
	TotalErrors      uint64
	PathAvailable    bool
	Interface        InterfaceKind
	History          []QualityChange
}

// Monitor derives a discrete connection quality from a sliding window of
// request outcomes and the state of the network path.
type Monitor struct {
	mu sync.Mutex

	samples []sample

	totalSuccesses uint64
	totalErrors    uint64

	pathAvailable bool
	interfaceKind InterfaceKind

	quality Quality
	history []QualityChange

	onChange func(Quality)
	now      func() time.Time
}

type MonitorOption func(*Monitor)

// WithQualityChangeCallback registers the callback invoked on every derived
// quality change. It runs inline under the monitor's lock and must not call
// back into the monitor.
func WithQualityChangeCallback(callback func(Quality)) MonitorOption {
	return func(m *Monitor) { m.onChange = callback }
}

func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		pathAvailable: true,
		interfaceKind: InterfaceUnknown,
		quality:       QualityFair, // optimistic until measurements arrive
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordSuccess appends a successful request sample and recomputes quality.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalSuccesses++
	m.appendSample(sample{latency: latency, success: true, at: m.now()})
	m.recomputeQuality()
}

// RecordError appends a failed request sample and recomputes quality.
func (m *Monitor) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalErrors++
	m.appendSample(sample{success: false, at: m.now()})
	m.recomputeQuality()
}

// RecordDisconnect forces the quality to disconnected, for explicit
// disconnect events that arrive out of band.
func (m *Monitor) RecordDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalErrors++
	m.setQuality(QualityDisconnected)
}

// SetPathStatus reports a network path transition. A newly available path
// promotes disconnected to fair optimistically, before measurements arrive.
func (m *Monitor) SetPathStatus(available bool, kind InterfaceKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasAvailable := m.pathAvailable
	m.pathAvailable = available
	m.interfaceKind = kind

	if !available {
		m.setQuality(QualityDisconnected)
		return
	}

	if !wasAvailable && m.quality == QualityDisconnected {
		m.setQuality(QualityFair)
		return
	}

	m.recomputeQuality()
}

func (m *Monitor) appendSample(s sample) {
	m.samples = append(m.samples, s)
	if len(m.samples) > sampleWindowSize {
		m.samples = m.samples[len(m.samples)-sampleWindowSize:]
	}
}

// recomputeQuality derives quality as the worse of the latency tier and the
// error-rate tier over the window. Callers hold the lock.
func (m *Monitor) recomputeQuality() {
	if !m.pathAvailable {
		m.setQuality(QualityDisconnected)
		return
	}

	if len(m.samples) == 0 {
		return
	}

	var latencySum time.Duration
	successCount := 0
	errorCount := 0
	for _, s := range m.samples {
		if s.success {
			latencySum += s.latency
			successCount++
		} else {
			errorCount++
		}
	}

	quality := QualityDisconnected
	if successCount > 0 {
		averageLatencyMs := float64(latencySum.Milliseconds()) / float64(successCount)
		quality = latencyTier(averageLatencyMs)
	}

	errorRate := float64(errorCount) / float64(len(m.samples))
	if errorTier := errorRateTier(errorRate); errorTier < quality {
		quality = errorTier
	}

	// Cellular paths are jittery enough that we never report better than good
	// over them.
	if m.interfaceKind == InterfaceCellular && quality > QualityGood {
		quality = QualityGood
	}

	m.setQuality(quality)
}

func (m *Monitor) setQuality(quality Quality) {
	if quality == m.quality {
		return
	}

	m.quality = quality
	m.history = append(m.history, QualityChange{Quality: quality, At: m.now()})
	if len(m.history) > qualityHistorySize {
		m.history = m.history[len(m.history)-qualityHistorySize:]
	}

	if m.onChange != nil {
		m.onChange(quality)
	}
}

// Quality returns the current derived quality level.
func (m *Monitor) Quality() Quality {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quality
}

func (m *Monitor) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latencySum time.Duration
	successCount := 0
	errorCount := 0
	for _, s := range m.samples {
		if s.success {
			latencySum += s.latency
			successCount++
		} else {
			errorCount++
		}
	}

	stats := Statistics{
		Current:        m.quality,
		TotalSuccesses: m.totalSuccesses,
		TotalErrors:    m.totalErrors,
		PathAvailable:  m.pathAvailable,
		Interface:      m.interfaceKind,
		History:        make([]QualityChange, len(m.history)),
	}
	copy(stats.History, m.history)

	if successCount > 0 {
		stats.AverageLatencyMs = float64(latencySum.Milliseconds()) / float64(successCount)
	}
	if len(m.samples) > 0 {
		stats.ErrorRate = float64(errorCount) / float64(len(m.samples))
	}
	return stats
}
