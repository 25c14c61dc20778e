package session

import (
	"time"

	"github.com/mlenarte/interview-core/core/audio"
	"github.com/mlenarte/interview-core/core/realtime"
	"github.com/mlenarte/interview-core/core/recovery"
	"github.com/mlenarte/interview-core/core/storage"
)

type ManagerOption func(*Manager)

// WithCaptureFactory sets how the manager mints capture devices. A factory
// (rather than a fixed instance) lets the restart-audio recovery action open
// a fresh device.
func WithCaptureFactory(factory func() (audio.Capture, error)) ManagerOption {
	return func(m *Manager) { m.captureFactory = factory }
}

// WithCapture wires a single fixed capture device. Restart-audio recovery
// will reuse the same instance, so prefer [WithCaptureFactory] when the
// device supports reopening.
func WithCapture(capture audio.Capture) ManagerOption {
	return func(m *Manager) {
		m.captureFactory = func() (audio.Capture, error) { return capture, nil }
	}
}

func WithRealtimeClient(client realtime.Client) ManagerOption {
	return func(m *Manager) { m.client = client }
}

func WithDataManager(store storage.DataManager) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithRecoveryStore sets the durable backing for recovery state so a restart
// inside the recovery window can resume.
func WithRecoveryStore(store recovery.Store) ManagerOption {
	return func(m *Manager) { m.recoveryStore = store }
}

// WithRecoveryOptions forwards extra options to each session's recovery
// service.
func WithRecoveryOptions(opts ...recovery.ServiceOption) ManagerOption {
	return func(m *Manager) { m.recoveryOptions = opts }
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}
