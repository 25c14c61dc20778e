package audio

import (
	"context"
	"errors"
)

// ErrDeviceUnavailable is returned (possibly wrapped) by Capture
// implementations when no usable input device exists.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Capture is the microphone contract consumed by the session coordinator.
//
// Chunks is a finite stream: it is closed once Stop is called and the last
// buffered chunk has been delivered. Pause keeps the device open but stops
// chunk delivery; Resume restarts it.
type Capture interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop() error

	// Chunks streams raw audio in the capture encoding until Stop.
	Chunks() <-chan []byte
	// Levels returns the most recent level snapshot, polled by timers.
	Levels() Levels

	EncodingInfo() EncodingInfo
}
