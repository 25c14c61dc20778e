package miniaudio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/mlenarte/interview-core/core/audio"
)

const chunkChannelCapacity = 64

// Client captures microphone audio through miniaudio and exposes it as a
// finite chunk stream. One client backs at most one recording session.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	chunks chan []byte

	paused  atomic.Bool
	started atomic.Bool

	levelsMu sync.Mutex
	levels   audio.Levels

	closeOnce sync.Once
	mu        sync.Mutex
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	client := &Client{
		audioContext: audioCtx,
		chunks:       make(chan []byte, chunkChannelCapacity),
	}

	if err := client.initDevice(); err != nil {
		client.close()
		return nil, err
	}

	return client, nil
}

func (c *Client) initDevice() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = sampleRate
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	device, err := malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.onAudio(pInput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	c.device = device
	return nil
}

func (c *Client) onAudio(input []byte) {
	if c.paused.Load() {
		return
	}

	chunk := make([]byte, len(input))
	copy(chunk, input)

	c.levelsMu.Lock()
	c.levels = audio.LevelsFromPCM16(chunk)
	c.levelsMu.Unlock()

	// Drop chunks rather than block the device callback when the consumer
	// falls behind.
	select {
	case c.chunks <- chunk:
	default:
	}
}

func (c *Client) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.started.Store(true)
	c.paused.Store(false)
	return nil
}

func (c *Client) Pause() error {
	if !c.started.Load() {
		return fmt.Errorf("capture not started")
	}

	c.paused.Store(true)
	return nil
}

func (c *Client) Resume() error {
	if !c.started.Load() {
		return fmt.Errorf("capture not started")
	}

	c.paused.Store(false)
	return nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if c.device.IsStarted() {
		if err := c.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop capture device: %w", err)
		}
	}

	c.started.Store(false)
	c.closeOnce.Do(func() { close(c.chunks) })
	c.releaseLocked()
	return nil
}

func (c *Client) Chunks() <-chan []byte { return c.chunks }

func (c *Client) Levels() audio.Levels {
	c.levelsMu.Lock()
	defer c.levelsMu.Unlock()
	return c.levels
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}

func (c *Client) Close() { c.close() }

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

// releaseLocked frees the device and context. Clients are single-use, a new
// one is minted for every capture restart, so Stop releases eagerly.
func (c *Client) releaseLocked() {
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}
