package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/mlenarte/interview-core/core/audio"
)

const chunkChannelCapacity = 64

// Client is an alternate microphone capture client backed by PortAudio, for
// hosts where miniaudio is unavailable.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream
	in         []int16

	chunks chan []byte

	paused  atomic.Bool
	stopped atomic.Bool

	levelsMu sync.Mutex
	levels   audio.Levels

	closeOnce sync.Once
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		chunks:     make(chan []byte, chunkChannelCapacity),
	}, nil
}

func (c *Client) Start(ctx context.Context) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	go c.readLoop(ctx)
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		if c.stopped.Load() {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			continue
		}

		if c.paused.Load() {
			continue
		}

		audioBuffer := bytes.Buffer{}
		binary.Write(&audioBuffer, binary.LittleEndian, c.in)
		chunk := audioBuffer.Bytes()

		c.levelsMu.Lock()
		c.levels = audio.LevelsFromPCM16(chunk)
		c.levelsMu.Unlock()

		select {
		case c.chunks <- chunk:
		default:
		}
	}
}

func (c *Client) Pause() error {
	c.paused.Store(true)
	return nil
}

func (c *Client) Resume() error {
	c.paused.Store(false)
	return nil
}

func (c *Client) Stop() error {
	c.stopped.Store(true)
	err := c.stream.Stop()
	c.closeOnce.Do(func() { close(c.chunks) })
	if err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
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

func (c *Client) Close() {
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}
