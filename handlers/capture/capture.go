package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"triviahost/core"
	"triviahost/utils/audio"
)

const (
	DefaultSampleRate = 16000
	DefaultFrameSize  = 4096
)

var ErrAlreadyStarted = errors.New("capture: already started")

type Config struct {
	SampleRate int // target rate of emitted chunks
	FrameSize  int // samples per emitted chunk
}

// Capture turns microphone frames into fixed-size base64 PCM16 chunks. A
// Capture runs at most once: after Stop it cannot be restarted.
type Capture struct {
	mic    Microphone
	cfg    Config
	logger *core.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	stream  InputStream
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(mic Microphone, cfg Config, logger *core.Logger) *Capture {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Capture{
		mic:    mic,
		cfg:    cfg,
		logger: logger.With(map[string]interface{}{"component": "capture"}),
	}
}

// Start opens the microphone and begins emitting chunks to onChunk from a
// background goroutine. onChunk must not block. Start returns once the
// stream is open. If Stop is called while the microphone is still being
// opened, the late stream is closed and ErrStopped is returned.
func (c *Capture) Start(ctx context.Context, onChunk func(core.AudioBlob)) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return core.ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	stream, err := c.mic.Open(ctx, StreamConfig{
		SampleRate: c.cfg.SampleRate,
		Channels:   1,
		FrameSize:  c.cfg.FrameSize,
	})
	if err != nil {
		cancel()
		if c.isStopped() {
			return core.ErrStopped
		}
		if errors.Is(err, core.ErrPermissionDenied) {
			return fmt.Errorf("capture: open microphone: %w", err)
		}
		return fmt.Errorf("capture: open microphone: %w: %v", core.ErrPermissionDenied, err)
	}

	resampler, err := audio.NewResampler(stream.SampleRate(), c.cfg.SampleRate)
	if err != nil {
		cancel()
		_ = stream.Close()
		return fmt.Errorf("capture: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = stream.Close()
		return core.ErrStopped
	}
	c.stream = stream
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.logger.Infof("microphone open at %d Hz, emitting %d-sample chunks at %d Hz",
		stream.SampleRate(), c.cfg.FrameSize, c.cfg.SampleRate)

	go c.run(ctx, stream, resampler, onChunk, done)
	return nil
}

func (c *Capture) run(ctx context.Context, stream InputStream, resampler *audio.Resampler, onChunk func(core.AudioBlob), done chan struct{}) {
	defer close(done)

	mime := audio.MIMEType(c.cfg.SampleRate)
	pending := make([]float32, 0, c.cfg.FrameSize*2)
	chunks := 0

	for {
		select {
		case <-ctx.Done():
			c.logger.Debugf("capture loop stopped after %d chunks", chunks)
			return
		case frame, ok := <-stream.Frames():
			if !ok {
				c.logger.Debugf("microphone stream ended after %d chunks", chunks)
				return
			}
			pending = append(pending, resampler.Process(frame)...)
			for len(pending) >= c.cfg.FrameSize {
				onChunk(core.AudioBlob{
					Data:     audio.Encode(audio.FloatToPCM16(pending[:c.cfg.FrameSize])),
					MIMEType: mime,
				})
				chunks++
				n := copy(pending, pending[c.cfg.FrameSize:])
				pending = pending[:n]
			}
		}
	}
}

// Stop ends capture and closes the microphone. It is safe to call at any
// time and more than once.
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel, stream, done := c.cancel, c.stream, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			c.logger.Warn("closing microphone stream", "error", err)
		}
	}
	if done != nil {
		<-done
	}
}

// Running reports whether the frame loop is active.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil && !c.stopped
}

func (c *Capture) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
