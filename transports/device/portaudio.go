//go:build portaudio

package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"triviahost/core"
	"triviahost/handlers/capture"
	"triviahost/handlers/playback"
	"triviahost/utils/audio"

	"github.com/gordonklaus/portaudio"
)

// System owns the PortAudio library for the lifetime of a local session.
type System struct {
	cfg     Config
	logger  *core.Logger
	speaker *speaker
	mic     *microphone
}

func Open(cfg Config, logger *core.Logger) (*System, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = core.GetLogger()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("device: initialize portaudio: %w", err)
	}
	logger = logger.With(map[string]interface{}{"component": "device"})
	s := &System{cfg: cfg, logger: logger}
	s.speaker = &speaker{
		cfg:    cfg,
		logger: logger,
		tl:     newTimeline(cfg.OutputSampleRate),
		state:  playback.SinkSuspended,
	}
	s.mic = &microphone{cfg: cfg, logger: logger}
	return s, nil
}

func (s *System) Sink() playback.Sink {
	return s.speaker
}

func (s *System) Microphone() capture.Microphone {
	return s.mic
}

func (s *System) Close() error {
	err := s.speaker.close()
	return errors.Join(err, portaudio.Terminate())
}

// speaker is the default output device. Its clock is the number of frames
// written to the stream.
type speaker struct {
	cfg    Config
	logger *core.Logger
	tl     *timeline

	mu     sync.Mutex
	state  playback.SinkState
	stream *portaudio.Stream
	cancel context.CancelFunc
	done   chan struct{}
}

func (k *speaker) Resume(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch k.state {
	case playback.SinkRunning:
		return nil
	case playback.SinkClosed:
		return playback.ErrSinkClosed
	}

	out := make([]float32, k.cfg.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(k.cfg.OutputSampleRate), len(out), out)
	if err != nil {
		return fmt.Errorf("device: open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("device: start output stream: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	k.stream = stream
	k.cancel = cancel
	k.done = make(chan struct{})
	k.state = playback.SinkRunning
	go k.writeLoop(loopCtx, stream, out, k.done)

	k.logger.Infof("speaker started at %d Hz", k.cfg.OutputSampleRate)
	return nil
}

func (k *speaker) State() playback.SinkState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *speaker) CurrentTime() float64 {
	return k.tl.now()
}

func (k *speaker) Schedule(buf *audio.Buffer, at float64) error {
	if k.State() == playback.SinkClosed {
		return playback.ErrSinkClosed
	}
	return k.tl.schedule(buf, at)
}

func (k *speaker) writeLoop(ctx context.Context, stream *portaudio.Stream, out []float32, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		k.tl.read(out)
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			k.logger.Warnf("speaker write: %v", err)
		}
	}
}

func (k *speaker) close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state == playback.SinkClosed {
		return nil
	}
	k.state = playback.SinkClosed
	if k.stream == nil {
		return nil
	}
	k.cancel()
	<-k.done
	err := k.stream.Stop()
	return errors.Join(err, k.stream.Close())
}

// microphone opens the default input device.
type microphone struct {
	cfg    Config
	logger *core.Logger
}

func (m *microphone) Open(ctx context.Context, cfg capture.StreamConfig) (capture.InputStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = capture.DefaultFrameSize
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = capture.DefaultSampleRate
	}

	in := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(rate), frameSize, in)
	if err != nil {
		return nil, fmt.Errorf("device: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("device: start input stream: %w", err)
	}

	s := &inputStream{
		stream: stream,
		rate:   rate,
		in:     in,
		frames: make(chan []float32, m.cfg.FrameBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: m.logger,
	}
	go s.readLoop()
	m.logger.Debugf("microphone open at %d Hz, %d frames/buffer", rate, frameSize)
	return s, nil
}

type inputStream struct {
	stream  *portaudio.Stream
	rate    int
	in      []float32
	frames  chan []float32
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	logger  *core.Logger
}

func (s *inputStream) Frames() <-chan []float32 {
	return s.frames
}

func (s *inputStream) SampleRate() int {
	return s.rate
}

func (s *inputStream) readLoop() {
	defer close(s.done)
	defer close(s.frames)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				s.dropped.Add(1)
				continue
			}
			s.logger.Warnf("microphone read: %v", err)
			return
		}
		frame := make([]float32, len(s.in))
		copy(frame, s.in)
		select {
		case s.frames <- frame:
		case <-s.stop:
			return
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *inputStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		err = s.stream.Stop()
		<-s.done
		err = errors.Join(err, s.stream.Close())
		if n := s.dropped.Load(); n > 0 {
			s.logger.Warnf("microphone dropped %d frames", n)
		}
	})
	return err
}
