package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"triviahost/core"
	"triviahost/handlers/capture"
	"triviahost/protocol"
)

type openResult struct {
	sampleRate int
	err        error
}

// microphone asks the browser to capture and receives its binary frames.
// At most one stream is open at a time.
type microphone struct {
	svc *Service

	mu      sync.Mutex
	pending chan openResult
	active  *stream
}

func newMicrophone(svc *Service) *microphone {
	return &microphone{svc: svc}
}

// Open sends capture_start and waits for the browser's answer. A refusal is
// reported as core.ErrPermissionDenied.
func (m *microphone) Open(ctx context.Context, cfg capture.StreamConfig) (capture.InputStream, error) {
	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("ws-transport: microphone open already in progress")
	}
	previous := m.active
	m.active = nil
	pending := make(chan openResult, 1)
	m.pending = pending
	m.mu.Unlock()

	if previous != nil {
		previous.release()
	}

	err := m.svc.send(protocol.MsgCaptureStart, protocol.CaptureStartPayload{
		SampleRate: cfg.SampleRate,
		FrameSize:  cfg.FrameSize,
	})
	if err != nil {
		m.clearPending(pending)
		return nil, fmt.Errorf("ws-transport: request capture: %w", core.ErrConnection)
	}

	var res openResult
	select {
	case res = <-pending:
	case <-ctx.Done():
		m.clearPending(pending)
		_ = m.svc.send(protocol.MsgCaptureStop, nil)
		return nil, ctx.Err()
	case <-m.svc.closed:
		m.clearPending(pending)
		return nil, fmt.Errorf("ws-transport: connection closed: %w", core.ErrConnection)
	}
	if res.err != nil {
		return nil, res.err
	}

	rate := res.sampleRate
	if rate <= 0 {
		rate = m.svc.declaredInputRate()
	}
	st := &stream{
		mic:        m,
		sampleRate: rate,
		frames:     make(chan []float32, m.svc.config.FrameBuffer),
	}

	m.mu.Lock()
	m.active = st
	m.mu.Unlock()

	m.svc.logger.Debugf("browser capture ready at %d Hz", rate)
	return st, nil
}

func (m *microphone) clearPending(pending chan openResult) {
	m.mu.Lock()
	if m.pending == pending {
		m.pending = nil
	}
	m.mu.Unlock()
}

func (m *microphone) resolve(res openResult) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if pending == nil {
		m.svc.logger.Warn("capture answer without a pending request")
		return
	}
	pending <- res
}

func (m *microphone) ready(sampleRate int) {
	m.resolve(openResult{sampleRate: sampleRate})
}

func (m *microphone) denied(reason string) {
	if reason == "" {
		reason = "capture denied by client"
	}
	m.resolve(openResult{err: fmt.Errorf("ws-transport: %s: %w", reason, core.ErrPermissionDenied)})
}

func (m *microphone) push(samples []float32) {
	m.mu.Lock()
	st := m.active
	m.mu.Unlock()
	if st != nil {
		st.push(samples)
	}
}

// shutdown ends any pending open and the active stream once the connection is gone.
func (m *microphone) shutdown() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	st := m.active
	m.active = nil
	m.mu.Unlock()

	if pending != nil {
		pending <- openResult{err: fmt.Errorf("ws-transport: connection closed: %w", core.ErrConnection)}
	}
	if st != nil {
		st.release()
	}
}

func (m *microphone) detach(st *stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == st {
		m.active = nil
	}
}

type stream struct {
	mic        *microphone
	sampleRate int
	frames     chan []float32
	dropped    atomic.Int64

	mu     sync.Mutex
	closed bool
}

func (s *stream) Frames() <-chan []float32 {
	return s.frames
}

func (s *stream) SampleRate() int {
	return s.sampleRate
}

// Close stops the browser capture. Safe to call more than once.
func (s *stream) Close() error {
	if !s.release() {
		return nil
	}
	s.mic.detach(s)
	if n := s.dropped.Load(); n > 0 {
		s.mic.svc.logger.Warnf("microphone stream dropped %d frames", n)
	}
	select {
	case <-s.mic.svc.closed:
		return nil
	default:
	}
	return s.mic.svc.send(protocol.MsgCaptureStop, nil)
}

// release closes the frame channel and reports whether this call did it.
func (s *stream) release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.frames)
	return true
}

func (s *stream) push(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- samples:
	default:
		s.dropped.Add(1)
	}
}
