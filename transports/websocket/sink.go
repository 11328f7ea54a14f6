package websocket

import (
	"context"
	"sync"
	"time"

	"triviahost/handlers/playback"
	"triviahost/protocol"
	"triviahost/utils/audio"
)

// sink plays audio in the browser. Its clock starts when the browser reports
// audio_resumed; the client anchors play.start_at to its own output clock at
// that moment.
type sink struct {
	svc *Service

	mu        sync.Mutex
	state     playback.SinkState
	origin    time.Time
	requested bool
	resumed   chan struct{}
}

func newSink(svc *Service) *sink {
	return &sink{
		svc:     svc,
		state:   playback.SinkSuspended,
		resumed: make(chan struct{}),
	}
}

// Resume asks the browser to unlock audio output and waits until it has.
func (k *sink) Resume(ctx context.Context) error {
	k.mu.Lock()
	switch k.state {
	case playback.SinkRunning:
		k.mu.Unlock()
		return nil
	case playback.SinkClosed:
		k.mu.Unlock()
		return playback.ErrSinkClosed
	}
	request := !k.requested
	k.requested = true
	resumed := k.resumed
	k.mu.Unlock()

	if request {
		if err := k.svc.send(protocol.MsgResumeAudio, nil); err != nil {
			k.mu.Lock()
			k.requested = false
			k.mu.Unlock()
			return err
		}
	}

	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-k.svc.closed:
		return playback.ErrSinkClosed
	}
}

func (k *sink) State() playback.SinkState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *sink) CurrentTime() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state != playback.SinkRunning {
		return 0
	}
	return time.Since(k.origin).Seconds()
}

// Schedule sends one segment as interleaved PCM16.
func (k *sink) Schedule(buf *audio.Buffer, at float64) error {
	if k.State() == playback.SinkClosed {
		return playback.ErrSinkClosed
	}
	return k.svc.send(protocol.MsgPlay, protocol.PlayPayload{
		StartAt:    at,
		SampleRate: buf.SampleRate,
		Channels:   len(buf.Channels),
		Data:       audio.Encode(audio.FloatToPCM16(interleave(buf))),
	})
}

func (k *sink) markResumed() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state != playback.SinkSuspended {
		return
	}
	k.state = playback.SinkRunning
	k.origin = time.Now()
	close(k.resumed)
	k.svc.logger.Debug("browser audio resumed")
}

func (k *sink) close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state = playback.SinkClosed
}

func interleave(buf *audio.Buffer) []float32 {
	if len(buf.Channels) == 1 {
		return buf.Channels[0]
	}
	n := buf.Length()
	out := make([]float32, 0, n*len(buf.Channels))
	for i := 0; i < n; i++ {
		for _, ch := range buf.Channels {
			out = append(out, ch[i])
		}
	}
	return out
}

var _ playback.Sink = (*sink)(nil)
