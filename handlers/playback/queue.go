package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"triviahost/core"
	"triviahost/utils/audio"
)

const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1

	// playingTolerance is subtracted from the scheduled end when reporting
	// IsPlaying, so the flag drops slightly before the last sample.
	playingTolerance = 0.1
)

var ErrSinkClosed = errors.New("playback: sink closed")

type Config struct {
	SampleRate int
	Channels   int
}

// Scheduled describes where a segment landed on the sink clock.
type Scheduled struct {
	Start    float64
	Duration float64
}

func (s Scheduled) End() float64 {
	return s.Start + s.Duration
}

// Queue plays base64 PCM segments back to back on a Sink. Segments are
// scheduled in the order Enqueue is called, each starting where the previous
// one ends or now, whichever is later.
//
// Enqueue calls are serialized by order, which is held while the sink
// resumes. mu only guards the schedule bookkeeping and is never held across
// a sink call that can wait, so IsPlaying answers immediately even while an
// Enqueue is parked in Resume.
type Queue struct {
	order sync.Mutex

	mu        sync.Mutex
	nextStart float64
	playing   bool

	sink   Sink
	cfg    Config
	logger *core.Logger
}

func NewQueue(sink Sink, cfg Config, logger *core.Logger) *Queue {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Queue{
		sink:   sink,
		cfg:    cfg,
		logger: logger.With(map[string]interface{}{"component": "playback"}),
	}
}

// Enqueue decodes one segment and schedules it. It returns once the segment
// is scheduled, not when it finishes playing. Malformed payloads are
// reported and leave the queue untouched. A suspended sink is resumed first;
// cancelling ctx abandons the wait.
func (q *Queue) Enqueue(ctx context.Context, base64Audio string) (Scheduled, error) {
	q.order.Lock()
	defer q.order.Unlock()

	switch q.sink.State() {
	case SinkClosed:
		return Scheduled{}, ErrSinkClosed
	case SinkSuspended:
		if err := q.sink.Resume(ctx); err != nil {
			return Scheduled{}, fmt.Errorf("playback: resume sink: %w", err)
		}
	}

	raw, err := audio.Decode(base64Audio)
	if err != nil {
		return Scheduled{}, err
	}
	buf, err := audio.DecodeAudioData(raw, q.cfg.SampleRate, q.cfg.Channels)
	if err != nil {
		return Scheduled{}, err
	}

	// nextStart only moves under order, so reading it here and writing it
	// back after Schedule cannot race another Enqueue.
	now := q.sink.CurrentTime()
	q.mu.Lock()
	start := max(now, q.nextStart)
	q.mu.Unlock()

	if err := q.sink.Schedule(buf, start); err != nil {
		return Scheduled{}, fmt.Errorf("playback: schedule segment: %w", err)
	}

	q.mu.Lock()
	q.nextStart = start + buf.Duration()
	q.playing = true
	q.mu.Unlock()

	q.logger.Tracef("scheduled %.3fs at %.3f", buf.Duration(), start)
	return Scheduled{Start: start, Duration: buf.Duration()}, nil
}

// IsPlaying reports whether scheduled audio is still ahead of the sink clock.
func (q *Queue) IsPlaying() bool {
	now := q.sink.CurrentTime()
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.playing {
		return false
	}
	if now >= q.nextStart-playingTolerance {
		q.playing = false
	}
	return q.playing
}

// NextStart is the clock time the next segment would start at, at the earliest.
func (q *Queue) NextStart() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextStart
}
