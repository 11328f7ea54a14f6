package playback

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"triviahost/core"
	"triviahost/utils/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduledCall struct {
	at       float64
	duration float64
}

type fakeSink struct {
	mu        sync.Mutex
	state     SinkState
	now       float64
	resumes   int
	resumeErr error
	calls     []scheduledCall
	// gate, when set, holds Resume until it is closed or ctx ends.
	gate chan struct{}
}

func (s *fakeSink) Resume(ctx context.Context) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	if s.resumeErr != nil {
		return s.resumeErr
	}
	s.state = SinkRunning
	return nil
}

func (s *fakeSink) State() SinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSink) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeSink) Schedule(buf *audio.Buffer, at float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scheduledCall{at: at, duration: buf.Duration()})
	return nil
}

func (s *fakeSink) advance(d float64) {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()
}

// segment returns base64 PCM of the given length in seconds at 24 kHz.
func segment(seconds float64) string {
	return audio.Encode(make([]byte, int(seconds*DefaultSampleRate)*2))
}

func newTestQueue(sink *fakeSink) *Queue {
	return NewQueue(sink, Config{}, core.NewNopLogger())
}

func TestEnqueueSchedulesBackToBack(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, segment(0.5))
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, segment(0.25))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, first.Start, 1e-9)
	assert.InDelta(t, 0.5, second.Start, 1e-9)
	assert.InDelta(t, 0.75, q.NextStart(), 1e-9)
}

func TestEnqueueAfterGapStartsAtClock(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, segment(0.5))
	require.NoError(t, err)
	sink.advance(2)

	s, err := q.Enqueue(ctx, segment(0.5))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, s.Start, 1e-9)
}

func TestEnqueueMonotonic(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	prevEnd := 0.0
	for i := 0; i < 200; i++ {
		sink.advance(rng.Float64() * 0.3)
		clock := sink.CurrentTime()
		s, err := q.Enqueue(ctx, segment(rng.Float64()*0.2))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s.Start, prevEnd-1e-9)
		assert.GreaterOrEqual(t, s.Start, clock)
		prevEnd = s.End()
	}
}

func TestEnqueueResumesSuspendedSink(t *testing.T) {
	sink := &fakeSink{state: SinkSuspended}
	q := newTestQueue(sink)

	_, err := q.Enqueue(context.Background(), segment(0.1))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.resumes)
	assert.Equal(t, SinkRunning, sink.State())

	_, err = q.Enqueue(context.Background(), segment(0.1))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.resumes)
}

func TestEnqueueResumeFailure(t *testing.T) {
	sink := &fakeSink{state: SinkSuspended, resumeErr: errors.New("no gesture")}
	q := newTestQueue(sink)

	_, err := q.Enqueue(context.Background(), segment(0.1))
	require.Error(t, err)
	assert.Empty(t, sink.calls)
	assert.False(t, q.IsPlaying())
}

func TestEnqueueClosedSink(t *testing.T) {
	q := newTestQueue(&fakeSink{state: SinkClosed})
	_, err := q.Enqueue(context.Background(), segment(0.1))
	assert.ErrorIs(t, err, ErrSinkClosed)
}

func TestEnqueueCodecErrorsLeaveQueueUntouched(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "!!not base64!!")
	assert.ErrorIs(t, err, core.ErrMalformedEncoding)

	_, err = q.Enqueue(ctx, audio.Encode([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, core.ErrAudioDecode)

	assert.Empty(t, sink.calls)
	assert.Zero(t, q.NextStart())
	assert.False(t, q.IsPlaying())
}

func TestIsPlayingTolerance(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink)
	assert.False(t, q.IsPlaying())

	_, err := q.Enqueue(context.Background(), segment(1))
	require.NoError(t, err)
	assert.True(t, q.IsPlaying())

	sink.advance(0.85)
	assert.True(t, q.IsPlaying())

	sink.advance(0.1)
	assert.False(t, q.IsPlaying())
}

func TestEnqueuePreservesArrivalOrderUnderConcurrency(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Enqueue(ctx, segment(0.1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, sink.calls, 20)
	for i := 1; i < len(sink.calls); i++ {
		prev := sink.calls[i-1]
		assert.InDelta(t, prev.at+prev.duration, sink.calls[i].at, 1e-9)
	}
}

func TestQueueStaysResponsiveWhileResumePending(t *testing.T) {
	sink := &fakeSink{state: SinkSuspended, gate: make(chan struct{})}
	q := newTestQueue(sink)

	done := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(context.Background(), segment(0.5))
		done <- err
	}()

	// The enqueue is parked in Resume; the state accessors must not wait on it.
	answered := make(chan bool, 1)
	go func() { answered <- q.IsPlaying() }()
	select {
	case playing := <-answered:
		assert.False(t, playing)
	case <-time.After(time.Second):
		t.Fatal("IsPlaying blocked behind a pending resume")
	}
	assert.Zero(t, q.NextStart())

	close(sink.gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not finish after resume")
	}
	assert.True(t, q.IsPlaying())
	assert.InDelta(t, 0.5, q.NextStart(), 1e-9)
}

func TestEnqueueAbandonsResumeOnCancel(t *testing.T) {
	sink := &fakeSink{state: SinkSuspended, gate: make(chan struct{})}
	q := newTestQueue(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(ctx, segment(0.1))
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("enqueue ignored cancellation")
	}
	assert.Empty(t, sink.calls)
	assert.False(t, q.IsPlaying())
}
