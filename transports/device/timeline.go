package device

import (
	"sync"

	"triviahost/utils/audio"
)

type segment struct {
	start   int64
	samples []float32
}

// timeline mixes scheduled mono segments onto a sample clock that advances
// only as the speaker consumes frames.
type timeline struct {
	mu       sync.Mutex
	rate     int
	pos      int64
	segments []segment
}

func newTimeline(rate int) *timeline {
	return &timeline{rate: rate}
}

// now is the clock in seconds.
func (t *timeline) now() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.pos) / float64(t.rate)
}

// schedule places buf at clock time at, converting it to the timeline rate
// and mixing channels down to mono. Audio scheduled in the past is clipped.
func (t *timeline) schedule(buf *audio.Buffer, at float64) error {
	samples := downmix(buf)
	if buf.SampleRate != t.rate {
		r, err := audio.NewResampler(buf.SampleRate, t.rate)
		if err != nil {
			return err
		}
		samples = r.Process(samples)
	}
	if len(samples) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	start := int64(at * float64(t.rate))
	if start < t.pos {
		skip := t.pos - start
		if skip >= int64(len(samples)) {
			return nil
		}
		samples = samples[skip:]
		start = t.pos
	}
	t.segments = append(t.segments, segment{start: start, samples: samples})
	return nil
}

// read fills out with the next frames and advances the clock by len(out).
func (t *timeline) read(out []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range out {
		out[i] = 0
	}
	from, to := t.pos, t.pos+int64(len(out))
	kept := t.segments[:0]
	for _, seg := range t.segments {
		end := seg.start + int64(len(seg.samples))
		lo, hi := max(seg.start, from), min(end, to)
		for p := lo; p < hi; p++ {
			out[p-from] += seg.samples[p-seg.start]
		}
		if end > to {
			kept = append(kept, seg)
		}
	}
	t.segments = kept
	t.pos = to
}

// pending reports whether any scheduled audio is still ahead of the clock.
func (t *timeline) pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments) > 0
}

func downmix(buf *audio.Buffer) []float32 {
	switch len(buf.Channels) {
	case 0:
		return nil
	case 1:
		return buf.Channels[0]
	}
	n := buf.Length()
	out := make([]float32, n)
	scale := 1 / float32(len(buf.Channels))
	for _, ch := range buf.Channels {
		for i := 0; i < n; i++ {
			out[i] += ch[i] * scale
		}
	}
	return out
}
