package audio

import "fmt"

// Resampler converts a mono float stream between sample rates by linear
// interpolation. It keeps the fractional read position and the last input
// sample across calls, so consecutive chunks join without clicks.
type Resampler struct {
	fromRate int
	toRate   int
	step     float64 // input samples advanced per output sample
	pos      float64 // read position relative to the start of the pending input
	last     float32
	primed   bool
}

func NewResampler(fromRate, toRate int) (*Resampler, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("audio: invalid resample rates %d -> %d", fromRate, toRate)
	}
	return &Resampler{
		fromRate: fromRate,
		toRate:   toRate,
		step:     float64(fromRate) / float64(toRate),
	}, nil
}

// Passthrough reports whether input and output rates match.
func (r *Resampler) Passthrough() bool {
	return r.fromRate == r.toRate
}

// Process resamples one chunk. With equal rates the input is returned as is.
func (r *Resampler) Process(in []float32) []float32 {
	if r.Passthrough() || len(in) == 0 {
		return in
	}

	// Sample index -1 refers to the last sample of the previous chunk.
	at := func(i int) float32 {
		if i < 0 {
			return r.last
		}
		return in[i]
	}
	if !r.primed {
		r.last = in[0]
		r.primed = true
	}

	out := make([]float32, 0, int(float64(len(in))/r.step)+1)
	for {
		i := int(r.pos)
		if r.pos < 0 {
			i = -1
		}
		if i+1 >= len(in) {
			break
		}
		frac := float32(r.pos - float64(i))
		a, b := at(i), at(i+1)
		out = append(out, a+(b-a)*frac)
		r.pos += r.step
	}
	r.pos -= float64(len(in))
	r.last = in[len(in)-1]
	return out
}

// Reset drops the carried state.
func (r *Resampler) Reset() {
	r.pos = 0
	r.last = 0
	r.primed = false
}
