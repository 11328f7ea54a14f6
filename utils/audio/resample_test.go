package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResamplerPassthrough(t *testing.T) {
	r, err := NewResampler(16000, 16000)
	require.NoError(t, err)
	in := []float32{0.1, 0.2, 0.3}
	assert.Equal(t, in, r.Process(in))
}

func TestResamplerDownsampleLength(t *testing.T) {
	r, err := NewResampler(48000, 16000)
	require.NoError(t, err)

	total := 0
	for i := 0; i < 10; i++ {
		total += len(r.Process(make([]float32, 4800)))
	}
	assert.Equal(t, 16000, total)
}

func TestResamplerUpsampleKeepsConstantSignal(t *testing.T) {
	r, err := NewResampler(16000, 48000)
	require.NoError(t, err)

	in := make([]float32, 160)
	for i := range in {
		in[i] = 0.25
	}
	total := 0
	for i := 0; i < 5; i++ {
		out := r.Process(in)
		for _, s := range out {
			assert.InDelta(t, 0.25, s, 1e-6)
		}
		total += len(out)
	}
	assert.InDelta(t, 5*480, total, 3)
}

func TestResamplerInterpolatesAcrossChunks(t *testing.T) {
	r, err := NewResampler(2, 4)
	require.NoError(t, err)

	first := r.Process([]float32{0, 1})
	second := r.Process([]float32{2, 3})
	assert.Equal(t, []float32{0, 0.5, 1, 1.5, 2, 2.5}, append(first, second...))
}

func TestNewResamplerRejectsBadRates(t *testing.T) {
	_, err := NewResampler(0, 16000)
	assert.Error(t, err)
}
