package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"triviahost/core"
)

// PCM constants
const (
	pcmMax = 32767  // Max 16-bit PCM value
	pcmMin = -32768 // Min 16-bit PCM value

	pcmScale = 32768.0
)

// Buffer is decoded audio: one float32 slice per channel, samples in [-1, 1).
type Buffer struct {
	Channels   [][]float32
	SampleRate int
}

// Length is the number of frames per channel.
func (b *Buffer) Length() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration is the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Length()) / float64(b.SampleRate)
}

// Encode returns the standard, padded base64 form of data.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reverses Encode.
func Decode(text string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("audio: decode base64: %w: %v", core.ErrMalformedEncoding, err)
	}
	return b, nil
}

// DecodeAudioData interprets raw as interleaved little-endian int16 PCM.
func DecodeAudioData(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("audio: %d bytes is not whole int16 samples: %w", len(raw), core.ErrAudioDecode)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d: %w", channels, core.ErrAudioDecode)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d: %w", sampleRate, core.ErrAudioDecode)
	}

	frames := len(raw) / 2 / channels
	buf := &Buffer{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			s := int16(binary.LittleEndian.Uint16(raw[off : off+2]))
			buf.Channels[c][i] = float32(s) / pcmScale
		}
	}
	return buf, nil
}

// FloatToPCM16 converts float samples to little-endian int16 PCM. Each sample
// is scaled by 32768, truncated toward zero and clamped to the int16 range.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Trunc(float64(s) * pcmScale)
		if v > pcmMax {
			v = pcmMax
		} else if v < pcmMin {
			v = pcmMin
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloat converts little-endian int16 PCM to float samples. A trailing
// odd byte is ignored.
func PCM16ToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / pcmScale
	}
	return out
}

// Float32BytesToFloat reads little-endian IEEE float32 samples. A trailing
// partial sample is ignored.
func Float32BytesToFloat(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// MIMEType is the mime tag of mono PCM16 at the given rate.
func MIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}
