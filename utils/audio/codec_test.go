package audio

import (
	"encoding/binary"
	"testing"

	"triviahost/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xff, 0x00},
		{0x01, 0x02, 0x03},
		[]byte("trivia host audio payload"),
	}
	for _, in := range inputs {
		out, err := Decode(Encode(in))
		require.NoError(t, err)
		assert.Equal(t, len(in), len(out))
		if len(in) > 0 {
			assert.Equal(t, in, out)
		}
	}
}

func TestEncodeIsPadded(t *testing.T) {
	assert.Equal(t, "AQ==", Encode([]byte{0x01}))
	assert.Equal(t, "", Encode(nil))
}

func TestDecodeRejectsMalformedText(t *testing.T) {
	for _, bad := range []string{"@@@@", "AQ=", "A"} {
		_, err := Decode(bad)
		require.Error(t, err, bad)
		assert.ErrorIs(t, err, core.ErrMalformedEncoding)
	}
}

func TestDecodeAudioDataScalesSamples(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint16(raw[0:], uint16(0))
	binary.LittleEndian.PutUint16(raw[2:], uint16(16384))
	binary.LittleEndian.PutUint16(raw[4:], 0x8000) // -32768
	binary.LittleEndian.PutUint16(raw[6:], uint16(32767))

	buf, err := DecodeAudioData(raw, 24000, 1)
	require.NoError(t, err)
	require.Len(t, buf.Channels, 1)
	assert.Equal(t, 4, buf.Length())
	assert.InDelta(t, 0.0, buf.Channels[0][0], 1e-9)
	assert.InDelta(t, 0.5, buf.Channels[0][1], 1e-9)
	assert.InDelta(t, -1.0, buf.Channels[0][2], 1e-9)
	assert.InDelta(t, 32767.0/32768.0, buf.Channels[0][3], 1e-9)
}

func TestDecodeAudioDataDuration(t *testing.T) {
	buf, err := DecodeAudioData(make([]byte, 48000), 24000, 1)
	require.NoError(t, err)
	assert.Equal(t, 24000, buf.Length())
	assert.InDelta(t, 1.0, buf.Duration(), 1e-9)
}

func TestDecodeAudioDataDeinterleaves(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint16(raw[0:], uint16(16384))
	binary.LittleEndian.PutUint16(raw[2:], 0xC000) // -16384
	binary.LittleEndian.PutUint16(raw[4:], uint16(16384))
	binary.LittleEndian.PutUint16(raw[6:], 0xC000)

	buf, err := DecodeAudioData(raw, 16000, 2)
	require.NoError(t, err)
	require.Len(t, buf.Channels, 2)
	assert.Equal(t, []float32{0.5, 0.5}, buf.Channels[0])
	assert.Equal(t, []float32{-0.5, -0.5}, buf.Channels[1])
}

func TestDecodeAudioDataRejectsOddLength(t *testing.T) {
	_, err := DecodeAudioData([]byte{0x01, 0x02, 0x03}, 24000, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAudioDecode)
}

func TestDecodeAudioDataEmpty(t *testing.T) {
	buf, err := DecodeAudioData(nil, 24000, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, buf.Length())
	assert.Zero(t, buf.Duration())
}

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"negative half", -0.5, -16384},
		{"full scale clamps", 1.0, 32767},
		{"over range clamps", 1.5, 32767},
		{"negative full scale", -1.0, -32768},
		{"under range clamps", -2.0, -32768},
		{"truncates toward zero", 0.00005, 1},
		{"truncates negative toward zero", -0.00005, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FloatToPCM16([]float32{tt.in})
			require.Len(t, out, 2)
			assert.Equal(t, tt.want, int16(binary.LittleEndian.Uint16(out)))
		})
	}
}

func TestFloatToPCM16InvertsDecode(t *testing.T) {
	want := []float32{0, 0.25, -0.25, 0.75, -1}
	buf, err := DecodeAudioData(FloatToPCM16(want), 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, want, buf.Channels[0])
}

func TestConvertToFloat(t *testing.T) {
	pcm := FloatToPCM16([]float32{0.5, -0.5})

	got, err := ConvertToFloat(pcm, core.PCM)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, got)

	_, err = ConvertToFloat([]byte{1}, core.PCM)
	assert.ErrorIs(t, err, core.ErrAudioDecode)

	ulaw, err := PCMBytesToULaw(pcm)
	require.NoError(t, err)
	got, err = ConvertToFloat(ulaw, core.ULAW)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.5, got[0], 0.03)
	assert.InDelta(t, -0.5, got[1], 0.03)

	alaw, err := PCMBytesToALaw(pcm)
	require.NoError(t, err)
	got, err = ConvertToFloat(alaw, core.ALAW)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got[0], 0.03)

	f32 := make([]byte, 4)
	binary.LittleEndian.PutUint32(f32, 0x3f000000) // 0.5
	got, err = ConvertToFloat(f32, core.FLOAT32)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, got)
}

func TestStripWAVHeaderIfPresent(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	out, err := StripWAVHeaderIfPresent(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	wav := []byte("RIFF\x00\x00\x00\x00WAVEdata")
	wav = binary.LittleEndian.AppendUint32(wav, 4)
	wav = append(wav, raw...)
	out, err = StripWAVHeaderIfPresent(wav)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "audio/pcm;rate=16000", MIMEType(16000))
}
