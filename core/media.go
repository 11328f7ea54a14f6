package core

import "time"

type AudioEncodingFormat int

const (
	PCM     AudioEncodingFormat = iota // 16-bit signed little-endian PCM.
	ULAW                               // μ-law encoding format.
	ALAW                               // A-law encoding format.
	FLOAT32                            // 32-bit IEEE float little-endian, range [-1, 1].
)

func (f AudioEncodingFormat) String() string {
	switch f {
	case PCM:
		return "pcm16"
	case ULAW:
		return "ulaw"
	case ALAW:
		return "alaw"
	case FLOAT32:
		return "float32"
	default:
		return "unknown"
	}
}

// ParseAudioEncodingFormat maps a wire name back to a format. Unknown names
// report ok=false.
func ParseAudioEncodingFormat(name string) (AudioEncodingFormat, bool) {
	switch name {
	case "pcm16", "pcm", "":
		return PCM, true
	case "ulaw", "mulaw":
		return ULAW, true
	case "alaw":
		return ALAW, true
	case "float32", "f32":
		return FLOAT32, true
	}
	return PCM, false
}

type AudioChunk struct {
	Data       []byte              // Raw audio data.
	SampleRate int                 // Sample rate of the audio data.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
	Timestamp  time.Time           // Timestamp of the audio chunk.
}

func (ac *AudioChunk) BytesPerSample() int {
	switch ac.Format {
	case ULAW, ALAW:
		return 1
	case FLOAT32:
		return 4
	default:
		return 2
	}
}

func (ac *AudioChunk) GetDurationInSeconds() float64 {
	if ac.SampleRate == 0 || ac.Channels == 0 {
		return 0.0
	}
	totalSamples := len(ac.Data) / (ac.BytesPerSample() * ac.Channels)
	return float64(totalSamples) / float64(ac.SampleRate)
}

// AudioBlob is one transport-safe audio payload: base64 data plus a mime tag
// such as "audio/pcm;rate=16000".
type AudioBlob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}
