package capture

import "context"

// StreamConfig is what the capture pipeline asks a microphone for. Devices
// may deliver another rate; the pipeline resamples.
type StreamConfig struct {
	SampleRate int
	Channels   int
	FrameSize  int
}

// InputStream is an open microphone.
type InputStream interface {
	// Frames yields mono float samples in [-1, 1]. It is closed when the
	// stream ends.
	Frames() <-chan []float32
	SampleRate() int
	Close() error
}

// Microphone opens input streams. Open may block until the user grants
// access; a refusal is reported as an error wrapping core.ErrPermissionDenied.
type Microphone interface {
	Open(ctx context.Context, cfg StreamConfig) (InputStream, error)
}
