// Package device plays and records audio on the local sound card. The
// PortAudio backend is compiled with the portaudio build tag; without it
// Open reports ErrUnavailable.
package device

import "errors"

var ErrUnavailable = errors.New("device: built without portaudio support (use -tags portaudio)")

type Config struct {
	OutputSampleRate int // rate of the speaker stream
	FramesPerBuffer  int // speaker write size
	FrameBuffer      int // microphone frames buffered before dropping
}

func DefaultConfig() Config {
	return Config{
		OutputSampleRate: 24000,
		FramesPerBuffer:  960,
		FrameBuffer:      32,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.OutputSampleRate <= 0 {
		c.OutputSampleRate = d.OutputSampleRate
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = d.FramesPerBuffer
	}
	if c.FrameBuffer <= 0 {
		c.FrameBuffer = d.FrameBuffer
	}
	return c
}
