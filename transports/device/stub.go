//go:build !portaudio

package device

import (
	"triviahost/core"
	"triviahost/handlers/capture"
	"triviahost/handlers/playback"
)

type System struct{}

func Open(Config, *core.Logger) (*System, error) {
	return nil, ErrUnavailable
}

func (s *System) Sink() playback.Sink {
	return nil
}

func (s *System) Microphone() capture.Microphone {
	return nil
}

func (s *System) Close() error {
	return nil
}
