package playback

import (
	"context"

	"triviahost/utils/audio"
)

type SinkState int

const (
	SinkRunning SinkState = iota
	SinkSuspended
	SinkClosed
)

func (s SinkState) String() string {
	switch s {
	case SinkRunning:
		return "running"
	case SinkSuspended:
		return "suspended"
	case SinkClosed:
		return "closed"
	}
	return "unknown"
}

// Sink is an audio output device with its own clock. Implementations live in
// the transports.
type Sink interface {
	// Resume asks the device to start its clock. It may wait for the user.
	Resume(ctx context.Context) error
	State() SinkState
	// CurrentTime is the device clock in seconds.
	CurrentTime() float64
	// Schedule plays buf starting at clock time at.
	Schedule(buf *audio.Buffer, at float64) error
}
