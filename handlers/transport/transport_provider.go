package transport

import (
	"context"

	"triviahost/core"
	"triviahost/handlers/capture"
	"triviahost/handlers/playback"
)

// ITransportService is one player's connection: commands in, state out, and
// the audio devices on the player's side.
type ITransportService interface {
	// Commands yields game command events. It is closed when the player
	// disconnects.
	Commands() <-chan core.IEvent
	SendSnapshot(snapshot core.GameSnapshot) error
	Sink() playback.Sink
	Microphone() capture.Microphone
	SessionID() string
	Close() error
}

type ITransportProvider interface {
	Start() error
	Stop() error
	// RegisterJobHandler installs the function run once per connected player.
	RegisterJobHandler(
		func(svc ITransportService, ctx context.Context) error,
	) error
}
