package game

import (
	"context"
	"sync"

	"triviahost/core"
)

// audioFeeder hands live audio to the player in arrival order on its own
// goroutine, so a slow sink never stalls the reducer.
type audioFeeder struct {
	player AudioPlayer
	logger *core.Logger

	mu      sync.Mutex
	pending []string
	wake    chan struct{}
}

func newAudioFeeder(player AudioPlayer, logger *core.Logger) *audioFeeder {
	return &audioFeeder{
		player: player,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

func (f *audioFeeder) push(segments ...string) {
	if len(segments) == 0 {
		return
	}
	f.mu.Lock()
	f.pending = append(f.pending, segments...)
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *audioFeeder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.wake:
		}
		for {
			f.mu.Lock()
			if len(f.pending) == 0 {
				f.mu.Unlock()
				break
			}
			next := f.pending[0]
			f.pending = f.pending[1:]
			f.mu.Unlock()

			if _, err := f.player.Enqueue(ctx, next); err != nil {
				f.logger.Warn("failed to play host audio", "error", err)
			}
		}
	}
}
