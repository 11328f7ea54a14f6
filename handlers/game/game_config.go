package game

import (
	"context"
	"time"

	"triviahost/core"
	"triviahost/handlers/playback"
)

// QuestionGenerator produces one trivia question in a host's voice.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, personalityPrompt string) (*core.Question, error)
}

// SpeechSynthesizer renders text as base64 PCM. An empty result means the
// service answered without audio.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string, voice core.VoiceName) (string, error)
}

// LiveConnector opens the live session that judges the spoken answer.
type LiveConnector interface {
	OpenLiveSession(ctx context.Context, systemInstruction string, cb core.LiveCallbacks) (core.LiveSession, error)
}

// AudioPlayer is the playback queue as the controller sees it.
type AudioPlayer interface {
	Enqueue(ctx context.Context, base64Audio string) (playback.Scheduled, error)
	IsPlaying() bool
}

// Capturer is one round's microphone capture.
type Capturer interface {
	Start(ctx context.Context, onChunk func(core.AudioBlob)) error
	Stop()
}

type GameConfig struct {
	Personalities []core.Personality
	// DefaultPersonalityID, when set, preselects a host.
	DefaultPersonalityID string
	// PlaybackPollInterval is how often the controller re-checks the
	// playing flag to publish it.
	PlaybackPollInterval time.Duration
}

func (c GameConfig) withDefaults() GameConfig {
	if len(c.Personalities) == 0 {
		c.Personalities = core.DefaultPersonalities()
	}
	if c.PlaybackPollInterval <= 0 {
		c.PlaybackPollInterval = 250 * time.Millisecond
	}
	return c
}

// Dependencies are the collaborators a controller drives.
type Dependencies struct {
	Questions  QuestionGenerator
	Speech     SpeechSynthesizer
	Live       LiveConnector
	Player     AudioPlayer
	NewCapture func() Capturer
}
