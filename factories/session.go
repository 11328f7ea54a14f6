package factories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"triviahost/core"
	"triviahost/handlers/capture"
	"triviahost/handlers/game"
	"triviahost/handlers/playback"
	"triviahost/services/gemini"

	"github.com/bytedance/sonic"
)

// GameSessionConfig holds controller-level settings.
type GameSessionConfig struct {
	// Personalities replaces the built-in host catalog when set.
	Personalities []core.Personality `json:"personalities,omitempty"`
	// DefaultPersonality preselects a host by id.
	DefaultPersonality string `json:"default_personality,omitempty"`
	// PlaybackPollMs is how often the playing flag is re-checked.
	PlaybackPollMs int `json:"playback_poll_ms,omitempty"`
}

type PlaybackSessionConfig struct {
	SampleRate int `json:"sample_rate,omitempty"`
	Channels   int `json:"channels,omitempty"`
}

type CaptureSessionConfig struct {
	SampleRate int `json:"sample_rate,omitempty"`
	FrameSize  int `json:"frame_size,omitempty"`
}

// SessionConfig is the top-level configuration of one game session: the
// remote providers for each step of a round plus the local audio settings.
type SessionConfig struct {
	Game      GameSessionConfig     `json:"game"`
	Questions QuestionFactoryConfig `json:"questions"`
	Speech    SpeechFactoryConfig   `json:"speech"`
	Live      LiveFactoryConfig     `json:"live"`
	Playback  PlaybackSessionConfig `json:"playback"`
	Capture   CaptureSessionConfig  `json:"capture"`
}

// DefaultSessionConfig returns a SessionConfig that runs every step on Gemini.
// API keys are injected later via InjectAPIKeys.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Game: GameSessionConfig{
			PlaybackPollMs: 250,
		},
		Questions: QuestionFactoryConfig{GeminiConfig: &gemini.Config{}},
		Speech:    SpeechFactoryConfig{GeminiConfig: &gemini.Config{}},
		Live:      LiveFactoryConfig{GeminiConfig: &gemini.Config{}},
		Playback: PlaybackSessionConfig{
			SampleRate: playback.DefaultSampleRate,
			Channels:   playback.DefaultChannels,
		},
		Capture: CaptureSessionConfig{
			SampleRate: capture.DefaultSampleRate,
			FrameSize:  capture.DefaultFrameSize,
		},
	}
}

// SessionConfigFromJSON parses a JSON blob into a SessionConfig, starting from
// DefaultSessionConfig so that any fields absent from the JSON retain their
// defaults. A provider section present in the JSON replaces the default
// provider instead of being merged with it.
func SessionConfigFromJSON(data []byte) (SessionConfig, error) {
	var raw map[string]json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}

	cfg := DefaultSessionConfig()
	if _, ok := raw["questions"]; ok {
		cfg.Questions = QuestionFactoryConfig{}
	}
	if _, ok := raw["speech"]; ok {
		cfg.Speech = SpeechFactoryConfig{}
	}
	if _, ok := raw["live"]; ok {
		cfg.Live = LiveFactoryConfig{}
	}
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

// Validate checks the host catalog and the default host.
func (c SessionConfig) Validate() error {
	catalog := c.personalities()
	seen := make(map[string]bool, len(catalog))
	for _, p := range catalog {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("session config: %w", err)
		}
		if seen[p.ID] {
			return fmt.Errorf("session config: duplicate personality %q", p.ID)
		}
		seen[p.ID] = true
	}
	if id := c.Game.DefaultPersonality; id != "" && !seen[id] {
		return fmt.Errorf("session config: unknown default personality %q", id)
	}
	return nil
}

func (c SessionConfig) personalities() []core.Personality {
	if len(c.Game.Personalities) > 0 {
		return c.Game.Personalities
	}
	return core.DefaultPersonalities()
}

// GameConfig converts the controller settings.
func (c SessionConfig) GameConfig() game.GameConfig {
	return game.GameConfig{
		Personalities:        c.personalities(),
		DefaultPersonalityID: c.Game.DefaultPersonality,
		PlaybackPollInterval: time.Duration(c.Game.PlaybackPollMs) * time.Millisecond,
	}
}

func (c SessionConfig) PlaybackConfig() playback.Config {
	return playback.Config{SampleRate: c.Playback.SampleRate, Channels: c.Playback.Channels}
}

func (c SessionConfig) CaptureConfig() capture.Config {
	return capture.Config{SampleRate: c.Capture.SampleRate, FrameSize: c.Capture.FrameSize}
}

// APIKeys holds API credentials for all supported service providers.
// Pass to SessionConfig.InjectAPIKeys after loading from JSON so that
// secrets are never stored in config files.
type APIKeys struct {
	Gemini     string // Used for Gemini question, speech and live providers.
	OpenAI     string // Used for OpenAI question and speech providers.
	Together   string // Used for Together AI question provider.
	Groq       string // Used for Groq question provider.
	DeepSeek   string // Used for DeepSeek question provider.
	OpenRouter string // Used for OpenRouter question provider.
}

// InjectAPIKeys applies API credentials to every configured provider, only
// where the config leaves the key empty.
func (c *SessionConfig) InjectAPIKeys(keys APIKeys) {
	injectGeminiKey(c.Questions.GeminiConfig, keys.Gemini)
	injectGeminiKey(c.Speech.GeminiConfig, keys.Gemini)
	injectGeminiKey(c.Live.GeminiConfig, keys.Gemini)

	q := &c.Questions
	if q.OpenAIConfig != nil && q.OpenAIConfig.APIKey == "" {
		q.OpenAIConfig.APIKey = keys.OpenAI
	}
	if q.TogetherConfig != nil && q.TogetherConfig.APIKey == "" {
		q.TogetherConfig.APIKey = keys.Together
	}
	if q.GroqConfig != nil && q.GroqConfig.APIKey == "" {
		q.GroqConfig.APIKey = keys.Groq
	}
	if q.DeepSeekConfig != nil && q.DeepSeekConfig.APIKey == "" {
		q.DeepSeekConfig.APIKey = keys.DeepSeek
	}
	if q.OpenRouterConfig != nil && q.OpenRouterConfig.APIKey == "" {
		q.OpenRouterConfig.APIKey = keys.OpenRouter
	}

	if c.Speech.OpenAIConfig != nil && c.Speech.OpenAIConfig.APIKey == "" {
		c.Speech.OpenAIConfig.APIKey = keys.OpenAI
	}
}

func injectGeminiKey(cfg *gemini.Config, key string) {
	if cfg != nil && cfg.APIKey == "" {
		cfg.APIKey = key
	}
}

// SessionServices are the remote collaborators shared by every game on this
// process. They are safe for concurrent use.
type SessionServices struct {
	Questions game.QuestionGenerator
	Speech    game.SpeechSynthesizer
	Live      game.LiveConnector
}

// BuildServices constructs the remote services described by the SessionConfig.
func (c SessionConfig) BuildServices(ctx context.Context, logger *core.Logger) (*SessionServices, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	questions, err := BuildQuestionService(ctx, c.Questions, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	speech, err := BuildSpeechService(ctx, c.Speech, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	live, err := BuildLiveConnector(ctx, c.Live, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &SessionServices{Questions: questions, Speech: speech, Live: live}, nil
}
