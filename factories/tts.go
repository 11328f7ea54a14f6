package factories

import (
	"context"
	"errors"

	"triviahost/core"
	"triviahost/handlers/game"
	"triviahost/services/gemini"
	openaitts "triviahost/services/openai/tts"
)

// SpeechFactoryConfig holds provider-specific configs for question speech.
// Set exactly one provider config; the rest should be left nil. Both
// providers return 24 kHz mono PCM16.
type SpeechFactoryConfig struct {
	GeminiConfig *gemini.Config    `json:"gemini,omitempty"`
	OpenAIConfig *openaitts.Config `json:"openai,omitempty"`
}

// BuildSpeechService constructs a speech synthesizer from the given factory
// config. Exactly one provider config must be non-nil.
func BuildSpeechService(ctx context.Context, config SpeechFactoryConfig, logger *core.Logger) (game.SpeechSynthesizer, error) {
	if config.GeminiConfig != nil && config.OpenAIConfig != nil {
		return nil, errors.New("SpeechFactoryConfig: more than one provider config specified")
	}
	if config.GeminiConfig != nil {
		client, err := gemini.NewClient(ctx, *config.GeminiConfig, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	if config.OpenAIConfig != nil {
		svc, err := openaitts.NewSpeechService(*config.OpenAIConfig, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	return nil, errors.New("SpeechFactoryConfig: no provider config specified")
}

// LiveFactoryConfig selects the provider of the live answer session. Only
// Gemini offers a bidirectional audio session.
type LiveFactoryConfig struct {
	GeminiConfig *gemini.Config `json:"gemini,omitempty"`
}

func BuildLiveConnector(ctx context.Context, config LiveFactoryConfig, logger *core.Logger) (game.LiveConnector, error) {
	if config.GeminiConfig != nil {
		client, err := gemini.NewClient(ctx, *config.GeminiConfig, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, errors.New("LiveFactoryConfig: no provider config specified")
}
