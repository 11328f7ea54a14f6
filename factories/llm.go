package factories

import (
	"context"
	"errors"
	"fmt"

	"triviahost/core"
	"triviahost/handlers/game"
	"triviahost/services/gemini"
	openaillm "triviahost/services/openai/llm"
)

// QuestionFactoryConfig holds provider-specific configs for question generation.
// Set exactly one provider config; the rest should be left nil.
// Every provider except Gemini uses the OpenAI-compatible protocol and is
// implemented via the same OpenAI service with a custom base URL.
type QuestionFactoryConfig struct {
	GeminiConfig     *gemini.Config    `json:"gemini,omitempty"`
	OpenAIConfig     *openaillm.Config `json:"openai,omitempty"`
	TogetherConfig   *openaillm.Config `json:"together,omitempty"`
	GroqConfig       *openaillm.Config `json:"groq,omitempty"`
	DeepSeekConfig   *openaillm.Config `json:"deepseek,omitempty"`
	OpenRouterConfig *openaillm.Config `json:"openrouter,omitempty"`
}

// Default base URLs for OpenAI-compatible providers.
const (
	togetherBaseURL   = "https://api.together.xyz/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
)

func (c QuestionFactoryConfig) providerCount() int {
	n := 0
	for _, set := range []bool{
		c.GeminiConfig != nil,
		c.OpenAIConfig != nil,
		c.TogetherConfig != nil,
		c.GroqConfig != nil,
		c.DeepSeekConfig != nil,
		c.OpenRouterConfig != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// BuildQuestionService constructs a question generator from the given factory
// config. Exactly one provider config must be non-nil.
func BuildQuestionService(ctx context.Context, config QuestionFactoryConfig, logger *core.Logger) (game.QuestionGenerator, error) {
	switch n := config.providerCount(); {
	case n == 0:
		return nil, errors.New("QuestionFactoryConfig: no provider config specified")
	case n > 1:
		return nil, fmt.Errorf("QuestionFactoryConfig: %d provider configs specified, want exactly one", n)
	}

	if config.GeminiConfig != nil {
		client, err := gemini.NewClient(ctx, *config.GeminiConfig, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	var (
		svc *openaillm.QuestionService
		err error
	)
	switch {
	case config.OpenAIConfig != nil:
		svc, err = openaillm.NewQuestionService(*config.OpenAIConfig, logger)
	case config.TogetherConfig != nil:
		svc, err = buildOpenAICompatible(*config.TogetherConfig, togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger)
	case config.GroqConfig != nil:
		svc, err = buildOpenAICompatible(*config.GroqConfig, groqBaseURL, "llama-3.3-70b-versatile", logger)
	case config.DeepSeekConfig != nil:
		svc, err = buildOpenAICompatible(*config.DeepSeekConfig, deepseekBaseURL, "deepseek-chat", logger)
	default:
		svc, err = buildOpenAICompatible(*config.OpenRouterConfig, openrouterBaseURL, "openai/gpt-4o-mini", logger)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// buildOpenAICompatible creates an OpenAI-compatible question service, applying
// default base URL and model if not explicitly set in the config.
func buildOpenAICompatible(cfg openaillm.Config, defaultBaseURL, defaultModel string, logger *core.Logger) (*openaillm.QuestionService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openaillm.NewQuestionService(cfg, logger)
}
