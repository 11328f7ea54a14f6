package llm

import (
	"context"
	"errors"
	"fmt"

	"triviahost/core"
	"triviahost/utils/text"

	"github.com/sashabaranov/go-openai"
)

const defaultModel = openai.GPT4oMini

// Config holds the configuration for an OpenAI-compatible question service.
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	// JSONMode asks the provider for a JSON object response. Not every
	// OpenAI-compatible provider supports it.
	JSONMode bool `json:"json_mode,omitempty"`
}

// QuestionService generates trivia questions through the chat completions
// API. It carries no grounding, so questions come without sources.
type QuestionService struct {
	client *openai.Client
	cfg    Config
	logger *core.Logger
}

func NewQuestionService(cfg Config, logger *core.Logger) (*QuestionService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &QuestionService{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With(map[string]interface{}{"component": "openai_llm", "model": cfg.Model}),
	}, nil
}

type questionPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (s *QuestionService) GenerateQuestion(ctx context.Context, personalityPrompt string) (*core.Question, error) {
	req := openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: core.QuestionPrompt(personalityPrompt)},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
	if s.cfg.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: create completion: %w: %v", core.ErrQuestionGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: completion has no choices: %w", core.ErrQuestionGeneration)
	}

	var payload questionPayload
	if err := text.ExtractJSON(resp.Choices[0].Message.Content, &payload); err != nil {
		return nil, fmt.Errorf("openai: %w: %v", core.ErrQuestionGeneration, err)
	}
	if payload.Question == "" || payload.Answer == "" {
		return nil, fmt.Errorf("openai: response lacks question or answer: %w", core.ErrQuestionGeneration)
	}

	s.logger.Debug("question generated", "tokens", resp.Usage.TotalTokens)
	return &core.Question{
		Question: payload.Question,
		Answer:   payload.Answer,
		Sources:  []core.GroundingSource{},
	}, nil
}
