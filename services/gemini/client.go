package gemini

import (
	"context"
	"errors"
	"fmt"

	"triviahost/core"

	"google.golang.org/genai"
)

const (
	DefaultQuestionModel = "gemini-2.5-flash"
	DefaultSpeechModel   = "gemini-2.5-flash-preview-tts"
	DefaultLiveModel     = "gemini-2.5-flash-native-audio-preview-09-2025"

	// SpeechSampleRate is the rate of the PCM the speech model returns.
	SpeechSampleRate = 24000

	defaultSendQueueSize = 64
)

type Config struct {
	APIKey        string `json:"api_key"`
	BaseURL       string `json:"base_url,omitempty"`
	QuestionModel string `json:"question_model,omitempty"`
	SpeechModel   string `json:"speech_model,omitempty"`
	LiveModel     string `json:"live_model,omitempty"`
	// LiveVoice overrides the voice of the live session. Empty keeps the
	// model default.
	LiveVoice     string `json:"live_voice,omitempty"`
	SendQueueSize int    `json:"send_queue_size,omitempty"`
}

// Client talks to the Gemini API for every remote operation of a round:
// question generation, question speech and the live answer session.
type Client struct {
	client *genai.Client
	cfg    Config
	logger *core.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *core.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.QuestionModel == "" {
		cfg.QuestionModel = DefaultQuestionModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = DefaultSpeechModel
	}
	if cfg.LiveModel == "" {
		cfg.LiveModel = DefaultLiveModel
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaultSendQueueSize
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger.With(map[string]interface{}{"component": "gemini"}),
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}
