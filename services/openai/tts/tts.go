package tts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"triviahost/core"
	"triviahost/utils/audio"

	"github.com/sashabaranov/go-openai"
)

// SampleRate of the pcm response format.
const SampleRate = 24000

type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
	// Voices overrides the host voice to provider voice mapping.
	Voices map[core.VoiceName]string `json:"voices,omitempty"`
}

var defaultVoices = map[core.VoiceName]openai.SpeechVoice{
	core.VoiceKore:   openai.VoiceNova,
	core.VoicePuck:   openai.VoiceFable,
	core.VoiceCharon: openai.VoiceOnyx,
	core.VoiceFenrir: openai.VoiceEcho,
	core.VoiceZephyr: openai.VoiceShimmer,
}

// SpeechService renders question speech through the /audio/speech endpoint
// as raw 24 kHz PCM16.
type SpeechService struct {
	client *openai.Client
	cfg    Config
	logger *core.Logger
}

func NewSpeechService(cfg Config, logger *core.Logger) (*SpeechService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai tts: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModelGPT4oMini)
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &SpeechService{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With(map[string]interface{}{"component": "openai_tts", "model": cfg.Model}),
	}, nil
}

func (s *SpeechService) voiceFor(voice core.VoiceName) openai.SpeechVoice {
	if v, ok := s.cfg.Voices[voice]; ok && v != "" {
		return openai.SpeechVoice(v)
	}
	if v, ok := defaultVoices[voice]; ok {
		return v
	}
	return openai.VoiceAlloy
}

func (s *SpeechService) SynthesizeSpeech(ctx context.Context, text string, voice core.VoiceName) (string, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.cfg.Model),
		Input:          text,
		Voice:          s.voiceFor(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return "", fmt.Errorf("openai tts: create speech: %w: %v", core.ErrSpeechSynthesis, err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return "", fmt.Errorf("openai tts: read speech: %w: %v", core.ErrSpeechSynthesis, err)
	}
	pcm, err := audio.StripWAVHeaderIfPresent(raw)
	if err != nil {
		return "", fmt.Errorf("openai tts: %w: %v", core.ErrSpeechSynthesis, err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	s.logger.Debugf("synthesized %d bytes with voice %s", len(pcm), s.voiceFor(voice))
	return audio.Encode(pcm), nil
}
