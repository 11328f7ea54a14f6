package gemini

import (
	"context"
	"fmt"

	"triviahost/core"
	"triviahost/utils/audio"

	"google.golang.org/genai"
)

// SynthesizeSpeech renders text with a prebuilt voice. It returns base64
// 24 kHz mono PCM16, or "" when the model answered without audio.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string, voice core.VoiceName) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.SpeechModel,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{string(genai.ModalityAudio)},
			SpeechConfig:       speechConfig(string(voice)),
		})
	if err != nil {
		return "", fmt.Errorf("gemini: synthesize speech: %w: %v", core.ErrSpeechSynthesis, err)
	}
	return speechFromResponse(resp), nil
}

func speechConfig(voice string) *genai.SpeechConfig {
	if voice == "" {
		return nil
	}
	return &genai.SpeechConfig{
		VoiceConfig: &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
		},
	}
}

func speechFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return ""
	}
	blob := content.Parts[0].InlineData
	if blob == nil || len(blob.Data) == 0 {
		return ""
	}
	return audio.Encode(blob.Data)
}
