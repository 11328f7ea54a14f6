package gemini

import (
	"context"
	"fmt"

	"triviahost/core"
	"triviahost/utils/text"

	"google.golang.org/genai"
)

type questionPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GenerateQuestion asks the question model for one trivia question in the
// host's voice, grounded with Google Search.
func (c *Client) GenerateQuestion(ctx context.Context, personalityPrompt string) (*core.Question, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.QuestionModel,
		genai.Text(core.QuestionPrompt(personalityPrompt)),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		})
	if err != nil {
		return nil, fmt.Errorf("gemini: generate question: %w: %v", core.ErrQuestionGeneration, err)
	}
	q, err := questionFromResponse(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("question generated", "sources", len(q.Sources))
	return q, nil
}

func questionFromResponse(resp *genai.GenerateContentResponse) (*core.Question, error) {
	if resp == nil {
		return nil, fmt.Errorf("gemini: empty response: %w", core.ErrQuestionGeneration)
	}
	var payload questionPayload
	if err := text.ExtractJSON(resp.Text(), &payload); err != nil {
		return nil, fmt.Errorf("gemini: %w: %v", core.ErrQuestionGeneration, err)
	}
	if payload.Question == "" || payload.Answer == "" {
		return nil, fmt.Errorf("gemini: response lacks question or answer: %w", core.ErrQuestionGeneration)
	}
	return &core.Question{
		Question: payload.Question,
		Answer:   payload.Answer,
		Sources:  groundingSources(resp),
	}, nil
}

func groundingSources(resp *genai.GenerateContentResponse) []core.GroundingSource {
	sources := []core.GroundingSource{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return sources
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, core.GroundingSource{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}
