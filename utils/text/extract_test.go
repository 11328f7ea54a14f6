package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type qa struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bare", `{"question":"Q","answer":"A"}`},
		{"json fence", "```json\n{\"question\":\"Q\",\"answer\":\"A\"}\n```"},
		{"plain fence", "```\n{\"question\":\"Q\",\"answer\":\"A\"}\n```"},
		{"surrounding whitespace", "  \n```json\n{\"question\":\"Q\",\"answer\":\"A\"}\n```\n "},
		{"single line fence", "```json {\"question\":\"Q\",\"answer\":\"A\"}```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got qa
			require.NoError(t, ExtractJSON(tt.in, &got))
			assert.Equal(t, qa{Question: "Q", Answer: "A"}, got)
		})
	}
}

func TestExtractJSONRejectsGarbage(t *testing.T) {
	var got qa
	assert.Error(t, ExtractJSON("not json at all", &got))
	assert.Error(t, ExtractJSON("```json\n```", &got))
	assert.Error(t, ExtractJSON("", &got))
}

func TestStripCodeFenceLeavesUnfencedText(t *testing.T) {
	assert.Equal(t, "hello", StripCodeFence("  hello "))
}
