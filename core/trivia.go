package core

import (
	"fmt"
	"net/url"
	"regexp"
)

// VoiceName is one of the prebuilt synthesized voices a host can speak with.
type VoiceName string

const (
	VoiceKore   VoiceName = "Kore"
	VoicePuck   VoiceName = "Puck"
	VoiceCharon VoiceName = "Charon"
	VoiceFenrir VoiceName = "Fenrir"
	VoiceZephyr VoiceName = "Zephyr"
)

// Valid reports whether v is one of the supported voices.
func (v VoiceName) Valid() bool {
	switch v {
	case VoiceKore, VoicePuck, VoiceCharon, VoiceFenrir, VoiceZephyr:
		return true
	}
	return false
}

// Personality describes a trivia host's tone and synthesized voice.
type Personality struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	SystemPrompt string    `json:"system_prompt"`
	Voice        VoiceName `json:"voice"`
}

// Validate checks the fields every host must carry.
func (p Personality) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("personality: missing id")
	}
	if p.SystemPrompt == "" {
		return fmt.Errorf("personality %q: missing system_prompt", p.ID)
	}
	if !p.Voice.Valid() {
		return fmt.Errorf("personality %q: unsupported voice %q", p.ID, p.Voice)
	}
	return nil
}

// DefaultPersonalities is the built-in host catalog.
func DefaultPersonalities() []Personality {
	return []Personality{
		{
			ID:           "comedian",
			Name:         "Snarky Comedian",
			Description:  "Quick-witted, sarcastic, and always ready with a joke.",
			SystemPrompt: "You are a snarky, sarcastic comedian acting as a trivia host. You make fun of the user playfully. Keep your responses concise.",
			Voice:        VoicePuck,
		},
		{
			ID:           "professor",
			Name:         "Enthusiastic Professor",
			Description:  "Loves to share knowledge and offers encouraging fun facts.",
			SystemPrompt: "You are an enthusiastic and encouraging professor acting as a trivia host. You love to share extra fun facts. Keep your responses friendly and informative.",
			Voice:        VoiceZephyr,
		},
		{
			ID:           "oracle",
			Name:         "Mysterious Oracle",
			Description:  "Speaks in riddles and offers cryptic clues.",
			SystemPrompt: "You are a mysterious, cryptic oracle acting as a trivia host. You speak in riddles and your tone is wise and enigmatic.",
			Voice:        VoiceCharon,
		},
		{
			ID:           "host",
			Name:         "Classic Game Show Host",
			Description:  "Energetic, charming, and keeps the game moving.",
			SystemPrompt: "You are a classic, high-energy game show host. You are charming, use catchphrases, and keep the game moving at a brisk pace.",
			Voice:        VoiceKore,
		},
	}
}

// FindPersonality looks a host up by id.
func FindPersonality(catalog []Personality, id string) (Personality, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Personality{}, false
}

type GameState string

const (
	GameStateIdle       GameState = "idle"
	GameStateGenerating GameState = "generating"
	GameStateSpeaking   GameState = "speaking"
	GameStateListening  GameState = "listening"
	GameStateFinished   GameState = "finished"
)

// StatusMessage is the one-line status shown to the player.
func (s GameState) StatusMessage() string {
	switch s {
	case GameStateIdle:
		return `Click "Start Game" to begin.`
	case GameStateGenerating:
		return "Your host is thinking of a question..."
	case GameStateSpeaking:
		return "Listen to the question..."
	case GameStateListening:
		return "Listening for your answer..."
	case GameStateFinished:
		return "Round finished. Ready for the next one?"
	}
	return ""
}

// GameRound is the question currently being played.
type GameRound struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type TranscriptSource string

const (
	TranscriptSourceUser  TranscriptSource = "user"
	TranscriptSourceModel TranscriptSource = "model"
)

// TranscriptEntry is one completed utterance.
type TranscriptEntry struct {
	ID     string           `json:"id"`
	Text   string           `json:"text"`
	Source TranscriptSource `json:"source"`
}

// GroundingSource is a citation returned with a generated question.
type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// DisplayTitle returns the title, or the URI host when the title is empty.
func (g GroundingSource) DisplayTitle() string {
	if g.Title != "" {
		return g.Title
	}
	if u, err := url.Parse(g.URI); err == nil && u.Host != "" {
		return u.Host
	}
	return g.URI
}

// Question is the result of question generation.
type Question struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Sources  []GroundingSource `json:"sources,omitempty"`
}

// Round returns the question/answer pair without its citations.
func (q Question) Round() GameRound {
	return GameRound{Question: q.Question, Answer: q.Answer}
}

// QuestionPrompt is the instruction sent to the generative model for one question.
func QuestionPrompt(personalityPrompt string) string {
	return fmt.Sprintf(`You are a trivia host with the following personality: "%s". Generate one interesting and challenging trivia question and its answer. Respond with ONLY a valid JSON object containing a "question" and "answer" key.`, personalityPrompt)
}

// SpokenQuestion is the text handed to speech synthesis.
func SpokenQuestion(question string) string {
	return "Here is your question: " + question
}

// JudgeInstruction builds the live session system instruction for a round.
func JudgeInstruction(personalityPrompt string, round GameRound) string {
	return fmt.Sprintf(`%s The user is answering the question: "%s". The correct answer is "%s". Determine if the user is correct, tell them, update their score, and then say "Ready for the next one?".`,
		personalityPrompt, round.Question, round.Answer)
}

var correctVerdict = regexp.MustCompile(`(?i)\bcorrect`)

// IsCorrectVerdict reports whether the host's reply awards a point: the word
// "correct" in any case, but not as the tail of "incorrect". It is a keyword
// match, not a judgement: negations such as "not correct" still score.
func IsCorrectVerdict(modelText string) bool {
	return correctVerdict.MatchString(modelText)
}

// GameSnapshot is a read-only copy of a game's state.
type GameSnapshot struct {
	State         GameState         `json:"state"`
	StatusMessage string            `json:"status_message"`
	Personality   *Personality      `json:"personality,omitempty"`
	Round         *GameRound        `json:"round,omitempty"`
	Transcripts   []TranscriptEntry `json:"transcripts"`
	Sources       []GroundingSource `json:"sources"`
	Score         int               `json:"score"`
	Error         string            `json:"error,omitempty"`
	IsPlaying     bool              `json:"is_playing"`
}
