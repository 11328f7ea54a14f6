package protocol

import (
	"encoding/json"

	"triviahost/core"
)

// MessageType enumerates the messages exchanged with the browser client.
type MessageType string

const (
	// Client -> Server
	MsgHello             MessageType = "hello"
	MsgSelectPersonality MessageType = "select_personality"
	MsgStartGame         MessageType = "start_game"
	MsgNextQuestion      MessageType = "next_question"
	MsgReset             MessageType = "reset"
	MsgAudioResumed      MessageType = "audio_resumed"
	MsgCaptureReady      MessageType = "capture_ready"
	MsgCaptureDenied     MessageType = "capture_denied"

	// Server -> Client
	MsgPersonalities MessageType = "personalities"
	MsgState         MessageType = "state"
	MsgResumeAudio   MessageType = "resume_audio"
	MsgCaptureStart  MessageType = "capture_start"
	MsgCaptureStop   MessageType = "capture_stop"
	MsgPlay          MessageType = "play"
	MsgError         MessageType = "error"
)

// Envelope is the outer JSON wrapper of every text frame.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Client -> Server payloads ---

// HelloPayload is the first message of a client. It declares the format of
// the binary microphone frames the client will send.
type HelloPayload struct {
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format,omitempty"` // "float32" (default), "pcm16", "ulaw", "alaw"
	UserAgent  string `json:"user_agent,omitempty"`
}

type SelectPersonalityPayload struct {
	ID string `json:"id"`
}

type CaptureReadyPayload struct {
	SampleRate int `json:"sample_rate"`
}

type CaptureDeniedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// --- Server -> Client payloads ---

type PersonalitiesPayload struct {
	List []core.Personality `json:"list"`
}

type StatePayload struct {
	Snapshot core.GameSnapshot `json:"snapshot"`
}

type CaptureStartPayload struct {
	SampleRate int `json:"sample_rate"`
	FrameSize  int `json:"frame_size"`
}

// PlayPayload schedules one audio segment on the client's output clock.
type PlayPayload struct {
	StartAt    float64 `json:"start_at"` // seconds on the session clock
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Data       string  `json:"data"` // base64 PCM16 little-endian
}

type ErrorPayload struct {
	Message string `json:"message"`
}
