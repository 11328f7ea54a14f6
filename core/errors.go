package core

import "errors"

// Error taxonomy of the game. Components wrap these with context using %w so
// callers can classify failures with errors.Is.
var (
	// ErrQuestionGeneration covers network and parse failures while generating a question.
	ErrQuestionGeneration = errors.New("question generation failed")
	// ErrSpeechSynthesis covers network and service failures of text-to-speech.
	ErrSpeechSynthesis = errors.New("speech synthesis failed")
	// ErrPermissionDenied is returned when microphone access is refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrConnection is a live channel failure.
	ErrConnection = errors.New("live connection error")
	// ErrMalformedEncoding is returned for text that is not valid base64.
	ErrMalformedEncoding = errors.New("malformed audio encoding")
	// ErrAudioDecode is returned for PCM payloads with an odd byte length.
	ErrAudioDecode = errors.New("audio decode error")
	// ErrStopped reports an operation that completed after its owner was stopped.
	ErrStopped = errors.New("stopped")
)

// User-visible messages, one per failure class. The controller keeps only the latest.
const (
	MsgQuestionFailed   = "Failed to generate a question. Please try again."
	MsgSpeechFailed     = "Could not play the question audio."
	MsgPermissionDenied = "Could not access microphone. Please enable microphone permissions."
	MsgConnectionError  = "A connection error occurred."
)
