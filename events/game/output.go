package game

import "triviahost/core"

// Commands issued by a player through a transport.

type SelectPersonalityEvent struct {
	PersonalityID string `json:"personality_id"`
}

func (e *SelectPersonalityEvent) GetId() string {
	return "game.select_personality"
}

type StartGameEvent struct{}

func (e *StartGameEvent) GetId() string {
	return "game.start"
}

type NextQuestionEvent struct{}

func (e *NextQuestionEvent) GetId() string {
	return "game.next_question"
}

// ResetGameEvent returns the game to personality selection.
type ResetGameEvent struct{}

func (e *ResetGameEvent) GetId() string {
	return "game.reset"
}

// GameSnapshotEvent is emitted after every state change of the controller.
type GameSnapshotEvent struct {
	Snapshot core.GameSnapshot
}

func (e *GameSnapshotEvent) GetId() string {
	return "game.snapshot"
}
