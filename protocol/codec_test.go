package protocol

import (
	"testing"

	"triviahost/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEnvelope(t *testing.T) {
	data, err := Marshal(MsgPlay, PlayPayload{StartAt: 1.5, SampleRate: 24000, Channels: 1, Data: "AAAA"})
	require.NoError(t, err)

	msgType, raw, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, MsgPlay, msgType)

	play, err := UnmarshalPayload[PlayPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, 1.5, play.StartAt)
	assert.Equal(t, "AAAA", play.Data)
}

func TestMarshalWithoutPayload(t *testing.T) {
	data, err := Marshal(MsgResumeAudio, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"resume_audio"}`, string(data))
}

func TestUnmarshalClientMessages(t *testing.T) {
	msgType, raw, err := Unmarshal([]byte(`{"type":"select_personality","payload":{"id":"oracle"}}`))
	require.NoError(t, err)
	assert.Equal(t, MsgSelectPersonality, msgType)
	sel, err := UnmarshalPayload[SelectPersonalityPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "oracle", sel.ID)

	msgType, raw, err = Unmarshal([]byte(`{"type":"start_game"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgStartGame, msgType)
	_, err = UnmarshalPayload[CaptureDeniedPayload](raw)
	assert.NoError(t, err)
}

func TestUnmarshalRejectsBadEnvelopes(t *testing.T) {
	_, _, err := Unmarshal([]byte(`not json`))
	assert.Error(t, err)
	_, _, err = Unmarshal([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}

func TestStatePayloadShape(t *testing.T) {
	data, err := Marshal(MsgState, StatePayload{Snapshot: core.GameSnapshot{
		State:       core.GameStateListening,
		Transcripts: []core.TranscriptEntry{},
		Sources:     []core.GroundingSource{},
		Score:       2,
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"state","payload":{"snapshot":{
		"state":"listening","status_message":"","transcripts":[],"sources":[],"score":2,"is_playing":false}}}`, string(data))
}

func TestMarshalRejectsEmptyType(t *testing.T) {
	_, err := Marshal("", ErrorPayload{Message: "x"})
	assert.Error(t, err)
}
