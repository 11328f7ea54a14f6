package websocket

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"triviahost/core"
	gameEvents "triviahost/events/game"
	"triviahost/handlers/capture"
	"triviahost/handlers/playback"
	"triviahost/handlers/transport"
	"triviahost/protocol"
	"triviahost/utils/audio"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	client *websocket.Conn
	svc    *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	p := NewProvider(&Config{Personalities: core.DefaultPersonalities()}, core.NewNopLogger())
	services := make(chan *Service, 1)
	release := make(chan struct{})
	require.NoError(t, p.RegisterJobHandler(func(svc transport.ITransportService, ctx context.Context) error {
		services <- svc.(*Service)
		<-release
		return nil
	}))

	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{t: t, srv: srv, client: client}
	select {
	case h.svc = <-services:
	case <-time.After(2 * time.Second):
		t.Fatal("job handler not called")
	}

	msgType, raw := h.read()
	require.Equal(t, protocol.MsgPersonalities, msgType)
	list, err := protocol.UnmarshalPayload[protocol.PersonalitiesPayload](raw)
	require.NoError(t, err)
	require.Len(t, list.List, len(core.DefaultPersonalities()))
	return h
}

func (h *harness) read() (protocol.MessageType, []byte) {
	h.t.Helper()
	require.NoError(h.t, h.client.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := h.client.ReadMessage()
	require.NoError(h.t, err)
	require.Equal(h.t, websocket.TextMessage, kind)
	msgType, raw, err := protocol.Unmarshal(data)
	require.NoError(h.t, err)
	return msgType, raw
}

func (h *harness) write(msgType protocol.MessageType, payload interface{}) {
	h.t.Helper()
	data, err := protocol.Marshal(msgType, payload)
	require.NoError(h.t, err)
	require.NoError(h.t, h.client.WriteMessage(websocket.TextMessage, data))
}

func (h *harness) command() core.IEvent {
	h.t.Helper()
	select {
	case ev, ok := <-h.svc.Commands():
		require.True(h.t, ok, "commands closed")
		return ev
	case <-time.After(2 * time.Second):
		h.t.Fatal("no command")
	}
	return nil
}

func TestHTTPRoutes(t *testing.T) {
	p := NewProvider(nil, core.NewNopLogger())
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/personalities")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `"id":"oracle"`)

	resp, err = http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCommandsAreTranslated(t *testing.T) {
	h := newHarness(t)

	h.write(protocol.MsgSelectPersonality, protocol.SelectPersonalityPayload{ID: "oracle"})
	h.write(protocol.MsgStartGame, nil)
	h.write(protocol.MsgNextQuestion, nil)
	h.write(protocol.MsgReset, nil)

	sel, ok := h.command().(*gameEvents.SelectPersonalityEvent)
	require.True(t, ok)
	assert.Equal(t, "oracle", sel.PersonalityID)
	assert.IsType(t, &gameEvents.StartGameEvent{}, h.command())
	assert.IsType(t, &gameEvents.NextQuestionEvent{}, h.command())
	assert.IsType(t, &gameEvents.ResetGameEvent{}, h.command())
}

func TestCommandsCloseOnDisconnect(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.Close())

	select {
	case _, ok := <-h.svc.Commands():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("commands not closed")
	}
	<-h.svc.Done()
	assert.Equal(t, playback.SinkClosed, h.svc.Sink().State())
}

func TestSinkResumeAndSchedule(t *testing.T) {
	h := newHarness(t)
	sink := h.svc.Sink()
	assert.Equal(t, playback.SinkSuspended, sink.State())
	assert.Zero(t, sink.CurrentTime())

	resumed := make(chan error, 1)
	go func() { resumed <- sink.Resume(context.Background()) }()

	msgType, _ := h.read()
	require.Equal(t, protocol.MsgResumeAudio, msgType)
	h.write(protocol.MsgAudioResumed, nil)

	select {
	case err := <-resumed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("resume did not return")
	}
	assert.Equal(t, playback.SinkRunning, sink.State())

	buf := &audio.Buffer{Channels: [][]float32{{0.5, -0.5}}, SampleRate: 24000}
	require.NoError(t, sink.Schedule(buf, 1.25))

	msgType, raw := h.read()
	require.Equal(t, protocol.MsgPlay, msgType)
	play, err := protocol.UnmarshalPayload[protocol.PlayPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, 1.25, play.StartAt)
	assert.Equal(t, 24000, play.SampleRate)
	assert.Equal(t, 1, play.Channels)
	pcm, err := audio.Decode(play.Data)
	require.NoError(t, err)
	assert.Equal(t, audio.FloatToPCM16([]float32{0.5, -0.5}), pcm)
}

func TestSinkResumeHonorsContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h.svc.Sink().Resume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, playback.SinkSuspended, h.svc.Sink().State())
}

func float32Frame(samples ...float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func TestMicrophoneStream(t *testing.T) {
	h := newHarness(t)
	h.write(protocol.MsgHello, protocol.HelloPayload{SampleRate: 44100, Format: "float32"})

	type opened struct {
		stream capture.InputStream
		err    error
	}
	result := make(chan opened, 1)
	go func() {
		st, err := h.svc.Microphone().Open(context.Background(), capture.StreamConfig{SampleRate: 16000, Channels: 1, FrameSize: 4096})
		result <- opened{st, err}
	}()

	msgType, raw := h.read()
	require.Equal(t, protocol.MsgCaptureStart, msgType)
	start, err := protocol.UnmarshalPayload[protocol.CaptureStartPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, 16000, start.SampleRate)
	assert.Equal(t, 4096, start.FrameSize)

	h.write(protocol.MsgCaptureReady, protocol.CaptureReadyPayload{})

	var res opened
	select {
	case res = <-result:
	case <-time.After(2 * time.Second):
		t.Fatal("open did not return")
	}
	require.NoError(t, res.err)
	assert.Equal(t, 44100, res.stream.SampleRate())

	require.NoError(t, h.client.WriteMessage(websocket.BinaryMessage, float32Frame(0.25, -0.25)))
	select {
	case frame := <-res.stream.Frames():
		assert.Equal(t, []float32{0.25, -0.25}, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame")
	}

	require.NoError(t, res.stream.Close())
	msgType, _ = h.read()
	assert.Equal(t, protocol.MsgCaptureStop, msgType)
	_, ok := <-res.stream.Frames()
	assert.False(t, ok)
	assert.NoError(t, res.stream.Close())
}

func TestMicrophoneDenied(t *testing.T) {
	h := newHarness(t)

	result := make(chan error, 1)
	go func() {
		_, err := h.svc.Microphone().Open(context.Background(), capture.StreamConfig{SampleRate: 16000, FrameSize: 4096})
		result <- err
	}()

	msgType, _ := h.read()
	require.Equal(t, protocol.MsgCaptureStart, msgType)
	h.write(protocol.MsgCaptureDenied, protocol.CaptureDeniedPayload{Reason: "NotAllowedError"})

	select {
	case err := <-result:
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrPermissionDenied)
		assert.Contains(t, err.Error(), "NotAllowedError")
	case <-time.After(2 * time.Second):
		t.Fatal("open did not return")
	}
}

func TestSendSnapshotReportsNewErrorsOnce(t *testing.T) {
	h := newHarness(t)

	snap := core.GameSnapshot{State: core.GameStateIdle, Error: core.MsgQuestionFailed}
	require.NoError(t, h.svc.SendSnapshot(snap))
	msgType, raw := h.read()
	require.Equal(t, protocol.MsgState, msgType)
	state, err := protocol.UnmarshalPayload[protocol.StatePayload](raw)
	require.NoError(t, err)
	assert.Equal(t, core.MsgQuestionFailed, state.Snapshot.Error)

	msgType, raw = h.read()
	require.Equal(t, protocol.MsgError, msgType)
	errPayload, err := protocol.UnmarshalPayload[protocol.ErrorPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, core.MsgQuestionFailed, errPayload.Message)

	require.NoError(t, h.svc.SendSnapshot(snap))
	msgType, _ = h.read()
	assert.Equal(t, protocol.MsgState, msgType)

	snap.State = core.GameStateFinished
	require.NoError(t, h.svc.SendSnapshot(snap))
	msgType, raw = h.read()
	require.Equal(t, protocol.MsgState, msgType)
	state, err = protocol.UnmarshalPayload[protocol.StatePayload](raw)
	require.NoError(t, err)
	assert.Equal(t, core.GameStateFinished, state.Snapshot.State)
}

func TestSessionLogWrittenPerConnection(t *testing.T) {
	dir := t.TempDir()
	p := NewProvider(&Config{LogDir: dir}, core.NewNopLogger())
	ids := make(chan string, 1)
	require.NoError(t, p.RegisterJobHandler(func(svc transport.ITransportService, ctx context.Context) error {
		if logger := core.SessionLoggerFromContext(ctx); logger != nil {
			logger.Info("round started", "round", 1)
		}
		ids <- svc.SessionID()
		return nil
	}))

	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	var id string
	select {
	case id = <-ids:
	case <-time.After(2 * time.Second):
		t.Fatal("job handler not called")
	}

	active := filepath.Join(dir, id+".active")
	require.Eventually(t, func() bool {
		_, err := os.Stat(active)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(filepath.Join(dir, id+".jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"round started"`)
	assert.Contains(t, string(data), `"transport":"websocket"`)
}
