package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"triviahost/core"
	"triviahost/events/game"
	"triviahost/events/transport"

	"github.com/google/uuid"
)

// GameHandler is the session controller of one game. A single goroutine
// owns all game state: it folds player commands from the pipeline and
// results of asynchronous work from its inbox into state transitions, then
// publishes a snapshot downstream.
type GameHandler struct {
	core.BaseHandler
	deps    Dependencies
	config  GameConfig
	inbox   chan inboxEvent
	feeder  *audioFeeder
	done    chan struct{}
	started atomic.Bool

	// reducer-owned
	state        core.GameState
	personality  *core.Personality
	round        *core.GameRound
	transcripts  []core.TranscriptEntry
	sources      []core.GroundingSource
	score        int
	errorMessage string
	roundID      int
	opCtx        context.Context
	opCancel     context.CancelFunc
	session      core.LiveSession
	sessionLive  bool // OnOpen seen for the current session
	capture      Capturer
	userText     strings.Builder
	hostText     strings.Builder
	lastPlaying  bool

	snapMu   sync.RWMutex
	snapshot core.GameSnapshot
}

func NewGameHandler(deps Dependencies, config GameConfig, logger *core.Logger) (*GameHandler, error) {
	if deps.Questions == nil || deps.Speech == nil || deps.Live == nil || deps.Player == nil || deps.NewCapture == nil {
		return nil, errors.New("game: every dependency is required")
	}
	config = config.withDefaults()
	for _, p := range config.Personalities {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("game: %w", err)
		}
	}

	h := &GameHandler{
		BaseHandler: *core.NewBaseHandler("GameHandler", logger),
		deps:        deps,
		config:      config,
		inbox:       make(chan inboxEvent, 64),
		done:        make(chan struct{}),
		state:       core.GameStateIdle,
		transcripts: []core.TranscriptEntry{},
		sources:     []core.GroundingSource{},
	}
	h.feeder = newAudioFeeder(deps.Player, h.Logger)
	if config.DefaultPersonalityID != "" {
		p, ok := core.FindPersonality(config.Personalities, config.DefaultPersonalityID)
		if !ok {
			return nil, fmt.Errorf("game: unknown default personality %q", config.DefaultPersonalityID)
		}
		h.personality = &p
	}
	h.snapshot = h.buildSnapshot()
	return h, nil
}

// Start launches the reducer. The initial snapshot is published right away.
func (h *GameHandler) Start() error {
	if !h.started.CompareAndSwap(false, true) {
		return errors.New("game: already started")
	}
	go h.feeder.run(h.Ctx)
	go h.loop()
	return nil
}

func (h *GameHandler) loop() {
	defer close(h.done)
	defer h.teardown()

	ticker := time.NewTicker(h.config.PlaybackPollInterval)
	defer ticker.Stop()

	h.publish()
	for {
		select {
		case <-h.Ctx.Done():
			return
		case packet, ok := <-h.InputChan:
			if !ok {
				return
			}
			if err := h.HandleEvent(packet); err != nil {
				h.Logger.Warn("handling event", "event", packet.Event.GetId(), "error", err)
			}
		case ev := <-h.inbox:
			if req, ok := ev.(disposeRequest); ok {
				h.teardown()
				h.publish()
				close(req.done)
				continue
			}
			h.reduce(ev)
			h.publish()
		case <-ticker.C:
			if h.deps.Player.IsPlaying() != h.lastPlaying {
				h.publish()
			}
		}
	}
}

// HandleEvent applies a player command. It must only be called from the
// reducer goroutine.
func (h *GameHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *game.SelectPersonalityEvent:
		p, ok := core.FindPersonality(h.config.Personalities, event.PersonalityID)
		if !ok {
			return fmt.Errorf("game: unknown personality %q", event.PersonalityID)
		}
		h.teardown()
		h.personality = &p
		h.state = core.GameStateIdle
		h.clearRound()
		h.Logger.Info("personality selected", "personality", p.ID)
	case *game.StartGameEvent, *game.NextQuestionEvent:
		if h.personality == nil {
			h.Logger.Debug("ignoring start without a personality")
			return nil
		}
		if h.state != core.GameStateIdle && h.state != core.GameStateFinished {
			h.Logger.Debug("ignoring command", "command", event.GetId(), "state", h.state)
			return nil
		}
		h.beginRound()
	case *game.ResetGameEvent:
		h.teardown()
		h.personality = nil
		h.state = core.GameStateIdle
		h.clearRound()
	case *transport.ClientDisconnectedEvent:
		h.teardown()
		h.state = core.GameStateIdle
		h.SendPacket(packet)
	default:
		h.SendPacket(packet)
		return nil
	}
	h.publish()
	return nil
}

func (h *GameHandler) clearRound() {
	h.round = nil
	h.transcripts = []core.TranscriptEntry{}
	h.sources = []core.GroundingSource{}
	h.errorMessage = ""
	h.userText.Reset()
	h.hostText.Reset()
}

func (h *GameHandler) beginRound() {
	h.teardown()
	h.clearRound()
	h.roundID++
	h.opCtx, h.opCancel = context.WithCancel(h.Ctx)
	h.state = core.GameStateGenerating

	round, ctx, prompt := h.roundID, h.opCtx, h.personality.SystemPrompt
	h.Logger.Info("generating question", "round", round, "personality", h.personality.ID)
	go func() {
		q, err := h.deps.Questions.GenerateQuestion(ctx, prompt)
		h.post(questionResult{roundTag: roundTag{round}, question: q, err: err})
	}()
}

// post delivers an async result to the reducer unless the game is over.
func (h *GameHandler) post(ev inboxEvent) {
	select {
	case h.inbox <- ev:
	case <-h.done:
	}
}

func (h *GameHandler) current(ev inboxEvent, want core.GameState) bool {
	return ev.roundID() == h.roundID && h.state == want
}

func (h *GameHandler) reduce(ev inboxEvent) {
	switch ev := ev.(type) {
	case questionResult:
		if !h.current(ev, core.GameStateGenerating) {
			return
		}
		if ev.err != nil {
			h.Logger.Error("question generation failed", "round", ev.round, "error", ev.err)
			h.errorMessage = core.MsgQuestionFailed
			h.state = core.GameStateIdle
			h.teardown()
			return
		}
		round := ev.question.Round()
		h.round = &round
		h.sources = append([]core.GroundingSource{}, ev.question.Sources...)
		h.state = core.GameStateSpeaking
		h.speak(round)

	case speechDone:
		if !h.current(ev, core.GameStateSpeaking) {
			return
		}
		if ev.speechErr != nil {
			h.Logger.Error("speech synthesis failed", "round", ev.round, "error", ev.speechErr)
			h.errorMessage = core.MsgSpeechFailed
		}
		if ev.playbackErr != nil {
			h.Logger.Warn("question audio not played", "round", ev.round, "error", ev.playbackErr)
		}
		h.state = core.GameStateListening
		h.openSession()

	case sessionResult:
		if !h.current(ev, core.GameStateListening) || h.session != nil {
			if ev.session != nil {
				_ = ev.session.Close()
			}
			return
		}
		if ev.err != nil {
			h.Logger.Error("opening live session failed", "round", ev.round, "error", ev.err)
			h.fail(core.MsgConnectionError)
			return
		}
		h.session = ev.session
		h.maybeStartCapture()

	case liveOpened:
		if !h.current(ev, core.GameStateListening) {
			return
		}
		h.sessionLive = true
		h.maybeStartCapture()

	case liveMessage:
		if !h.current(ev, core.GameStateListening) {
			return
		}
		h.userText.WriteString(ev.event.InputTranscript)
		h.hostText.WriteString(ev.event.OutputTranscript)
		h.feeder.push(ev.event.Audio...)
		if ev.event.TurnComplete {
			h.completeTurn()
		}

	case liveFailed:
		if !h.current(ev, core.GameStateListening) {
			return
		}
		h.Logger.Error("live session error", "round", ev.round, "error", ev.err)
		h.fail(core.MsgConnectionError)

	case liveClosed:
		if !h.current(ev, core.GameStateListening) {
			return
		}
		h.Logger.Warn("live session closed before the turn completed", "round", ev.round)
		h.fail(core.MsgConnectionError)

	case captureFailed:
		if !h.current(ev, core.GameStateListening) {
			return
		}
		h.Logger.Error("microphone capture failed", "round", ev.round, "error", ev.err)
		h.fail(core.MsgPermissionDenied)
	}
}

func (h *GameHandler) speak(round core.GameRound) {
	id, ctx, voice := h.roundID, h.opCtx, h.personality.Voice
	go func() {
		done := speechDone{roundTag: roundTag{id}}
		data, err := h.deps.Speech.SynthesizeSpeech(ctx, core.SpokenQuestion(round.Question), voice)
		if err != nil {
			done.speechErr = err
		} else if data != "" {
			_, done.playbackErr = h.deps.Player.Enqueue(ctx, data)
		}
		h.post(done)
	}()
}

func (h *GameHandler) openSession() {
	id, ctx := h.roundID, h.opCtx
	instruction := core.JudgeInstruction(h.personality.SystemPrompt, *h.round)
	tag := roundTag{id}
	cb := core.LiveCallbacks{
		OnOpen:    func() { h.post(liveOpened{tag}) },
		OnMessage: func(ev core.LiveServerEvent) { h.post(liveMessage{roundTag: tag, event: ev}) },
		OnError:   func(err error) { h.post(liveFailed{roundTag: tag, err: err}) },
		OnClose:   func() { h.post(liveClosed{tag}) },
	}
	go func() {
		session, err := h.deps.Live.OpenLiveSession(ctx, instruction, cb)
		h.post(sessionResult{roundTag: tag, session: session, err: err})
	}()
}

// maybeStartCapture starts the microphone once the session handle is stored
// and the remote side reported it open, whichever comes last.
func (h *GameHandler) maybeStartCapture() {
	if h.session == nil || !h.sessionLive || h.capture != nil {
		return
	}
	capture := h.deps.NewCapture()
	h.capture = capture
	session, id, ctx := h.session, h.roundID, h.opCtx
	go func() {
		err := capture.Start(ctx, session.SendAudioChunk)
		if err != nil && !errors.Is(err, core.ErrStopped) {
			h.post(captureFailed{roundTag: roundTag{id}, err: err})
		}
	}()
}

func (h *GameHandler) completeTurn() {
	user := strings.TrimSpace(h.userText.String())
	host := strings.TrimSpace(h.hostText.String())
	if user != "" {
		h.transcripts = append(h.transcripts, core.TranscriptEntry{ID: uuid.NewString(), Text: user, Source: core.TranscriptSourceUser})
	}
	if host != "" {
		h.transcripts = append(h.transcripts, core.TranscriptEntry{ID: uuid.NewString(), Text: host, Source: core.TranscriptSourceModel})
	}
	if core.IsCorrectVerdict(host) {
		h.score++
	}
	h.userText.Reset()
	h.hostText.Reset()
	h.state = core.GameStateFinished
	h.teardown()
	h.Logger.Info("round finished", "round", h.roundID, "score", h.score)
}

func (h *GameHandler) fail(message string) {
	h.errorMessage = message
	h.state = core.GameStateIdle
	h.teardown()
}

// teardown releases the round's capture and session and cancels its
// pending work. It is safe in any state.
func (h *GameHandler) teardown() {
	if h.capture != nil {
		h.capture.Stop()
		h.capture = nil
	}
	if h.session != nil {
		if err := h.session.Close(); err != nil {
			h.Logger.Warn("closing live session", "error", err)
		}
		h.session = nil
	}
	h.sessionLive = false
	if h.opCancel != nil {
		h.opCancel()
		h.opCancel = nil
	}
}

func (h *GameHandler) buildSnapshot() core.GameSnapshot {
	snap := core.GameSnapshot{
		State:         h.state,
		StatusMessage: h.state.StatusMessage(),
		Transcripts:   append([]core.TranscriptEntry{}, h.transcripts...),
		Sources:       append([]core.GroundingSource{}, h.sources...),
		Score:         h.score,
		Error:         h.errorMessage,
		IsPlaying:     h.deps.Player.IsPlaying(),
	}
	if h.personality != nil {
		p := *h.personality
		snap.Personality = &p
	}
	if h.round != nil {
		r := *h.round
		snap.Round = &r
	}
	return snap
}

func (h *GameHandler) publish() {
	snap := h.buildSnapshot()
	h.lastPlaying = snap.IsPlaying
	h.snapMu.Lock()
	h.snapshot = snap
	h.snapMu.Unlock()
	h.Emit(&game.GameSnapshotEvent{Snapshot: snap})
}

// Snapshot returns the latest published state. Safe from any goroutine.
func (h *GameHandler) Snapshot() core.GameSnapshot {
	h.snapMu.RLock()
	defer h.snapMu.RUnlock()
	return h.snapshot
}

// Cleanup disposes of the game: the live session is closed and capture
// stopped, whatever the state.
func (h *GameHandler) Cleanup() error {
	if !h.started.Load() {
		h.teardown()
		return nil
	}
	req := disposeRequest{done: make(chan struct{})}
	select {
	case h.inbox <- req:
		select {
		case <-req.done:
		case <-h.done:
		}
	case <-h.done:
	}
	return nil
}

func (h *GameHandler) Reset() error {
	return nil
}
