package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"triviahost/core"
	"triviahost/utils/audio"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"
)

// OpenLiveSession connects a bidirectional audio session that judges the
// player's spoken answer. Callbacks run on the session's receive goroutine.
func (c *Client) OpenLiveSession(ctx context.Context, systemInstruction string, cb core.LiveCallbacks) (core.LiveSession, error) {
	if !cb.Valid() {
		return nil, errors.New("gemini: live session needs all four callbacks")
	}

	cfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		SystemInstruction:        genai.NewContentFromText(systemInstruction, genai.RoleUser),
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		SpeechConfig:             speechConfig(c.cfg.LiveVoice),
	}
	session, err := c.client.Live.Connect(ctx, c.cfg.LiveModel, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: connect live session: %w: %v", core.ErrConnection, err)
	}

	ls := newLiveSession(session, cb, c.cfg.SendQueueSize, c.logger)
	go ls.sendLoop()
	go ls.receiveLoop()
	return ls, nil
}

// remoteSession is the part of *genai.Session the live session drives.
type remoteSession interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type liveSession struct {
	remote remoteSession
	cb     core.LiveCallbacks
	logger *core.Logger

	sendCh  chan core.AudioBlob
	stop    chan struct{}
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Int64
}

func newLiveSession(remote remoteSession, cb core.LiveCallbacks, queueSize int, logger *core.Logger) *liveSession {
	return &liveSession{
		remote: remote,
		cb:     cb,
		logger: logger.With(map[string]interface{}{"component": "gemini_live"}),
		sendCh: make(chan core.AudioBlob, queueSize),
		stop:   make(chan struct{}),
	}
}

// SendAudioChunk queues a chunk for the send goroutine. A full queue drops
// the chunk rather than stall the caller.
func (s *liveSession) SendAudioChunk(chunk core.AudioBlob) {
	if s.closed.Load() {
		return
	}
	select {
	case s.sendCh <- chunk:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warnf("live send queue full, %d chunks dropped", n)
		}
	}
}

func (s *liveSession) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.stop)
		err = s.remote.Close()
	})
	return err
}

// sendLoop is the only writer on the remote connection.
func (s *liveSession) sendLoop() {
	for {
		select {
		case <-s.stop:
			return
		case chunk := <-s.sendCh:
			data, err := audio.Decode(chunk.Data)
			if err != nil {
				s.logger.Warn("dropping malformed microphone chunk", "error", err)
				continue
			}
			err = s.remote.SendRealtimeInput(genai.LiveRealtimeInput{
				Audio: &genai.Blob{Data: data, MIMEType: chunk.MIMEType},
			})
			if err != nil {
				if s.closed.Load() {
					return
				}
				s.logger.Warn("sending microphone chunk", "error", err)
			}
		}
	}
}

func (s *liveSession) receiveLoop() {
	s.cb.OnOpen()
	for {
		msg, err := s.remote.Receive()
		if err != nil {
			switch {
			case s.closed.Load():
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.logger.Info("live session closed by remote")
			default:
				s.cb.OnError(fmt.Errorf("gemini: live receive: %w: %v", core.ErrConnection, err))
			}
			s.closed.Store(true)
			s.cb.OnClose()
			return
		}
		if msg.GoAway != nil {
			s.logger.Warn("live session going away", "time_left", msg.GoAway.TimeLeft)
		}
		if ev := eventFromMessage(msg); !ev.Empty() || ev.Interrupted {
			s.cb.OnMessage(ev)
		}
	}
}

func eventFromMessage(msg *genai.LiveServerMessage) core.LiveServerEvent {
	var ev core.LiveServerEvent
	if msg == nil || msg.ServerContent == nil {
		return ev
	}
	sc := msg.ServerContent
	if sc.InputTranscription != nil {
		ev.InputTranscript = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		ev.OutputTranscript = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			ev.Audio = append(ev.Audio, audio.Encode(part.InlineData.Data))
		}
	}
	ev.TurnComplete = sc.TurnComplete
	ev.Interrupted = sc.Interrupted
	return ev
}
