package websocket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"triviahost/core"
	gameEvents "triviahost/events/game"
	"triviahost/handlers/capture"
	"triviahost/handlers/playback"
	"triviahost/protocol"
	"triviahost/utils/audio"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Service is one browser player. It implements transport.ITransportService:
// commands arrive as text frames, microphone audio as binary frames, and the
// browser's audio output is driven through Sink.
type Service struct {
	id     string
	conn   *websocket.Conn
	config *Config
	logger *core.Logger

	writeMu sync.Mutex // protects writes

	commands  chan core.IEvent
	closed    chan struct{}
	closeOnce sync.Once
	readDone  chan struct{}

	mu          sync.Mutex
	inputRate   int
	inputFormat core.AudioEncodingFormat
	lastError   string

	sink *sink
	mic  *microphone
}

// NewService wraps an upgraded connection. The read loop starts with start.
func NewService(conn *websocket.Conn, config *Config, logger *core.Logger) *Service {
	config = config.withDefaults()
	if logger == nil {
		logger = core.GetLogger()
	}
	id := uuid.NewString()
	s := &Service{
		id:          id,
		conn:        conn,
		config:      config,
		logger:      logger.With(map[string]interface{}{"session": id}),
		commands:    make(chan core.IEvent, config.CommandBuffer),
		closed:      make(chan struct{}),
		readDone:    make(chan struct{}),
		inputRate:   config.DefaultInputSampleRate,
		inputFormat: core.FLOAT32,
	}
	s.sink = newSink(s)
	s.mic = newMicrophone(s)
	return s
}

func (s *Service) SessionID() string {
	return s.id
}

func (s *Service) Commands() <-chan core.IEvent {
	return s.commands
}

func (s *Service) Sink() playback.Sink {
	return s.sink
}

func (s *Service) Microphone() capture.Microphone {
	return s.mic
}

// SendSnapshot pushes the game state to the browser. A new error message is
// also sent on its own so the client can surface it.
func (s *Service) SendSnapshot(snapshot core.GameSnapshot) error {
	if err := s.send(protocol.MsgState, protocol.StatePayload{Snapshot: snapshot}); err != nil {
		return err
	}

	s.mu.Lock()
	changed := snapshot.Error != s.lastError
	s.lastError = snapshot.Error
	s.mu.Unlock()

	if changed && snapshot.Error != "" {
		return s.send(protocol.MsgError, protocol.ErrorPayload{Message: snapshot.Error})
	}
	return nil
}

// Close shuts down the WebSocket connection. It is safe to call more than once.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)

		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}

// Done is closed once the read loop has ended.
func (s *Service) Done() <-chan struct{} {
	return s.readDone
}

func (s *Service) start() {
	if err := s.send(protocol.MsgPersonalities, protocol.PersonalitiesPayload{List: s.config.Personalities}); err != nil {
		s.logger.Warnf("send personalities: %v", err)
	}
	go s.readLoop()
}

func (s *Service) send(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.closed:
		return websocket.ErrCloseSent
	default:
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws-transport: write %s: %w", msgType, err)
	}
	return nil
}

func (s *Service) readLoop() {
	defer close(s.readDone)
	defer close(s.commands)
	defer s.mic.shutdown()
	defer s.sink.close()

	for {
		messageType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				select {
				case <-s.closed:
				default:
					s.logger.Warnf("read: %v", err)
				}
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.handleAudio(msg)
		case websocket.TextMessage:
			s.handleText(msg)
		}
	}
}

func (s *Service) handleAudio(data []byte) {
	s.mu.Lock()
	format := s.inputFormat
	s.mu.Unlock()

	samples, err := audio.ConvertToFloat(data, format)
	if err != nil {
		s.logger.Debugf("drop microphone frame: %v", err)
		return
	}
	s.mic.push(samples)
}

func (s *Service) handleText(data []byte) {
	msgType, raw, err := protocol.Unmarshal(data)
	if err != nil {
		s.logger.Warnf("%v", err)
		return
	}

	switch msgType {
	case protocol.MsgHello:
		hello, err := protocol.UnmarshalPayload[protocol.HelloPayload](raw)
		if err != nil {
			s.logger.Warnf("%v", err)
			return
		}
		s.applyHello(hello)
	case protocol.MsgSelectPersonality:
		sel, err := protocol.UnmarshalPayload[protocol.SelectPersonalityPayload](raw)
		if err != nil {
			s.logger.Warnf("%v", err)
			return
		}
		s.pushCommand(&gameEvents.SelectPersonalityEvent{PersonalityID: sel.ID})
	case protocol.MsgStartGame:
		s.pushCommand(&gameEvents.StartGameEvent{})
	case protocol.MsgNextQuestion:
		s.pushCommand(&gameEvents.NextQuestionEvent{})
	case protocol.MsgReset:
		s.pushCommand(&gameEvents.ResetGameEvent{})
	case protocol.MsgAudioResumed:
		s.sink.markResumed()
	case protocol.MsgCaptureReady:
		ready, err := protocol.UnmarshalPayload[protocol.CaptureReadyPayload](raw)
		if err != nil {
			s.logger.Warnf("%v", err)
			return
		}
		s.mic.ready(ready.SampleRate)
	case protocol.MsgCaptureDenied:
		denied, err := protocol.UnmarshalPayload[protocol.CaptureDeniedPayload](raw)
		if err != nil {
			s.logger.Warnf("%v", err)
			return
		}
		s.mic.denied(denied.Reason)
	default:
		s.logger.Warnf("unknown message type %q", msgType)
	}
}

func (s *Service) applyHello(hello protocol.HelloPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hello.SampleRate > 0 {
		s.inputRate = hello.SampleRate
	}
	if hello.Format == "" {
		s.inputFormat = core.FLOAT32
	} else if format, ok := core.ParseAudioEncodingFormat(hello.Format); ok {
		s.inputFormat = format
	} else {
		s.logger.Warnf("unsupported input format %q, keeping %s", hello.Format, s.inputFormat)
	}
	s.logger.Debugf("hello: input %d Hz %s", s.inputRate, s.inputFormat)
}

func (s *Service) pushCommand(ev core.IEvent) {
	select {
	case s.commands <- ev:
	case <-s.closed:
	}
}

func (s *Service) declaredInputRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputRate
}
