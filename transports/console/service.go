package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"triviahost/core"
	gameEvents "triviahost/events/game"
	"triviahost/handlers/capture"
	"triviahost/handlers/playback"

	"github.com/google/uuid"
)

const helpText = `commands:
  list         show the available hosts
  pick <id>    choose a host
  start        start the game
  next         next question
  reset        back to host selection
  quit         leave`

// Service is a terminal player: commands are read line by line, game state
// is printed as it changes, and audio goes through the given devices.
type Service struct {
	id            string
	in            io.Reader
	personalities []core.Personality
	sink          playback.Sink
	mic           capture.Microphone
	logger        *core.Logger

	commands  chan core.IEvent
	closed    chan struct{}
	closeOnce sync.Once

	outMu   sync.Mutex
	out     io.Writer
	printer printer
}

func NewService(cfg Config, logger *core.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Service{
		id:            uuid.NewString(),
		in:            cfg.In,
		out:           cfg.Out,
		personalities: cfg.Personalities,
		sink:          cfg.Sink,
		mic:           cfg.Microphone,
		logger:        logger.With(map[string]interface{}{"component": "console"}),
		commands:      make(chan core.IEvent, 4),
		closed:        make(chan struct{}),
	}
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

func (s *Service) SendSnapshot(snapshot core.GameSnapshot) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	for _, line := range s.printer.diff(snapshot) {
		if _, err := fmt.Fprintln(s.out, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *Service) println(a ...interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = fmt.Fprintln(s.out, a...)
}

// readLoop parses commands until quit, end of input or Close. The input
// reader itself is not closed, so a blocked read may outlive the loop.
func (s *Service) readLoop() {
	defer close(s.commands)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-s.closed:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.Warnf("read input: %v", err)
		}
	}()

	s.println(helpText)
	for {
		var line string
		var ok bool
		select {
		case line, ok = <-lines:
			if !ok {
				return
			}
		case <-s.closed:
			return
		}

		ev, quit := s.parse(line)
		if quit {
			return
		}
		if ev == nil {
			continue
		}
		select {
		case s.commands <- ev:
		case <-s.closed:
			return
		}
	}
}

func (s *Service) parse(line string) (core.IEvent, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}

	switch strings.ToLower(fields[0]) {
	case "list", "ls":
		for _, p := range s.personalities {
			s.println(fmt.Sprintf("  %-10s %s: %s", p.ID, p.Name, p.Description))
		}
	case "pick", "select":
		if len(fields) < 2 {
			s.println("usage: pick <id>")
			return nil, false
		}
		return &gameEvents.SelectPersonalityEvent{PersonalityID: fields[1]}, false
	case "start":
		return &gameEvents.StartGameEvent{}, false
	case "next":
		return &gameEvents.NextQuestionEvent{}, false
	case "reset":
		return &gameEvents.ResetGameEvent{}, false
	case "quit", "exit", "q":
		return nil, true
	case "help", "?":
		s.println(helpText)
	default:
		s.println(fmt.Sprintf("unknown command %q, type help", fields[0]))
	}
	return nil, false
}
