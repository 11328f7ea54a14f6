package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"triviahost/core"
	"triviahost/handlers/capture"
	"triviahost/handlers/playback"
	"triviahost/handlers/transport"
)

type Config struct {
	In            io.Reader
	Out           io.Writer
	Personalities []core.Personality
	Sink          playback.Sink
	Microphone    capture.Microphone
}

func (c Config) withDefaults() Config {
	if c.In == nil {
		c.In = os.Stdin
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Personalities == nil {
		c.Personalities = core.DefaultPersonalities()
	}
	return c
}

// Provider runs a single player session on the terminal.
type Provider struct {
	cfg    Config
	logger *core.Logger

	mu         sync.Mutex
	jobHandler func(svc transport.ITransportService, ctx context.Context) error
	svc        *Service
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
}

func NewProvider(cfg Config, logger *core.Logger) *Provider {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Provider{cfg: cfg.withDefaults(), logger: logger}
}

func (p *Provider) RegisterJobHandler(
	handler func(svc transport.ITransportService, ctx context.Context) error,
) error {
	if handler == nil {
		return fmt.Errorf("console: handler cannot be nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobHandler = handler
	return nil
}

// Start begins the session in the background; Done is closed when it ends.
func (p *Provider) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.jobHandler == nil {
		return errors.New("console: no job handler registered")
	}
	if p.done != nil {
		return errors.New("console: provider already started")
	}
	if p.cfg.Sink == nil || p.cfg.Microphone == nil {
		return errors.New("console: audio devices are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.svc = NewService(p.cfg, p.logger)

	job := p.jobHandler
	svc := p.svc
	done := p.done
	go func() {
		defer close(done)
		defer func() { _ = svc.Close() }()
		go svc.readLoop()
		err := job(svc, ctx)
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	}()
	return nil
}

func (p *Provider) Stop() error {
	p.mu.Lock()
	svc, cancel, done := p.svc, p.cancel, p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	_ = svc.Close()
	cancel()
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed when the session has ended. It is nil before Start.
func (p *Provider) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
