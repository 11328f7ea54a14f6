package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"triviahost/core"
	"triviahost/handlers/transport"
	"triviahost/protocol"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Provider serves browser players over HTTP. Each websocket connection on
// the configured path becomes one ITransportService handed to the job handler.
type Provider struct {
	config     *Config
	logger     *core.Logger
	server     *http.Server
	upgrader   websocket.Upgrader
	jobHandler func(svc transport.ITransportService, ctx context.Context) error

	mu        sync.RWMutex
	isRunning bool

	connections   map[string]*Service
	connectionsMu sync.RWMutex
	wg            sync.WaitGroup
}

func NewProvider(config *Config, logger *core.Logger) *Provider {
	config = config.withDefaults()
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Provider{
		config: config,
		logger: logger.With(map[string]interface{}{"component": "ws-transport"}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		connections: make(map[string]*Service),
	}
}

// Handler returns the HTTP routes of the provider.
func (p *Provider) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", p.handleHealth)
	mux.HandleFunc("GET /personalities", p.handlePersonalities)
	mux.HandleFunc("GET "+p.config.Path, p.handleWebSocket)
	return mux
}

// Start implements ITransportProvider.Start
func (p *Provider) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("ws-transport: provider already running")
	}

	p.server = &http.Server{
		Addr:    p.config.Addr,
		Handler: p.Handler(),
	}
	go func(server *http.Server) {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Errorf("http server: %v", err)
		}
	}(p.server)

	p.isRunning = true
	p.logger.Infof("listening on %s, websocket path %s", p.config.Addr, p.config.Path)
	return nil
}

// Stop implements ITransportProvider.Stop
func (p *Provider) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return nil
	}

	p.connectionsMu.Lock()
	for _, svc := range p.connections {
		_ = svc.Close()
	}
	p.connectionsMu.Unlock()

	var err error
	if p.server != nil {
		if shutdownErr := p.server.Shutdown(context.Background()); shutdownErr != nil {
			err = fmt.Errorf("ws-transport: shutdown server: %w", shutdownErr)
		}
	}
	p.wg.Wait()

	p.isRunning = false
	return err
}

// RegisterJobHandler implements ITransportProvider.RegisterJobHandler
func (p *Provider) RegisterJobHandler(
	handler func(svc transport.ITransportService, ctx context.Context) error,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if handler == nil {
		return fmt.Errorf("ws-transport: handler cannot be nil")
	}
	p.jobHandler = handler
	return nil
}

// ActiveConnections returns the number of connected players.
func (p *Provider) ActiveConnections() int {
	p.connectionsMu.RLock()
	defer p.connectionsMu.RUnlock()
	return len(p.connections)
}

func (p *Provider) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (p *Provider) handlePersonalities(w http.ResponseWriter, _ *http.Request) {
	body, err := sonic.Marshal(protocol.PersonalitiesPayload{List: p.config.Personalities})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (p *Provider) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	job := p.jobHandler
	p.mu.RUnlock()
	if job == nil {
		http.Error(w, "no job handler registered", http.StatusServiceUnavailable)
		return
	}

	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warnf("upgrade: %v", err)
		return
	}
	conn.SetReadLimit(p.config.MaxMessageSize)

	svc := NewService(conn, p.config, p.logger)

	p.connectionsMu.Lock()
	p.connections[svc.SessionID()] = svc
	p.connectionsMu.Unlock()
	p.wg.Add(1)

	defer func() {
		p.connectionsMu.Lock()
		delete(p.connections, svc.SessionID())
		p.connectionsMu.Unlock()
		_ = svc.Close()
		p.wg.Done()
	}()

	p.logger.Infof("client connected: session=%s remote=%s", svc.SessionID(), conn.RemoteAddr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if p.config.LogDir != "" {
		writer, err := core.NewSessionLogWriter(p.config.LogDir, core.SessionMetadata{
			SessionID:  svc.SessionID(),
			RemoteAddr: conn.RemoteAddr().String(),
			Transport:  "websocket",
		})
		if err != nil {
			p.logger.Warn("session log disabled", "session", svc.SessionID(), "error", err)
		} else {
			defer writer.Close()
			ctx = core.ContextWithSessionLogger(ctx, core.NewSessionLogger(p.logger, writer))
		}
	}

	svc.start()
	if err := job(svc, ctx); err != nil {
		p.logger.Errorf("job handler for session %s: %v", svc.SessionID(), err)
	}
	p.logger.Infof("client finished: session=%s", svc.SessionID())
}
