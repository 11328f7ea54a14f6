package factories

import (
	"context"
	"time"

	"triviahost/core"
	"triviahost/handlers/capture"
	"triviahost/handlers/game"
	"triviahost/handlers/playback"
	"triviahost/handlers/transport"
	"triviahost/runner"
)

// PipelineConfig configures a Pipeline's lifecycle behaviour.
type PipelineConfig struct {
	Timeout time.Duration
}

// HandlerBuilder creates the ordered handler slice for a single job.
// It receives the transport service and the job context.
type HandlerBuilder func(svc transport.ITransportService, ctx context.Context) ([]core.IHandler, error)

// Pipeline builds and runs handler pipelines for incoming transport jobs.
type Pipeline struct {
	config  PipelineConfig
	builder HandlerBuilder
	logger  *core.Logger
}

// NewPipeline creates a Pipeline that uses builder to construct handlers per-job.
func NewPipeline(builder HandlerBuilder, config PipelineConfig, logger *core.Logger) *Pipeline {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Pipeline{
		builder: builder,
		config:  config,
		logger:  logger,
	}
}

// GameHandlerBuilder wires one game per player:
//
//	TransportInput → Game → TransportOutput
//
// The game plays through a playback queue on the player's sink and captures
// from the player's microphone.
func GameHandlerBuilder(session SessionConfig, services *SessionServices, logger *core.Logger) HandlerBuilder {
	return func(svc transport.ITransportService, ctx context.Context) ([]core.IHandler, error) {
		sessionLogger := core.SessionLoggerFromContext(ctx)
		if sessionLogger == nil {
			sessionLogger = logger
		}
		sessionLogger = sessionLogger.With(map[string]any{"session": svc.SessionID()})

		queue := playback.NewQueue(svc.Sink(), session.PlaybackConfig(), sessionLogger)
		mic := svc.Microphone()
		captureCfg := session.CaptureConfig()

		gameHandler, err := game.NewGameHandler(game.Dependencies{
			Questions: services.Questions,
			Speech:    services.Speech,
			Live:      services.Live,
			Player:    queue,
			NewCapture: func() game.Capturer {
				return capture.New(mic, captureCfg, sessionLogger)
			},
		}, session.GameConfig(), sessionLogger)
		if err != nil {
			return nil, err
		}

		transportWrapper := transport.NewTransportHandlerWrapper(svc, sessionLogger)
		return []core.IHandler{
			transportWrapper.GetInputHandler(),
			gameHandler,
			transportWrapper.GetOutputHandler(),
		}, nil
	}
}

// Run builds a handler pipeline for a single job and blocks until completion.
func (p *Pipeline) Run(svc transport.ITransportService, ctx context.Context) error {
	// Use per-session logger if available, otherwise fall back to pipeline logger.
	base := core.SessionLoggerFromContext(ctx)
	if base == nil {
		base = p.logger
	}
	logger := base.With(map[string]any{"component": "pipeline"})

	select {
	case <-ctx.Done():
		logger.Info("context already cancelled, skipping job")
		return nil
	default:
	}

	if svc == nil {
		logger.Warn("nil transport service, skipping job")
		return nil
	}

	handlers, err := p.builder(svc, ctx)
	if err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to build handlers")
		_ = svc.Close()
		return err
	}

	r := runner.NewRunner(handlers, base)
	if err := r.Start(ctx); err != nil {
		logger.With(map[string]any{"error": err}).Error("runner failed to start")
		_ = r.Stop()
		return err
	}

	started := time.Now()
	logger.Info("runner started, waiting for completion")

	var timerC <-chan time.Time
	if p.config.Timeout > 0 {
		timer := time.NewTimer(p.config.Timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	var result error
	select {
	case <-ctx.Done():
		logger.Info("context cancelled, stopping runner")

	case <-timerC:
		logger.Warn("timeout reached, stopping runner")
		result = context.DeadlineExceeded

	case <-r.Done():
		logger.Info("runner finished")
	}

	if err := r.Stop(); err != nil {
		logger.With(map[string]any{"error": err}).Warn("cleanup errors")
	}
	logger.Info("session closed", "session", svc.SessionID(), "duration_ms", time.Since(started).Milliseconds())
	return result
}

// Serve registers a job handler with the provider, starts it,
// and blocks until ctx is cancelled. It then stops the provider.
func (p *Pipeline) Serve(provider transport.ITransportProvider, ctx context.Context) error {
	logger := p.logger.With(map[string]any{"component": "pipeline"})

	if err := provider.RegisterJobHandler(func(svc transport.ITransportService, jobCtx context.Context) error {
		return p.Run(svc, jobCtx)
	}); err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to register job handler")
		return err
	}

	if err := provider.Start(); err != nil {
		logger.With(map[string]any{"error": err}).Error("provider failed to start")
		return err
	}

	logger.Info("provider started, waiting for jobs")
	<-ctx.Done()

	logger.Info("stopping provider")
	if err := provider.Stop(); err != nil {
		logger.With(map[string]any{"error": err}).Error("error stopping provider")
		return err
	}
	return nil
}
