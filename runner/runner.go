package runner

import (
	"context"
	"errors"
	"sync"

	"triviahost/core"
)

// Runner chains handlers with channels: each handler's next output feeds the
// following handler, and every handler can reach the runner through the top
// channel.
type Runner struct {
	Handlers       []core.IHandler
	logger         *core.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	topOutputChan  chan *core.EventPacket
	lastOutputChan chan *core.EventPacket
	finished       chan struct{}
	finishOnce     sync.Once
	stopOnce       sync.Once
	stopErr        error
}

func NewRunner(handlers []core.IHandler, logger *core.Logger) *Runner {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Runner{
		Handlers: handlers,
		logger:   logger.With(map[string]interface{}{"component": "runner"}),
		finished: make(chan struct{}),
	}
}

func (r *Runner) Start(parent context.Context) error {
	if len(r.Handlers) == 0 {
		return errors.New("runner: no handlers")
	}

	r.ctx, r.cancel = context.WithCancel(parent)
	r.topOutputChan = make(chan *core.EventPacket, 100)
	r.lastOutputChan = make(chan *core.EventPacket, 100)

	inputChans := make([]chan *core.EventPacket, len(r.Handlers))
	for i := range inputChans {
		inputChans[i] = make(chan *core.EventPacket, 100)
	}

	for i, handler := range r.Handlers {
		var outputNextChan chan<- *core.EventPacket
		if i < len(r.Handlers)-1 {
			outputNextChan = inputChans[i+1]
		} else {
			outputNextChan = r.lastOutputChan
		}

		if err := handler.Initialize(inputChans[i], outputNextChan, r.topOutputChan, r.ctx); err != nil {
			r.cancel()
			return err
		}
	}
	// Start downstream first so nothing emitted at startup is lost.
	for i := len(r.Handlers) - 1; i >= 0; i-- {
		if err := r.Handlers[i].Start(); err != nil {
			r.cancel()
			return err
		}
	}

	go r.listenToOutputs()
	return nil
}

// Done is closed once the session has ended, either through an
// EndSessionEvent or the parent context.
func (r *Runner) Done() <-chan struct{} {
	return r.finished
}

func (r *Runner) listenToOutputs() {
	for {
		select {
		case packet := <-r.lastOutputChan:
			r.processFinalOutput(packet)
		case packet := <-r.topOutputChan:
			r.processTopOutput(packet)
		case <-r.ctx.Done():
			r.finish()
			return
		}
	}
}

func (r *Runner) processFinalOutput(packet *core.EventPacket) {
	r.logger.Trace("pipeline output", "event", packet.Event.GetId(), "relayer", packet.Relayer)
}

func (r *Runner) processTopOutput(packet *core.EventPacket) {
	switch event := packet.Event.(type) {
	case *core.CriticalErrorEvent:
		r.logger.Error("critical pipeline error", "error", event.Error, "relayer", packet.Relayer)
		r.finish()
	case *core.WarningEvent:
		r.logger.Warn("pipeline warning", "error", event.Error, "relayer", packet.Relayer)
	case *core.EndSessionEvent:
		r.logger.Info("session ended", "reason", event.Reason)
		r.finish()
	default:
		if err := r.Handlers[0].HandleEvent(packet); err != nil {
			r.logger.Warn("re-injecting event", "event", packet.Event.GetId(), "error", err)
		}
	}
}

func (r *Runner) finish() {
	r.finishOnce.Do(func() { close(r.finished) })
}

// Stop cancels the pipeline and cleans every handler up. Safe to call more
// than once.
func (r *Runner) Stop() error {
	r.stopOnce.Do(func() {
		var errs []error
		for _, handler := range r.Handlers {
			if err := handler.Cleanup(); err != nil {
				errs = append(errs, err)
			}
		}
		if r.cancel != nil {
			r.cancel()
		}
		r.finish()
		r.stopErr = errors.Join(errs...)
	})
	return r.stopErr
}

func (r *Runner) Reset() error {
	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run starts the pipeline and blocks until the session ends, then stops it.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-r.Done()
	return r.Stop()
}
