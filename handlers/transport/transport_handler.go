package transport

import (
	"triviahost/core"
	"triviahost/events/game"
	"triviahost/events/transport"
)

// TransportHandlerWrapper holds the connection shared by the input and
// output ends of a pipeline.
type TransportHandlerWrapper struct {
	service ITransportService
	logger  *core.Logger
}

func NewTransportHandlerWrapper(service ITransportService, logger *core.Logger) *TransportHandlerWrapper {
	return &TransportHandlerWrapper{service: service, logger: logger}
}

func (w *TransportHandlerWrapper) GetInputHandler() *TransportInputHandler {
	return &TransportInputHandler{
		BaseHandler: *core.NewBaseHandler("TransportInputHandler", w.logger),
		service:     w.service,
	}
}

func (w *TransportHandlerWrapper) GetOutputHandler() *TransportOutputHandler {
	return &TransportOutputHandler{
		BaseHandler: *core.NewBaseHandler("TransportOutputHandler", w.logger),
		service:     w.service,
	}
}

// TransportInputHandler turns player commands into pipeline events.
type TransportInputHandler struct {
	core.BaseHandler
	service ITransportService
}

func (h *TransportInputHandler) Start() error {
	go h.Consume(h.HandleEvent)
	go h.receive()
	return nil
}

func (h *TransportInputHandler) receive() {
	commands := h.service.Commands()
	for {
		select {
		case <-h.Ctx.Done():
			return
		case ev, ok := <-commands:
			if !ok {
				h.Logger.Info("player disconnected")
				h.Emit(&transport.ClientDisconnectedEvent{Reason: "connection closed"})
				return
			}
			h.Logger.Debug("player command", "command", ev.GetId())
			h.Emit(ev)
		}
	}
}

// HandleEvent forwards events re-injected at the head of the pipeline.
func (h *TransportInputHandler) HandleEvent(eventPacket *core.EventPacket) error {
	h.SendPacket(eventPacket)
	return nil
}

// TransportOutputHandler publishes game state to the player and ends the
// session when the player leaves.
type TransportOutputHandler struct {
	core.BaseHandler
	service ITransportService
}

func (h *TransportOutputHandler) Start() error {
	go h.Consume(h.HandleEvent)
	return nil
}

func (h *TransportOutputHandler) HandleEvent(eventPacket *core.EventPacket) error {
	var err error
	switch event := eventPacket.Event.(type) {
	case *game.GameSnapshotEvent:
		err = h.service.SendSnapshot(event.Snapshot)
	case *transport.ClientDisconnectedEvent:
		h.EmitTop(&core.EndSessionEvent{Reason: event.Reason})
	}
	h.SendPacket(eventPacket)
	return err
}

func (h *TransportOutputHandler) Cleanup() error {
	return h.service.Close()
}
