package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventRelayDestination int

const (
	EventRelayDestinationNextService EventRelayDestination = iota + 1 // Pass to the next handler in the pipeline.
	EventRelayDestinationTopService                                   // Pass to the runner, which re-injects it at the head of the pipeline.
)

type EventPacket struct {
	Event       IEvent
	Destination EventRelayDestination
	Uid         string    // Unique identifier for tracking the event packet.
	Relayer     string    // Identifier of the handler that relayed the event.
	CreatedAt   time.Time // When the packet entered the pipeline.
}

func NewEventPacket(event IEvent, destination EventRelayDestination, relayer string) *EventPacket {
	return &EventPacket{
		Event:       event,
		Destination: destination,
		Uid:         uuid.New().String(),
		Relayer:     relayer,
		CreatedAt:   time.Now(),
	}
}

type IHandler interface {
	Initialize(
		InputChan <-chan *EventPacket,
		outputChan chan<- *EventPacket,
		OutputTopChan chan<- *EventPacket,
		ctx context.Context,
	) error // Wires the handler into the pipeline.
	Start() error // Starts the handler's loops. Must not block.
	HandleEvent(packet *EventPacket) error

	Cleanup() error // Releases resources held by the handler.
	Reset() error   // Returns the handler to its initial state.
}

// BaseHandler carries the channel plumbing shared by every handler.
type BaseHandler struct {
	Name           string
	Ctx            context.Context
	InputChan      <-chan *EventPacket
	Logger         *Logger
	outputNextChan chan<- *EventPacket
	outputTopChan  chan<- *EventPacket
}

func NewBaseHandler(name string, logger *Logger) *BaseHandler {
	if logger == nil {
		logger = GetLogger()
	}
	return &BaseHandler{
		Name:   name,
		Logger: logger.With(map[string]interface{}{"component": name}),
	}
}

func (h *BaseHandler) Initialize(
	InputChan <-chan *EventPacket,
	OutputNextChan chan<- *EventPacket,
	OutputTopChan chan<- *EventPacket,
	ctx context.Context,
) error {
	h.InputChan = InputChan
	h.outputNextChan = OutputNextChan
	h.outputTopChan = OutputTopChan
	h.Ctx = ctx
	if h.Logger == nil {
		h.Logger = GetLogger()
	}
	return nil
}

// SendPacket forwards a packet according to its destination. It gives up
// when the pipeline context is cancelled so a stalled consumer cannot wedge
// the sender during shutdown.
func (h *BaseHandler) SendPacket(packet *EventPacket) {
	out := h.outputNextChan
	if packet.Destination == EventRelayDestinationTopService {
		out = h.outputTopChan
	}
	if out == nil {
		return
	}
	var done <-chan struct{}
	if h.Ctx != nil {
		done = h.Ctx.Done()
	}
	select {
	case out <- packet:
	case <-done:
	}
}

// Emit wraps event in a packet bound for the next handler.
func (h *BaseHandler) Emit(event IEvent) {
	h.SendPacket(NewEventPacket(event, EventRelayDestinationNextService, h.Name))
}

// EmitTop wraps event in a packet bound for the runner.
func (h *BaseHandler) EmitTop(event IEvent) {
	h.SendPacket(NewEventPacket(event, EventRelayDestinationTopService, h.Name))
}

// Consume feeds every input packet to handle until the context ends or the
// input channel closes. Handlers start it from Start in its own goroutine.
func (h *BaseHandler) Consume(handle func(*EventPacket) error) {
	for {
		select {
		case packet, ok := <-h.InputChan:
			if !ok {
				return
			}
			if err := handle(packet); err != nil {
				h.Logger.With(map[string]interface{}{"error": err, "event": packet.Event.GetId()}).Warn("handler failed to process event")
			}
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *BaseHandler) Cleanup() error {
	return nil
}

func (h *BaseHandler) Reset() error {
	return nil
}
