package transport

type ClientConnectedEvent struct {
	SessionID  string
	RemoteAddr string
}

func (e *ClientConnectedEvent) GetId() string {
	return "transport.client_connected"
}

// ClientDisconnectedEvent is emitted once when the player's connection ends.
type ClientDisconnectedEvent struct {
	Reason string
}

func (e *ClientDisconnectedEvent) GetId() string {
	return "transport.client_disconnected"
}
