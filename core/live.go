package core

// LiveServerEvent is one inbound event of a live conversation. Any subset of
// the fields may be set, including none.
type LiveServerEvent struct {
	InputTranscript  string   // partial transcript of the player's speech
	OutputTranscript string   // partial transcript of the host's speech
	Audio            []string // base64 PCM payloads, in arrival order
	TurnComplete     bool
	Interrupted      bool
}

// Empty reports whether the event carries nothing the game reacts to.
func (e LiveServerEvent) Empty() bool {
	return e.InputTranscript == "" && e.OutputTranscript == "" && len(e.Audio) == 0 && !e.TurnComplete
}

// LiveCallbacks receives the events of an open live session. All four are required.
type LiveCallbacks struct {
	OnOpen    func()
	OnMessage func(LiveServerEvent)
	OnError   func(error)
	OnClose   func()
}

// Valid reports whether every callback is set.
func (c LiveCallbacks) Valid() bool {
	return c.OnOpen != nil && c.OnMessage != nil && c.OnError != nil && c.OnClose != nil
}

// LiveSession is an open bidirectional audio channel to the remote host.
type LiveSession interface {
	// SendAudioChunk queues one microphone chunk. It never blocks on the network.
	SendAudioChunk(chunk AudioBlob)
	// Close ends the session. Safe to call more than once.
	Close() error
}
