package factories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"triviahost/core"
	"triviahost/handlers/transport"
	"triviahost/transports/console"
	"triviahost/transports/device"
	"triviahost/transports/websocket"

	"github.com/bytedance/sonic"
)

// WebSocketProviderConfig holds JSON-serialisable settings for the browser transport.
type WebSocketProviderConfig struct {
	Addr                   string `json:"addr,omitempty"`
	Path                   string `json:"path,omitempty"`
	ReadBufferSize         int    `json:"read_buffer_size,omitempty"`
	WriteBufferSize        int    `json:"write_buffer_size,omitempty"`
	MaxMessageSize         int64  `json:"max_message_size,omitempty"`
	DefaultInputSampleRate int    `json:"default_input_sample_rate,omitempty"`
	FrameBuffer            int    `json:"frame_buffer,omitempty"`
	WriteTimeoutMs         int    `json:"write_timeout_ms,omitempty"`
	LogDir                 string `json:"log_dir,omitempty"`
}

// ConsoleProviderConfig holds settings for a terminal session on the local
// sound card.
type ConsoleProviderConfig struct {
	OutputSampleRate int `json:"output_sample_rate,omitempty"`
	FramesPerBuffer  int `json:"frames_per_buffer,omitempty"`
	FrameBuffer      int `json:"frame_buffer,omitempty"`
}

// TransportFactoryConfig selects and configures a transport provider.
// Set exactly one provider field.
type TransportFactoryConfig struct {
	WebSocketConfig *WebSocketProviderConfig `json:"websocket,omitempty"`
	ConsoleConfig   *ConsoleProviderConfig   `json:"console,omitempty"`
}

// DefaultTransportFactoryConfig returns a TransportFactoryConfig pre-filled
// with browser transport defaults.
func DefaultTransportFactoryConfig() TransportFactoryConfig {
	base := websocket.DefaultConfig()
	return TransportFactoryConfig{
		WebSocketConfig: &WebSocketProviderConfig{
			Addr: base.Addr,
			Path: base.Path,
		},
	}
}

// TransportFactoryConfigFromJSON parses a JSON blob into a TransportFactoryConfig.
// It detects which provider key is present in the JSON and only populates that
// provider's config, so the other remains nil and GetProvider selects the
// correct one.
func TransportFactoryConfigFromJSON(data []byte) (TransportFactoryConfig, error) {
	var raw map[string]json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return TransportFactoryConfig{}, fmt.Errorf("transport factory config: %w", err)
	}

	var cfg TransportFactoryConfig
	if _, ok := raw["console"]; ok {
		cfg.ConsoleConfig = &ConsoleProviderConfig{}
	} else {
		cfg = DefaultTransportFactoryConfig()
	}

	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return TransportFactoryConfig{}, fmt.Errorf("transport factory config: %w", err)
	}
	return cfg, nil
}

// ConsoleTransportConfig switches the config to a terminal session, keeping
// any console settings already present.
func (c TransportFactoryConfig) ConsoleTransportConfig() TransportFactoryConfig {
	if c.ConsoleConfig != nil {
		return TransportFactoryConfig{ConsoleConfig: c.ConsoleConfig}
	}
	return TransportFactoryConfig{ConsoleConfig: &ConsoleProviderConfig{}}
}

// GetProvider constructs the transport provider selected by this config.
func (c TransportFactoryConfig) GetProvider(personalities []core.Personality, logger *core.Logger) (transport.ITransportProvider, error) {
	if c.WebSocketConfig != nil && c.ConsoleConfig != nil {
		return nil, errors.New("TransportFactoryConfig: more than one provider config specified")
	}
	if c.WebSocketConfig != nil {
		return c.buildWebSocketProvider(personalities, logger), nil
	}
	if c.ConsoleConfig != nil {
		return c.buildConsoleProvider(personalities, logger)
	}
	return nil, errors.New("TransportFactoryConfig: no provider config specified")
}

func (c TransportFactoryConfig) buildWebSocketProvider(personalities []core.Personality, logger *core.Logger) *websocket.Provider {
	cfg := websocket.DefaultConfig()
	wc := c.WebSocketConfig
	if wc.Addr != "" {
		cfg.Addr = wc.Addr
	}
	if wc.Path != "" {
		cfg.Path = wc.Path
	}
	if wc.ReadBufferSize != 0 {
		cfg.ReadBufferSize = wc.ReadBufferSize
	}
	if wc.WriteBufferSize != 0 {
		cfg.WriteBufferSize = wc.WriteBufferSize
	}
	if wc.MaxMessageSize != 0 {
		cfg.MaxMessageSize = wc.MaxMessageSize
	}
	if wc.DefaultInputSampleRate != 0 {
		cfg.DefaultInputSampleRate = wc.DefaultInputSampleRate
	}
	if wc.FrameBuffer != 0 {
		cfg.FrameBuffer = wc.FrameBuffer
	}
	if wc.WriteTimeoutMs != 0 {
		cfg.WriteTimeout = time.Duration(wc.WriteTimeoutMs) * time.Millisecond
	}
	cfg.LogDir = wc.LogDir
	if len(personalities) > 0 {
		cfg.Personalities = personalities
	}
	return websocket.NewProvider(cfg, logger)
}

// ConsoleProvider is a console.Provider that owns the sound card it plays on.
type ConsoleProvider struct {
	*console.Provider
	devices *device.System
}

func (p *ConsoleProvider) Stop() error {
	return errors.Join(p.Provider.Stop(), p.devices.Close())
}

func (c TransportFactoryConfig) buildConsoleProvider(personalities []core.Personality, logger *core.Logger) (*ConsoleProvider, error) {
	cc := c.ConsoleConfig
	devices, err := device.Open(device.Config{
		OutputSampleRate: cc.OutputSampleRate,
		FramesPerBuffer:  cc.FramesPerBuffer,
		FrameBuffer:      cc.FrameBuffer,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("console transport: %w", err)
	}
	provider := console.NewProvider(console.Config{
		Personalities: personalities,
		Sink:          devices.Sink(),
		Microphone:    devices.Microphone(),
	}, logger)
	return &ConsoleProvider{Provider: provider, devices: devices}, nil
}
