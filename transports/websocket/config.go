package websocket

import (
	"time"

	"triviahost/core"
)

// Config holds the configuration of the browser transport.
type Config struct {
	// Listen address of the HTTP server
	Addr string `json:"addr"`

	// WebSocket endpoint path
	Path string `json:"path"`

	// Read buffer size for WebSocket connections (bytes)
	ReadBufferSize int `json:"read_buffer_size"`

	// Write buffer size for WebSocket connections (bytes)
	WriteBufferSize int `json:"write_buffer_size"`

	// Maximum message size (bytes)
	MaxMessageSize int64 `json:"max_message_size"`

	// Microphone sample rate assumed until the client says hello (Hz)
	DefaultInputSampleRate int `json:"default_input_sample_rate"`

	// Frames buffered per open microphone stream before dropping
	FrameBuffer int `json:"frame_buffer"`

	// Commands buffered before the reader blocks
	CommandBuffer int `json:"command_buffer"`

	// Deadline of a single write
	WriteTimeout time.Duration `json:"write_timeout"`

	// Directory for per-session JSONL logs; empty disables them
	LogDir string `json:"log_dir"`

	// Host catalog advertised to clients
	Personalities []core.Personality `json:"-"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Addr:                   ":8080",
		Path:                   "/ws",
		ReadBufferSize:         4096,
		WriteBufferSize:        4096,
		MaxMessageSize:         1 << 20,
		DefaultInputSampleRate: 48000,
		FrameBuffer:            64,
		CommandBuffer:          16,
		WriteTimeout:           5 * time.Second,
		Personalities:          core.DefaultPersonalities(),
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Addr == "" {
		out.Addr = d.Addr
	}
	if out.Path == "" {
		out.Path = d.Path
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.DefaultInputSampleRate <= 0 {
		out.DefaultInputSampleRate = d.DefaultInputSampleRate
	}
	if out.FrameBuffer <= 0 {
		out.FrameBuffer = d.FrameBuffer
	}
	if out.CommandBuffer <= 0 {
		out.CommandBuffer = d.CommandBuffer
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.Personalities == nil {
		out.Personalities = d.Personalities
	}
	return &out
}
