package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// SessionMetadata is the first line of every session log file.
type SessionMetadata struct {
	SessionID  string `json:"session_id"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	Transport  string `json:"transport,omitempty"`
	StartedAt  string `json:"started_at"`
}

// LogEntry is one line of a session log after the metadata.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// LogWriter receives the entries of one session.
type LogWriter interface {
	Write(level, msg string, attrs map[string]interface{})
	Close()
}

// SessionLogWriter appends a game session's log to <dir>/<session>.jsonl.
// While the session runs, a <session>.active marker sits next to it.
type SessionLogWriter struct {
	mu      sync.Mutex
	file    *os.File
	dir     string
	id      string
	started time.Time
	entries int
}

func NewSessionLogWriter(dir string, meta SessionMetadata) (*SessionLogWriter, error) {
	if meta.SessionID == "" {
		return nil, fmt.Errorf("session log: empty session id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session log: mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, meta.SessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("session log: %w", err)
	}

	started := time.Now().UTC()
	if meta.StartedAt == "" {
		meta.StartedAt = started.Format(time.RFC3339)
	}
	header, err := sonic.Marshal(meta)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("session log: %w", err)
	}
	if _, err := f.Write(append(header, '\n')); err != nil {
		f.Close()
		return nil, fmt.Errorf("session log: %w", err)
	}

	if marker, err := os.Create(filepath.Join(dir, meta.SessionID+".active")); err == nil {
		marker.Close()
	}

	return &SessionLogWriter{file: f, dir: dir, id: meta.SessionID, started: started}, nil
}

// Path returns the location of the log file.
func (w *SessionLogWriter) Path() string {
	return filepath.Join(w.dir, w.id+".jsonl")
}

func (w *SessionLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	line, err := sonic.Marshal(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     stringifyErrors(attrs),
	})
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return
	}
	if _, err := w.file.Write(append(line, '\n')); err == nil {
		w.entries++
	}
}

// Close appends a closing entry with the session duration, closes the file
// and removes the .active marker. Safe to call more than once.
func (w *SessionLogWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return
	}

	closing, err := sonic.Marshal(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "INFO",
		Message:   "session log closed",
		Attrs: map[string]interface{}{
			"entries":     w.entries,
			"duration_ms": time.Since(w.started).Milliseconds(),
		},
	})
	if err == nil {
		_, _ = w.file.Write(append(closing, '\n'))
	}
	_ = w.file.Close()
	w.file = nil
	_ = os.Remove(filepath.Join(w.dir, w.id+".active"))
}

// NewSessionLogger returns a Logger that writes to base and to writer. Loggers
// derived with With keep writing to both.
func NewSessionLogger(base *Logger, writer LogWriter) *Logger {
	attrs := make(map[string]interface{})
	if base != nil {
		for k, v := range base.attrs {
			attrs[k] = v
		}
	}
	return &Logger{
		handlerFunc: func(level string, msg string, attrs map[string]interface{}) {
			if base != nil && base.handlerFunc != nil {
				base.handlerFunc(level, msg, attrs)
			}
			writer.Write(level, msg, attrs)
		},
		attrs: attrs,
	}
}

// error values marshal to {} otherwise.
func stringifyErrors(attrs map[string]interface{}) map[string]interface{} {
	if len(attrs) == 0 {
		return attrs
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}
