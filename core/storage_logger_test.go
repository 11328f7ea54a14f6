package core

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestSessionLogWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSessionLogWriter(dir, SessionMetadata{SessionID: "abc", Transport: "websocket"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "abc.active"))

	var seen []string
	base := NewLogger(func(level, msg string, attrs map[string]interface{}) {
		seen = append(seen, msg)
	}).With(map[string]interface{}{"component": "ws"})

	logger := NewSessionLogger(base, w).With(map[string]interface{}{"round": 1})
	logger.Info("question asked", "error", errors.New("boom"))
	w.Close()
	w.Close()

	assert.Equal(t, []string{"question asked"}, seen)
	assert.NoFileExists(t, filepath.Join(dir, "abc.active"))

	lines := readLines(t, w.Path())
	require.Len(t, lines, 3)

	var meta SessionMetadata
	require.NoError(t, sonic.UnmarshalString(lines[0], &meta))
	assert.Equal(t, "abc", meta.SessionID)
	assert.Equal(t, "websocket", meta.Transport)
	assert.NotEmpty(t, meta.StartedAt)

	var entry LogEntry
	require.NoError(t, sonic.UnmarshalString(lines[1], &entry))
	assert.Equal(t, "question asked", entry.Message)
	assert.Equal(t, "boom", entry.Attrs["error"])
	assert.Equal(t, "ws", entry.Attrs["component"])
	assert.EqualValues(t, 1, entry.Attrs["round"])

	var closing LogEntry
	require.NoError(t, sonic.UnmarshalString(lines[2], &closing))
	assert.Equal(t, "session log closed", closing.Message)
	assert.EqualValues(t, 1, closing.Attrs["entries"])
}

func TestSessionLogWriterRequiresID(t *testing.T) {
	_, err := NewSessionLogWriter(t.TempDir(), SessionMetadata{})
	assert.Error(t, err)
}
