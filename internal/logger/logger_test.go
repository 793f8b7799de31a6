package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterEmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)

	l.LogBooking("COMMIT", "seat-1", "user=u1")
	l.Warn("queue", "broker down")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "INFO", first.Level)
	assert.Equal(t, "BOOKING", first.Category)
	assert.Equal(t, "[COMMIT] seat-1 - user=u1", first.Message)
	assert.Equal(t, "logger_test.go", first.File)

	var second LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "WARN", second.Level)
	assert.Equal(t, "QUEUE", second.Category)
}

func TestSetLevelDropsLowerEntries(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)
	l.SetLevel(WARN)

	l.Debug("X", "hidden")
	l.Info("X", "hidden")
	l.Error("X", "shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "shown")
}

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("X", "nothing")
		l.LogQueue("PUBLISH", "q", "m")
		l.SetLevel(ERROR)
		l.Close()
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}
