package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := map[string]LogLevel{
		"":        Info,
		"debug":   Debug,
		"TRACE":   Debug,
		" info ":  Info,
		"warning": Warn,
		"Error":   Error,
		"fatal":   Fatal,
	}

	for raw, expected := range tests {
		level, err := Parse(raw)
		require.NoError(t, err, raw)
		require.Equal(t, expected, level, raw)
	}

	_, err := Parse("verbose")
	require.Error(t, err)
	require.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("blockdb", Warn, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("lease on '%s' expired", "/users/bob")

	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
	require.Contains(t, buf.String(), "WARN  [blockdb] lease on '/users/bob' expired")
}

func TestLogger_NamedAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("blockdb", Debug, &buf).Named("server")

	logger.With("path", "/a").With("operation", "readFromBlock").Info("done")

	line := strings.TrimSpace(buf.String())
	require.Contains(t, line, "[blockdb/server] done")
	require.True(t, strings.HasSuffix(line, "operation=readFromBlock path=/a"), line)

	// With never leaks fields into the parent
	buf.Reset()
	logger.Info("plain")
	require.NotContains(t, buf.String(), "path=")
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("blockdb", Info, &buf)
	logger.JSON = true

	logger.Named("lock").With("holder", "h1").Info("acquired %d", 1)

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "INFO", entry.Level)
	require.Equal(t, "blockdb/lock", entry.Component)
	require.Equal(t, "acquired 1", entry.Message)
	require.Equal(t, map[string]any{"holder": "h1"}, entry.Fields)
}
