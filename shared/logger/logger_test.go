package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Formats and levels configured by the api, worker and printctl binaries.
func TestNew_ServiceLevels(t *testing.T) {
	tests := []struct {
		level  string
		format string
		wantLn int
		first  string
	}{
		{level: "debug", format: "json", wantLn: 4, first: "DEBUG"},
		{level: "info", format: "json", wantLn: 3, first: "INFO"},
		{level: "warn", format: "json", wantLn: 2, first: "WARN"},
		{level: "error", format: "json", wantLn: 1, first: "ERROR"},
		{level: "debug", format: "console", wantLn: 4, first: "DBG"},
		{level: "info", format: "console", wantLn: 3, first: "INF"},
		{level: "warn", format: "console", wantLn: 2, first: "WRN"},
		{level: "error", format: "console", wantLn: 1, first: "ERR"},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.level, func(t *testing.T) {
			output := &bytes.Buffer{}
			logger, err := New(&Config{Level: tt.level, Format: tt.format, writer: output})
			require.NoError(t, err)

			logger.Debug("job claimed", slog.String("job_id", "j1"))
			logger.Info("job dispatched", slog.String("job_id", "j1"))
			logger.Warn("gateway slow", slog.String("job_id", "j1"))
			logger.Error("gateway rejected", slog.String("job_id", "j1"))

			lines := strings.Split(strings.TrimSpace(output.String()), "\n")
			require.Len(t, lines, tt.wantLn)

			if tt.format == "console" {
				assert.Contains(t, lines[0], tt.first)
				assert.Contains(t, lines[0], "job_id")
				assert.Contains(t, lines[0], "j1")
				return
			}

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
			assert.Equal(t, tt.first, entry["level"])
			assert.Equal(t, "j1", entry["job_id"])
		})
	}
}

func TestNew_Source(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", EnableSource: true, writer: output})
	require.NoError(t, err)

	logger.Info("message with source")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	source, ok := entry["source"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
	assert.NoError(t, logger.Close())
}

func TestNewDiscard(t *testing.T) {
	logger := NewDiscard()
	require.NotNil(t, logger)
	logger.Error("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"DEBUG":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for level, want := range tests {
		assert.Equal(t, want, parseLevel(level), "level %q", level)
	}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	logger, err := New(&Config{Level: "info", Format: "xml", writer: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "unsupported log format")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file", slog.String("job_id", "j1"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"job_id":"j1"`)
}

func TestNew_ConsoleFileHasNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	logger, err := New(&Config{Level: "info", Format: "console", Output: path})
	require.NoError(t, err)

	logger.Info("plain")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plain")
	assert.NotContains(t, string(data), "\x1b[")
}

func TestLogger_Component(t *testing.T) {
	output := &bytes.Buffer{}

	logger, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	logger.Component("dispatch").Info("sent")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	assert.Equal(t, "dispatch", entry["component"])
}
