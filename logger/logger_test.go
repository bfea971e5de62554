package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestConsoleLevelFilter(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = "WARN"

	log, closer, err := build(cfg, &out)
	require.NoError(t, err)
	defer closer.Close()

	log.Info("hidden")
	log.Warn("receive: I/O fault", "error", "connection reset")

	assert.NotContains(t, out.String(), "hidden", "INFO line should be filtered at WARN level")
	assert.Contains(t, out.String(), "connection reset")
}

func TestFileAndConsole(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "client.log")
	cfg := DefaultConfig()
	cfg.FileEnabled = true
	cfg.FilePath = path
	cfg.FileFormat = "json"

	log, closer, err := build(cfg, &out)
	require.NoError(t, err)
	log.With("session", "abc").Info("connected", "addr", "localhost:25001")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"addr":"localhost:25001"`)
	assert.Contains(t, string(data), `"session":"abc"`)
	assert.Contains(t, out.String(), "addr=localhost:25001")
}

func TestNoHandlers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsoleEnabled = false

	log, _, err := build(cfg, nil)
	require.NoError(t, err)
	log.Error("goes nowhere")
}
