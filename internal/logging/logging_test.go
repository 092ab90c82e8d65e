package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range cases {
		got, ok := ParseLevel(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	got, ok := ParseLevel("chatty")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, got)
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelWarn)
	log.Info("dropped")
	log.Warn("clipped", "voxels", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "clipped", rec["msg"])
	assert.Equal(t, float64(3), rec["voxels"])
}

func TestOutputTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patchwarp.log")
	var console bytes.Buffer
	w, closer := Output(&console, path, 1, 1)
	Logger(w, false, slog.LevelInfo).Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Equal(t, console.String(), string(data))
}

func TestOutputConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	w, closer := Output(&console, "", 1, 1)
	assert.Same(t, &console, w)
	assert.NoError(t, closer.Close())
}
