package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestSetupJSONWithRequestID(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup("debug", "json", &buf)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithFields(ctx, "file", "sales.csv").Debug("loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "loaded", entry["msg"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "sales.csv", entry["file"])
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup("warn", "text", &buf)

	FromContext(context.Background()).Info("hidden")
	assert.Zero(t, buf.Len())
}

func TestOpen(t *testing.T) {
	var fallback bytes.Buffer
	w, closeFn, err := Open("", &fallback)
	require.NoError(t, err)
	assert.Same(t, &fallback, w)
	assert.NoError(t, closeFn())

	w, closeFn, err = Open(filepath.Join(t.TempDir(), "sweeper.log"), &fallback)
	require.NoError(t, err)
	assert.NotNil(t, w)
	assert.NoError(t, closeFn())
}
