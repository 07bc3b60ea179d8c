package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))

	assert.Equal(t, slog.LevelWarn, parseLevel(" WARN "), "level parsing is forgiving about case and spacing")
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"), "unknown levels fall back to info")
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestWithModule(t *testing.T) {
	var buf bytes.Buffer

	previous := slog.Default()
	defer slog.SetDefault(previous)

	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	WithModule("registry").Info("provider registered")

	assert.Contains(t, buf.String(), `"module":"registry"`)
	assert.Contains(t, buf.String(), "provider registered")
}
