// Package log provides slog setup helpers shared by the maestro binaries.
// Logs go to stderr as JSON so command output on stdout stays parseable.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide default logger at the given level.
// Unrecognized levels fall back to info.
func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})))
}

func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithModule derives a logger tagged with the component name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
