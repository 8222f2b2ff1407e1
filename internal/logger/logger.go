// Package logger provides structured logging setup for loopwarden.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/loopwarden/loopwarden/internal/config"
)

// New creates a *slog.Logger from the given Logging config. Output is JSON
// to stderr with a "service" attribute on every record; stdout is reserved
// for hook verdicts.
func New(cfg config.Logging) *slog.Logger {
	level := parseLevel(cfg.Level)

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(contextHandler{Handler: handler}).With("service", cfg.Service)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
