// Package logger provides structured logging configuration for the application.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a structured logger configured from the environment.
//
// LOG_LEVEL options: debug, info, warn, error (default: info)
// LOG_FORMAT options: json, text (default: json)
func New() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location for error and warn levels
		AddSource: level <= slog.LevelWarn,
	}

	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// SetDefault installs the given logger as the process-wide slog default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

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
