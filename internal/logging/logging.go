// Package logging builds the loggers used by dvrarchive: a structured slog
// logger for operational messages and an hclog logger for per-position
// progress lines.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// New returns a structured logger with the given level and format.
// level: "debug", "info", "warn", "error" (default "info").
// format: "json" or "text" (default "text").
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level)}

	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h)
}

// NewProgress returns the logger that reports segment progress. Callers derive
// one sub-logger per position with Named.
func NewProgress(level, format string, w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "archive",
		Level:      hclog.LevelFromString(level),
		Output:     w,
		JSONFormat: strings.ToLower(format) == "json",
		Color:      hclog.AutoColor,
		TimeFormat: "15:04:05.000",
	})
}

// Discard returns loggers that drop everything, for tests.
func Discard() (*slog.Logger, hclog.Logger) {
	return slog.New(slog.NewTextHandler(io.Discard, nil)), hclog.NewNullLogger()
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
