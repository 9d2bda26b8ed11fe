package logger

import (
	"io"
	"log/slog"
	"strings"
)

func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup creates a JSON logger writing to out and makes it the default one.
// Unknown levels fall back to info with a warning.
func Setup(level string, out io.Writer) *slog.Logger {
	lvl, ok := ParseLevel(level)
	log := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
	if !ok {
		log.Warn("invalid log level configured, using info", "configuredLevel", level)
	}
	slog.SetDefault(log)
	return log
}

func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
