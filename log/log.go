package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log wraps a zerolog.Logger so callers can pass the concrete logger
// around while still using the fluent event API directly.
type Log struct {
	zerolog.Logger
}

// New creates a logger with the given level. When pretty is true the
// output is rendered through the console writer, otherwise JSON.
func New(level string, pretty bool) *Log {
	lvl := ParseLevel(level)

	var logger zerolog.Logger
	if pretty {
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	}

	return &Log{Logger: logger}
}

// ParseLevel maps a level string to a zerolog level, defaulting to info
// on unknown input.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a disabled logger for tests and optional dependencies.
func Nop() *Log {
	return &Log{Logger: zerolog.Nop()}
}
