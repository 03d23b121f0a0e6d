// Package logging constructs the zerolog loggers used across barecov.
//
// Nothing here assumes an operating system: the writer is always injected
// and the default everywhere is the no-op logger, so freestanding targets
// pay nothing.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New creates a logger writing structured events to w at the given level
// (debug, info, warn, error; anything else means info).
func New(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl := zerolog.InfoLevel
	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Nop returns the disabled logger, the default for every component.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
