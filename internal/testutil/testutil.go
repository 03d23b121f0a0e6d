// Package testutil provides testing utilities for barecov.
package testutil

import (
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/barecov/barecov/internal/logging"
)

// NewTestLogger creates a test logger that discards output.
// Use NewTestLoggerWithOutput to log to t.Log().
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return logging.New(io.Discard, "debug")
}

// NewTestLoggerWithOutput creates a test logger that logs to t.Log().
func NewTestLoggerWithOutput(t *testing.T) zerolog.Logger {
	t.Helper()
	return logging.New(&testLogWriter{t: t}, "debug")
}

// testLogWriter wraps testing.T to implement io.Writer.
type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (n int, err error) {
	w.t.Log(string(p))
	return len(p), nil
}
