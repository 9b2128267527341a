// Package testutil provides test utilities for structured logging.
package testutil

import (
	"log/slog"
	"sync/atomic"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v. Records
// written after the test finished, for example by a server goroutine
// winding down, are dropped.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	w := &testWriter{t: t}
	t.Cleanup(func() { w.done.Store(true) })
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t    testing.TB
	done atomic.Bool
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	if w.done.Load() {
		return len(p), nil
	}
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
