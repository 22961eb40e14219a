// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrloop

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by loops created afterwards.
// By default, xrloop produces no log output. Pass nil to restore the
// default silent behavior.
//
// SetLogger is safe for concurrent use. A loop keeps the logger it was
// created with; use [WithLogger] to give one loop its own logger.
//
// Log levels used by xrloop:
//   - [slog.LevelDebug]: per-frame diagnostics (display times, image indices, thumbstick)
//   - [slog.LevelInfo]: lifecycle events (session state changes, setup summary)
//   - [slog.LevelWarn]: degraded frames (image wait timeout, GPU busy, end frame failure)
//   - [slog.LevelError]: conditions that end the loop (device or instance loss)
//
// Example:
//
//	xrloop.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
