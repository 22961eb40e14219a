// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrloop

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Option configures a Loop during creation.
//
// Example:
//
//	loop, err := xrloop.New(rt, gfx, cfg,
//		xrloop.WithLogger(logger),
//		xrloop.WithFrameLimit(600),
//	)
type Option func(*options)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// options holds optional configuration for Loop creation.
type options struct {
	log        *slog.Logger
	sleep      SleepFunc
	frameLimit int
	runID      uuid.UUID
}

// defaultOptions returns the default loop options.
func defaultOptions() options {
	return options{
		log:   nil, // Will be set to Logger() if nil
		sleep: sleepContext,
	}
}

// WithLogger sets the logger of one loop instead of the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithSleep replaces the idle sleep. Tests use it to run without delays.
func WithSleep(fn SleepFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithFrameLimit makes Run start a graceful shutdown after n paced frames,
// as if its context had been canceled. Frames whose EndFrame the runtime
// rejected count too. Zero means no limit.
func WithFrameLimit(n int) Option {
	return func(o *options) {
		o.frameLimit = n
	}
}

// WithRunID sets the identifier attached to every log record of the loop.
// By default a time-ordered UUID is generated.
func WithRunID(id uuid.UUID) Option {
	return func(o *options) {
		o.runID = id
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
