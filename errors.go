// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrloop

import (
	"errors"

	"github.com/gogpu/xrloop/internal/lifecycle"
	"github.com/gogpu/xrloop/internal/submit"
	"github.com/gogpu/xrloop/xr"
)

// Errors returned by Loop.
var (
	// ErrClosed is returned when using a loop after Close.
	ErrClosed = errors.New("xrloop: loop closed")

	// ErrShutdownTimeout is returned by Run when the session did not reach
	// EXITING within Config.ShutdownTimeout after shutdown started.
	ErrShutdownTimeout = errors.New("xrloop: shutdown timed out")

	// ErrInstanceLossPending is returned by Step and Run once the runtime
	// announced that the instance is going away.
	ErrInstanceLossPending = lifecycle.ErrInstanceLossPending

	// ErrDeviceLost is returned by Step and Run when the GPU stopped
	// completing work.
	ErrDeviceLost = submit.ErrDeviceLost
)

// IsFatal reports whether err ends the loop. Image wait timeouts and a busy
// GPU only degrade a frame.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !submit.IsTransient(err) && !errors.Is(err, xr.ErrTimeoutExpired)
}
