// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package xrloop drives an XR runtime session and a wgpu/hal device through
// the immersive frame loop.
//
// # Overview
//
// A [Loop] interleaves four strictly ordered activities on one goroutine:
//
//   - runtime lifecycle events (READY, STOPPING, EXITING, ...) drained each
//     iteration and applied to the session state machine
//   - frame pacing: WaitFrame, BeginFrame and EndFrame around every frame
//   - swapchain images: acquire, wait, GPU copy from a staging buffer, release
//   - composition: one stereo projection layer per frame
//
// No frame call reaches the runtime unless the session is running, and at
// most one swapchain image is acquired at any time.
//
// # Quick Start
//
//	rt := xrsim.New(xrsim.DefaultConfig())
//	gfx, err := xrloop.OpenGraphics(xrloop.BackendNoop)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer gfx.Close()
//
//	loop, err := xrloop.New(rt, gfx, xrloop.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer loop.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := loop.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Content
//
// Every image is filled with a single color. The payload is written once into
// a staging buffer before the loop starts; the first [Config.WarmupFrames]
// frames copy it into swapchain images, later frames only compose.
//
// # Errors
//
// Setup failures are returned by [New]. During the loop, image wait
// timeouts, a busy GPU and failed composition degrade the frame and are
// logged; device loss and command submission failures end [Loop.Run]. See
// [IsFatal].
//
// # Logging
//
// The package is silent by default. Call [SetLogger] to route lifecycle and
// per-frame diagnostics to a [log/slog] handler.
package xrloop

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
