// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package xr defines the boundary between the frame loop and an XR runtime.
//
// The types mirror the subset of the OpenXR object model the loop consumes:
// an [Instance] that discovers the system and delivers lifecycle events, a
// [Session] that paces frames and accepts composition layers, a [Swapchain]
// ring of GPU images and a reference [Space] for pose resolution.
//
// Runtime adapters implement these interfaces. Swapchain images are surfaced
// as [hal.Texture] values already wrapped for the graphics device that was
// handed to [Instance.CreateSession], so the loop never deals with native
// image handles.
//
// # Errors
//
// Runtime calls return plain Go errors. Conditions the loop reacts to have
// sentinels: [ErrTimeoutExpired] for an image wait that ran out of time,
// [ErrSessionNotRunning] and [ErrCallOrderInvalid] for protocol violations,
// [ErrSessionLost] and [ErrInstanceLost] for unrecoverable runtime state.
//
// # Thread Safety
//
// The loop drives every object from a single goroutine. Implementations are
// not required to be safe for concurrent use.
package xr
