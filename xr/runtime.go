// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Runtime errors.
var (
	// ErrTimeoutExpired is returned by [Swapchain.WaitImage] when the image
	// did not become writable within the timeout.
	ErrTimeoutExpired = errors.New("xr: timeout expired")

	// ErrSessionNotRunning is returned by frame calls outside a running session.
	ErrSessionNotRunning = errors.New("xr: session not running")

	// ErrSessionRunning is returned by BeginSession on a running session.
	ErrSessionRunning = errors.New("xr: session already running")

	// ErrSessionNotReady is returned by BeginSession before the READY state.
	ErrSessionNotReady = errors.New("xr: session not ready")

	// ErrSessionNotStopping is returned by EndSession outside the STOPPING state.
	ErrSessionNotStopping = errors.New("xr: session not stopping")

	// ErrCallOrderInvalid is returned when calls violate the frame or image protocol.
	ErrCallOrderInvalid = errors.New("xr: call order invalid")

	// ErrSessionLost is returned once the session can no longer be used.
	ErrSessionLost = errors.New("xr: session lost")

	// ErrInstanceLost is returned once the instance can no longer be used.
	ErrInstanceLost = errors.New("xr: instance lost")

	// ErrFormFactorUnavailable is returned by System when no matching system exists.
	ErrFormFactorUnavailable = errors.New("xr: form factor unavailable")

	// ErrHandleInvalid is returned when using a destroyed object.
	ErrHandleInvalid = errors.New("xr: handle invalid")
)

// GraphicsBinding hands the application's graphics device to the runtime.
// Swapchain images are created on, or imported into, this device.
type GraphicsBinding struct {
	Device hal.Device
	Queue  hal.Queue
}

// SwapchainUsageFlags describe how swapchain images will be used.
type SwapchainUsageFlags uint32

const (
	SwapchainUsageColorAttachment SwapchainUsageFlags = 1 << iota
	SwapchainUsageDepthStencilAttachment
	SwapchainUsageUnorderedAccess
	SwapchainUsageTransferSrc
	SwapchainUsageTransferDst
	SwapchainUsageSampled
)

// SwapchainCreateInfo parameterizes [Session.CreateSwapchain].
type SwapchainCreateInfo struct {
	UsageFlags  SwapchainUsageFlags
	Format      gputypes.TextureFormat
	SampleCount uint32
	Width       uint32
	Height      uint32
	FaceCount   uint32
	ArraySize   uint32
	MipCount    uint32
}

// Instance is the entry object of a runtime.
type Instance interface {
	// System returns the system for the form factor.
	System(formFactor FormFactor) (SystemID, error)

	// SystemProperties describes a system returned by System.
	SystemProperties(system SystemID) (SystemProperties, error)

	// EnumerateViewConfigurationViews returns one entry per view of the configuration.
	EnumerateViewConfigurationViews(system SystemID, viewConfig ViewConfigurationType) ([]ViewConfigurationView, error)

	// CreateSession creates the session that renders through binding.
	CreateSession(system SystemID, binding GraphicsBinding) (Session, error)

	// PollEvent returns the next queued event without blocking.
	// The boolean is false when the queue is empty.
	PollEvent() (Event, bool, error)
}

// Session negotiates frame timing and composition with the runtime.
type Session interface {
	// BeginSession starts the session once it reached READY.
	BeginSession(viewConfig ViewConfigurationType) error

	// EndSession ends a session in the STOPPING state.
	EndSession() error

	// RequestExitSession asks the runtime to move the session towards EXITING.
	RequestExitSession() error

	// WaitFrame blocks until the runtime wants the next frame.
	WaitFrame() (FrameState, error)

	// BeginFrame marks the start of rendering work for the waited frame.
	BeginFrame() error

	// EndFrame submits composition layers for the begun frame.
	EndFrame(info FrameEndInfo) error

	// CreateSwapchain creates a ring of images on the bound graphics device.
	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)

	// CreateReferenceSpace creates a space with the given origin pose.
	CreateReferenceSpace(kind ReferenceSpaceType, poseInSpace Posef) (Space, error)

	// LocateViews resolves the view poses at info.DisplayTime.
	LocateViews(info ViewLocateInfo) (ViewStateFlags, []View, error)

	// Destroy releases the session.
	Destroy() error
}

// Swapchain is a runtime-managed ring of images.
//
// At most one image may be acquired at a time. Each successful AcquireImage
// must be followed by a successful WaitImage and exactly one ReleaseImage.
type Swapchain interface {
	// EnumerateImages returns every image of the ring in index order.
	EnumerateImages() ([]hal.Texture, error)

	// AcquireImage returns the index of the image the application may write next.
	AcquireImage() (uint32, error)

	// WaitImage blocks until the acquired image is safe to write. It returns
	// [ErrTimeoutExpired] if timeout elapses first; the image stays acquired.
	WaitImage(timeout Duration) error

	// ReleaseImage hands the written image back to the runtime.
	ReleaseImage() error

	// Destroy releases the swapchain and its images.
	Destroy() error
}

// Space is a reference coordinate frame.
type Space interface {
	// Type returns the kind of reference space.
	Type() ReferenceSpaceType

	// Destroy releases the space.
	Destroy() error
}
