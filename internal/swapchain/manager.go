// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package swapchain tracks the acquire/wait/release protocol of a runtime
// swapchain so that at most one image is outstanding at any time.
package swapchain

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrloop/xr"
)

// Errors returned by Manager.
var (
	// ErrImageOutstanding is returned by Acquire while an image is still
	// acquired or in flight.
	ErrImageOutstanding = errors.New("swapchain: image already outstanding")

	// ErrNoImage is returned by Wait and Release without an acquired image.
	ErrNoImage = errors.New("swapchain: no image acquired")

	// ErrNotReady is returned by Release before a successful Wait.
	ErrNotReady = errors.New("swapchain: image not ready")
)

// ImageState is the state of the outstanding image.
type ImageState int

const (
	// ImageFree means no image is held by the application.
	ImageFree ImageState = iota

	// ImageAcquired means an index was returned but the image may still be
	// in use by the compositor.
	ImageAcquired

	// ImageReady means WaitImage succeeded and the image may be written.
	ImageReady

	// ImageInFlight means GPU work writing the image was submitted.
	ImageInFlight
)

// String returns the string representation of ImageState.
func (s ImageState) String() string {
	switch s {
	case ImageFree:
		return "free"
	case ImageAcquired:
		return "acquired"
	case ImageReady:
		return "ready"
	case ImageInFlight:
		return "in_flight"
	default:
		return fmt.Sprintf("ImageState(%d)", int(s))
	}
}

// Manager owns the application side of a swapchain.
type Manager struct {
	sc     xr.Swapchain
	images []hal.Texture
	log    *slog.Logger

	state ImageState
	index uint32

	acquires uint64
	releases uint64
	timeouts uint64
}

// New enumerates the images of sc.
func New(sc xr.Swapchain, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	images, err := sc.EnumerateImages()
	if err != nil {
		return nil, fmt.Errorf("swapchain: enumerate images: %w", err)
	}
	if len(images) == 0 {
		return nil, errors.New("swapchain: runtime returned no images")
	}
	log.Debug("swapchain images enumerated", "count", len(images))
	return &Manager{sc: sc, images: images, log: log}, nil
}

// Len returns the number of images in the ring.
func (m *Manager) Len() int { return len(m.images) }

// State returns the state of the outstanding image.
func (m *Manager) State() ImageState { return m.state }

// Pending reports whether an image was acquired but its wait has not
// succeeded yet. The next frame should retry Wait instead of acquiring.
func (m *Manager) Pending() bool { return m.state == ImageAcquired }

// Acquire asks the runtime for the next image.
func (m *Manager) Acquire() (uint32, error) {
	if m.state != ImageFree {
		return 0, fmt.Errorf("%w: image %d is %s", ErrImageOutstanding, m.index, m.state)
	}
	idx, err := m.sc.AcquireImage()
	if err != nil {
		return 0, fmt.Errorf("swapchain: acquire image: %w", err)
	}
	if int(idx) >= len(m.images) {
		return 0, fmt.Errorf("swapchain: runtime acquired image %d of %d", idx, len(m.images))
	}
	m.state = ImageAcquired
	m.index = idx
	m.acquires++
	return idx, nil
}

// Wait blocks until the acquired image may be written. On
// [xr.ErrTimeoutExpired] the image stays acquired and Wait may be retried.
func (m *Manager) Wait(timeout xr.Duration) error {
	if m.state != ImageAcquired {
		return fmt.Errorf("%w: wait in state %s", ErrNoImage, m.state)
	}
	if err := m.sc.WaitImage(timeout); err != nil {
		if errors.Is(err, xr.ErrTimeoutExpired) {
			m.timeouts++
			m.log.Warn("swapchain image wait timed out", "index", m.index, "timeout", timeout.Std())
		}
		return fmt.Errorf("swapchain: wait image %d: %w", m.index, err)
	}
	m.state = ImageReady
	return nil
}

// Target returns the image that may be written. It is only valid between a
// successful Wait and Release.
func (m *Manager) Target() (uint32, hal.Texture, error) {
	if m.state != ImageReady && m.state != ImageInFlight {
		return 0, nil, fmt.Errorf("%w: image %d is %s", ErrNotReady, m.index, m.state)
	}
	return m.index, m.images[m.index], nil
}

// MarkInFlight records that GPU work writing the image was submitted.
func (m *Manager) MarkInFlight() {
	if m.state == ImageReady {
		m.state = ImageInFlight
	}
}

// Release hands the image back to the runtime. It must follow a successful
// Wait and all GPU work touching the image.
func (m *Manager) Release() error {
	switch m.state {
	case ImageFree:
		return ErrNoImage
	case ImageAcquired:
		return fmt.Errorf("%w: release of image %d before wait", ErrNotReady, m.index)
	}
	if err := m.sc.ReleaseImage(); err != nil {
		return fmt.Errorf("swapchain: release image %d: %w", m.index, err)
	}
	m.state = ImageFree
	m.releases++
	return nil
}

// Stats returns acquire, release and wait-timeout counts.
func (m *Manager) Stats() (acquires, releases, timeouts uint64) {
	return m.acquires, m.releases, m.timeouts
}

// Destroy releases the runtime swapchain.
func (m *Manager) Destroy() error {
	if m.state != ImageFree {
		m.log.Warn("destroying swapchain with outstanding image", "index", m.index, "state", m.state)
	}
	m.images = nil
	return m.sc.Destroy()
}
