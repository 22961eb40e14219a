// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrsim

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrloop/xr"
)

// imageState is the simulated state of the acquired image.
type imageState int

const (
	imageAcquired imageState = iota + 1
	imageWaited
)

// Swapchain is a simulated swapchain. Images are allocated on the graphics
// device handed to CreateSession; with a nil device the ring still works but
// EnumerateImages returns nil textures.
type Swapchain struct {
	rt     *Runtime
	info   xr.SwapchainCreateInfo
	device hal.Device
	images []hal.Texture

	next     int
	acquired int
	state    imageState

	acquires  int
	releases  int
	destroyed bool
}

var _ xr.Swapchain = (*Swapchain)(nil)

func (sc *Swapchain) allocate(device hal.Device, count int) error {
	sc.device = device
	sc.images = make([]hal.Texture, count)
	if device == nil {
		return nil
	}
	for i := range sc.images {
		tex, err := device.CreateTexture(imageDescriptor(fmt.Sprintf("xrsim_swapchain_%d", i), sc.info))
		if err != nil {
			sc.destroyLocked()
			return fmt.Errorf("xrsim: create swapchain image %d: %w", i, err)
		}
		sc.images[i] = tex
	}
	return nil
}

// Info returns the create info the swapchain was built with.
func (sc *Swapchain) Info() xr.SwapchainCreateInfo { return sc.info }

// Acquired returns the index of the acquired image, or -1.
func (sc *Swapchain) Acquired() int {
	sc.rt.mu.Lock()
	defer sc.rt.mu.Unlock()
	return sc.acquired
}

// Counts returns how many acquires and releases succeeded.
func (sc *Swapchain) Counts() (acquires, releases int) {
	sc.rt.mu.Lock()
	defer sc.rt.mu.Unlock()
	return sc.acquires, sc.releases
}

// EnumerateImages implements [xr.Swapchain].
func (sc *Swapchain) EnumerateImages() ([]hal.Texture, error) {
	sc.rt.mu.Lock()
	defer sc.rt.mu.Unlock()
	if err := sc.rt.record(OpEnumerateImages); err != nil {
		return nil, err
	}
	if sc.destroyed {
		return nil, xr.ErrHandleInvalid
	}
	out := make([]hal.Texture, len(sc.images))
	copy(out, sc.images)
	return out, nil
}

// AcquireImage implements [xr.Swapchain]. Images are handed out round-robin.
func (sc *Swapchain) AcquireImage() (uint32, error) {
	sc.rt.mu.Lock()
	defer sc.rt.mu.Unlock()
	if err := sc.rt.record(OpAcquireImage); err != nil {
		return 0, err
	}
	if sc.destroyed {
		return 0, xr.ErrHandleInvalid
	}
	if sc.acquired >= 0 {
		return 0, fmt.Errorf("xrsim: image %d still acquired: %w", sc.acquired, xr.ErrCallOrderInvalid)
	}
	idx := sc.next
	sc.next = (sc.next + 1) % len(sc.images)
	sc.acquired = idx
	sc.state = imageAcquired
	sc.acquires++
	return uint32(idx), nil //nolint:gosec // ring size fits uint32
}

// WaitImage implements [xr.Swapchain]. Injected faults (for example
// [xr.ErrTimeoutExpired]) leave the image acquired.
func (sc *Swapchain) WaitImage(timeout xr.Duration) error {
	sc.rt.mu.Lock()
	defer sc.rt.mu.Unlock()
	if err := sc.rt.record(OpWaitImage); err != nil {
		return err
	}
	if sc.destroyed {
		return xr.ErrHandleInvalid
	}
	if sc.acquired < 0 || sc.state != imageAcquired {
		return fmt.Errorf("xrsim: wait image without acquire: %w", xr.ErrCallOrderInvalid)
	}
	if timeout < 0 {
		return xr.ErrTimeoutExpired
	}
	sc.state = imageWaited
	return nil
}

// ReleaseImage implements [xr.Swapchain].
func (sc *Swapchain) ReleaseImage() error {
	sc.rt.mu.Lock()
	defer sc.rt.mu.Unlock()
	if err := sc.rt.record(OpReleaseImage); err != nil {
		return err
	}
	if sc.destroyed {
		return xr.ErrHandleInvalid
	}
	if sc.acquired < 0 || sc.state != imageWaited {
		return fmt.Errorf("xrsim: release image without wait: %w", xr.ErrCallOrderInvalid)
	}
	sc.acquired = -1
	sc.state = 0
	sc.releases++
	return nil
}

// Destroy implements [xr.Swapchain].
func (sc *Swapchain) Destroy() error {
	sc.rt.mu.Lock()
	defer sc.rt.mu.Unlock()
	if sc.destroyed {
		return xr.ErrHandleInvalid
	}
	sc.destroyLocked()
	return nil
}

func (sc *Swapchain) destroyLocked() {
	if sc.destroyed {
		return
	}
	if sc.device != nil {
		for _, tex := range sc.images {
			if tex != nil {
				sc.device.DestroyTexture(tex)
			}
		}
	}
	sc.images = nil
	sc.destroyed = true
}
