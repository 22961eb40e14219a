// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrloop

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan backend
)

// Backends accepted by [OpenGraphics].
const (
	BackendNoop   = "noop"
	BackendVulkan = "vulkan"
)

// ErrNoAdapter is returned when a backend exposes no GPU adapter.
var ErrNoAdapter = errors.New("xrloop: no GPU adapters found")

// Graphics is the device the runtime renders through. Swapchain images are
// created on Device and copies are submitted to Queue.
type Graphics struct {
	Device hal.Device
	Queue  hal.Queue

	// Adapter names the adapter the device was opened on, if known.
	Adapter string

	// Format is the host's preferred surface format, or Undefined.
	Format gputypes.TextureFormat

	instance hal.Instance
	owned    bool
}

// GraphicsFromProvider borrows the device of a host application. The
// provider must expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. Close does not destroy a borrowed device.
func GraphicsFromProvider(provider gpucontext.DeviceProvider) (*Graphics, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("xrloop: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("xrloop: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("xrloop: provider HalQueue is not hal.Queue")
	}
	return &Graphics{Device: device, Queue: queue, Format: provider.SurfaceFormat()}, nil
}

// OpenGraphics opens a device on the named backend. The noop backend
// accepts every call and is meant for headless runs and tests.
func OpenGraphics(backend string) (*Graphics, error) {
	var (
		instance hal.Instance
		err      error
	)
	switch backend {
	case BackendNoop:
		api := noop.API{}
		instance, err = api.CreateInstance(nil)
	case BackendVulkan:
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, errors.New("xrloop: vulkan backend not available")
		}
		instance, err = b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	default:
		return nil, fmt.Errorf("xrloop: unknown graphics backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("xrloop: create %s instance: %w", backend, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w (%s)", ErrNoAdapter, backend)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("xrloop: open device: %w", err)
	}
	Logger().Info("graphics device opened", "backend", backend, "adapter", selected.Info.Name)
	return &Graphics{
		Device:   openDev.Device,
		Queue:    openDev.Queue,
		Adapter:  selected.Info.Name,
		instance: instance,
		owned:    true,
	}, nil
}

// Close destroys a device opened by OpenGraphics. It is a no-op for
// borrowed devices.
func (g *Graphics) Close() {
	if !g.owned {
		return
	}
	if g.Device != nil {
		g.Device.Destroy()
		g.Device = nil
	}
	if g.instance != nil {
		g.instance.Destroy()
		g.instance = nil
	}
	g.Queue = nil
	g.owned = false
}
