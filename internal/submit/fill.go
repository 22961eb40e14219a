// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package submit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// fillShaderWGSL writes one packed RGBA8 word per invocation.
const fillShaderWGSL = `
struct Params {
    color: u32,
    count: u32,
    stride: u32,
    _pad: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> pixels: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.y * params.stride + id.x;
    if (i >= params.count) {
        return;
    }
    pixels[i] = params.color;
}
`

const (
	fillWorkgroupSize = 64
	maxWorkgroups     = 65535
	fillParamsSize    = 16
)

// CompileFillShader compiles the fill shader to SPIR-V words.
func CompileFillShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(fillShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("submit: compile fill shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return code, nil
}

// FillDispatch returns the workgroup grid covering words invocations and the
// row stride in invocations.
func FillDispatch(words uint32) (x, y, stride uint32) {
	groups := (words + fillWorkgroupSize - 1) / fillWorkgroupSize
	if groups == 0 {
		return 0, 0, 0
	}
	x = min(groups, maxWorkgroups)
	y = (groups + x - 1) / x
	return x, y, x * fillWorkgroupSize
}

// PackPixel packs RGBA8 bytes into the word layout the shader writes.
func PackPixel(px [4]byte) uint32 {
	return binary.LittleEndian.Uint32(px[:])
}

// FillPass writes the staging payload on the GPU with a compute shader.
type FillPass struct {
	device hal.Device
	queue  hal.Queue
	log    *slog.Logger

	module   hal.ShaderModule
	bgLayout hal.BindGroupLayout
	layout   hal.PipelineLayout
	pipeline hal.ComputePipeline
	params   hal.Buffer

	pending *fillWork
}

// NewFillPass compiles the fill shader and builds its pipeline.
func NewFillPass(device hal.Device, queue hal.Queue, log *slog.Logger) (*FillPass, error) {
	if device == nil || queue == nil {
		return nil, errors.New("submit: device and queue are required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &FillPass{device: device, queue: queue, log: log}
	if err := p.init(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *FillPass) init() error {
	code, err := CompileFillShader()
	if err != nil {
		return err
	}

	p.module, err = p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "xr_fill_shader",
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return fmt.Errorf("submit: create fill shader module: %w", err)
	}

	p.bgLayout, err = p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "xr_fill_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer: &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: fillParamsSize,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer: &gputypes.BufferBindingLayout{
					Type: gputypes.BufferBindingTypeStorage,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("submit: create fill bind group layout: %w", err)
	}

	p.layout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "xr_fill_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bgLayout},
	})
	if err != nil {
		return fmt.Errorf("submit: create fill pipeline layout: %w", err)
	}

	p.pipeline, err = p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "xr_fill_pipeline",
		Layout: p.layout,
		Compute: hal.ComputeState{
			Module:     p.module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("submit: create fill pipeline: %w", err)
	}

	p.params, err = p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "xr_fill_params",
		Size:  fillParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("submit: create fill params: %w", err)
	}
	return nil
}

// Run fills staging with px and waits for completion. The staging buffer
// counts as written afterwards. A fill that does not finish within timeout
// stays parked and Run returns [ErrGPUBusy]; see [FillPass.Wait].
func (p *FillPass) Run(staging *StagingBuffer, px [4]byte, timeout time.Duration) error {
	if staging.Written() {
		return ErrStagingWritten
	}
	if p.pending != nil {
		return fmt.Errorf("%w: previous fill pending", ErrGPUBusy)
	}
	if timeout <= 0 {
		timeout = DefaultFenceTimeout
	}
	words := uint32(staging.Size() / 4) //nolint:gosec // staging size is bounded by swapchain limits
	x, y, stride := FillDispatch(words)

	params := make([]byte, fillParamsSize)
	binary.LittleEndian.PutUint32(params[0:], PackPixel(px))
	binary.LittleEndian.PutUint32(params[4:], words)
	binary.LittleEndian.PutUint32(params[8:], stride)
	p.queue.WriteBuffer(p.params, 0, params)

	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "xr_fill_bg",
		Layout: p.bgLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.params.NativeHandle(), Size: fillParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: staging.Buffer().NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("submit: create fill bind group: %w", err)
	}
	work := &fillWork{bindGroup: bg, staging: staging}

	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "xr_fill"})
	if err != nil {
		p.free(work)
		return fmt.Errorf("submit: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("xr_fill"); err != nil {
		encoder.DiscardEncoding()
		p.free(work)
		return fmt.Errorf("submit: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "xr_fill"})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(x, y, 1)
	pass.End()

	work.cmdBuf, err = encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		p.free(work)
		return fmt.Errorf("submit: end encoding: %w", err)
	}

	work.fence, err = p.device.CreateFence()
	if err != nil {
		p.free(work)
		return fmt.Errorf("submit: create fence: %w", err)
	}

	if err := p.queue.Submit([]hal.CommandBuffer{work.cmdBuf}, work.fence, 1); err != nil {
		p.free(work)
		return fmt.Errorf("submit: queue submit: %w", err)
	}
	p.pending = work
	if err := p.Wait(timeout); err != nil {
		return err
	}
	p.log.Debug("staging filled on gpu", "words", words, "workgroups_x", x, "workgroups_y", y)
	return nil
}

// fillWork is a submitted fill and the resources it uses on the GPU.
type fillWork struct {
	bindGroup hal.BindGroup
	cmdBuf    hal.CommandBuffer
	fence     hal.Fence
	staging   *StagingBuffer
}

// Wait waits for a fill that did not finish within its fence timeout. The
// staging buffer counts as written once the fill completed. While Wait
// returns [ErrGPUBusy] the GPU may still write the buffer, so it must not
// be written from the CPU either.
func (p *FillPass) Wait(timeout time.Duration) error {
	if p.pending == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultFenceTimeout
	}
	ok, err := p.device.Wait(p.pending.fence, 1, timeout)
	if err != nil {
		p.free(p.pending)
		p.pending = nil
		return fmt.Errorf("%w: wait for fill: %w", ErrDeviceLost, err)
	}
	if !ok {
		p.log.Warn("fill not complete within fence timeout", "timeout", timeout)
		return fmt.Errorf("%w: fill pending after %v", ErrGPUBusy, timeout)
	}
	work := p.pending
	p.pending = nil
	p.free(work)
	return work.staging.markWritten()
}

// Pending reports whether a submitted fill has not been observed complete.
func (p *FillPass) Pending() bool { return p.pending != nil }

func (p *FillPass) free(w *fillWork) {
	if w.fence != nil {
		p.device.DestroyFence(w.fence)
	}
	if w.cmdBuf != nil {
		p.device.FreeCommandBuffer(w.cmdBuf)
	}
	if w.bindGroup != nil {
		p.device.DestroyBindGroup(w.bindGroup)
	}
}

// Destroy releases the pipeline resources. A fill that is still pending
// and everything it uses are left allocated.
func (p *FillPass) Destroy() {
	if p.pending != nil {
		if err := p.Wait(DefaultFenceTimeout); err != nil {
			p.log.Warn("leaking pending fill", "err", err)
			return
		}
	}
	if p.params != nil {
		p.device.DestroyBuffer(p.params)
		p.params = nil
	}
	if p.pipeline != nil {
		p.device.DestroyComputePipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.layout != nil {
		p.device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	if p.bgLayout != nil {
		p.device.DestroyBindGroupLayout(p.bgLayout)
		p.bgLayout = nil
	}
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}
