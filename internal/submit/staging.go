// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package submit

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the row pitch alignment buffer/texture copies require.
const copyPitchAlignment = 256

// ErrStagingWritten is returned when the staging buffer is written twice.
var ErrStagingWritten = errors.New("submit: staging buffer already written")

// AlignedBytesPerRow returns the padded row pitch of an RGBA8 image.
func AlignedBytesPerRow(width uint32) uint32 {
	bytesPerRow := width * 4
	return (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// StagingBuffer holds the source pixels copied into every swapchain image.
// It covers all array layers, one padded image after the other, and is
// written exactly once.
type StagingBuffer struct {
	device hal.Device
	buf    hal.Buffer

	width, height, layers uint32
	bytesPerRow           uint32
	size                  uint64

	written bool
}

// NewStagingBuffer allocates a staging buffer for layers images of
// width x height RGBA8 pixels.
func NewStagingBuffer(device hal.Device, width, height, layers uint32) (*StagingBuffer, error) {
	if width == 0 || height == 0 || layers == 0 {
		return nil, fmt.Errorf("submit: invalid staging size %dx%dx%d", width, height, layers)
	}
	bpr := AlignedBytesPerRow(width)
	size := uint64(bpr) * uint64(height) * uint64(layers)

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "xr_staging",
		Size:  size,
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst | gputypes.BufferUsageStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("submit: create staging buffer: %w", err)
	}
	return &StagingBuffer{
		device:      device,
		buf:         buf,
		width:       width,
		height:      height,
		layers:      layers,
		bytesPerRow: bpr,
		size:        size,
	}, nil
}

// Buffer returns the GPU buffer.
func (b *StagingBuffer) Buffer() hal.Buffer { return b.buf }

// Size returns the buffer size in bytes.
func (b *StagingBuffer) Size() uint64 { return b.size }

// BytesPerRow returns the padded row pitch.
func (b *StagingBuffer) BytesPerRow() uint32 { return b.bytesPerRow }

// Extent returns the image size and layer count the buffer covers.
func (b *StagingBuffer) Extent() hal.Extent3D {
	return hal.Extent3D{Width: b.width, Height: b.height, DepthOrArrayLayers: b.layers}
}

// Written reports whether the payload was uploaded.
func (b *StagingBuffer) Written() bool { return b.written }

// Write uploads data, which must cover the whole buffer.
func (b *StagingBuffer) Write(queue hal.Queue, data []byte) error {
	if b.written {
		return ErrStagingWritten
	}
	if uint64(len(data)) != b.size {
		return fmt.Errorf("submit: staging payload is %d bytes, want %d", len(data), b.size)
	}
	queue.WriteBuffer(b.buf, 0, data)
	b.written = true
	return nil
}

// Fill uploads a payload of one repeated pixel.
func (b *StagingBuffer) Fill(queue hal.Queue, px [4]byte) error {
	return b.Write(queue, Payload(b.width, b.height, b.layers, px))
}

// markWritten records a GPU-side fill.
func (b *StagingBuffer) markWritten() error {
	if b.written {
		return ErrStagingWritten
	}
	b.written = true
	return nil
}

// Destroy releases the GPU buffer.
func (b *StagingBuffer) Destroy() {
	if b.buf != nil {
		b.device.DestroyBuffer(b.buf)
		b.buf = nil
	}
}

// Payload builds the staging bytes for layers images filled with px. Row
// padding is left zero.
func Payload(width, height, layers uint32, px [4]byte) []byte {
	bpr := int(AlignedBytesPerRow(width))
	rows := int(height) * int(layers)
	out := make([]byte, bpr*rows)
	row := out[:width*4]
	for x := 0; x < len(row); x += 4 {
		copy(row[x:x+4], px[:])
	}
	for r := 1; r < rows; r++ {
		copy(out[r*bpr:], row)
	}
	return out
}
