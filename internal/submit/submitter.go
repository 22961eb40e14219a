// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package submit records and submits the GPU work that writes swapchain
// images: a one-shot copy from a staging buffer, fenced and waited.
package submit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// imageUsage is the usage swapchain images are left in for the compositor.
const imageUsage = gputypes.TextureUsageTextureBinding

// DefaultFenceTimeout bounds the wait for a copy to complete.
const DefaultFenceTimeout = 5 * time.Second

// Errors returned by Submitter.
var (
	// ErrGPUBusy is returned when the fence did not signal in time. The
	// submission stays parked and is waited before the next copy. The
	// condition is transient.
	ErrGPUBusy = errors.New("submit: gpu busy")

	// ErrDeviceLost is returned when waiting on a fence failed. It is fatal.
	ErrDeviceLost = errors.New("submit: device lost")

	// ErrStagingEmpty is returned when copying before the payload was written.
	ErrStagingEmpty = errors.New("submit: staging buffer not written")
)

// IsTransient reports whether err may clear up on a later frame.
func IsTransient(err error) bool {
	return errors.Is(err, ErrGPUBusy)
}

// inflight is a submission whose fence has not been observed yet.
type inflight struct {
	cmdBuf hal.CommandBuffer
	fence  hal.Fence
}

// Submitter copies the staging buffer into swapchain images.
type Submitter struct {
	device  hal.Device
	queue   hal.Queue
	staging *StagingBuffer
	timeout time.Duration
	log     *slog.Logger

	pending *inflight

	submits uint64
	busy    uint64
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithFenceTimeout bounds each fence wait.
func WithFenceTimeout(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Submitter) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a submitter copying from staging.
func New(device hal.Device, queue hal.Queue, staging *StagingBuffer, opts ...Option) (*Submitter, error) {
	if device == nil || queue == nil {
		return nil, errors.New("submit: device and queue are required")
	}
	if staging == nil {
		return nil, errors.New("submit: staging buffer is required")
	}
	s := &Submitter{
		device:  device,
		queue:   queue,
		staging: staging,
		timeout: DefaultFenceTimeout,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Busy reports whether a timed-out submission is still parked.
func (s *Submitter) Busy() bool { return s.pending != nil }

// Stats returns the number of submissions and fence timeouts.
func (s *Submitter) Stats() (submits, busy uint64) { return s.submits, s.busy }

// Copy writes the staging payload into every array layer of target and waits
// for the GPU. [ErrGPUBusy] means the work was submitted but not observed
// complete; every other error is fatal for the run.
func (s *Submitter) Copy(target hal.Texture) error {
	if target == nil {
		return errors.New("submit: nil target image")
	}
	if !s.staging.Written() {
		return ErrStagingEmpty
	}
	if err := s.drain(); err != nil {
		return err
	}

	cmdBuf, err := s.encodeCopy(target)
	if err != nil {
		return err
	}

	fence, err := s.device.CreateFence()
	if err != nil {
		s.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("submit: create fence: %w", err)
	}
	if err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		s.device.DestroyFence(fence)
		s.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("submit: queue submit: %w", err)
	}
	s.submits++

	work := &inflight{cmdBuf: cmdBuf, fence: fence}
	ok, err := s.device.Wait(fence, 1, s.timeout)
	if err != nil {
		s.free(work)
		return fmt.Errorf("%w: wait for copy: %w", ErrDeviceLost, err)
	}
	if !ok {
		s.busy++
		s.pending = work
		s.log.Warn("copy not complete within fence timeout", "timeout", s.timeout)
		return fmt.Errorf("%w: copy pending after %v", ErrGPUBusy, s.timeout)
	}
	s.free(work)
	return nil
}

// encodeCopy records transition → buffer-to-texture copy → transition.
func (s *Submitter) encodeCopy(target hal.Texture) (hal.CommandBuffer, error) {
	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "xr_image_copy",
	})
	if err != nil {
		return nil, fmt.Errorf("submit: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("xr_image_copy"); err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("submit: begin encoding: %w", err)
	}

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: target,
		Usage: hal.TextureUsageTransition{
			OldUsage: imageUsage,
			NewUsage: gputypes.TextureUsageCopyDst,
		},
	}})

	extent := s.staging.Extent()
	encoder.CopyBufferToTexture(s.staging.Buffer(), target, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  s.staging.BytesPerRow(),
			RowsPerImage: extent.Height,
		},
		TextureBase: hal.ImageCopyTexture{Texture: target, MipLevel: 0},
		Size:        extent,
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst,
			NewUsage: imageUsage,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("submit: end encoding: %w", err)
	}
	return cmdBuf, nil
}

// drain waits for a parked submission before new work is recorded.
func (s *Submitter) drain() error {
	if s.pending == nil {
		return nil
	}
	ok, err := s.device.Wait(s.pending.fence, 1, s.timeout)
	if err != nil {
		s.free(s.pending)
		s.pending = nil
		return fmt.Errorf("%w: wait for parked copy: %w", ErrDeviceLost, err)
	}
	if !ok {
		s.busy++
		return fmt.Errorf("%w: parked copy still pending", ErrGPUBusy)
	}
	s.log.Debug("parked copy completed")
	s.free(s.pending)
	s.pending = nil
	return nil
}

func (s *Submitter) free(w *inflight) {
	if w.fence != nil {
		s.device.DestroyFence(w.fence)
	}
	if w.cmdBuf != nil {
		s.device.FreeCommandBuffer(w.cmdBuf)
	}
}

// Close waits for a parked submission and frees it. The staging buffer is
// owned by the caller.
func (s *Submitter) Close() error {
	if s.pending == nil {
		return nil
	}
	ok, err := s.device.Wait(s.pending.fence, 1, s.timeout)
	s.free(s.pending)
	s.pending = nil
	if err != nil {
		return fmt.Errorf("%w: wait on close: %w", ErrDeviceLost, err)
	}
	if !ok {
		return fmt.Errorf("%w: parked copy abandoned on close", ErrGPUBusy)
	}
	return nil
}
