// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package submit

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// waitDevice scripts fence wait results; once the script is used up waits
// succeed.
type waitDevice struct {
	hal.Device
	results []waitResult
	waits   int
}

type waitResult struct {
	ok  bool
	err error
}

func (d *waitDevice) Wait(fence hal.Fence, value uint64, timeout time.Duration) (bool, error) {
	d.waits++
	if len(d.results) == 0 {
		return true, nil
	}
	r := d.results[0]
	d.results = d.results[1:]
	return r.ok, r.err
}

func newImage(t *testing.T, device hal.Device, w, h, layers uint32) hal.Texture {
	t.Helper()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "test_image",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: layers},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	t.Cleanup(func() { device.DestroyTexture(tex) })
	return tex
}

func newWrittenStaging(t *testing.T, device hal.Device, queue hal.Queue, w, h, layers uint32) *StagingBuffer {
	t.Helper()
	staging, err := NewStagingBuffer(device, w, h, layers)
	if err != nil {
		t.Fatalf("NewStagingBuffer: %v", err)
	}
	t.Cleanup(staging.Destroy)
	if err := staging.Fill(queue, [4]byte{255, 0, 0, 255}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	return staging
}

func TestAlignedBytesPerRow(t *testing.T) {
	tests := []struct {
		width uint32
		want  uint32
	}{
		{1, 256},
		{64, 256},
		{65, 512},
		{1440, 5888},
		{1536, 6144},
	}
	for _, tt := range tests {
		if got := AlignedBytesPerRow(tt.width); got != tt.want {
			t.Errorf("AlignedBytesPerRow(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestPayload(t *testing.T) {
	px := [4]byte{10, 20, 30, 40}
	data := Payload(3, 2, 2, px)
	if len(data) != 256*2*2 {
		t.Fatalf("len = %d, want %d", len(data), 256*2*2)
	}
	for row := 0; row < 4; row++ {
		base := row * 256
		for x := 0; x < 3; x++ {
			got := [4]byte(data[base+x*4 : base+x*4+4])
			if got != px {
				t.Fatalf("row %d pixel %d = %v, want %v", row, x, got, px)
			}
		}
		for i := base + 12; i < base+256; i++ {
			if data[i] != 0 {
				t.Fatalf("row %d padding byte %d = %d, want 0", row, i-base, data[i])
			}
		}
	}
}

func TestStagingWrittenOnce(t *testing.T) {
	device, queue := createNoopDevice(t)
	staging, err := NewStagingBuffer(device, 16, 8, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer staging.Destroy()

	if staging.Size() != 256*8*2 {
		t.Errorf("Size = %d, want %d", staging.Size(), 256*8*2)
	}
	if err := staging.Write(queue, make([]byte, 10)); err == nil {
		t.Error("expected size mismatch error")
	}
	if staging.Written() {
		t.Fatal("failed write must not mark the buffer written")
	}
	if err := staging.Fill(queue, [4]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if err := staging.Fill(queue, [4]byte{1, 2, 3, 4}); !errors.Is(err, ErrStagingWritten) {
		t.Fatalf("second Fill = %v, want ErrStagingWritten", err)
	}
}

func TestNewStagingBufferInvalidSize(t *testing.T) {
	device, _ := createNoopDevice(t)
	if _, err := NewStagingBuffer(device, 0, 8, 2); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestSubmitterCopy(t *testing.T) {
	device, queue := createNoopDevice(t)
	staging := newWrittenStaging(t, device, queue, 32, 16, 2)
	image := newImage(t, device, 32, 16, 2)

	s, err := New(device, queue, staging)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	for i := range 3 {
		if err := s.Copy(image); err != nil {
			t.Fatalf("Copy %d: %v", i, err)
		}
	}
	if submits, busy := s.Stats(); submits != 3 || busy != 0 {
		t.Errorf("stats = %d/%d, want 3/0", submits, busy)
	}
	if s.Busy() {
		t.Error("unexpected parked submission")
	}
}

func TestSubmitterRequiresPayload(t *testing.T) {
	device, queue := createNoopDevice(t)
	staging, err := NewStagingBuffer(device, 8, 8, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer staging.Destroy()
	s, err := New(device, queue, staging)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Copy(newImage(t, device, 8, 8, 2)); !errors.Is(err, ErrStagingEmpty) {
		t.Fatalf("Copy = %v, want ErrStagingEmpty", err)
	}
}

func TestNewRequiresDevice(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected error for missing device")
	}
}

func TestSubmitterBusyParksWork(t *testing.T) {
	device, queue := createNoopDevice(t)
	staging := newWrittenStaging(t, device, queue, 8, 8, 2)
	image := newImage(t, device, 8, 8, 2)

	wd := &waitDevice{Device: device, results: []waitResult{
		{ok: false}, // copy 1 times out
		{ok: false}, // drain before copy 2 still pending
		{ok: true},  // drain before copy 3 completes
	}}
	s, err := New(wd, queue, staging, WithFenceTimeout(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err = s.Copy(image)
	if !errors.Is(err, ErrGPUBusy) || !IsTransient(err) {
		t.Fatalf("copy 1 = %v, want transient ErrGPUBusy", err)
	}
	if !s.Busy() {
		t.Fatal("expected parked submission")
	}

	err = s.Copy(image)
	if !errors.Is(err, ErrGPUBusy) {
		t.Fatalf("copy 2 = %v, want ErrGPUBusy", err)
	}
	if submits, _ := s.Stats(); submits != 1 {
		t.Errorf("submits = %d, want 1 (no new work while parked)", submits)
	}

	if err := s.Copy(image); err != nil {
		t.Fatalf("copy 3: %v", err)
	}
	if s.Busy() {
		t.Error("parked submission not cleared")
	}
	if submits, busy := s.Stats(); submits != 2 || busy != 2 {
		t.Errorf("stats = %d/%d, want 2/2", submits, busy)
	}
}

func TestSubmitterDeviceLost(t *testing.T) {
	device, queue := createNoopDevice(t)
	staging := newWrittenStaging(t, device, queue, 8, 8, 2)

	wd := &waitDevice{Device: device, results: []waitResult{{err: errors.New("vk: device lost")}}}
	s, err := New(wd, queue, staging)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Copy(newImage(t, device, 8, 8, 2))
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("Copy = %v, want ErrDeviceLost", err)
	}
	if IsTransient(err) {
		t.Error("device loss must not be transient")
	}
	if s.Busy() {
		t.Error("failed wait must not park the submission")
	}
}

func TestSubmitterCloseWaitsParked(t *testing.T) {
	device, queue := createNoopDevice(t)
	staging := newWrittenStaging(t, device, queue, 8, 8, 2)
	wd := &waitDevice{Device: device, results: []waitResult{{ok: false}}}
	s, err := New(wd, queue, staging)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Copy(newImage(t, device, 8, 8, 2)); !errors.Is(err, ErrGPUBusy) {
		t.Fatalf("Copy = %v, want ErrGPUBusy", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if wd.waits != 2 {
		t.Errorf("waits = %d, want 2", wd.waits)
	}
	if s.Busy() {
		t.Error("Close must clear the parked submission")
	}
}

func TestFillDispatch(t *testing.T) {
	tests := []struct {
		words        uint32
		wantX, wantY uint32
		wantStride   uint32
	}{
		{0, 0, 0, 0},
		{1, 1, 1, 64},
		{64, 1, 1, 64},
		{65, 2, 1, 128},
		{1536 * 1600 * 2, 65535, 2, 65535 * 64},
	}
	for _, tt := range tests {
		x, y, stride := FillDispatch(tt.words)
		if x != tt.wantX || y != tt.wantY || stride != tt.wantStride {
			t.Errorf("FillDispatch(%d) = %d,%d,%d; want %d,%d,%d",
				tt.words, x, y, stride, tt.wantX, tt.wantY, tt.wantStride)
		}
		if tt.words > 0 && uint64(x)*uint64(y)*fillWorkgroupSize < uint64(tt.words) {
			t.Errorf("FillDispatch(%d) does not cover every word", tt.words)
		}
	}
}

func TestPackPixel(t *testing.T) {
	if got := PackPixel([4]byte{0x11, 0x22, 0x33, 0x44}); got != 0x44332211 {
		t.Errorf("PackPixel = %#x, want 0x44332211", got)
	}
}

// skipOnNagaLimitation skips when the shader uses a feature naga does not
// support yet.
func skipOnNagaLimitation(t *testing.T, err error) {
	t.Helper()
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

func TestFillShaderCompilation(t *testing.T) {
	code, err := CompileFillShader()
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("CompileFillShader: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("SPIR-V output is empty")
	}
	if code[0] != 0x07230203 {
		t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", code[0])
	}
}

func TestFillPassRun(t *testing.T) {
	device, queue := createNoopDevice(t)
	pass, err := NewFillPass(device, queue, nil)
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("NewFillPass: %v", err)
	}
	defer pass.Destroy()

	staging, err := NewStagingBuffer(device, 16, 16, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer staging.Destroy()

	if err := pass.Run(staging, [4]byte{0, 0, 255, 255}, time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !staging.Written() {
		t.Error("staging must count as written after the fill pass")
	}
	if err := pass.Run(staging, [4]byte{0, 0, 255, 255}, time.Second); !errors.Is(err, ErrStagingWritten) {
		t.Fatalf("second Run = %v, want ErrStagingWritten", err)
	}
}

func TestFillPassBusyParksWork(t *testing.T) {
	noopDev, queue := createNoopDevice(t)
	device := &waitDevice{Device: noopDev, results: []waitResult{{ok: false}, {ok: false}}}
	pass, err := NewFillPass(device, queue, nil)
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("NewFillPass: %v", err)
	}
	defer pass.Destroy()

	staging, err := NewStagingBuffer(noopDev, 8, 8, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer staging.Destroy()

	if err := pass.Run(staging, [4]byte{255, 0, 0, 255}, time.Millisecond); !errors.Is(err, ErrGPUBusy) {
		t.Fatalf("Run = %v, want ErrGPUBusy", err)
	}
	if !pass.Pending() {
		t.Fatal("timed out fill must stay parked")
	}
	if staging.Written() {
		t.Fatal("staging must not count as written while the fill is pending")
	}
	if err := pass.Run(staging, [4]byte{255, 0, 0, 255}, time.Millisecond); !errors.Is(err, ErrGPUBusy) {
		t.Fatalf("Run while pending = %v, want ErrGPUBusy", err)
	}

	if err := pass.Wait(time.Millisecond); !errors.Is(err, ErrGPUBusy) {
		t.Fatalf("first Wait = %v, want ErrGPUBusy", err)
	}
	if err := pass.Wait(time.Millisecond); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if pass.Pending() || !staging.Written() {
		t.Errorf("after completion: pending %v, written %v", pass.Pending(), staging.Written())
	}
	if device.waits != 3 {
		t.Errorf("fence waits = %d, want 3", device.waits)
	}
}

func TestFillPassDeviceLostFreesWork(t *testing.T) {
	noopDev, queue := createNoopDevice(t)
	device := &waitDevice{Device: noopDev, results: []waitResult{{err: errors.New("lost")}}}
	pass, err := NewFillPass(device, queue, nil)
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("NewFillPass: %v", err)
	}
	defer pass.Destroy()

	staging, err := NewStagingBuffer(noopDev, 8, 8, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer staging.Destroy()

	if err := pass.Run(staging, [4]byte{0, 255, 0, 255}, time.Millisecond); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("Run = %v, want ErrDeviceLost", err)
	}
	if pass.Pending() || staging.Written() {
		t.Errorf("after device loss: pending %v, written %v", pass.Pending(), staging.Written())
	}
}

// encoderDevice hands out encoders that fail to begin or end and records
// whether they were discarded.
type encoderDevice struct {
	hal.Device
	beginErr  error
	endErr    error
	discarded int
}

type failingEncoder struct {
	hal.CommandEncoder
	dev *encoderDevice
}

func (d *encoderDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &failingEncoder{CommandEncoder: enc, dev: d}, nil
}

func (e *failingEncoder) BeginEncoding(label string) error {
	if e.dev.beginErr != nil {
		return e.dev.beginErr
	}
	return e.CommandEncoder.BeginEncoding(label)
}

func (e *failingEncoder) EndEncoding() (hal.CommandBuffer, error) {
	if e.dev.endErr != nil {
		return nil, e.dev.endErr
	}
	return e.CommandEncoder.EndEncoding()
}

func (e *failingEncoder) DiscardEncoding() {
	e.dev.discarded++
	e.CommandEncoder.DiscardEncoding()
}

func TestEncodingFailureDiscardsEncoder(t *testing.T) {
	injected := errors.New("encoder broken")
	tests := []struct {
		name string
		dev  func(hal.Device) *encoderDevice
	}{
		{"begin", func(d hal.Device) *encoderDevice { return &encoderDevice{Device: d, beginErr: injected} }},
		{"end", func(d hal.Device) *encoderDevice { return &encoderDevice{Device: d, endErr: injected} }},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/copy", func(t *testing.T) {
			noopDev, queue := createNoopDevice(t)
			staging := newWrittenStaging(t, noopDev, queue, 8, 8, 2)
			image := newImage(t, noopDev, 8, 8, 2)
			device := tt.dev(noopDev)

			s, err := New(device, queue, staging)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer s.Close()

			if err := s.Copy(image); !errors.Is(err, injected) {
				t.Fatalf("Copy = %v, want injected error", err)
			}
			if device.discarded != 1 {
				t.Errorf("DiscardEncoding calls = %d, want 1", device.discarded)
			}
		})
		t.Run(tt.name+"/fill", func(t *testing.T) {
			noopDev, queue := createNoopDevice(t)
			device := tt.dev(noopDev)
			pass, err := NewFillPass(device, queue, nil)
			if err != nil {
				skipOnNagaLimitation(t, err)
				t.Fatalf("NewFillPass: %v", err)
			}
			defer pass.Destroy()

			staging, err := NewStagingBuffer(noopDev, 8, 8, 2)
			if err != nil {
				t.Fatal(err)
			}
			defer staging.Destroy()

			if err := pass.Run(staging, [4]byte{1, 2, 3, 4}, time.Second); !errors.Is(err, injected) {
				t.Fatalf("Run = %v, want injected error", err)
			}
			if device.discarded != 1 || pass.Pending() || staging.Written() {
				t.Errorf("discarded %d, pending %v, written %v", device.discarded, pass.Pending(), staging.Written())
			}
		})
	}
}
