// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/xrloop/internal/compose"
	"github.com/gogpu/xrloop/internal/input"
	"github.com/gogpu/xrloop/internal/lifecycle"
	"github.com/gogpu/xrloop/internal/pacer"
	"github.com/gogpu/xrloop/internal/submit"
	"github.com/gogpu/xrloop/internal/swapchain"
	"github.com/gogpu/xrloop/xr"
)

// stereoLayers is the array size of the swapchain: layer 0 is the left eye,
// layer 1 the right eye.
const stereoLayers = 2

// StepResult describes what one loop iteration did.
type StepResult int

const (
	// StepIdle means the session was not running; the loop slept.
	StepIdle StepResult = iota

	// StepComposed means a frame was ended without writing an image.
	StepComposed

	// StepRendered means a frame wrote a swapchain image.
	StepRendered

	// StepDegraded means a frame could not write its image (image wait
	// timeout or busy GPU) but was still ended.
	StepDegraded

	// StepExited means the session reached EXITING or the instance is lost.
	StepExited
)

// String returns the string representation of StepResult.
func (r StepResult) String() string {
	switch r {
	case StepIdle:
		return "idle"
	case StepComposed:
		return "composed"
	case StepRendered:
		return "rendered"
	case StepDegraded:
		return "degraded"
	case StepExited:
		return "exited"
	default:
		return fmt.Sprintf("StepResult(%d)", int(r))
	}
}

// Stats counts what a loop did so far.
type Stats struct {
	Iterations  uint64
	Idle        uint64
	Frames      uint64 // frames ended successfully
	EndFailures uint64
	Rendered    uint64
	Degraded    uint64

	Acquires          uint64
	Releases          uint64
	ImageWaitTimeouts uint64
	Submits           uint64
	GPUBusy           uint64
	LayerMisses       uint64
	LostEvents        uint64
	Sessions          int
}

// Loop runs the frame loop of one session.
//
// Loop is not safe for concurrent use: Step, Run and Close must be called
// from one goroutine.
type Loop struct {
	instance xr.Instance
	gfx      *Graphics
	cfg      Config
	opts     options
	log      *slog.Logger
	runID    uuid.UUID

	system     xr.SystemID
	systemName string
	width      uint32
	height     uint32

	session   xr.Session
	space     xr.Space
	images    *swapchain.Manager
	staging   *submit.StagingBuffer
	submitter *submit.Submitter
	composer  *compose.Builder
	thumb     *input.Thumbstick

	machine *lifecycle.Machine
	poller  *lifecycle.Poller
	pacer   *pacer.Pacer

	stats  Stats
	closed bool
}

// New creates the session and every per-session resource: the reference
// space, the stereo swapchain, the staging payload and, when enabled and
// supported, the thumbstick action. The loop does not own gfx.
//
// Any failure releases what was created so far and is returned.
func New(instance xr.Instance, gfx *Graphics, cfg Config, opts ...Option) (*Loop, error) {
	if instance == nil {
		return nil, errors.New("xrloop: instance is required")
	}
	if gfx == nil || gfx.Device == nil || gfx.Queue == nil {
		return nil, errors.New("xrloop: graphics device and queue are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		o.runID = id
	}
	base := o.log
	if base == nil {
		base = Logger()
	}

	l := &Loop{
		instance: instance,
		gfx:      gfx,
		cfg:      cfg,
		opts:     o,
		log:      base.With("run_id", o.runID.String()),
		runID:    o.runID,
	}
	if err := l.setup(); err != nil {
		if cerr := l.release(); cerr != nil {
			l.log.Warn("cleanup after failed setup", "err", cerr)
		}
		return nil, err
	}
	return l, nil
}

func (l *Loop) setup() error {
	sys, err := l.instance.System(xr.FormFactorHeadMountedDisplay)
	if err != nil {
		return fmt.Errorf("xrloop: get system: %w", err)
	}
	l.system = sys

	props, err := l.instance.SystemProperties(sys)
	if err != nil {
		return fmt.Errorf("xrloop: system properties: %w", err)
	}
	l.systemName = props.SystemName
	l.log.Info("system found",
		"name", props.SystemName,
		"vendor", props.VendorID,
		"max_layers", props.MaxLayerCount,
		"orientation_tracking", props.OrientationTracking,
		"position_tracking", props.PositionTracking)

	views, err := l.instance.EnumerateViewConfigurationViews(sys, l.cfg.ViewConfiguration)
	if err != nil {
		return fmt.Errorf("xrloop: enumerate views: %w", err)
	}
	if len(views) != stereoLayers {
		return fmt.Errorf("xrloop: view configuration %s has %d views, want %d",
			l.cfg.ViewConfiguration, len(views), stereoLayers)
	}
	for _, v := range views {
		l.width = max(l.width, v.RecommendedImageRectWidth)
		l.height = max(l.height, v.RecommendedImageRectHeight)
	}
	if l.width == 0 || l.height == 0 {
		return fmt.Errorf("xrloop: runtime recommends %dx%d images", l.width, l.height)
	}

	session, err := l.instance.CreateSession(sys, xr.GraphicsBinding{Device: l.gfx.Device, Queue: l.gfx.Queue})
	if err != nil {
		return fmt.Errorf("xrloop: create session: %w", err)
	}
	l.session = session

	space, err := session.CreateReferenceSpace(l.cfg.ReferenceSpace, xr.IdentityPose)
	if err != nil {
		return fmt.Errorf("xrloop: create %s space: %w", l.cfg.ReferenceSpace, err)
	}
	l.space = space

	format, err := textureFormat(l.cfg.SwapchainFormat)
	if err != nil {
		return err
	}
	sc, err := session.CreateSwapchain(xr.SwapchainCreateInfo{
		UsageFlags:  xr.SwapchainUsageColorAttachment | xr.SwapchainUsageTransferDst | xr.SwapchainUsageSampled,
		Format:      format,
		SampleCount: 1,
		Width:       l.width,
		Height:      l.height,
		FaceCount:   1,
		ArraySize:   stereoLayers,
		MipCount:    1,
	})
	if err != nil {
		return fmt.Errorf("xrloop: create swapchain: %w", err)
	}
	images, err := swapchain.New(sc, l.log)
	if err != nil {
		if derr := sc.Destroy(); derr != nil {
			l.log.Warn("destroy swapchain", "err", derr)
		}
		return fmt.Errorf("xrloop: %w", err)
	}
	l.images = images

	staging, err := submit.NewStagingBuffer(l.gfx.Device, l.width, l.height, stereoLayers)
	if err != nil {
		return fmt.Errorf("xrloop: %w", err)
	}
	l.staging = staging
	if err := l.fillStaging(); err != nil {
		return fmt.Errorf("xrloop: write staging payload: %w", err)
	}

	submitter, err := submit.New(l.gfx.Device, l.gfx.Queue, staging,
		submit.WithFenceTimeout(l.cfg.FenceTimeout),
		submit.WithLogger(l.log),
	)
	if err != nil {
		return fmt.Errorf("xrloop: %w", err)
	}
	l.submitter = submitter

	composer, err := compose.New(session, compose.Config{
		Space:              space,
		Swapchain:          sc,
		ViewConfiguration:  l.cfg.ViewConfiguration,
		Width:              l.width,
		Height:             l.height,
		PremultipliedAlpha: l.cfg.PremultipliedAlpha,
	}, l.log)
	if err != nil {
		return fmt.Errorf("xrloop: %w", err)
	}
	l.composer = composer

	l.machine = lifecycle.NewMachine(session, l.cfg.ViewConfiguration, l.log)
	l.poller = lifecycle.NewPoller(l.instance, l.machine, l.log)
	l.pacer = pacer.New(session, l.log)

	if l.cfg.Input {
		thumb, err := input.Setup(l.instance, session, l.log)
		if err != nil {
			l.log.Warn("input disabled", "err", err)
		} else {
			l.thumb = thumb
		}
	}

	l.log.Info("loop ready",
		"width", l.width,
		"height", l.height,
		"images", images.Len(),
		"format", l.cfg.SwapchainFormat,
		"fill", l.cfg.FillColor,
		"warmup_frames", l.cfg.WarmupFrames,
		"input", l.thumb != nil)
	return nil
}

// fillStaging writes the payload once. The GPU fill falls back to the CPU
// when the pass cannot run on the device. A fill still running on the GPU
// is never followed by a CPU write of the same buffer.
func (l *Loop) fillStaging() error {
	px := l.cfg.Pixel()
	if l.cfg.FillMode == FillGPU {
		err := l.fillOnGPU(px)
		if err == nil || errors.Is(err, submit.ErrGPUBusy) {
			return err
		}
		l.log.Warn("GPU fill failed, using CPU fallback", "err", err)
	}
	return l.staging.Fill(l.gfx.Queue, px)
}

func (l *Loop) fillOnGPU(px [4]byte) error {
	pass, err := submit.NewFillPass(l.gfx.Device, l.gfx.Queue, l.log)
	if err != nil {
		return err
	}
	defer pass.Destroy()
	err = pass.Run(l.staging, px, l.cfg.FenceTimeout)
	if errors.Is(err, submit.ErrGPUBusy) {
		l.log.Warn("GPU fill still running, waiting once more", "timeout", l.cfg.FenceTimeout)
		err = pass.Wait(l.cfg.FenceTimeout)
	}
	return err
}

// RunID returns the identifier attached to the loop's log records.
func (l *Loop) RunID() uuid.UUID { return l.runID }

// SystemName returns the name the runtime reported for the system.
func (l *Loop) SystemName() string { return l.systemName }

// Size returns the per-eye image size.
func (l *Loop) Size() (width, height uint32) { return l.width, l.height }

// Config returns the configuration the loop was created with.
func (l *Loop) Config() Config { return l.cfg }

// Running reports whether the session is running.
func (l *Loop) Running() bool { return l.machine != nil && l.machine.Running() }

// SessionState returns the last session state reported by the runtime.
func (l *Loop) SessionState() xr.SessionState {
	if l.machine == nil {
		return xr.SessionStateUnknown
	}
	return l.machine.Status().State
}

// Thumbstick returns the last thumbstick value and whether input is enabled.
func (l *Loop) Thumbstick() (xr.Vector2f, bool) {
	if l.thumb == nil {
		return xr.Vector2f{}, false
	}
	return l.thumb.Last(), true
}

// Stats returns the counters accumulated so far.
func (l *Loop) Stats() Stats {
	s := l.stats
	if l.pacer != nil {
		s.Frames, s.EndFailures = l.pacer.Stats()
	}
	if l.images != nil {
		s.Acquires, s.Releases, s.ImageWaitTimeouts = l.images.Stats()
	}
	if l.submitter != nil {
		s.Submits, s.GPUBusy = l.submitter.Stats()
	}
	if l.composer != nil {
		_, s.LayerMisses = l.composer.Stats()
	}
	if l.poller != nil {
		s.LostEvents = l.poller.LostEvents()
	}
	if l.machine != nil {
		s.Sessions = l.machine.Sessions()
	}
	return s
}

// Step runs one iteration: drain runtime events, then either sleep while
// the session is not running or pace, render and compose one frame.
//
// Errors returned by Step end the loop. Degraded frames are reported through
// the result, not as errors.
func (l *Loop) Step(ctx context.Context) (StepResult, error) {
	if l.closed {
		return StepExited, ErrClosed
	}
	l.stats.Iterations++

	if _, err := l.poller.Drain(); err != nil {
		l.pacer.Reset()
		if errors.Is(err, lifecycle.ErrInstanceLossPending) {
			return StepExited, err
		}
		return StepIdle, err
	}
	if l.machine.Exited() {
		return StepExited, nil
	}
	if !l.machine.Running() {
		l.pacer.Reset()
		l.stats.Idle++
		if err := l.opts.sleep(ctx, l.cfg.IdleSleep); err != nil {
			l.log.Debug("idle sleep interrupted", "err", err)
		}
		return StepIdle, nil
	}
	return l.frame()
}

// frame paces one frame. EndFrame is issued for every begun frame, also when
// rendering failed fatally.
func (l *Loop) frame() (StepResult, error) {
	frame, err := l.pacer.Wait()
	if err != nil {
		return l.frameError(err)
	}
	l.log.Debug("frame",
		"display_time", frame.PredictedDisplayTime,
		"period", frame.PredictedDisplayPeriod,
		"should_render", frame.ShouldRender)

	if l.thumb != nil {
		l.thumb.Sync()
	}

	if err := l.pacer.Begin(); err != nil {
		return l.frameError(err)
	}

	result := StepComposed
	if l.wantsContent() {
		result, err = l.render()
		if err != nil {
			if eerr := l.pacer.End(l.cfg.BlendMode, nil); eerr != nil {
				l.log.Warn("end frame after render failure", "err", eerr)
			}
			return result, err
		}
	}

	layers := l.composer.Layers(frame)
	if err := l.pacer.End(l.cfg.BlendMode, layers); err != nil {
		return result, err
	}
	if result == StepDegraded {
		l.stats.Degraded++
	}
	return result, nil
}

// frameError classifies a failed WaitFrame or BeginFrame. A session that
// stopped since the last drain is not an error: the next drain sees it.
func (l *Loop) frameError(err error) (StepResult, error) {
	if errors.Is(err, xr.ErrSessionNotRunning) {
		l.pacer.Reset()
		l.log.Debug("session stopped mid-frame", "err", err)
		return StepIdle, nil
	}
	return StepIdle, err
}

// wantsContent reports whether this frame writes an image: during warm-up,
// and to finish an image whose wait timed out.
func (l *Loop) wantsContent() bool {
	return l.images.Pending() || l.stats.Rendered < uint64(l.cfg.WarmupFrames) //nolint:gosec // validated non-negative
}

// render acquires (or keeps) an image, waits for it, copies the staging
// payload into both array layers and releases it.
func (l *Loop) render() (StepResult, error) {
	if !l.images.Pending() {
		idx, err := l.images.Acquire()
		if err != nil {
			return StepComposed, fmt.Errorf("xrloop: %w", err)
		}
		l.log.Debug("image acquired", "index", idx)
	}

	if err := l.images.Wait(l.cfg.imageWaitTimeout()); err != nil {
		if errors.Is(err, xr.ErrTimeoutExpired) {
			return StepDegraded, nil
		}
		return StepComposed, fmt.Errorf("xrloop: %w", err)
	}

	idx, target, err := l.images.Target()
	if err != nil {
		return StepComposed, fmt.Errorf("xrloop: %w", err)
	}
	copyErr := l.submitter.Copy(target)
	if copyErr == nil || submit.IsTransient(copyErr) {
		l.images.MarkInFlight()
	}
	if copyErr != nil && !submit.IsTransient(copyErr) {
		if err := l.images.Release(); err != nil {
			l.log.Warn("release after failed copy", "index", idx, "err", err)
		}
		l.log.Error("image copy failed", "index", idx, "err", copyErr)
		return StepComposed, fmt.Errorf("xrloop: %w", copyErr)
	}

	if err := l.images.Release(); err != nil {
		return StepComposed, fmt.Errorf("xrloop: %w", err)
	}
	if copyErr != nil {
		l.log.Warn("frame degraded", "index", idx, "err", copyErr)
		return StepDegraded, nil
	}
	l.stats.Rendered++
	l.log.Debug("image written", "index", idx, "rendered", l.stats.Rendered)
	return StepRendered, nil
}

// Run steps the loop until the session exits, a fatal error occurs or ctx is
// canceled.
//
// Cancellation starts a graceful shutdown: the loop requests the session
// exit and keeps pacing frames until the runtime reports EXITING, for at
// most Config.ShutdownTimeout. Run returns nil when the session exited.
func (l *Loop) Run(ctx context.Context) error {
	if l.closed {
		return ErrClosed
	}
	l.log.Info("loop started", "system", l.systemName)

	stepCtx := ctx
	var deadline time.Time
	for {
		if deadline.IsZero() {
			reason := l.stopReason(ctx)
			if reason != "" {
				done, err := l.requestExit(reason)
				if done || err != nil {
					return err
				}
				deadline = time.Now().Add(l.cfg.ShutdownTimeout)
				stepCtx = context.WithoutCancel(ctx)
			}
		} else if time.Now().After(deadline) {
			l.log.Warn("session did not exit in time", "timeout", l.cfg.ShutdownTimeout, "state", l.SessionState())
			return fmt.Errorf("%w after %s", ErrShutdownTimeout, l.cfg.ShutdownTimeout)
		}

		result, err := l.Step(stepCtx)
		if err != nil {
			l.log.Error("loop stopped", "err", err)
			return err
		}
		if result == StepExited {
			s := l.Stats()
			l.log.Info("session exited", "frames", s.Frames, "rendered", s.Rendered, "degraded", s.Degraded)
			return nil
		}
	}
}

// stopReason returns why the loop should shut down, or "".
func (l *Loop) stopReason(ctx context.Context) string {
	if ctx.Err() != nil {
		return "context canceled"
	}
	if n := l.opts.frameLimit; n > 0 {
		if ended, failed := l.pacer.Stats(); ended+failed >= uint64(n) {
			return "frame limit reached"
		}
	}
	return ""
}

// requestExit starts the graceful shutdown. done is true when there is no
// running session to wind down.
func (l *Loop) requestExit(reason string) (done bool, err error) {
	if !l.machine.Running() {
		l.log.Info("stopping without a running session", "reason", reason, "state", l.SessionState())
		return true, nil
	}
	l.log.Info("requesting session exit", "reason", reason)
	if err := l.session.RequestExitSession(); err != nil {
		if errors.Is(err, xr.ErrSessionNotRunning) {
			return true, nil
		}
		return true, fmt.Errorf("xrloop: request exit session: %w", err)
	}
	return false, nil
}

// Close releases every per-session resource: the swapchain before the
// session that owns it. The graphics device is left to its owner.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.stats = l.Stats()
	err := l.release()
	l.log.Info("loop closed")
	return err
}

func (l *Loop) release() error {
	var errs []error
	if l.thumb != nil {
		if err := l.thumb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("destroy action set: %w", err))
		}
		l.thumb = nil
	}
	if l.submitter != nil {
		if err := l.submitter.Close(); err != nil {
			errs = append(errs, err)
		}
		l.submitter = nil
	}
	if l.staging != nil {
		l.staging.Destroy()
		l.staging = nil
	}
	if l.images != nil {
		if err := l.images.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy swapchain: %w", err))
		}
		l.images = nil
	}
	if l.space != nil {
		if err := l.space.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy space: %w", err))
		}
		l.space = nil
	}
	if l.session != nil {
		if err := l.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy session: %w", err))
		}
		l.session = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("xrloop: close: %w", errors.Join(errs...))
	}
	return nil
}
