// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrsim

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xrloop/xr"
)

// framePhase tracks the wait → begin → end protocol.
type framePhase int

const (
	phaseIdle framePhase = iota
	phaseWaited
	phaseBegun
)

// Session is a simulated session. It implements [xr.Session] and
// [xr.ActionSession].
type Session struct {
	rt      *Runtime
	binding xr.GraphicsBinding

	state         xr.SessionState
	running       bool
	exitRequested bool
	destroyed     bool

	phase    framePhase
	nextTime xr.Time
	waited   xr.FrameState

	frames      []xr.FrameEndInfo
	locateTimes []xr.Time
	swapchains  []*Swapchain
	attached    []xr.ActionSet
}

var (
	_ xr.Session       = (*Session)(nil)
	_ xr.ActionSession = (*Session)(nil)
)

// State returns the last state delivered through PollEvent.
func (s *Session) State() xr.SessionState {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	return s.state
}

// Running reports whether BeginSession succeeded and the session has not ended.
func (s *Session) Running() bool {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	return s.running
}

// Frames returns the FrameEndInfo of every accepted EndFrame call.
func (s *Session) Frames() []xr.FrameEndInfo {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	out := make([]xr.FrameEndInfo, len(s.frames))
	copy(out, s.frames)
	return out
}

// LocateTimes returns the display time of every LocateViews call.
func (s *Session) LocateTimes() []xr.Time {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	out := make([]xr.Time, len(s.locateTimes))
	copy(out, s.locateTimes)
	return out
}

// Swapchains returns every swapchain created on the session.
func (s *Session) Swapchains() []*Swapchain {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	out := make([]*Swapchain, len(s.swapchains))
	copy(out, s.swapchains)
	return out
}

func (s *Session) checkUsable() error {
	if s.destroyed {
		return xr.ErrHandleInvalid
	}
	if s.rt.lost {
		return xr.ErrInstanceLost
	}
	if s.state == xr.SessionStateLossPending {
		return xr.ErrSessionLost
	}
	return nil
}

// BeginSession implements [xr.Session].
func (s *Session) BeginSession(viewConfig xr.ViewConfigurationType) error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpBeginSession); err != nil {
		return err
	}
	if err := s.checkUsable(); err != nil {
		return err
	}
	if s.running {
		return xr.ErrSessionRunning
	}
	if s.state != xr.SessionStateReady {
		return fmt.Errorf("xrsim: begin session in %s: %w", s.state, xr.ErrSessionNotReady)
	}
	if viewConfig != xr.ViewConfigurationPrimaryStereo && viewConfig != xr.ViewConfigurationPrimaryMono {
		return fmt.Errorf("xrsim: unsupported view configuration %s", viewConfig)
	}
	s.running = true
	s.phase = phaseIdle
	if s.rt.cfg.AutoFocus {
		s.rt.pushStateLocked(xr.SessionStateSynchronized, xr.SessionStateVisible, xr.SessionStateFocused)
	}
	return nil
}

// EndSession implements [xr.Session].
func (s *Session) EndSession() error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpEndSession); err != nil {
		return err
	}
	if s.destroyed {
		return xr.ErrHandleInvalid
	}
	if !s.running {
		return xr.ErrSessionNotRunning
	}
	if s.state != xr.SessionStateStopping {
		return fmt.Errorf("xrsim: end session in %s: %w", s.state, xr.ErrSessionNotStopping)
	}
	s.running = false
	s.phase = phaseIdle
	s.rt.pushStateLocked(xr.SessionStateIdle)
	if s.exitRequested {
		s.rt.pushStateLocked(xr.SessionStateExiting)
	}
	return nil
}

// RequestExitSession implements [xr.Session].
func (s *Session) RequestExitSession() error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpRequestExitSession); err != nil {
		return err
	}
	if err := s.checkUsable(); err != nil {
		return err
	}
	if !s.running {
		return xr.ErrSessionNotRunning
	}
	if s.exitRequested {
		return nil
	}
	s.exitRequested = true
	s.rt.pushStateLocked(xr.SessionStateStopping)
	return nil
}

// WaitFrame implements [xr.Session].
func (s *Session) WaitFrame() (xr.FrameState, error) {
	s.rt.mu.Lock()
	if err := s.rt.record(OpWaitFrame); err != nil {
		s.rt.mu.Unlock()
		return xr.FrameState{}, err
	}
	if err := s.checkUsable(); err != nil {
		s.rt.mu.Unlock()
		return xr.FrameState{}, err
	}
	if !s.running {
		s.rt.mu.Unlock()
		return xr.FrameState{}, xr.ErrSessionNotRunning
	}
	if s.phase == phaseWaited {
		s.rt.mu.Unlock()
		return xr.FrameState{}, fmt.Errorf("xrsim: wait frame twice without begin frame: %w", xr.ErrCallOrderInvalid)
	}
	period := s.rt.cfg.Period
	fs := xr.FrameState{
		PredictedDisplayTime:   s.nextTime,
		PredictedDisplayPeriod: period,
		ShouldRender:           s.state == xr.SessionStateVisible || s.state == xr.SessionStateFocused || !s.rt.cfg.AutoFocus,
	}
	s.nextTime = s.nextTime.Add(period)
	s.waited = fs
	// A begun frame that was never ended is discarded by the next wait.
	s.phase = phaseWaited
	realtime := s.rt.cfg.Realtime
	s.rt.mu.Unlock()

	if realtime {
		s.rt.sleep(period)
	}
	return fs, nil
}

// BeginFrame implements [xr.Session].
func (s *Session) BeginFrame() error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpBeginFrame); err != nil {
		return err
	}
	if err := s.checkUsable(); err != nil {
		return err
	}
	if !s.running {
		return xr.ErrSessionNotRunning
	}
	if s.phase != phaseWaited {
		return fmt.Errorf("xrsim: begin frame without wait frame: %w", xr.ErrCallOrderInvalid)
	}
	s.phase = phaseBegun
	return nil
}

// EndFrame implements [xr.Session].
func (s *Session) EndFrame(info xr.FrameEndInfo) error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpEndFrame); err != nil {
		return err
	}
	if err := s.checkUsable(); err != nil {
		return err
	}
	if !s.running {
		return xr.ErrSessionNotRunning
	}
	if s.phase != phaseBegun {
		return fmt.Errorf("xrsim: end frame without begin frame: %w", xr.ErrCallOrderInvalid)
	}
	if info.DisplayTime != s.waited.PredictedDisplayTime {
		return fmt.Errorf("xrsim: end frame display time %d, want %d: %w",
			info.DisplayTime, s.waited.PredictedDisplayTime, xr.ErrCallOrderInvalid)
	}
	if info.EnvironmentBlendMode != xr.EnvironmentBlendOpaque &&
		info.EnvironmentBlendMode != xr.EnvironmentBlendAlphaBlend &&
		info.EnvironmentBlendMode != xr.EnvironmentBlendAdditive {
		return fmt.Errorf("xrsim: unsupported blend mode %s", info.EnvironmentBlendMode)
	}
	for _, l := range info.Layers {
		if err := s.validateLayer(l); err != nil {
			return err
		}
	}
	s.phase = phaseIdle
	s.frames = append(s.frames, info)
	return nil
}

func (s *Session) validateLayer(l xr.CompositionLayer) error {
	proj, ok := l.(*xr.CompositionLayerProjection)
	if !ok {
		return fmt.Errorf("xrsim: unsupported layer %T", l)
	}
	if proj.Space == nil {
		return fmt.Errorf("xrsim: projection layer without space: %w", xr.ErrHandleInvalid)
	}
	if len(proj.Views) != 2 {
		return fmt.Errorf("xrsim: projection layer has %d views, want 2", len(proj.Views))
	}
	for i, v := range proj.Views {
		sc, ok := v.SubImage.Swapchain.(*Swapchain)
		if !ok || sc.destroyed {
			return fmt.Errorf("xrsim: view %d: %w", i, xr.ErrHandleInvalid)
		}
		if v.SubImage.ImageArrayIndex >= sc.info.ArraySize {
			return fmt.Errorf("xrsim: view %d array index %d out of range", i, v.SubImage.ImageArrayIndex)
		}
		r := v.SubImage.ImageRect
		if r.Offset.X < 0 || r.Offset.Y < 0 ||
			uint32(r.Offset.X+r.Extent.Width) > sc.info.Width ||
			uint32(r.Offset.Y+r.Extent.Height) > sc.info.Height {
			return fmt.Errorf("xrsim: view %d image rect %+v outside %dx%d", i, r, sc.info.Width, sc.info.Height)
		}
	}
	return nil
}

// CreateSwapchain implements [xr.Session].
func (s *Session) CreateSwapchain(info xr.SwapchainCreateInfo) (xr.Swapchain, error) {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpCreateSwapchain); err != nil {
		return nil, err
	}
	if err := s.checkUsable(); err != nil {
		return nil, err
	}
	if info.Width == 0 || info.Height == 0 || info.ArraySize == 0 {
		return nil, fmt.Errorf("xrsim: invalid swapchain size %dx%dx%d", info.Width, info.Height, info.ArraySize)
	}
	if info.SampleCount == 0 {
		info.SampleCount = 1
	}
	if info.MipCount == 0 {
		info.MipCount = 1
	}
	sc := &Swapchain{rt: s.rt, info: info, acquired: -1}
	if err := sc.allocate(s.binding.Device, s.rt.cfg.ImageCount); err != nil {
		return nil, err
	}
	s.swapchains = append(s.swapchains, sc)
	return sc, nil
}

// CreateReferenceSpace implements [xr.Session].
func (s *Session) CreateReferenceSpace(kind xr.ReferenceSpaceType, poseInSpace xr.Posef) (xr.Space, error) {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpCreateReferenceSpace); err != nil {
		return nil, err
	}
	if err := s.checkUsable(); err != nil {
		return nil, err
	}
	switch kind {
	case xr.ReferenceSpaceView, xr.ReferenceSpaceLocal, xr.ReferenceSpaceStage, xr.ReferenceSpaceLocalFloor:
	default:
		return nil, fmt.Errorf("xrsim: unsupported reference space %s", kind)
	}
	return &space{kind: kind, origin: poseInSpace}, nil
}

// LocateViews implements [xr.Session]. The simulated head sits at the
// origin of a local space, 1.6m above the floor in stage spaces.
func (s *Session) LocateViews(info xr.ViewLocateInfo) (xr.ViewStateFlags, []xr.View, error) {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpLocateViews); err != nil {
		return 0, nil, err
	}
	if err := s.checkUsable(); err != nil {
		return 0, nil, err
	}
	sp, ok := info.Space.(*space)
	if !ok || sp.destroyed {
		return 0, nil, fmt.Errorf("xrsim: locate views: %w", xr.ErrHandleInvalid)
	}
	s.locateTimes = append(s.locateTimes, info.DisplayTime)

	var height float32
	switch sp.kind {
	case xr.ReferenceSpaceStage, xr.ReferenceSpaceLocalFloor:
		height = 1.6
	}
	half := float32(math.Pi / 4)
	fov := xr.Fovf{AngleLeft: -half, AngleRight: half, AngleUp: half, AngleDown: -half}

	n := info.ViewConfigurationType.ViewCount()
	views := make([]xr.View, n)
	for i := range views {
		x := float32(0)
		if n == 2 {
			x = s.rt.cfg.IPD / 2
			if i == 0 {
				x = -x
			}
		}
		views[i] = xr.View{
			Pose: xr.Posef{
				Orientation: xr.IdentityQuaternion,
				Position: xr.Vector3f{
					X: x - sp.origin.Position.X,
					Y: height - sp.origin.Position.Y,
					Z: -sp.origin.Position.Z,
				},
			},
			Fov: fov,
		}
	}
	flags := xr.ViewStateOrientationValid | xr.ViewStatePositionValid |
		xr.ViewStateOrientationTracked | xr.ViewStatePositionTracked
	return flags, views, nil
}

// Destroy implements [xr.Session].
func (s *Session) Destroy() error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if s.destroyed {
		return xr.ErrHandleInvalid
	}
	for _, sc := range s.swapchains {
		sc.destroyLocked()
	}
	s.destroyed = true
	s.running = false
	return nil
}

type space struct {
	kind      xr.ReferenceSpaceType
	origin    xr.Posef
	destroyed bool
}

func (sp *space) Type() xr.ReferenceSpaceType { return sp.kind }

func (sp *space) Destroy() error {
	if sp.destroyed {
		return xr.ErrHandleInvalid
	}
	sp.destroyed = true
	return nil
}

// swapchainTextureUsage maps swapchain usage flags to texture usages.
func swapchainTextureUsage(flags xr.SwapchainUsageFlags) gputypes.TextureUsage {
	usage := gputypes.TextureUsageTextureBinding
	if flags&xr.SwapchainUsageColorAttachment != 0 || flags&xr.SwapchainUsageDepthStencilAttachment != 0 {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	if flags&xr.SwapchainUsageTransferDst != 0 {
		usage |= gputypes.TextureUsageCopyDst
	}
	if flags&xr.SwapchainUsageTransferSrc != 0 {
		usage |= gputypes.TextureUsageCopySrc
	}
	if flags&xr.SwapchainUsageUnorderedAccess != 0 {
		usage |= gputypes.TextureUsageStorageBinding
	}
	return usage
}

// imageDescriptor describes one swapchain image on the bound device.
func imageDescriptor(label string, info xr.SwapchainCreateInfo) *hal.TextureDescriptor {
	return &hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              info.Width,
			Height:             info.Height,
			DepthOrArrayLayers: info.ArraySize,
		},
		MipLevelCount: info.MipCount,
		SampleCount:   info.SampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        info.Format,
		Usage:         swapchainTextureUsage(info.UsageFlags),
	}
}
