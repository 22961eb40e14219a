// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package xrsim implements an in-process headless XR runtime.
//
// The simulator follows the OpenXR session lifecycle and frame protocol
// closely enough to drive the frame loop without hardware, and it rejects
// every protocol violation it can detect (double acquire, end without begin,
// release without wait, frame calls outside a running session) with
// [xr.ErrCallOrderInvalid] or [xr.ErrSessionNotRunning]. That makes it
// suitable both as the runtime behind the headless CLI and as the mock
// runtime in tests: every call is recorded and can be counted, and failures
// can be injected per operation.
//
// Usage:
//
//	rt := xrsim.New(xrsim.Config{AutoReady: true, AutoFocus: true})
//	loop, err := xrloop.New(rt, graphics, xrloop.DefaultConfig())
package xrsim

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/xrloop/xr"
)

// Operation names recorded in the call log.
const (
	OpSystem               = "System"
	OpSystemProperties     = "SystemProperties"
	OpEnumerateViews       = "EnumerateViewConfigurationViews"
	OpCreateSession        = "CreateSession"
	OpPollEvent            = "PollEvent"
	OpBeginSession         = "BeginSession"
	OpEndSession           = "EndSession"
	OpRequestExitSession   = "RequestExitSession"
	OpWaitFrame            = "WaitFrame"
	OpBeginFrame           = "BeginFrame"
	OpEndFrame             = "EndFrame"
	OpCreateSwapchain      = "CreateSwapchain"
	OpEnumerateImages      = "EnumerateImages"
	OpAcquireImage         = "AcquireImage"
	OpWaitImage            = "WaitImage"
	OpReleaseImage         = "ReleaseImage"
	OpCreateReferenceSpace = "CreateReferenceSpace"
	OpLocateViews          = "LocateViews"
	OpCreateActionSet      = "CreateActionSet"
	OpDestroyActionSet     = "DestroyActionSet"
	OpSuggestBindings      = "SuggestInteractionProfileBindings"
	OpAttachActionSets     = "AttachActionSets"
	OpSyncActions          = "SyncActions"
)

// Config configures a simulated runtime.
type Config struct {
	// SystemName is reported by SystemProperties.
	SystemName string

	// ViewWidth and ViewHeight are the recommended per-eye image size.
	ViewWidth  uint32
	ViewHeight uint32

	// ImageCount is the number of images in each swapchain ring.
	ImageCount int

	// StartTime is the predicted display time of the first frame.
	StartTime xr.Time

	// Period is the predicted display period.
	Period xr.Duration

	// AutoReady queues IDLE and READY right after session creation.
	AutoReady bool

	// AutoFocus queues SYNCHRONIZED, VISIBLE and FOCUSED after BeginSession.
	AutoFocus bool

	// Realtime makes WaitFrame sleep for one period, pacing the loop like a
	// real display would.
	Realtime bool

	// Thumbstick is the value reported by vector2 actions.
	Thumbstick xr.Vector2f

	// IPD is the distance between the two simulated eyes in meters.
	IPD float32
}

// DefaultConfig returns a runtime configuration resembling a 90 Hz headset.
func DefaultConfig() Config {
	return Config{
		SystemName: "xrsim headless",
		ViewWidth:  1440,
		ViewHeight: 1600,
		ImageCount: 3,
		StartTime:  1_000_000,
		Period:     11_111_111,
		AutoReady:  true,
		AutoFocus:  true,
		IPD:        0.064,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.SystemName == "" {
		c.SystemName = d.SystemName
	}
	if c.ViewWidth == 0 {
		c.ViewWidth = d.ViewWidth
	}
	if c.ViewHeight == 0 {
		c.ViewHeight = d.ViewHeight
	}
	if c.ImageCount <= 0 {
		c.ImageCount = d.ImageCount
	}
	if c.Period <= 0 {
		c.Period = d.Period
	}
	if c.IPD == 0 {
		c.IPD = d.IPD
	}
}

// systemID is the only system the simulator exposes.
const systemID xr.SystemID = 1

// Runtime is a simulated XR instance. It implements [xr.Instance] and
// [xr.ActionInstance].
type Runtime struct {
	mu sync.Mutex

	cfg    Config
	events []xr.Event
	calls  []string
	faults map[string][]error

	session *Session
	sets    []*actionSet
	bound   map[string][]xr.Binding
	lost    bool
}

var (
	_ xr.Instance       = (*Runtime)(nil)
	_ xr.ActionInstance = (*Runtime)(nil)
)

// New creates a simulated runtime. Zero fields of cfg take their defaults.
func New(cfg Config) *Runtime {
	cfg.applyDefaults()
	return &Runtime{
		cfg:    cfg,
		faults: make(map[string][]error),
		bound:  make(map[string][]xr.Binding),
	}
}

// Config returns the effective configuration.
func (r *Runtime) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Push appends events to the event queue. Session state events take effect
// on the simulated session when they are polled.
func (r *Runtime) Push(events ...xr.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

// PushState queues session state changes.
func (r *Runtime) PushState(states ...xr.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushStateLocked(states...)
}

func (r *Runtime) pushStateLocked(states ...xr.SessionState) {
	for _, s := range states {
		r.events = append(r.events, xr.EventSessionStateChanged{State: s, Time: r.nowLocked()})
	}
}

// Fail makes the next calls of op return the given errors, one per call.
func (r *Runtime) Fail(op string, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[op] = append(r.faults[op], errs...)
}

// Calls returns a copy of the call log, excluding PollEvent.
func (r *Runtime) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many times op was called.
func (r *Runtime) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (r *Runtime) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = r.calls[:0]
}

// Session returns the session created on this runtime, or nil.
func (r *Runtime) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// LoseInstance queues an instance-loss notification and fails every later call.
func (r *Runtime) LoseInstance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, xr.EventInstanceLossPending{LossTime: r.nowLocked()})
	r.lost = true
}

// record appends op to the call log and returns an injected fault, if any.
// PollEvent is counted but only its faults are consumed.
func (r *Runtime) record(op string) error {
	if op != OpPollEvent {
		r.calls = append(r.calls, op)
	}
	if errs := r.faults[op]; len(errs) > 0 {
		err := errs[0]
		r.faults[op] = errs[1:]
		return err
	}
	return nil
}

func (r *Runtime) nowLocked() xr.Time {
	if r.session == nil {
		return r.cfg.StartTime
	}
	return r.session.nextTime
}

// System implements [xr.Instance].
func (r *Runtime) System(formFactor xr.FormFactor) (xr.SystemID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(OpSystem); err != nil {
		return 0, err
	}
	if formFactor != xr.FormFactorHeadMountedDisplay {
		return 0, xr.ErrFormFactorUnavailable
	}
	return systemID, nil
}

// SystemProperties implements [xr.Instance].
func (r *Runtime) SystemProperties(system xr.SystemID) (xr.SystemProperties, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(OpSystemProperties); err != nil {
		return xr.SystemProperties{}, err
	}
	if system != systemID {
		return xr.SystemProperties{}, fmt.Errorf("xrsim: system %d: %w", system, xr.ErrHandleInvalid)
	}
	return xr.SystemProperties{
		SystemID:                systemID,
		VendorID:                0x5851, // "XQ"
		SystemName:              r.cfg.SystemName,
		MaxLayerCount:           16,
		MaxSwapchainImageWidth:  r.cfg.ViewWidth * 2,
		MaxSwapchainImageHeight: r.cfg.ViewHeight * 2,
		OrientationTracking:     true,
		PositionTracking:        true,
	}, nil
}

// EnumerateViewConfigurationViews implements [xr.Instance].
func (r *Runtime) EnumerateViewConfigurationViews(system xr.SystemID, viewConfig xr.ViewConfigurationType) ([]xr.ViewConfigurationView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(OpEnumerateViews); err != nil {
		return nil, err
	}
	if system != systemID {
		return nil, fmt.Errorf("xrsim: system %d: %w", system, xr.ErrHandleInvalid)
	}
	views := make([]xr.ViewConfigurationView, viewConfig.ViewCount())
	for i := range views {
		views[i] = xr.ViewConfigurationView{
			RecommendedImageRectWidth:       r.cfg.ViewWidth,
			MaxImageRectWidth:               r.cfg.ViewWidth * 2,
			RecommendedImageRectHeight:      r.cfg.ViewHeight,
			MaxImageRectHeight:              r.cfg.ViewHeight * 2,
			RecommendedSwapchainSampleCount: 1,
			MaxSwapchainSampleCount:         4,
		}
	}
	return views, nil
}

// CreateSession implements [xr.Instance]. Only one session may exist.
func (r *Runtime) CreateSession(system xr.SystemID, binding xr.GraphicsBinding) (xr.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(OpCreateSession); err != nil {
		return nil, err
	}
	if r.lost {
		return nil, xr.ErrInstanceLost
	}
	if system != systemID {
		return nil, fmt.Errorf("xrsim: system %d: %w", system, xr.ErrHandleInvalid)
	}
	if r.session != nil && !r.session.destroyed {
		return nil, fmt.Errorf("xrsim: a session already exists: %w", xr.ErrCallOrderInvalid)
	}
	r.session = &Session{
		rt:       r,
		binding:  binding,
		state:    xr.SessionStateUnknown,
		nextTime: r.cfg.StartTime,
	}
	if r.cfg.AutoReady {
		r.pushStateLocked(xr.SessionStateIdle, xr.SessionStateReady)
	}
	return r.session, nil
}

// PollEvent implements [xr.Instance].
func (r *Runtime) PollEvent() (xr.Event, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(OpPollEvent); err != nil {
		return nil, false, err
	}
	if len(r.events) == 0 {
		return nil, false, nil
	}
	ev := r.events[0]
	r.events = r.events[1:]
	if sc, ok := ev.(xr.EventSessionStateChanged); ok && r.session != nil {
		r.session.state = sc.State
		if sc.State == xr.SessionStateLossPending {
			r.session.running = false
		}
	}
	return ev, true, nil
}

// sleep paces WaitFrame in realtime mode. Called without the lock held.
func (r *Runtime) sleep(d xr.Duration) {
	if d > 0 {
		time.Sleep(d.Std())
	}
}
