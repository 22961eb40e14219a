// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

import (
	"fmt"
	"time"
)

// Time is a runtime timestamp in nanoseconds.
type Time int64

// Duration is a runtime interval in nanoseconds.
type Duration int64

// InfiniteDuration waits without a bound.
const InfiniteDuration Duration = 0x7fffffffffffffff

// FromDuration converts a Go duration. Negative values become zero.
func FromDuration(d time.Duration) Duration {
	if d < 0 {
		return 0
	}
	return Duration(d)
}

// Std converts to a Go duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Add returns t+d.
func (t Time) Add(d Duration) Time { return t + Time(d) }

// SessionState is the lifecycle state of a session as reported by the runtime.
type SessionState int

const (
	SessionStateUnknown SessionState = iota
	SessionStateIdle
	SessionStateReady
	SessionStateSynchronized
	SessionStateVisible
	SessionStateFocused
	SessionStateStopping
	SessionStateLossPending
	SessionStateExiting
)

// String returns the string representation of SessionState.
func (s SessionState) String() string {
	switch s {
	case SessionStateUnknown:
		return "UNKNOWN"
	case SessionStateIdle:
		return "IDLE"
	case SessionStateReady:
		return "READY"
	case SessionStateSynchronized:
		return "SYNCHRONIZED"
	case SessionStateVisible:
		return "VISIBLE"
	case SessionStateFocused:
		return "FOCUSED"
	case SessionStateStopping:
		return "STOPPING"
	case SessionStateLossPending:
		return "LOSS_PENDING"
	case SessionStateExiting:
		return "EXITING"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// FormFactor selects the kind of system to drive.
type FormFactor int

const (
	FormFactorHeadMountedDisplay FormFactor = iota + 1
	FormFactorHandheldDisplay
)

// ViewConfigurationType describes how many views a frame carries.
type ViewConfigurationType int

const (
	ViewConfigurationPrimaryMono ViewConfigurationType = iota + 1
	ViewConfigurationPrimaryStereo
)

// ViewCount returns the number of views the configuration carries.
func (v ViewConfigurationType) ViewCount() int {
	if v == ViewConfigurationPrimaryMono {
		return 1
	}
	return 2
}

// String returns the string representation of ViewConfigurationType.
func (v ViewConfigurationType) String() string {
	switch v {
	case ViewConfigurationPrimaryMono:
		return "primary_mono"
	case ViewConfigurationPrimaryStereo:
		return "primary_stereo"
	default:
		return fmt.Sprintf("ViewConfigurationType(%d)", int(v))
	}
}

// ReferenceSpaceType selects the coordinate frame poses are resolved in.
type ReferenceSpaceType int

const (
	ReferenceSpaceView ReferenceSpaceType = iota + 1
	ReferenceSpaceLocal
	ReferenceSpaceStage
	ReferenceSpaceLocalFloor
)

// String returns the string representation of ReferenceSpaceType.
func (r ReferenceSpaceType) String() string {
	switch r {
	case ReferenceSpaceView:
		return "view"
	case ReferenceSpaceLocal:
		return "local"
	case ReferenceSpaceStage:
		return "stage"
	case ReferenceSpaceLocalFloor:
		return "local_floor"
	default:
		return fmt.Sprintf("ReferenceSpaceType(%d)", int(r))
	}
}

// ParseReferenceSpaceType parses the lower-case name returned by String.
func ParseReferenceSpaceType(s string) (ReferenceSpaceType, error) {
	for _, r := range []ReferenceSpaceType{ReferenceSpaceView, ReferenceSpaceLocal, ReferenceSpaceStage, ReferenceSpaceLocalFloor} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("xr: unknown reference space %q", s)
}

// EnvironmentBlendMode controls how composited frames blend with the real world.
type EnvironmentBlendMode int

const (
	EnvironmentBlendOpaque EnvironmentBlendMode = iota + 1
	EnvironmentBlendAdditive
	EnvironmentBlendAlphaBlend
)

// String returns the string representation of EnvironmentBlendMode.
func (m EnvironmentBlendMode) String() string {
	switch m {
	case EnvironmentBlendOpaque:
		return "opaque"
	case EnvironmentBlendAdditive:
		return "additive"
	case EnvironmentBlendAlphaBlend:
		return "alpha_blend"
	default:
		return fmt.Sprintf("EnvironmentBlendMode(%d)", int(m))
	}
}

// ParseEnvironmentBlendMode parses the lower-case name returned by String.
func ParseEnvironmentBlendMode(s string) (EnvironmentBlendMode, error) {
	for _, m := range []EnvironmentBlendMode{EnvironmentBlendOpaque, EnvironmentBlendAdditive, EnvironmentBlendAlphaBlend} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("xr: unknown environment blend mode %q", s)
}

// SystemID identifies a system discovered on an instance.
type SystemID uint64

// SystemProperties describes a discovered system.
type SystemProperties struct {
	SystemID   SystemID
	VendorID   uint32
	SystemName string

	MaxLayerCount           uint32
	MaxSwapchainImageWidth  uint32
	MaxSwapchainImageHeight uint32

	OrientationTracking bool
	PositionTracking    bool
}

// ViewConfigurationView holds the recommended and maximum image sizes for one view.
type ViewConfigurationView struct {
	RecommendedImageRectWidth       uint32
	MaxImageRectWidth               uint32
	RecommendedImageRectHeight      uint32
	MaxImageRectHeight              uint32
	RecommendedSwapchainSampleCount uint32
	MaxSwapchainSampleCount         uint32
}

// FrameState is returned by [Session.WaitFrame].
type FrameState struct {
	PredictedDisplayTime   Time
	PredictedDisplayPeriod Duration
	ShouldRender           bool
}

// Vector2f is a 2D vector.
type Vector2f struct {
	X, Y float32
}

// Vector3f is a 3D vector.
type Vector3f struct {
	X, Y, Z float32
}

// Quaternionf is a rotation.
type Quaternionf struct {
	X, Y, Z, W float32
}

// IdentityQuaternion is the rotation that leaves vectors unchanged.
var IdentityQuaternion = Quaternionf{W: 1}

// Posef is a rigid transform.
type Posef struct {
	Orientation Quaternionf
	Position    Vector3f
}

// IdentityPose is the pose at the origin with no rotation.
var IdentityPose = Posef{Orientation: IdentityQuaternion}

// Fovf holds the four half-angles of a view frustum in radians.
type Fovf struct {
	AngleLeft  float32
	AngleRight float32
	AngleUp    float32
	AngleDown  float32
}

// Offset2Di is an integer offset.
type Offset2Di struct {
	X, Y int32
}

// Extent2Di is an integer size.
type Extent2Di struct {
	Width, Height int32
}

// Rect2Di is an integer rectangle.
type Rect2Di struct {
	Offset Offset2Di
	Extent Extent2Di
}

// View is a located eye view.
type View struct {
	Pose Posef
	Fov  Fovf
}

// ViewStateFlags reports which parts of located views are valid.
type ViewStateFlags uint32

const (
	ViewStateOrientationValid ViewStateFlags = 1 << iota
	ViewStatePositionValid
	ViewStateOrientationTracked
	ViewStatePositionTracked
)

// ViewLocateInfo parameterizes [Session.LocateViews].
type ViewLocateInfo struct {
	ViewConfigurationType ViewConfigurationType
	DisplayTime           Time
	Space                 Space
}
