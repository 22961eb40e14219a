// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

import (
	"testing"
	"time"
)

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		s    SessionState
		want string
	}{
		{SessionStateUnknown, "UNKNOWN"},
		{SessionStateReady, "READY"},
		{SessionStateLossPending, "LOSS_PENDING"},
		{SessionStateExiting, "EXITING"},
		{SessionState(99), "SessionState(99)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("SessionState(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, v := range []ViewConfigurationType{ViewConfigurationPrimaryMono, ViewConfigurationPrimaryStereo} {
		text, _ := v.MarshalText()
		var got ViewConfigurationType
		if err := got.UnmarshalText(text); err != nil || got != v {
			t.Errorf("view configuration %s: got %s, %v", v, got, err)
		}
	}
	for _, r := range []ReferenceSpaceType{ReferenceSpaceView, ReferenceSpaceLocal, ReferenceSpaceStage, ReferenceSpaceLocalFloor} {
		text, _ := r.MarshalText()
		var got ReferenceSpaceType
		if err := got.UnmarshalText(text); err != nil || got != r {
			t.Errorf("reference space %s: got %s, %v", r, got, err)
		}
	}
	for _, m := range []EnvironmentBlendMode{EnvironmentBlendOpaque, EnvironmentBlendAdditive, EnvironmentBlendAlphaBlend} {
		text, _ := m.MarshalText()
		var got EnvironmentBlendMode
		if err := got.UnmarshalText(text); err != nil || got != m {
			t.Errorf("blend mode %s: got %s, %v", m, got, err)
		}
	}
}

func TestUnmarshalTextRejectsUnknown(t *testing.T) {
	var v ViewConfigurationType
	if err := v.UnmarshalText([]byte("quad")); err == nil {
		t.Error("expected error for unknown view configuration")
	}
	var r ReferenceSpaceType
	if err := r.UnmarshalText([]byte("LOCAL")); err == nil {
		t.Error("reference space names are lower case")
	}
	var m EnvironmentBlendMode
	if err := m.UnmarshalText(nil); err == nil {
		t.Error("expected error for empty blend mode")
	}
}

func TestViewCount(t *testing.T) {
	if n := ViewConfigurationPrimaryMono.ViewCount(); n != 1 {
		t.Errorf("mono views = %d", n)
	}
	if n := ViewConfigurationPrimaryStereo.ViewCount(); n != 2 {
		t.Errorf("stereo views = %d", n)
	}
}

func TestDuration(t *testing.T) {
	if got := FromDuration(-time.Second); got != 0 {
		t.Errorf("FromDuration(-1s) = %d, want 0", got)
	}
	if got := FromDuration(5 * time.Millisecond).Std(); got != 5*time.Millisecond {
		t.Errorf("round trip = %v", got)
	}
	if got := Time(1000).Add(11); got != 1011 {
		t.Errorf("Add = %d, want 1011", got)
	}
}

func TestEventKind(t *testing.T) {
	tests := []struct {
		e    Event
		want string
	}{
		{nil, "none"},
		{EventSessionStateChanged{State: SessionStateReady}, "session_state_changed"},
		{EventEventsLost{LostEventCount: 3}, "events_lost"},
		{EventInstanceLossPending{}, "instance_loss_pending"},
		{EventInteractionProfileChanged{}, "interaction_profile_changed"},
	}
	for _, tt := range tests {
		if got := EventKind(tt.e); got != tt.want {
			t.Errorf("EventKind(%T) = %q, want %q", tt.e, got, tt.want)
		}
	}
}
