// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package lifecycle

import (
	"errors"
	"testing"

	"github.com/gogpu/xrloop/xr"
)

// scriptedSource returns queued events, then reports an empty queue.
type scriptedSource struct {
	events []xr.Event
	err    error
	polls  int
}

func (s *scriptedSource) PollEvent() (xr.Event, bool, error) {
	s.polls++
	if s.err != nil {
		return nil, false, s.err
	}
	if len(s.events) == 0 {
		return nil, false, nil
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true, nil
}

func stateEvents(states ...xr.SessionState) []xr.Event {
	out := make([]xr.Event, len(states))
	for i, s := range states {
		out[i] = xr.EventSessionStateChanged{State: s}
	}
	return out
}

func TestPollerDrainsAll(t *testing.T) {
	src := &scriptedSource{events: stateEvents(
		xr.SessionStateIdle,
		xr.SessionStateReady,
		xr.SessionStateSynchronized,
	)}
	m := NewMachine(&fakeSession{}, xr.ViewConfigurationPrimaryStereo, nil)
	p := NewPoller(src, m, nil)

	n, err := p.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 3 {
		t.Errorf("handled = %d, want 3", n)
	}
	if src.polls != 4 {
		t.Errorf("polls = %d, want 4 (three events and one empty poll)", src.polls)
	}
	if !m.Running() {
		t.Error("expected running after READY")
	}
	if got := m.Status().State; got != xr.SessionStateSynchronized {
		t.Errorf("state = %v, want SYNCHRONIZED", got)
	}
}

func TestPollerEmptyQueue(t *testing.T) {
	p := NewPoller(&scriptedSource{}, NewMachine(&fakeSession{}, xr.ViewConfigurationPrimaryStereo, nil), nil)
	n, err := p.Drain()
	if err != nil || n != 0 {
		t.Fatalf("Drain = %d, %v; want 0, nil", n, err)
	}
}

func TestPollerIgnoresUnknownEvents(t *testing.T) {
	src := &scriptedSource{events: []xr.Event{
		xr.EventInteractionProfileChanged{},
		xr.EventReferenceSpaceChangePending{ReferenceSpaceType: xr.ReferenceSpaceLocal},
	}}
	m := NewMachine(&fakeSession{}, xr.ViewConfigurationPrimaryStereo, nil)
	n, err := NewPoller(src, m, nil).Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 2 {
		t.Errorf("handled = %d, want 2", n)
	}
	if m.Running() {
		t.Error("unexpected running")
	}
}

func TestPollerEventsLostContinues(t *testing.T) {
	src := &scriptedSource{events: []xr.Event{
		xr.EventEventsLost{LostEventCount: 3},
		xr.EventSessionStateChanged{State: xr.SessionStateReady},
	}}
	m := NewMachine(&fakeSession{}, xr.ViewConfigurationPrimaryStereo, nil)
	p := NewPoller(src, m, nil)
	if _, err := p.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if p.LostEvents() != 3 {
		t.Errorf("lost = %d, want 3", p.LostEvents())
	}
	if !m.Running() {
		t.Error("events after the loss notification must still be handled")
	}
}

func TestPollerInstanceLossStops(t *testing.T) {
	src := &scriptedSource{events: []xr.Event{
		xr.EventSessionStateChanged{State: xr.SessionStateReady},
		xr.EventInstanceLossPending{LossTime: 77},
		xr.EventSessionStateChanged{State: xr.SessionStateFocused},
	}}
	m := NewMachine(&fakeSession{}, xr.ViewConfigurationPrimaryStereo, nil)
	n, err := NewPoller(src, m, nil).Drain()
	if !errors.Is(err, ErrInstanceLossPending) {
		t.Fatalf("err = %v, want ErrInstanceLossPending", err)
	}
	if n != 2 {
		t.Errorf("handled = %d, want 2", n)
	}
	if m.Running() {
		t.Error("running after instance loss")
	}
	if len(src.events) != 1 {
		t.Errorf("remaining events = %d, want 1", len(src.events))
	}
}

func TestPollerPollError(t *testing.T) {
	src := &scriptedSource{err: xr.ErrInstanceLost}
	_, err := NewPoller(src, NewMachine(&fakeSession{}, xr.ViewConfigurationPrimaryStereo, nil), nil).Drain()
	if !errors.Is(err, xr.ErrInstanceLost) {
		t.Fatalf("err = %v, want ErrInstanceLost", err)
	}
}

func TestPollerBeginFailureStopsDrain(t *testing.T) {
	src := &scriptedSource{events: stateEvents(xr.SessionStateReady, xr.SessionStateFocused)}
	m := NewMachine(&fakeSession{beginErr: errors.New("boom")}, xr.ViewConfigurationPrimaryStereo, nil)
	_, err := NewPoller(src, m, nil).Drain()
	if !errors.Is(err, ErrBeginSession) {
		t.Fatalf("err = %v, want ErrBeginSession", err)
	}
	if m.Running() {
		t.Error("running after failed begin")
	}
}
