// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

// Event is a notification delivered by [Instance.PollEvent].
//
// The concrete types below are the ones the loop recognizes. Runtimes may
// deliver other kinds; consumers must ignore what they do not understand.
type Event interface {
	eventKind() string
}

// EventSessionStateChanged reports a session lifecycle transition.
type EventSessionStateChanged struct {
	State SessionState
	Time  Time
}

// EventEventsLost reports that the runtime event queue overflowed.
type EventEventsLost struct {
	LostEventCount uint32
}

// EventInstanceLossPending reports that the instance will become unusable at LossTime.
type EventInstanceLossPending struct {
	LossTime Time
}

// EventReferenceSpaceChangePending reports a recentering of a reference space.
type EventReferenceSpaceChangePending struct {
	ReferenceSpaceType ReferenceSpaceType
	ChangeTime         Time
}

// EventInteractionProfileChanged reports that active interaction profiles changed.
type EventInteractionProfileChanged struct{}

func (EventSessionStateChanged) eventKind() string         { return "session_state_changed" }
func (EventEventsLost) eventKind() string                  { return "events_lost" }
func (EventInstanceLossPending) eventKind() string         { return "instance_loss_pending" }
func (EventReferenceSpaceChangePending) eventKind() string { return "reference_space_change_pending" }
func (EventInteractionProfileChanged) eventKind() string   { return "interaction_profile_changed" }

// EventKind returns a short, stable name for an event, for logging.
func EventKind(e Event) string {
	if e == nil {
		return "none"
	}
	return e.eventKind()
}
