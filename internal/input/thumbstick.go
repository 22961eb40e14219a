// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package input wires the minimal thumbstick action. Input is optional:
// every failure is logged and never stops the frame loop.
package input

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/xrloop/xr"
)

// Names of the action set and its single action.
const (
	SetName    = "set"
	ActionName = "action"
)

// Interaction profiles the thumbstick is bound for.
const (
	ProfileValveIndex  = "/interaction_profiles/valve/index_controller"
	ProfileOculusTouch = "/interaction_profiles/oculus/touch_controller"
)

// Hand paths.
const (
	LeftHand  = "/user/hand/left"
	RightHand = "/user/hand/right"
)

// ErrUnsupported is returned when the runtime does not implement actions.
var ErrUnsupported = errors.New("input: runtime does not support actions")

// Thumbstick is a vector2 action bound to both hands' thumbsticks.
type Thumbstick struct {
	session xr.Session
	actions xr.ActionSession
	set     xr.ActionSet
	action  xr.Action
	log     *slog.Logger

	last   xr.Vector2f
	syncs  uint64
	errors uint64
}

// Setup creates the action set, suggests bindings for the known controllers
// and attaches the set to session.
func Setup(instance xr.Instance, session xr.Session, log *slog.Logger) (*Thumbstick, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ai, ok := instance.(xr.ActionInstance)
	if !ok {
		return nil, ErrUnsupported
	}
	as, ok := session.(xr.ActionSession)
	if !ok {
		return nil, ErrUnsupported
	}

	set, err := ai.CreateActionSet(SetName, "Set", 0)
	if err != nil {
		return nil, fmt.Errorf("input: create action set: %w", err)
	}
	action, err := set.CreateAction(ActionName, "Action", xr.ActionTypeVector2f, []string{LeftHand, RightHand})
	if err != nil {
		destroySet(set, log)
		return nil, fmt.Errorf("input: create action: %w", err)
	}

	for _, profile := range []string{ProfileValveIndex, ProfileOculusTouch} {
		bindings := []xr.Binding{
			{Action: action, Path: LeftHand + "/input/thumbstick"},
			{Action: action, Path: RightHand + "/input/thumbstick"},
		}
		if err := ai.SuggestInteractionProfileBindings(profile, bindings); err != nil {
			// A runtime may not know every profile; the other one may still work.
			log.Warn("suggest bindings failed", "profile", profile, "err", err)
		}
	}

	if err := as.AttachActionSets([]xr.ActionSet{set}); err != nil {
		destroySet(set, log)
		return nil, fmt.Errorf("input: attach action set: %w", err)
	}
	log.Debug("thumbstick action attached", "set", SetName, "action", ActionName)
	return &Thumbstick{session: session, actions: as, set: set, action: action, log: log}, nil
}

// destroySet releases a set that failed setup.
func destroySet(set xr.ActionSet, log *slog.Logger) {
	if err := set.Destroy(); err != nil {
		log.Warn("destroy action set after failed setup", "set", SetName, "err", err)
	}
}

// Sync synchronizes actions and reads the thumbstick. Errors are logged and
// the last known value is returned.
func (t *Thumbstick) Sync() xr.Vector2f {
	if err := t.actions.SyncActions([]xr.ActionSet{t.set}); err != nil {
		t.errors++
		t.log.Debug("sync actions failed", "err", err)
		return t.last
	}
	state, err := t.action.StateVector2f(t.session, "")
	if err != nil {
		t.errors++
		t.log.Debug("read thumbstick failed", "err", err)
		return t.last
	}
	t.syncs++
	if state.IsActive {
		t.last = state.CurrentState
		t.log.Debug("thumbstick", "x", state.CurrentState.X, "y", state.CurrentState.Y)
	}
	return t.last
}

// Last returns the most recent active value.
func (t *Thumbstick) Last() xr.Vector2f { return t.last }

// Stats returns successful syncs and failed attempts.
func (t *Thumbstick) Stats() (syncs, failures uint64) { return t.syncs, t.errors }

// Close destroys the action set.
func (t *Thumbstick) Close() error {
	return t.set.Destroy()
}
