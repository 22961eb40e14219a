// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrsim

import (
	"fmt"
	"strings"

	"github.com/gogpu/xrloop/xr"
)

type actionSet struct {
	rt        *Runtime
	name      string
	actions   []*action
	attached  bool
	destroyed bool
}

type action struct {
	set  *actionSet
	name string
	kind xr.ActionType
}

// CreateActionSet implements [xr.ActionInstance].
func (r *Runtime) CreateActionSet(name, localizedName string, priority uint32) (xr.ActionSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(OpCreateActionSet); err != nil {
		return nil, err
	}
	if name == "" || localizedName == "" {
		return nil, fmt.Errorf("xrsim: action set needs a name and a localized name")
	}
	for _, s := range r.sets {
		if s.name == name && !s.destroyed {
			return nil, fmt.Errorf("xrsim: action set %q already exists", name)
		}
	}
	set := &actionSet{rt: r, name: name}
	r.sets = append(r.sets, set)
	return set, nil
}

// SuggestInteractionProfileBindings implements [xr.ActionInstance].
func (r *Runtime) SuggestInteractionProfileBindings(profile string, bindings []xr.Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(OpSuggestBindings); err != nil {
		return err
	}
	if !strings.HasPrefix(profile, "/interaction_profiles/") {
		return fmt.Errorf("xrsim: invalid interaction profile %q", profile)
	}
	for _, b := range bindings {
		if !strings.HasPrefix(b.Path, "/user/") {
			return fmt.Errorf("xrsim: invalid binding path %q", b.Path)
		}
		if a, ok := b.Action.(*action); !ok || a.set.attached {
			return fmt.Errorf("xrsim: binding %q: action set already attached", b.Path)
		}
	}
	r.bound[profile] = append(r.bound[profile], bindings...)
	return nil
}

// Bindings returns the bindings suggested for profile.
func (r *Runtime) Bindings(profile string) []xr.Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]xr.Binding, len(r.bound[profile]))
	copy(out, r.bound[profile])
	return out
}

// AttachActionSets implements [xr.ActionSession].
func (s *Session) AttachActionSets(sets []xr.ActionSet) error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpAttachActionSets); err != nil {
		return err
	}
	if err := s.checkUsable(); err != nil {
		return err
	}
	if len(s.attached) > 0 {
		return fmt.Errorf("xrsim: action sets already attached: %w", xr.ErrCallOrderInvalid)
	}
	for _, set := range sets {
		as, ok := set.(*actionSet)
		if !ok || as.destroyed {
			return xr.ErrHandleInvalid
		}
		as.attached = true
	}
	s.attached = append(s.attached, sets...)
	return nil
}

// SyncActions implements [xr.ActionSession].
func (s *Session) SyncActions(sets []xr.ActionSet) error {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	if err := s.rt.record(OpSyncActions); err != nil {
		return err
	}
	if err := s.checkUsable(); err != nil {
		return err
	}
	if !s.running {
		return xr.ErrSessionNotRunning
	}
	for _, set := range sets {
		as, ok := set.(*actionSet)
		if !ok || !as.attached {
			return fmt.Errorf("xrsim: sync of unattached action set: %w", xr.ErrCallOrderInvalid)
		}
	}
	return nil
}

func (as *actionSet) Name() string { return as.name }

func (as *actionSet) CreateAction(name, localizedName string, kind xr.ActionType, _ []string) (xr.Action, error) {
	as.rt.mu.Lock()
	defer as.rt.mu.Unlock()
	if as.destroyed {
		return nil, xr.ErrHandleInvalid
	}
	if as.attached {
		return nil, fmt.Errorf("xrsim: create action on attached set: %w", xr.ErrCallOrderInvalid)
	}
	if name == "" || localizedName == "" {
		return nil, fmt.Errorf("xrsim: action needs a name and a localized name")
	}
	a := &action{set: as, name: name, kind: kind}
	as.actions = append(as.actions, a)
	return a, nil
}

func (as *actionSet) Destroy() error {
	as.rt.mu.Lock()
	defer as.rt.mu.Unlock()
	if err := as.rt.record(OpDestroyActionSet); err != nil {
		return err
	}
	if as.destroyed {
		return xr.ErrHandleInvalid
	}
	as.destroyed = true
	return nil
}

func (a *action) Name() string        { return a.name }
func (a *action) Type() xr.ActionType { return a.kind }

func (a *action) StateVector2f(session xr.Session, _ string) (xr.ActionStateVector2f, error) {
	rt := a.set.rt
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if a.kind != xr.ActionTypeVector2f {
		return xr.ActionStateVector2f{}, fmt.Errorf("xrsim: action %q is not a vector2 action", a.name)
	}
	if s, ok := session.(*Session); !ok || s != rt.session {
		return xr.ActionStateVector2f{}, xr.ErrHandleInvalid
	}
	if !a.set.attached {
		return xr.ActionStateVector2f{}, fmt.Errorf("xrsim: action set not attached: %w", xr.ErrCallOrderInvalid)
	}
	v := rt.cfg.Thumbstick
	return xr.ActionStateVector2f{
		CurrentState: v,
		IsActive:     v != (xr.Vector2f{}),
	}, nil
}
