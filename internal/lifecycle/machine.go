// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package lifecycle tracks the session lifecycle reported by the runtime and
// decides whether the frame loop may pace frames.
//
// The transition logic is the pure function [Next]; [Machine] applies its
// effects (begin/end session) against the runtime and [Poller] feeds it from
// the runtime event queue.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/xrloop/xr"
)

// ErrBeginSession wraps a failed BeginSession issued on READY.
var ErrBeginSession = errors.New("lifecycle: begin session failed")

// Status is the lifecycle as the loop sees it.
type Status struct {
	// State is the last state reported by the runtime.
	State xr.SessionState

	// Running is true between a successful BeginSession and the next
	// STOPPING, LOSS_PENDING, IDLE or EXITING.
	Running bool
}

// Effect is the side effect a transition asks for.
type Effect int

const (
	// EffectNone requires no runtime call.
	EffectNone Effect = iota

	// EffectBeginSession asks for BeginSession. Running only becomes true
	// once the call succeeded.
	EffectBeginSession

	// EffectEndSession asks for EndSession after the runtime entered STOPPING.
	EffectEndSession

	// EffectExit tells the loop that the session is over.
	EffectExit
)

// String returns the string representation of Effect.
func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectBeginSession:
		return "begin_session"
	case EffectEndSession:
		return "end_session"
	case EffectExit:
		return "exit"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

// Next computes the lifecycle after the runtime reported state. It performs
// no I/O.
func Next(s Status, state xr.SessionState) (Status, Effect) {
	next := Status{State: state, Running: s.Running}
	switch state {
	case xr.SessionStateReady:
		if s.Running {
			return next, EffectNone
		}
		return next, EffectBeginSession
	case xr.SessionStateStopping:
		next.Running = false
		return next, EffectEndSession
	case xr.SessionStateExiting:
		next.Running = false
		return next, EffectExit
	case xr.SessionStateLossPending, xr.SessionStateIdle:
		next.Running = false
		return next, EffectNone
	default:
		return next, EffectNone
	}
}

// SessionControl is the part of [xr.Session] the machine drives.
type SessionControl interface {
	BeginSession(viewConfig xr.ViewConfigurationType) error
	EndSession() error
}

// Machine applies lifecycle transitions to a session.
type Machine struct {
	session    SessionControl
	viewConfig xr.ViewConfigurationType
	log        *slog.Logger

	status   Status
	exited   bool
	sessions int
}

// NewMachine creates a machine for session. BeginSession is issued with viewConfig.
func NewMachine(session SessionControl, viewConfig xr.ViewConfigurationType, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Machine{session: session, viewConfig: viewConfig, log: log}
}

// Status returns the current lifecycle.
func (m *Machine) Status() Status { return m.status }

// Running reports whether frames may be paced.
func (m *Machine) Running() bool { return m.status.Running }

// Exited reports whether the runtime moved the session to EXITING.
func (m *Machine) Exited() bool { return m.exited }

// Sessions returns how many times BeginSession succeeded.
func (m *Machine) Sessions() int { return m.sessions }

// Apply feeds a reported state into the machine and performs the resulting
// effect. A failed BeginSession is returned wrapped in [ErrBeginSession];
// a failed EndSession is only logged.
func (m *Machine) Apply(state xr.SessionState) error {
	prev := m.status
	next, effect := Next(prev, state)
	m.status = next
	m.log.Info("session state changed", "from", prev.State, "to", state, "effect", effect)

	switch effect {
	case EffectBeginSession:
		if err := m.session.BeginSession(m.viewConfig); err != nil {
			return fmt.Errorf("%w: %w", ErrBeginSession, err)
		}
		m.status.Running = true
		m.sessions++
		m.log.Info("session begun", "view_configuration", m.viewConfig)
	case EffectEndSession:
		if err := m.session.EndSession(); err != nil {
			m.log.Warn("end session failed", "err", err)
		} else {
			m.log.Info("session ended")
		}
	case EffectExit:
		m.exited = true
	}
	return nil
}
