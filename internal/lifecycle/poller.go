// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/xrloop/xr"
)

// ErrInstanceLossPending is returned by [Poller.Drain] when the runtime
// announced that the instance is going away. The loop stops; restarting
// requires a new instance.
var ErrInstanceLossPending = errors.New("lifecycle: instance loss pending")

// EventSource is the part of [xr.Instance] the poller drains.
type EventSource interface {
	PollEvent() (xr.Event, bool, error)
}

// Poller drains runtime events into a [Machine].
type Poller struct {
	src     EventSource
	machine *Machine
	log     *slog.Logger

	lostEvents uint64
}

// NewPoller creates a poller feeding machine from src.
func NewPoller(src EventSource, machine *Machine, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Poller{src: src, machine: machine, log: log}
}

// LostEvents returns the total number of events the runtime reported as lost.
func (p *Poller) LostEvents() uint64 { return p.lostEvents }

// Drain processes every queued event without blocking and returns how many
// were handled. It stops early on a poll error, a failed BeginSession or an
// instance loss notification.
func (p *Poller) Drain() (int, error) {
	n := 0
	for {
		ev, ok, err := p.src.PollEvent()
		if err != nil {
			return n, fmt.Errorf("lifecycle: poll event: %w", err)
		}
		if !ok {
			return n, nil
		}
		n++
		if err := p.dispatch(ev); err != nil {
			return n, err
		}
	}
}

func (p *Poller) dispatch(ev xr.Event) error {
	switch e := ev.(type) {
	case xr.EventSessionStateChanged:
		return p.machine.Apply(e.State)
	case xr.EventEventsLost:
		// Lost events may include state changes; the runtime re-reports the
		// current state on the next transition, so keep going.
		p.lostEvents += uint64(e.LostEventCount)
		p.log.Warn("runtime dropped events", "lost", e.LostEventCount, "total", p.lostEvents)
		return nil
	case xr.EventInstanceLossPending:
		p.log.Error("instance loss pending", "loss_time", e.LossTime)
		p.machine.status.Running = false
		return fmt.Errorf("%w (loss time %d)", ErrInstanceLossPending, e.LossTime)
	default:
		p.log.Debug("ignoring event", "kind", xr.EventKind(ev))
		return nil
	}
}
