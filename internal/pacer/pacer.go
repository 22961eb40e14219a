// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pacer brackets per-frame work between the runtime's wait, begin
// and end frame calls.
package pacer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/xrloop/xr"
)

// ErrOutOfOrder is returned when Wait, Begin and End are not called in order.
var ErrOutOfOrder = errors.New("pacer: frame calls out of order")

// FrameSession is the part of [xr.Session] the pacer drives.
type FrameSession interface {
	WaitFrame() (xr.FrameState, error)
	BeginFrame() error
	EndFrame(info xr.FrameEndInfo) error
}

type phase int

const (
	phaseIdle phase = iota
	phaseWaited
	phaseBegun
)

// Pacer enforces wait → begin → end within one iteration.
type Pacer struct {
	session FrameSession
	log     *slog.Logger

	phase phase
	frame xr.FrameState

	ended     uint64
	endFailed uint64
}

// New creates a pacer for session.
func New(session FrameSession, log *slog.Logger) *Pacer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Pacer{session: session, log: log}
}

// Wait blocks until the runtime wants the next frame. A frame that was begun
// but never ended is discarded by the runtime on the next wait.
func (p *Pacer) Wait() (xr.FrameState, error) {
	if p.phase == phaseWaited {
		return xr.FrameState{}, fmt.Errorf("%w: wait twice without begin", ErrOutOfOrder)
	}
	fs, err := p.session.WaitFrame()
	if err != nil {
		p.phase = phaseIdle
		return xr.FrameState{}, fmt.Errorf("pacer: wait frame: %w", err)
	}
	p.phase = phaseWaited
	p.frame = fs
	return fs, nil
}

// Begin marks the start of GPU work for the waited frame.
func (p *Pacer) Begin() error {
	if p.phase != phaseWaited {
		return fmt.Errorf("%w: begin without wait", ErrOutOfOrder)
	}
	if err := p.session.BeginFrame(); err != nil {
		p.phase = phaseIdle
		return fmt.Errorf("pacer: begin frame: %w", err)
	}
	p.phase = phaseBegun
	return nil
}

// End submits layers for the begun frame at its predicted display time.
// Runtime failures are logged and swallowed; only misuse is returned.
func (p *Pacer) End(blend xr.EnvironmentBlendMode, layers []xr.CompositionLayer) error {
	if p.phase != phaseBegun {
		return fmt.Errorf("%w: end without begin", ErrOutOfOrder)
	}
	p.phase = phaseIdle
	info := xr.FrameEndInfo{
		DisplayTime:          p.frame.PredictedDisplayTime,
		EnvironmentBlendMode: blend,
		Layers:               layers,
	}
	if err := p.session.EndFrame(info); err != nil {
		p.endFailed++
		p.log.Warn("end frame failed", "display_time", info.DisplayTime, "layers", len(layers), "err", err)
		return nil
	}
	p.ended++
	return nil
}

// InFrame reports whether a frame was waited or begun but not ended.
func (p *Pacer) InFrame() bool { return p.phase != phaseIdle }

// Stats returns how many EndFrame calls succeeded and failed.
func (p *Pacer) Stats() (ended, failed uint64) { return p.ended, p.endFailed }

// Reset forgets an unfinished frame, for example after the session stopped.
func (p *Pacer) Reset() { p.phase = phaseIdle }
