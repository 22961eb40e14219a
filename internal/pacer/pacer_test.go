// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pacer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/xrloop/xr"
	"github.com/gogpu/xrloop/xr/xrsim"
)

// runningSession returns a simulated session that has begun.
func runningSession(t *testing.T) (*xrsim.Runtime, *xrsim.Session) {
	t.Helper()
	rt := xrsim.New(xrsim.Config{StartTime: 1000, Period: 11, AutoReady: true})
	sys, err := rt.System(xr.FormFactorHeadMountedDisplay)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.CreateSession(sys, xr.GraphicsBinding{}); err != nil {
		t.Fatal(err)
	}
	for {
		_, ok, err := rt.PollEvent()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
	}
	sess := rt.Session()
	if err := sess.BeginSession(xr.ViewConfigurationPrimaryStereo); err != nil {
		t.Fatal(err)
	}
	rt.ResetCalls()
	return rt, sess
}

func TestPacerOrder(t *testing.T) {
	rt, sess := runningSession(t)
	p := New(sess, nil)

	fs, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if fs.PredictedDisplayTime != 1000 || fs.PredictedDisplayPeriod != 11 {
		t.Errorf("frame = %+v, want time 1000 period 11", fs)
	}
	if !p.InFrame() {
		t.Error("expected InFrame after Wait")
	}
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := p.End(xr.EnvironmentBlendOpaque, nil); err != nil {
		t.Fatalf("End: %v", err)
	}
	if p.InFrame() {
		t.Error("expected idle after End")
	}

	want := []string{xrsim.OpWaitFrame, xrsim.OpBeginFrame, xrsim.OpEndFrame}
	if diff := cmp.Diff(want, rt.Calls()); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
	frames := sess.Frames()
	if len(frames) != 1 || frames[0].DisplayTime != 1000 {
		t.Errorf("frames = %+v, want one frame at 1000", frames)
	}
	if ended, failed := p.Stats(); ended != 1 || failed != 0 {
		t.Errorf("stats = %d/%d, want 1/0", ended, failed)
	}
}

func TestPacerRejectsMisuse(t *testing.T) {
	tests := []struct {
		name string
		run  func(p *Pacer) error
	}{
		{"begin without wait", func(p *Pacer) error { return p.Begin() }},
		{"end without begin", func(p *Pacer) error { return p.End(xr.EnvironmentBlendOpaque, nil) }},
		{"end after wait", func(p *Pacer) error {
			if _, err := p.Wait(); err != nil {
				return err
			}
			return p.End(xr.EnvironmentBlendOpaque, nil)
		}},
		{"wait twice", func(p *Pacer) error {
			if _, err := p.Wait(); err != nil {
				return err
			}
			_, err := p.Wait()
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sess := runningSession(t)
			if err := tt.run(New(sess, nil)); !errors.Is(err, ErrOutOfOrder) {
				t.Fatalf("err = %v, want ErrOutOfOrder", err)
			}
		})
	}
}

func TestPacerEndFailureSwallowed(t *testing.T) {
	rt, sess := runningSession(t)
	rt.Fail(xrsim.OpEndFrame, xr.ErrSessionLost)
	p := New(sess, nil)

	for i := range 2 {
		if _, err := p.Wait(); err != nil {
			t.Fatalf("frame %d Wait: %v", i, err)
		}
		if err := p.Begin(); err != nil {
			t.Fatalf("frame %d Begin: %v", i, err)
		}
		if err := p.End(xr.EnvironmentBlendOpaque, nil); err != nil {
			t.Fatalf("frame %d End must swallow runtime errors: %v", i, err)
		}
	}
	if ended, failed := p.Stats(); ended != 1 || failed != 1 {
		t.Errorf("stats = %d/%d, want 1/1", ended, failed)
	}
	if got := len(sess.Frames()); got != 1 {
		t.Errorf("accepted frames = %d, want 1", got)
	}
}

func TestPacerWaitFailure(t *testing.T) {
	rt, sess := runningSession(t)
	rt.Fail(xrsim.OpWaitFrame, xr.ErrSessionLost)
	p := New(sess, nil)
	if _, err := p.Wait(); !errors.Is(err, xr.ErrSessionLost) {
		t.Fatalf("err = %v, want ErrSessionLost", err)
	}
	if p.InFrame() {
		t.Error("failed wait must leave the pacer idle")
	}
	if _, err := p.Wait(); err != nil {
		t.Fatalf("retry Wait: %v", err)
	}
}

func TestPacerReset(t *testing.T) {
	_, sess := runningSession(t)
	p := New(sess, nil)
	if _, err := p.Wait(); err != nil {
		t.Fatal(err)
	}
	p.Reset()
	if p.InFrame() {
		t.Fatal("expected idle after Reset")
	}
	if err := p.Begin(); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("Begin after Reset = %v, want ErrOutOfOrder", err)
	}
}
