// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compose

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/xrloop/xr"
	"github.com/gogpu/xrloop/xr/xrsim"
)

type fixture struct {
	rt    *xrsim.Runtime
	sess  xr.Session
	space xr.Space
	sc    xr.Swapchain
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	rt := xrsim.New(xrsim.Config{ViewWidth: 640, ViewHeight: 480})
	sys, err := rt.System(xr.FormFactorHeadMountedDisplay)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := rt.CreateSession(sys, xr.GraphicsBinding{})
	if err != nil {
		t.Fatal(err)
	}
	space, err := sess.CreateReferenceSpace(xr.ReferenceSpaceLocal, xr.IdentityPose)
	if err != nil {
		t.Fatal(err)
	}
	sc, err := sess.CreateSwapchain(xr.SwapchainCreateInfo{Width: 640, Height: 480, ArraySize: 2, FaceCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	return fixture{rt: rt, sess: sess, space: space, sc: sc}
}

func (f fixture) config(premultiplied bool) Config {
	return Config{
		Space:              f.space,
		Swapchain:          f.sc,
		ViewConfiguration:  xr.ViewConfigurationPrimaryStereo,
		Width:              640,
		Height:             480,
		PremultipliedAlpha: premultiplied,
	}
}

func TestLayerHasTwoFullViews(t *testing.T) {
	f := newFixture(t)
	b, err := New(f.sess, f.config(true), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	layer, err := b.Layer(xr.FrameState{PredictedDisplayTime: 1000, PredictedDisplayPeriod: 11})
	if err != nil {
		t.Fatalf("Layer: %v", err)
	}
	if len(layer.Views) != 2 {
		t.Fatalf("views = %d, want 2", len(layer.Views))
	}
	wantRect := xr.Rect2Di{Extent: xr.Extent2Di{Width: 640, Height: 480}}
	for i, v := range layer.Views {
		if v.SubImage.ImageArrayIndex != uint32(i) {
			t.Errorf("view %d array index = %d, want %d", i, v.SubImage.ImageArrayIndex, i)
		}
		if v.SubImage.ImageRect != wantRect {
			t.Errorf("view %d rect = %+v, want %+v", i, v.SubImage.ImageRect, wantRect)
		}
		if v.SubImage.Swapchain != f.sc {
			t.Errorf("view %d references the wrong swapchain", i)
		}
	}
	if layer.Views[0].Pose.Position.X >= layer.Views[1].Pose.Position.X {
		t.Errorf("left eye x = %v must be left of right eye x = %v",
			layer.Views[0].Pose.Position.X, layer.Views[1].Pose.Position.X)
	}
	if layer.Space != f.space {
		t.Error("layer references the wrong space")
	}
	if diff := cmp.Diff([]xr.Time{1000}, f.rt.Session().LocateTimes()); diff != "" {
		t.Errorf("locate times (-want +got):\n%s", diff)
	}
}

func TestFlags(t *testing.T) {
	tests := []struct {
		premultiplied bool
		want          xr.CompositionLayerFlags
	}{
		{true, xr.LayerBlendTextureSourceAlpha},
		{false, xr.LayerBlendTextureSourceAlpha | xr.LayerUnpremultipliedAlpha},
	}
	for _, tt := range tests {
		if got := Flags(tt.premultiplied); got != tt.want {
			t.Errorf("Flags(%v) = %b, want %b", tt.premultiplied, got, tt.want)
		}
		f := newFixture(t)
		b, err := New(f.sess, f.config(tt.premultiplied), nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := b.Project(make([]xr.View, 2)).LayerFlags; got != tt.want {
			t.Errorf("layer flags = %b, want %b", got, tt.want)
		}
	}
}

func TestLayersDegradeOnLocateFailure(t *testing.T) {
	f := newFixture(t)
	f.rt.Fail(xrsim.OpLocateViews, xr.ErrSessionLost)
	b, err := New(f.sess, f.config(false), nil)
	if err != nil {
		t.Fatal(err)
	}

	if layers := b.Layers(xr.FrameState{PredictedDisplayTime: 5}); layers != nil {
		t.Fatalf("layers = %v, want none", layers)
	}
	if layers := b.Layers(xr.FrameState{PredictedDisplayTime: 6}); len(layers) != 1 {
		t.Fatalf("layers = %d, want 1", len(layers))
	}
	if got, missed := b.Stats(); got != 1 || missed != 1 {
		t.Errorf("stats = %d/%d, want 1/1", got, missed)
	}
}

type monoLocator struct{}

func (monoLocator) LocateViews(xr.ViewLocateInfo) (xr.ViewStateFlags, []xr.View, error) {
	return 0, []xr.View{{Pose: xr.IdentityPose}}, nil
}

func TestLayerRejectsWrongViewCount(t *testing.T) {
	f := newFixture(t)
	b, err := New(monoLocator{}, f.config(true), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Layer(xr.FrameState{}); !errors.Is(err, ErrViewCount) {
		t.Fatalf("Layer = %v, want ErrViewCount", err)
	}
}

func TestNewValidates(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(true)
	cfg.Width = 0
	if _, err := New(f.sess, cfg, nil); err == nil {
		t.Error("expected error for zero width")
	}
	cfg = f.config(true)
	cfg.Space = nil
	if _, err := New(f.sess, cfg, nil); err == nil {
		t.Error("expected error for missing space")
	}
}
