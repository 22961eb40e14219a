// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compose assembles the per-frame projection layer.
package compose

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/xrloop/xr"
)

// ErrViewCount is returned when the runtime located an unexpected number of views.
var ErrViewCount = errors.New("compose: unexpected view count")

// stereoViews is the number of views in a projection layer; view i samples
// array layer i of the swapchain (0 = left, 1 = right).
const stereoViews = 2

// ViewLocator is the part of [xr.Session] the builder needs.
type ViewLocator interface {
	LocateViews(info xr.ViewLocateInfo) (xr.ViewStateFlags, []xr.View, error)
}

// Config fixes what every layer looks like.
type Config struct {
	Space             xr.Space
	Swapchain         xr.Swapchain
	ViewConfiguration xr.ViewConfigurationType

	// Width and Height are the recommended per-eye resolution; the image
	// rectangle of every view covers it entirely.
	Width, Height uint32

	// PremultipliedAlpha selects premultiplied layer blending.
	PremultipliedAlpha bool
}

// Builder produces one projection layer per frame.
type Builder struct {
	locator ViewLocator
	cfg     Config
	flags   xr.CompositionLayerFlags
	log     *slog.Logger

	layers uint64
	misses uint64
}

// New creates a builder.
func New(locator ViewLocator, cfg Config, log *slog.Logger) (*Builder, error) {
	if cfg.Space == nil || cfg.Swapchain == nil {
		return nil, errors.New("compose: space and swapchain are required")
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("compose: invalid image size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.ViewConfiguration == 0 {
		cfg.ViewConfiguration = xr.ViewConfigurationPrimaryStereo
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Builder{locator: locator, cfg: cfg, flags: Flags(cfg.PremultipliedAlpha), log: log}, nil
}

// Flags returns the layer flags for the alpha mode.
func Flags(premultiplied bool) xr.CompositionLayerFlags {
	flags := xr.LayerBlendTextureSourceAlpha
	if !premultiplied {
		flags |= xr.LayerUnpremultipliedAlpha
	}
	return flags
}

// Layer locates the views at the predicted display time and builds the
// projection layer.
func (b *Builder) Layer(frame xr.FrameState) (*xr.CompositionLayerProjection, error) {
	_, views, err := b.locator.LocateViews(xr.ViewLocateInfo{
		ViewConfigurationType: b.cfg.ViewConfiguration,
		DisplayTime:           frame.PredictedDisplayTime,
		Space:                 b.cfg.Space,
	})
	if err != nil {
		return nil, fmt.Errorf("compose: locate views: %w", err)
	}
	if len(views) != stereoViews {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrViewCount, len(views), stereoViews)
	}
	return b.Project(views), nil
}

// Project builds the layer for already located views. views must hold the
// left and right eye in that order.
func (b *Builder) Project(views []xr.View) *xr.CompositionLayerProjection {
	rect := xr.Rect2Di{
		Offset: xr.Offset2Di{X: 0, Y: 0},
		Extent: xr.Extent2Di{Width: int32(b.cfg.Width), Height: int32(b.cfg.Height)}, //nolint:gosec // bounded by runtime limits
	}
	proj := make([]xr.CompositionLayerProjectionView, len(views))
	for i, v := range views {
		proj[i] = xr.CompositionLayerProjectionView{
			Pose: v.Pose,
			Fov:  v.Fov,
			SubImage: xr.SwapchainSubImage{
				Swapchain:       b.cfg.Swapchain,
				ImageRect:       rect,
				ImageArrayIndex: uint32(i), //nolint:gosec // at most two views
			},
		}
	}
	return &xr.CompositionLayerProjection{
		LayerFlags: b.flags,
		Space:      b.cfg.Space,
		Views:      proj,
	}
}

// Layers returns the layer list for a frame. A failed view locate degrades
// to an empty list: the frame is still ended, without content.
func (b *Builder) Layers(frame xr.FrameState) []xr.CompositionLayer {
	layer, err := b.Layer(frame)
	if err != nil {
		b.misses++
		b.log.Warn("submitting frame without layers", "display_time", frame.PredictedDisplayTime, "err", err)
		return nil
	}
	b.layers++
	return []xr.CompositionLayer{layer}
}

// Stats returns how many frames got a layer and how many went without.
func (b *Builder) Stats() (layers, misses uint64) { return b.layers, b.misses }
