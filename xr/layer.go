// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

// CompositionLayerFlags modify how the runtime composites a layer.
type CompositionLayerFlags uint32

const (
	// LayerCorrectChromaticAberration asks the runtime to correct chromatic aberration.
	LayerCorrectChromaticAberration CompositionLayerFlags = 1 << iota

	// LayerBlendTextureSourceAlpha blends the layer using its texture alpha.
	LayerBlendTextureSourceAlpha

	// LayerUnpremultipliedAlpha marks color channels as not premultiplied by alpha.
	LayerUnpremultipliedAlpha
)

// SwapchainSubImage references a region of one array layer of a swapchain.
type SwapchainSubImage struct {
	Swapchain       Swapchain
	ImageRect       Rect2Di
	ImageArrayIndex uint32
}

// CompositionLayerProjectionView is one eye of a projection layer.
type CompositionLayerProjectionView struct {
	Pose     Posef
	Fov      Fovf
	SubImage SwapchainSubImage
}

// CompositionLayer is a layer submitted with [Session.EndFrame].
type CompositionLayer interface {
	layerKind() string
}

// CompositionLayerProjection is a stereo projection layer.
type CompositionLayerProjection struct {
	LayerFlags CompositionLayerFlags
	Space      Space
	Views      []CompositionLayerProjectionView
}

func (*CompositionLayerProjection) layerKind() string { return "projection" }

// FrameEndInfo is passed to [Session.EndFrame].
type FrameEndInfo struct {
	DisplayTime          Time
	EnvironmentBlendMode EnvironmentBlendMode
	Layers               []CompositionLayer
}
