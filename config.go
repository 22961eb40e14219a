// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xrloop

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/xrloop/internal/submit"
	"github.com/gogpu/xrloop/xr"
)

// Color is an RGBA fill color. In YAML it is written as "#rrggbb[aa]" or
// as a CSS color name.
type Color = submit.Color

// ParseColor parses a hex color or a CSS color name.
func ParseColor(s string) (Color, error) { return submit.ParseColor(s) }

// FillMode selects where the staging payload is produced.
type FillMode string

const (
	// FillCPU builds the payload in memory and uploads it with WriteBuffer.
	FillCPU FillMode = "cpu"

	// FillGPU writes the payload with a compute shader. Setup falls back to
	// FillCPU when the pass cannot be built on the device.
	FillGPU FillMode = "gpu"
)

// Swapchain formats accepted in [Config.SwapchainFormat].
const (
	FormatRGBA8Unorm = "rgba8unorm"
	FormatBGRA8Unorm = "bgra8unorm"
)

// ErrInvalidConfig wraps every validation problem reported by [Config.Validate].
var ErrInvalidConfig = errors.New("xrloop: invalid config")

// Config controls a [Loop]. The zero value is not usable; start from
// [DefaultConfig].
type Config struct {
	// FillColor is written into every swapchain image.
	FillColor Color `yaml:"fill_color"`

	// PremultipliedAlpha stores the fill premultiplied and submits the layer
	// without the unpremultiplied flag.
	PremultipliedAlpha bool `yaml:"premultiplied_alpha"`

	// WarmupFrames is how many frames acquire, render and release an image.
	// Later frames only compose. Zero never touches the swapchain.
	WarmupFrames int `yaml:"warmup_frames"`

	// ReferenceSpace is the space views are located and composed in.
	ReferenceSpace xr.ReferenceSpaceType `yaml:"reference_space"`

	// BlendMode is the environment blend mode passed to EndFrame.
	BlendMode xr.EnvironmentBlendMode `yaml:"blend_mode"`

	// ViewConfiguration must be primary_stereo: the projection layer always
	// carries two views.
	ViewConfiguration xr.ViewConfigurationType `yaml:"view_configuration"`

	// SwapchainFormat is one of the Format* names.
	SwapchainFormat string `yaml:"swapchain_format"`

	// ImageWaitTimeout bounds WaitImage. Zero waits without a bound.
	ImageWaitTimeout time.Duration `yaml:"image_wait_timeout"`

	// FenceTimeout bounds the wait for a copy to finish on the GPU.
	FenceTimeout time.Duration `yaml:"fence_timeout"`

	// IdleSleep is how long the loop sleeps between polls while the
	// session is not running.
	IdleSleep time.Duration `yaml:"idle_sleep"`

	// ShutdownTimeout bounds the graceful exit after the context is canceled.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Input creates the thumbstick action when the runtime supports actions.
	Input bool `yaml:"input"`

	// FillMode selects the CPU or GPU staging fill.
	FillMode FillMode `yaml:"fill_mode"`
}

// DefaultConfig returns the configuration of the reference headless loop.
func DefaultConfig() Config {
	return Config{
		FillColor:          submit.RGBA(0.2, 0.4, 0.8, 1),
		PremultipliedAlpha: true,
		WarmupFrames:       3,
		ReferenceSpace:     xr.ReferenceSpaceLocal,
		BlendMode:          xr.EnvironmentBlendOpaque,
		ViewConfiguration:  xr.ViewConfigurationPrimaryStereo,
		SwapchainFormat:    FormatRGBA8Unorm,
		ImageWaitTimeout:   0,
		FenceTimeout:       submit.DefaultFenceTimeout,
		IdleSleep:          5 * time.Millisecond,
		ShutdownTimeout:    2 * time.Second,
		Input:              true,
		FillMode:           FillCPU,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.WarmupFrames < 0 {
		errs = append(errs, fmt.Errorf("warmup_frames must not be negative, got %d", c.WarmupFrames))
	}
	if _, err := xr.ParseReferenceSpaceType(c.ReferenceSpace.String()); err != nil {
		errs = append(errs, err)
	}
	if _, err := xr.ParseEnvironmentBlendMode(c.BlendMode.String()); err != nil {
		errs = append(errs, err)
	}
	if c.ViewConfiguration != xr.ViewConfigurationPrimaryStereo {
		errs = append(errs, fmt.Errorf("view_configuration %s: projection layers need two views", c.ViewConfiguration))
	}
	if _, err := textureFormat(c.SwapchainFormat); err != nil {
		errs = append(errs, err)
	}
	if c.ImageWaitTimeout < 0 {
		errs = append(errs, fmt.Errorf("image_wait_timeout must not be negative, got %s", c.ImageWaitTimeout))
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"fence_timeout", c.FenceTimeout},
		{"idle_sleep", c.IdleSleep},
		{"shutdown_timeout", c.ShutdownTimeout},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}
	if c.FillMode != FillCPU && c.FillMode != FillGPU {
		errs = append(errs, fmt.Errorf("fill_mode %q: want %q or %q", c.FillMode, FillCPU, FillGPU))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// imageWaitTimeout converts ImageWaitTimeout to a runtime duration.
func (c Config) imageWaitTimeout() xr.Duration {
	if c.ImageWaitTimeout == 0 {
		return xr.InfiniteDuration
	}
	return xr.FromDuration(c.ImageWaitTimeout)
}

// Pixel returns the staging bytes of the fill color in the swapchain format.
func (c Config) Pixel() [4]byte {
	px := submit.Pixel(c.FillColor, c.PremultipliedAlpha)
	if c.SwapchainFormat == FormatBGRA8Unorm {
		px[0], px[2] = px[2], px[0]
	}
	return px
}

func textureFormat(name string) (gputypes.TextureFormat, error) {
	switch name {
	case FormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case FormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("swapchain_format %q: want %q or %q",
			name, FormatRGBA8Unorm, FormatBGRA8Unorm)
	}
}

// ParseConfig decodes YAML on top of [DefaultConfig]. Unknown keys are
// rejected and the result is validated.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("xrloop: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("xrloop: read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// YAML renders the configuration as a YAML document.
func (c Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("xrloop: encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("xrloop: encode config: %w", err)
	}
	return buf.Bytes(), nil
}
