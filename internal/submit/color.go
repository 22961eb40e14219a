// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package submit

import (
	"fmt"
	"strings"

	"golang.org/x/image/colornames"
)

// Color is a fill color with components in [0, 1], not premultiplied.
type Color struct {
	R, G, B, A float64
}

// RGBA creates a color from components.
func RGBA(r, g, b, a float64) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// FromBytes converts 8-bit RGBA components.
func FromBytes(px [4]byte) Color {
	return Color{
		R: float64(px[0]) / 255,
		G: float64(px[1]) / 255,
		B: float64(px[2]) / 255,
		A: float64(px[3]) / 255,
	}
}

// ParseColor accepts a CSS color name ("cornflowerblue") or a hex string in
// one of the forms "RGB", "RGBA", "RRGGBB", "RRGGBBAA", with or without '#'.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return FromBytes([4]byte{c.R, c.G, c.B, c.A}), nil
	}
	return Hex(s)
}

// Hex parses a hex color string.
func Hex(hex string) (Color, error) {
	orig := hex
	if hex != "" && hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint32
	a = 255

	var ok bool
	switch len(hex) {
	case 3:
		ok = parseHex(hex[0:1], &r) && parseHex(hex[1:2], &g) && parseHex(hex[2:3], &b)
		r, g, b = r*17, g*17, b*17
	case 4:
		ok = parseHex(hex[0:1], &r) && parseHex(hex[1:2], &g) && parseHex(hex[2:3], &b) && parseHex(hex[3:4], &a)
		r, g, b, a = r*17, g*17, b*17, a*17
	case 6:
		ok = parseHex(hex[0:2], &r) && parseHex(hex[2:4], &g) && parseHex(hex[4:6], &b)
	case 8:
		ok = parseHex(hex[0:2], &r) && parseHex(hex[2:4], &g) && parseHex(hex[4:6], &b) && parseHex(hex[6:8], &a)
	}
	if !ok {
		return Color{}, fmt.Errorf("submit: invalid color %q", orig)
	}

	return Color{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
		A: float64(a) / 255,
	}, nil
}

func parseHex(s string, val *uint32) bool {
	*val = 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		*val *= 16
		switch {
		case '0' <= c && c <= '9':
			*val += uint32(c - '0')
		case 'a' <= c && c <= 'f':
			*val += uint32(c - 'a' + 10)
		case 'A' <= c && c <= 'F':
			*val += uint32(c - 'A' + 10)
		default:
			return false
		}
	}
	return true
}

// Premultiply returns the color with RGB scaled by alpha.
func (c Color) Premultiply() Color {
	return Color{R: c.R * c.A, G: c.G * c.A, B: c.B * c.A, A: c.A}
}

// Bytes returns the color as 8-bit RGBA, rounded and clamped.
func (c Color) Bytes() [4]byte {
	return [4]byte{to8(c.R), to8(c.G), to8(c.B), to8(c.A)}
}

// String returns the color as "#rrggbbaa".
func (c Color) String() string {
	b := c.Bytes()
	return fmt.Sprintf("#%02x%02x%02x%02x", b[0], b[1], b[2], b[3])
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func to8(x float64) byte {
	v := x*255 + 0.5
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// Pixel returns the staging payload pixel for c. With premultiplied set the
// color channels are scaled by alpha first.
func Pixel(c Color, premultiplied bool) [4]byte {
	if premultiplied {
		c = c.Premultiply()
	}
	return c.Bytes()
}
