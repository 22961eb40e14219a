// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package xr

import "fmt"

// ParseViewConfigurationType parses the lower-case name returned by String.
func ParseViewConfigurationType(s string) (ViewConfigurationType, error) {
	for _, v := range []ViewConfigurationType{ViewConfigurationPrimaryMono, ViewConfigurationPrimaryStereo} {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("xr: unknown view configuration %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (v ViewConfigurationType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *ViewConfigurationType) UnmarshalText(text []byte) error {
	parsed, err := ParseViewConfigurationType(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r ReferenceSpaceType) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ReferenceSpaceType) UnmarshalText(text []byte) error {
	parsed, err := ParseReferenceSpaceType(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m EnvironmentBlendMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EnvironmentBlendMode) UnmarshalText(text []byte) error {
	parsed, err := ParseEnvironmentBlendMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
