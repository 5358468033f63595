// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forecast

import "fmt"

// Category is the short-term weather outlook derived from the pressure trend.
type Category int

const (
	// Unknown means no trend has been classified yet.
	Unknown Category = iota
	NotStable
	GoodWeather
	Stable
	Rainy
	ThunderStorm
	// Rain is reserved for wire compatibility; Classify never returns it.
	Rain
)

var categoryNames = map[Category]string{
	Unknown:      "unknown",
	NotStable:    "not_stable",
	GoodWeather:  "good_weather",
	Stable:       "stable",
	Rainy:        "rainy",
	ThunderStorm: "thunderstorm",
	Rain:         "rain",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Label is the human readable form used by consoles and displays.
func (c Category) Label() string {
	switch c {
	case NotStable:
		return "Not stable"
	case GoodWeather:
		return "Good weather"
	case Stable:
		return "Stable"
	case Rainy:
		return "Rainy"
	case ThunderStorm:
		return "Thunderstorm"
	case Rain:
		return "Rain"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the category as its stable string name.
func (c Category) MarshalText() ([]byte, error) {
	s, ok := categoryNames[c]
	if !ok {
		return nil, fmt.Errorf("forecast: invalid category %d", int(c))
	}
	return []byte(s), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (c *Category) UnmarshalText(b []byte) error {
	for k, v := range categoryNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("forecast: unknown category %q", string(b))
}
