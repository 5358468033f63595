// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package forecast turns averaged pressure samples into a rolling history and
// a short-term weather outlook.
package forecast

import "time"

// DefaultMinTrendAge is the minimum age of the oldest entry before a rate is
// trusted.
const DefaultMinTrendAge = 30 * time.Minute

// Thresholds in hPa per hour.
const (
	unstableRate = 2.5
	stableRate   = 0.5
)

// TrendClassifier derives the hourly pressure rate from a History.
type TrendClassifier struct {
	MinAge time.Duration
}

// NewTrendClassifier returns a classifier with the given minimum age, or
// DefaultMinTrendAge when minAge is not positive.
func NewTrendClassifier(minAge time.Duration) TrendClassifier {
	if minAge <= 0 {
		minAge = DefaultMinTrendAge
	}
	return TrendClassifier{MinAge: minAge}
}

// ComputeTrend returns the pressure change in hPa/hour between the oldest and
// newest entries. ok is false with fewer than two entries, when the oldest
// entry is younger than MinAge at now, or when oldest and newest share a
// timestamp.
func (c TrendClassifier) ComputeTrend(h *History, now time.Time) (rate float64, ok bool) {
	if h == nil || h.Len() < 2 {
		return 0, false
	}
	first, _ := h.Oldest()
	last, _ := h.Newest()

	if now.Sub(first.Timestamp) < c.MinAge {
		return 0, false
	}
	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if hours <= 0 {
		return 0, false
	}
	return (last.Pressure/100 - first.Pressure/100) / hours, true
}

// Classify maps a rate in hPa/hour onto a Category. The bands are
// contiguous and evaluated from the top down.
func Classify(rate float64) Category {
	switch {
	case rate >= unstableRate:
		return NotStable
	case rate > stableRate:
		return GoodWeather
	case rate >= -stableRate:
		return Stable
	case rate > -unstableRate:
		return Rainy
	default:
		return ThunderStorm
	}
}
