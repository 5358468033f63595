// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forecast

import (
	"slices"
	"time"
)

// DefaultRetention is how long history entries are kept.
const DefaultRetention = 2 * time.Hour

// DataPoint is one averaged pressure sample. Pressure is in Pa (hPa × 100).
type DataPoint struct {
	Pressure  float64   `json:"pressure"`
	Timestamp time.Time `json:"timestamp"`
}

// History is the chronological sequence of averaged samples. Entries are
// appended in time order, so the oldest entry is always at the front.
type History struct {
	points []DataPoint
}

// NewHistory returns a History seeded with points, which must already be in
// chronological order (as restored from a store).
func NewHistory(points ...DataPoint) *History {
	return &History{points: slices.Clone(points)}
}

// Append adds p as the newest entry.
func (h *History) Append(p DataPoint) {
	h.points = append(h.points, p)
}

// TrimOlderThan drops entries from the front whose age at now exceeds maxAge
// and returns how many were removed.
func (h *History) TrimOlderThan(now time.Time, maxAge time.Duration) int {
	i := 0
	for i < len(h.points) && now.Sub(h.points[i].Timestamp) > maxAge {
		i++
	}
	if i > 0 {
		h.points = slices.Clone(h.points[i:])
	}
	return i
}

// Oldest returns the first retained entry.
func (h *History) Oldest() (DataPoint, bool) {
	if len(h.points) == 0 {
		return DataPoint{}, false
	}
	return h.points[0], true
}

// Newest returns the last appended entry.
func (h *History) Newest() (DataPoint, bool) {
	if len(h.points) == 0 {
		return DataPoint{}, false
	}
	return h.points[len(h.points)-1], true
}

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.points) }

// Points returns a copy of the retained entries, oldest first.
func (h *History) Points() []DataPoint {
	return slices.Clone(h.points)
}
