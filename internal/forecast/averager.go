// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forecast

// DefaultBurstLength is the number of readings reduced into one sample.
const DefaultBurstLength = 4

// Averager collects one burst of compensated pressure readings.
type Averager struct {
	size    int
	samples []float64
}

// NewAverager returns an Averager for bursts of size readings. A size below 1
// falls back to DefaultBurstLength.
func NewAverager(size int) *Averager {
	if size < 1 {
		size = DefaultBurstLength
	}
	return &Averager{size: size, samples: make([]float64, 0, size)}
}

// Size returns the configured burst length.
func (a *Averager) Size() int { return a.size }

// Len returns the number of readings collected so far.
func (a *Averager) Len() int { return len(a.samples) }

// Add appends one reading to the burst.
func (a *Averager) Add(v float64) {
	a.samples = append(a.samples, v)
}

// Complete reports whether the burst holds at least Size readings.
func (a *Averager) Complete() bool {
	return len(a.samples) >= a.size
}

// Reduce returns the arithmetic mean of the burst and clears it. ok is false
// for an empty burst.
func (a *Averager) Reduce() (mean float64, ok bool) {
	if len(a.samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range a.samples {
		sum += v
	}
	mean = sum / float64(len(a.samples))
	a.Reset()
	return mean, true
}

// Reset drops any collected readings.
func (a *Averager) Reset() {
	a.samples = a.samples[:0]
}
