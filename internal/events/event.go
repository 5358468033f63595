// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package events defines what the forecaster emits and fans it out to
// consumers that subscribe without the engine knowing them.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relabs-tech/barometer_forecaster/internal/env"
	"github.com/relabs-tech/barometer_forecaster/internal/forecast"
)

type Kind string

const (
	KindForecast Kind = "forecast"
	KindPressure Kind = "pressure"
	KindStatus   Kind = "status"
)

type ConnectionState string

const (
	Connected       ConnectionState = "connected"
	ConnectionError ConnectionState = "connection_error"
)

// Forecast is the classified trend.
type Forecast struct {
	Category forecast.Category `json:"category"`
	Rate     float64           `json:"rate_hpa_per_hour"`
}

// Status reports the sensor link.
type Status struct {
	State ConnectionState `json:"state"`
	Error string          `json:"error,omitempty"`
}

// Event is one message on the bus and on the wire. Exactly one of Forecast,
// Reading and Status is set, according to Kind.
type Event struct {
	Kind    Kind      `json:"kind"`
	Time    time.Time `json:"time"`
	CycleID string    `json:"cycle_id,omitempty"`

	Forecast *Forecast   `json:"forecast,omitempty"`
	Reading  *env.Sample `json:"reading,omitempty"`
	Status   *Status     `json:"status,omitempty"`
}

func NewForecast(cycleID string, t time.Time, c forecast.Category, rate float64) Event {
	return Event{Kind: KindForecast, Time: t, CycleID: cycleID, Forecast: &Forecast{Category: c, Rate: rate}}
}

func NewPressure(cycleID string, t time.Time, s env.Sample) Event {
	return Event{Kind: KindPressure, Time: t, CycleID: cycleID, Reading: &s}
}

// NewStatus builds a status event; err is only kept for ConnectionError.
func NewStatus(t time.Time, state ConnectionState, err error) Event {
	st := &Status{State: state}
	if err != nil && state == ConnectionError {
		st.Error = err.Error()
	}
	return Event{Kind: KindStatus, Time: t, Status: st}
}

// Decode parses and checks a wire event.
func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	switch {
	case e.Kind == KindForecast && e.Forecast != nil:
	case e.Kind == KindPressure && e.Reading != nil:
	case e.Kind == KindStatus && e.Status != nil:
	default:
		return Event{}, fmt.Errorf("decode event: kind %q without payload", e.Kind)
	}
	return e, nil
}

func (e Event) String() string {
	ts := e.Time.Format("15:04:05")
	switch e.Kind {
	case KindForecast:
		return fmt.Sprintf("%s forecast %-12s %+.2f hPa/h", ts, e.Forecast.Category.Label(), e.Forecast.Rate)
	case KindPressure:
		return fmt.Sprintf("%s pressure %.2f hPa  %.2f °C", ts, e.Reading.PressureHPa, e.Reading.Temperature)
	case KindStatus:
		if e.Status.Error != "" {
			return fmt.Sprintf("%s status %s (%s)", ts, e.Status.State, e.Status.Error)
		}
		return fmt.Sprintf("%s status %s", ts, e.Status.State)
	default:
		return fmt.Sprintf("%s %s", ts, e.Kind)
	}
}
