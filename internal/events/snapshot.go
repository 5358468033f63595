// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package events

import "sync"

// Snapshot keeps the latest event of each kind. The zero value is ready.
type Snapshot struct {
	mu       sync.RWMutex
	forecast *Event
	pressure *Event
	status   *Event
}

// Publish records e, so a Snapshot can sit directly behind a Bus or an MQTT
// subscription.
func (s *Snapshot) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Kind {
	case KindForecast:
		s.forecast = &e
	case KindPressure:
		s.pressure = &e
	case KindStatus:
		s.status = &e
	}
}

func (s *Snapshot) Forecast() (Event, bool) { return s.get(&s.forecast) }
func (s *Snapshot) Pressure() (Event, bool) { return s.get(&s.pressure) }
func (s *Snapshot) Status() (Event, bool)   { return s.get(&s.status) }

func (s *Snapshot) get(p **Event) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if *p == nil {
		return Event{}, false
	}
	return **p, true
}
