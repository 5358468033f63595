// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/relabs-tech/barometer_forecaster/internal/events"
)

// Topics maps event kinds to MQTT topics.
type Topics struct {
	Forecast string
	Pressure string
	Status   string
}

// For returns the topic of kind and whether messages on it are retained.
// Status is retained so late subscribers see the link state.
func (t Topics) For(kind events.Kind) (topic string, retained bool, err error) {
	switch kind {
	case events.KindForecast:
		return t.Forecast, false, nil
	case events.KindPressure:
		return t.Pressure, false, nil
	case events.KindStatus:
		return t.Status, true, nil
	default:
		return "", false, fmt.Errorf("no topic for event kind %q", kind)
	}
}

// Publisher is the part of Client the sink needs.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// Sink forwards bus events to the broker as JSON. It keeps the latest status
// event so Resend can restore the retained link state after a (re)connect.
type Sink struct {
	pub    Publisher
	topics Topics
	logger *slog.Logger

	mu     sync.Mutex
	status *events.Event
}

func NewSink(pub Publisher, topics Topics, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{pub: pub, topics: topics, logger: logger}
}

// Send publishes one event. A status event is remembered even when the
// publish fails.
func (s *Sink) Send(e events.Event) error {
	topic, retained, err := s.topics.For(e.Kind)
	if err != nil {
		return err
	}
	if e.Kind == events.KindStatus {
		// Held across the publish so Resend cannot overtake a newer status.
		s.mu.Lock()
		defer s.mu.Unlock()
		s.status = &e
	}
	return s.publish(e, topic, retained)
}

// Resend publishes the latest status event again, if there is one.
func (s *Sink) Resend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return nil
	}
	topic, retained, err := s.topics.For(events.KindStatus)
	if err != nil {
		return err
	}
	return s.publish(*s.status, topic, retained)
}

func (s *Sink) publish(e events.Event, topic string, retained bool) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Kind, err)
	}
	return s.pub.Publish(topic, retained, b)
}

// Run sends every event from ch until ch closes or ctx is done. Failures are
// logged; the event is not retried.
func (s *Sink) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Send(e); err != nil {
				s.logger.Error("event not published", "kind", e.Kind, "cycle_id", e.CycleID, "err", err)
			}
		}
	}
}

// Subscriber is the part of Client SubscribeEvents needs.
type Subscriber interface {
	Subscribe(topic string, h Handler) error
}

// SubscribeEvents subscribes to all three topics and hands every decodable
// event to pub.
func SubscribeEvents(sub Subscriber, topics Topics, pub events.Publisher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	h := func(topic string, payload []byte) {
		e, err := events.Decode(payload)
		if err != nil {
			logger.Warn("bad event payload", "topic", topic, "err", err)
			return
		}
		pub.Publish(e)
	}
	for _, topic := range []string{topics.Forecast, topics.Pressure, topics.Status} {
		if err := sub.Subscribe(topic, h); err != nil {
			return err
		}
	}
	return nil
}
