// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relabs-tech/barometer_forecaster/internal/env"
	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/forecast"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMessage(t *testing.T) {
	n := New(&fakeSender{}, 1, nil)

	steps := []struct {
		name string
		ev   events.Event
		want string
	}{
		{"first forecast", events.NewForecast("a", now, forecast.Stable, 0.1), "Forecast: Stable"},
		{"same category", events.NewForecast("b", now, forecast.Stable, 0.2), ""},
		{"category change", events.NewForecast("c", now, forecast.Rainy, -1.2), "Forecast changed: Stable → Rainy"},
		{"pressure ignored", events.NewPressure("c", now, env.NewSample("simulated", 21.5, 101325)), ""},
		{"first connected", events.NewStatus(now, events.Connected, nil), ""},
		{"link lost", events.NewStatus(now, events.ConnectionError, errors.New("i2c nack")), "Barometer unreachable: i2c nack"},
		{"still lost", events.NewStatus(now, events.ConnectionError, errors.New("i2c nack")), ""},
		{"recovered", events.NewStatus(now, events.Connected, nil), "Barometer back online"},
	}

	for _, s := range steps {
		got := n.Message(s.ev)
		if s.want == "" {
			if got != "" {
				t.Errorf("%s: got %q, want silence", s.name, got)
			}
			continue
		}
		if !strings.HasPrefix(got, s.want) {
			t.Errorf("%s: got %q, want prefix %q", s.name, got, s.want)
		}
	}
}

func TestRun_SendsToChat(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram down")}
	n := New(sender, -1001, nil)

	ch := make(chan events.Event, 4)
	ch <- events.NewForecast("a", now, forecast.GoodWeather, 0.8)
	ch <- events.NewForecast("b", now, forecast.GoodWeather, 0.9)
	ch <- events.NewStatus(now, events.ConnectionError, errors.New("timeout"))
	close(ch)

	n.Run(context.Background(), ch)

	sent := sender.messages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	for _, m := range sent {
		if m.ChatID != -1001 {
			t.Errorf("chat id = %d", m.ChatID)
		}
	}
	if !strings.Contains(sent[0].Text, "Good weather") {
		t.Errorf("first message = %q", sent[0].Text)
	}
}

func TestNewTelegram_EmptyToken(t *testing.T) {
	if _, err := NewTelegram("", 1, nil); err == nil {
		t.Fatal("expected error for empty token")
	}
}
