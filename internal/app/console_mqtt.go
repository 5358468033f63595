// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/relabs-tech/barometer_forecaster/internal/config"
	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/mqtt"
)

// consolePrinter writes one line per event.
type consolePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *consolePrinter) Publish(e events.Event) {
	var tag string
	switch e.Kind {
	case events.KindForecast:
		tag = "[FCST]"
	case events.KindPressure:
		tag = "[PRES]"
	case events.KindStatus:
		tag = "[STAT]"
	default:
		tag = "[????]"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", tag, e)
}

// RunConsoleMQTT prints every forecaster event from the broker to w until
// ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	client := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()
	logger.Info("console: connected to MQTT broker", "broker", cfg.MQTTBroker)

	topics := MQTTTopics(cfg)
	if err := mqtt.SubscribeEvents(client, topics, &consolePrinter{w: w}, logger); err != nil {
		return err
	}
	logger.Info("console: subscribed", "forecast", topics.Forecast, "pressure", topics.Pressure, "status", topics.Status)

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}
