// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/relabs-tech/barometer_forecaster/internal/config"
	"github.com/relabs-tech/barometer_forecaster/internal/engine"
	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/scheduler"
	"github.com/relabs-tech/barometer_forecaster/internal/sensors"
	"github.com/relabs-tech/barometer_forecaster/internal/store"
)

// RunMockConsole runs the forecaster against the simulated chip with an
// in-memory history and prints its events to w. No broker is needed.
func RunMockConsole(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	bus := events.NewBus(logger)
	ch, _ := bus.Subscribe(16)
	printer := &consolePrinter{w: w}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			printer.Publish(e)
		}
	}()
	defer func() {
		bus.Close()
		<-done
	}()

	eng := engine.New(
		sensors.NewBME280(sensors.NewSimulatedDevice(), cfg.BME280CtrlMeas, cfg.BME280Config),
		store.NewMemory(), bus, logger,
		engine.Options{
			InnerPeriod: cfg.InnerPeriod,
			SettleDelay: cfg.SettleDelay,
			BurstLength: cfg.BurstLength,
			Retention:   cfg.HistoryRetention,
			MinTrendAge: cfg.TrendMinAge,
			Source:      "simulated",
		},
	)

	sched := scheduler.New(cfg.CyclePeriod, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	return eng.Run(ctx, sched.Ticks())
}
