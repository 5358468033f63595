// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/relabs-tech/barometer_forecaster/internal/config"
	"github.com/relabs-tech/barometer_forecaster/internal/engine"
	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/mqtt"
	"github.com/relabs-tech/barometer_forecaster/internal/notify"
	"github.com/relabs-tech/barometer_forecaster/internal/scheduler"
	"github.com/relabs-tech/barometer_forecaster/internal/sensors"
	"github.com/relabs-tech/barometer_forecaster/internal/store"
)

// SensorLink is an open register device plus what it is called in readings.
type SensorLink struct {
	Device sensors.RegisterDevice
	Source string
	close  func() error
}

func (l *SensorLink) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// OpenSensor opens the BME280 on the configured I2C bus, or the simulated
// chip when BME280_SIMULATE is set.
func OpenSensor(cfg *config.Config) (*SensorLink, error) {
	if cfg.BME280Simulate {
		return &SensorLink{Device: sensors.NewSimulatedDevice(), Source: "simulated"}, nil
	}
	dev, err := sensors.OpenI2C(cfg.BME280I2CBus, cfg.BME280I2CAddr)
	if err != nil {
		return nil, err
	}
	return &SensorLink{Device: dev, Source: "bme280", close: dev.Close}, nil
}

// MQTTTopics returns the configured topic set.
func MQTTTopics(cfg *config.Config) mqtt.Topics {
	return mqtt.Topics{
		Forecast: cfg.TopicForecast,
		Pressure: cfg.TopicPressure,
		Status:   cfg.TopicStatus,
	}
}

// RunForecaster measures, persists and publishes until ctx is done.
func RunForecaster(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting barometer forecaster",
		"cycle", cfg.CyclePeriod, "inner", cfg.InnerPeriod, "burst", cfg.BurstLength)

	link, err := OpenSensor(cfg)
	if err != nil {
		return fmt.Errorf("failed to open sensor: %w", err)
	}
	defer link.Close()
	logger.Info("sensor opened", "source", link.Source, "addr", fmt.Sprintf("0x%02X", cfg.BME280I2CAddr))

	st, err := store.OpenSQLite(cfg.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer st.Close()

	bus := events.NewBus(logger)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer bus.Close()

	// --- MQTT ---
	client := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientIDForecaster, logger)
	defer client.Disconnect()

	// Status is only published on change, so it may be emitted before the
	// broker is reachable. Restore it on every connect.
	sink := mqtt.NewSink(client, MQTTTopics(cfg), logger)
	client.OnConnect(func() {
		if err := sink.Resend(); err != nil {
			logger.Warn("status not republished", "err", err)
		}
	})
	go func() {
		if err := client.Connect(ctx); err != nil && ctx.Err() == nil {
			logger.Error("mqtt connect failed", "broker", cfg.MQTTBroker, "err", err)
		}
	}()

	sinkCh, _ := bus.Subscribe(32)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sink.Run(ctx, sinkCh)
	}()

	// --- Telegram ---
	if cfg.TelegramToken != "" {
		n, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Warn("telegram disabled", "err", err)
		} else {
			notifyCh, _ := bus.Subscribe(8)
			wg.Add(1)
			go func() {
				defer wg.Done()
				n.Run(ctx, notifyCh)
			}()
		}
	}

	// --- Engine ---
	var eng *engine.Engine
	dev := sensors.NewBreakerDevice(link.Device, cfg.BreakerMaxFailures, cfg.BreakerTimeout,
		func(healthy bool, err error) {
			eng.ConnectionChanged(healthy, err)
		})
	eng = engine.New(
		sensors.NewBME280(dev, cfg.BME280CtrlMeas, cfg.BME280Config),
		st, bus, logger,
		engine.Options{
			InnerPeriod: cfg.InnerPeriod,
			SettleDelay: cfg.SettleDelay,
			BurstLength: cfg.BurstLength,
			Retention:   cfg.HistoryRetention,
			MinTrendAge: cfg.TrendMinAge,
			HistoryKey:  cfg.HistoryKey,
			Source:      link.Source,
		},
	)

	logger.Info("sensor link breaker", "state", dev.State(),
		"max_failures", cfg.BreakerMaxFailures, "timeout", cfg.BreakerTimeout)

	sched := scheduler.New(cfg.CyclePeriod, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	err = eng.Run(ctx, sched.Ticks())
	logger.Info("forecaster stopped", "engine", eng.State(), "breaker", dev.State())
	return err
}
