// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/barometer_forecaster/internal/app"
	"github.com/relabs-tech/barometer_forecaster/internal/config"
	"github.com/relabs-tech/barometer_forecaster/internal/logging"
)

var version = "dev"

func main() {
	// Load configuration
	if err := config.InitGlobal(config.DefaultPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger := logging.New(cfg, version, "console_mqtt")
	logger.Info("starting barometer console (MQTT subscriber)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}
