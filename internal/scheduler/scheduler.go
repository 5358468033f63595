// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scheduler produces the outer cycle ticks of the forecaster.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler delivers a tick every period on a channel with room for one
// pending tick. Ticks the consumer is not ready for are dropped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	period    time.Duration
	ticks     chan time.Time
	logger    *slog.Logger
}

// New creates a Scheduler; nothing fires before Start.
func New(period time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		period:    period,
		ticks:     make(chan time.Time, 1),
		logger:    logger,
	}
}

// Ticks returns the tick channel.
func (s *Scheduler) Ticks() <-chan time.Time {
	return s.ticks
}

// Start schedules the job and fires the first tick immediately.
func (s *Scheduler) Start() error {
	if s.period <= 0 {
		return fmt.Errorf("scheduler: invalid period %v", s.period)
	}
	_, err := s.scheduler.Every(s.period).Do(s.tick)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "period", s.period)
	return nil
}

func (s *Scheduler) tick() {
	select {
	case s.ticks <- time.Now():
	default:
		s.logger.Debug("outer tick dropped, previous tick still pending")
	}
}

// Stop cancels future ticks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
