// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrBusUnavailable is wrapped in the TransportError returned while the
// breaker is open.
var ErrBusUnavailable = errors.New("bus unavailable")

// ConnectionFunc is told when the bus goes down (healthy=false, with the last
// failure) and when it comes back.
type ConnectionFunc func(healthy bool, err error)

// BreakerDevice guards a RegisterDevice with a circuit breaker. After
// maxFailures consecutive transport failures it stops touching the bus until
// timeout has elapsed, then lets a single probe through.
type BreakerDevice struct {
	dev RegisterDevice
	cb  *gobreaker.CircuitBreaker

	mu      sync.Mutex
	lastErr error
}

// NewBreakerDevice wraps dev. onChange may be nil; it runs on the goroutine
// that issued the failing or recovering access.
func NewBreakerDevice(dev RegisterDevice, maxFailures uint32, timeout time.Duration, onChange ConnectionFunc) *BreakerDevice {
	if maxFailures == 0 {
		maxFailures = 1
	}
	b := &BreakerDevice{dev: dev}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bme280",
		MaxRequests: 1,
		Timeout:     timeout,
		// Only bus failures count.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransport(err)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onChange == nil {
				return
			}
			switch to {
			case gobreaker.StateOpen:
				if from == gobreaker.StateClosed {
					onChange(false, b.lastError())
				}
			case gobreaker.StateClosed:
				onChange(true, nil)
			}
		},
	})
	return b
}

// State returns the breaker state name ("closed", "half-open", "open").
func (b *BreakerDevice) State() string {
	return b.cb.State().String()
}

func (b *BreakerDevice) WriteRegister(ctx context.Context, reg, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.record(b.dev.WriteRegister(ctx, reg, value))
	})
	return b.wrap(err, "write", reg)
}

func (b *BreakerDevice) ReadRegisters(ctx context.Context, reg byte, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := b.cb.Execute(func() (interface{}, error) {
		buf, err := b.dev.ReadRegisters(ctx, reg, n)
		return buf, b.record(err)
	})
	if err != nil {
		return nil, b.wrap(err, "read", reg)
	}
	return res.([]byte), nil
}

func (b *BreakerDevice) record(err error) error {
	if err != nil {
		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()
	}
	return err
}

func (b *BreakerDevice) lastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *BreakerDevice) wrap(err error, op string, reg byte) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &TransportError{Op: op, Reg: reg, Err: ErrBusUnavailable}
	}
	return err
}
