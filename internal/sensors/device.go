// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors talks to the BME280 over a register-oriented bus.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// RegisterDevice is the bus capability the driver needs: write one register,
// read a run of consecutive registers. Implementations return
// *TransportError for bus failures.
type RegisterDevice interface {
	WriteRegister(ctx context.Context, reg, value byte) error
	ReadRegisters(ctx context.Context, reg byte, n int) ([]byte, error)
}

// TransportError wraps a failed bus transaction.
type TransportError struct {
	Op  string // "write" or "read"
	Reg byte
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sensors: %s register 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err came from the bus.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

var (
	hostOnce    sync.Once
	hostInitErr error
)

func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostInitErr
}

// I2CDevice is a RegisterDevice on a periph I2C bus. Transactions are
// serialised so a read burst is never interleaved with a write.
type I2CDevice struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	closer io.Closer
}

// NewI2CDevice wraps an already opened bus.
func NewI2CDevice(bus i2c.Bus, addr uint16) *I2CDevice {
	return &I2CDevice{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// OpenI2C initialises the periph host and opens busName ("" picks the first
// bus, "1" is /dev/i2c-1 on a Raspberry Pi).
func OpenI2C(busName string, addr uint16) (*I2CDevice, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	d := NewI2CDevice(bus, addr)
	d.closer = bus
	return d, nil
}

func (d *I2CDevice) WriteRegister(ctx context.Context, reg, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dev.Tx([]byte{reg, value}, nil); err != nil {
		return &TransportError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}

func (d *I2CDevice) ReadRegisters(ctx context.Context, reg byte, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("sensors: invalid read length %d", n)
	}
	buf := make([]byte, n)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dev.Tx([]byte{reg}, buf); err != nil {
		return nil, &TransportError{Op: "read", Reg: reg, Err: err}
	}
	return buf, nil
}

// Close releases the bus when it was opened by OpenI2C.
func (d *I2CDevice) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

func (d *I2CDevice) String() string {
	return d.dev.String()
}
