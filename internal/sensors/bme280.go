// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/relabs-tech/barometer_forecaster/internal/bme280"
)

// BME280 register addresses.
const (
	RegCalibT   = 0x88
	RegCalibP   = 0x8E
	RegChipID   = 0xD0
	RegReset    = 0xE0
	RegStatus   = 0xF3
	RegCtrlMeas = 0xF4
	RegConfig   = 0xF5
	RegData     = 0xF7
)

const (
	ResetCommand = 0xB6

	ChipIDBME280 = 0x60
	ChipIDBMP280 = 0x58

	DefaultAddr = 0x76

	// DefaultCtrlMeas is osrs_t=x1, osrs_p=x1, forced mode.
	DefaultCtrlMeas = 0x25
	DefaultConfig   = 0x00

	// ResetDelay covers the 2 ms start-up time after a soft reset.
	ResetDelay = 2 * time.Millisecond
)

// BME280 issues the register sequences of the sensor. It keeps no
// measurement state; compensation lives in package bme280.
type BME280 struct {
	dev      RegisterDevice
	ctrlMeas byte
	config   byte
}

func NewBME280(dev RegisterDevice, ctrlMeas, config byte) *BME280 {
	return &BME280{dev: dev, ctrlMeas: ctrlMeas, config: config}
}

// Reset performs a soft reset. Callers wait ResetDelay before the next access.
func (b *BME280) Reset(ctx context.Context) error {
	return b.dev.WriteRegister(ctx, RegReset, ResetCommand)
}

// ChipID reads the identification register.
func (b *BME280) ChipID(ctx context.Context) (byte, error) {
	id, err := b.dev.ReadRegisters(ctx, RegChipID, 1)
	if err != nil {
		return 0, err
	}
	return id[0], nil
}

// Configure writes the standby/filter config register.
func (b *BME280) Configure(ctx context.Context) error {
	return b.dev.WriteRegister(ctx, RegConfig, b.config)
}

// ReadCalibration loads both factory calibration blocks into cal,
// temperature first.
func (b *BME280) ReadCalibration(ctx context.Context, cal *bme280.Calibration) error {
	t, err := b.dev.ReadRegisters(ctx, RegCalibT, bme280.TemperatureCalibrationLen)
	if err != nil {
		return err
	}
	if err := cal.SetTemperatureParams(t); err != nil {
		return err
	}
	p, err := b.dev.ReadRegisters(ctx, RegCalibP, bme280.PressureCalibrationLen)
	if err != nil {
		return err
	}
	return cal.SetPressureParams(p)
}

// Trigger starts one forced-mode measurement.
func (b *BME280) Trigger(ctx context.Context) error {
	return b.dev.WriteRegister(ctx, RegCtrlMeas, b.ctrlMeas)
}

// ReadRaw reads and decodes the pressure and temperature ADC codes.
func (b *BME280) ReadRaw(ctx context.Context) (bme280.RawSample, error) {
	buf, err := b.dev.ReadRegisters(ctx, RegData, bme280.RawDataLen)
	if err != nil {
		return bme280.RawSample{}, err
	}
	raw, err := bme280.DecodeRaw(buf)
	if err != nil {
		return bme280.RawSample{}, fmt.Errorf("decode raw data: %w", err)
	}
	return raw, nil
}

// ChipName names a known chip id.
func ChipName(id byte) string {
	switch id {
	case ChipIDBME280:
		return "BME280"
	case ChipIDBMP280:
		return "BMP280"
	default:
		return fmt.Sprintf("unknown(0x%02X)", id)
	}
}
