// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bme280 decodes BME280 factory calibration and converts raw ADC
// codes into temperature and pressure.
package bme280

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// TemperatureCalibrationLen is the size of the dig_T1..dig_T3 block.
	TemperatureCalibrationLen = 6
	// PressureCalibrationLen is the size of the dig_P1..dig_P9 block.
	PressureCalibrationLen = 18
)

var (
	// ErrNotCalibrated is returned when compensation runs before both
	// calibration groups are loaded.
	ErrNotCalibrated = errors.New("bme280: calibration parameters not set")
	// ErrTemperatureNotCompensated is returned when pressure compensation runs
	// without a t_fine from a preceding temperature compensation.
	ErrTemperatureNotCompensated = errors.New("bme280: temperature not compensated")
)

// Calibration holds the factory trimming parameters read from the sensor NVM.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int16

	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	tempSet     bool
	pressureSet bool
}

// SetTemperatureParams decodes the 6 byte temperature block (0x88..0x8D).
func (c *Calibration) SetTemperatureParams(b []byte) error {
	if len(b) != TemperatureCalibrationLen {
		return fmt.Errorf("bme280: temperature calibration needs %d bytes, got %d", TemperatureCalibrationLen, len(b))
	}
	c.T1 = le16u(b, 0)
	c.T2 = le16s(b, 2)
	c.T3 = le16s(b, 4)
	c.tempSet = true
	return nil
}

// SetPressureParams decodes the 18 byte pressure block (0x8E..0x9F).
func (c *Calibration) SetPressureParams(b []byte) error {
	if len(b) != PressureCalibrationLen {
		return fmt.Errorf("bme280: pressure calibration needs %d bytes, got %d", PressureCalibrationLen, len(b))
	}
	c.P1 = le16u(b, 0)
	c.P2 = le16s(b, 2)
	c.P3 = le16s(b, 4)
	c.P4 = le16s(b, 6)
	c.P5 = le16s(b, 8)
	c.P6 = le16s(b, 10)
	c.P7 = le16s(b, 12)
	c.P8 = le16s(b, 14)
	c.P9 = le16s(b, 16)
	c.pressureSet = true
	return nil
}

// Ready reports whether both the temperature and pressure groups are set.
func (c *Calibration) Ready() bool {
	return c.tempSet && c.pressureSet
}

func le16u(b []byte, i int) uint16 {
	return binary.LittleEndian.Uint16(b[i:])
}

func le16s(b []byte, i int) int16 {
	return int16(le16u(b, i))
}
