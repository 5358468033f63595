// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import (
	"fmt"
	"math"
)

// RawDataLen is the size of the 0xF7..0xFC burst (pressure then temperature).
const RawDataLen = 6

// RawSample holds the uncompensated 20-bit ADC codes of one measurement.
type RawSample struct {
	Pressure    uint32
	Temperature uint32
}

// DecodeRaw unpacks press_msb, press_lsb, press_xlsb, temp_msb, temp_lsb,
// temp_xlsb into two 20-bit codes.
func DecodeRaw(b []byte) (RawSample, error) {
	if len(b) != RawDataLen {
		return RawSample{}, fmt.Errorf("bme280: raw data needs %d bytes, got %d", RawDataLen, len(b))
	}
	return RawSample{
		Pressure:    uint32(b[0])<<12 | uint32(b[1])<<4 | uint32(b[2])>>4,
		Temperature: uint32(b[3])<<12 | uint32(b[4])<<4 | uint32(b[5])>>4,
	}, nil
}

// Compensator turns raw codes into physical units. Pressure compensation
// depends on the t_fine left behind by the last temperature compensation, so
// a Compensator must not be shared between goroutines.
type Compensator struct {
	cal   *Calibration
	tFine int32
}

// NewCompensator returns a Compensator reading its constants from cal.
func NewCompensator(cal *Calibration) *Compensator {
	return &Compensator{cal: cal}
}

// TFine returns the fine temperature of the last temperature compensation,
// 0 if none ran since construction or the last Reset.
func (c *Compensator) TFine() int32 {
	return c.tFine
}

// Reset forgets t_fine.
func (c *Compensator) Reset() {
	c.tFine = 0
}

// CompensateTemperature returns the temperature in °C using the double
// precision datasheet formula and records t_fine.
func (c *Compensator) CompensateTemperature(raw uint32) (float64, error) {
	if c.cal == nil || !c.cal.Ready() {
		return 0, ErrNotCalibrated
	}
	adc := float64(raw)
	t1 := float64(c.cal.T1)

	x1 := (adc/16384.0 - t1/1024.0) * float64(c.cal.T2)
	d := adc/131072.0 - t1/8192.0
	x2 := (d * d) * float64(c.cal.T3)

	c.tFine = int32(math.Floor(x1 + x2))
	return (x1 + x2) / 5120.0, nil
}

// CompensatePressure returns the pressure in Pa using the 32-bit fixed point
// datasheet formula. The operations and their order follow the Bosch
// reference; int32 overflow wraps exactly like the C code.
//
// A zero result with a nil error means the divide guard tripped and no
// pressure is available for this sample.
func (c *Compensator) CompensatePressure(raw uint32) (uint32, error) {
	if c.cal == nil || !c.cal.Ready() {
		return 0, ErrNotCalibrated
	}
	if c.tFine == 0 {
		return 0, ErrTemperatureNotCompensated
	}
	cal := c.cal

	var1 := (c.tFine >> 1) - 64000
	var2 := (((var1 >> 2) * (var1 >> 2)) >> 11) * int32(cal.P6)
	var2 = var2 + ((var1 * int32(cal.P5)) << 1)
	var2 = (var2 >> 2) + (int32(cal.P4) << 16)
	var1 = (((int32(cal.P3) * (((var1 >> 2) * (var1 >> 2)) >> 13)) >> 3) + ((int32(cal.P2) * var1) >> 1)) >> 18
	var1 = ((32768 + var1) * int32(cal.P1)) >> 15
	if var1 == 0 {
		return 0, nil
	}

	p := uint32((1048576-int32(raw))-(var2>>12)) * 3125
	if p < 0x80000000 {
		p = (p << 1) / uint32(var1)
	} else {
		p = (p / uint32(var1)) * 2
	}

	var1 = (int32(cal.P9) * int32(((p>>3)*(p>>3))>>13)) >> 12
	var2 = (int32(p>>2) * int32(cal.P8)) >> 13
	return uint32(int32(p) + ((var1 + var2 + int32(cal.P7)) >> 4)), nil
}
