// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/barometer_forecaster/internal/bme280"
)

// datasheetNVM is the calibration block 0x88..0x9F of the datasheet example
// (dig_T1=27504 ... dig_P9=6000).
var datasheetNVM = []byte{
	0x70, 0x6b, 0x43, 0x67, 0x18, 0xfc,
	0x7d, 0x8e, 0x43, 0xd6, 0xd0, 0x0b, 0x27, 0x0b, 0x8c,
	0x00, 0xf9, 0xff, 0x8c, 0x3c, 0xf8, 0xc6, 0x70, 0x17,
}

// Raw codes that compensate to 25.08 °C and 1006.56 hPa with datasheetNVM.
const (
	simBaseTemperature uint32 = 519888
	simBasePressure    uint32 = 415148
)

// ErrSimulatedFault is the bus error injected by SimulatedDevice.SetFault.
var ErrSimulatedFault = errors.New("simulated bus fault")

// SimulatedDevice is an in-memory BME280 register file. A forced-mode write
// to ctrl_meas latches a new measurement into the data registers; by default
// the codes drift slowly around the datasheet example.
type SimulatedDevice struct {
	mu    sync.Mutex
	regs  [256]byte
	start time.Time
	now   func() time.Time
	fixed *bme280.RawSample
	fault error

	measurements int
}

// NewSimulatedDevice returns a powered-up simulated sensor.
func NewSimulatedDevice() *SimulatedDevice {
	s := &SimulatedDevice{now: time.Now}
	s.start = s.now()
	s.powerOn()
	return s
}

func (s *SimulatedDevice) powerOn() {
	s.regs = [256]byte{}
	copy(s.regs[RegCalibT:], datasheetNVM)
	s.regs[RegChipID] = ChipIDBME280
	// Data registers read 0x80000 until the first conversion.
	s.regs[RegData] = 0x80
	s.regs[RegData+3] = 0x80
}

// SetRaw pins the codes latched by every following measurement.
func (s *SimulatedDevice) SetRaw(raw bme280.RawSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixed = &raw
}

// SetFault makes every bus access fail with err until called with nil.
func (s *SimulatedDevice) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

// Measurements returns how many conversions were triggered.
func (s *SimulatedDevice) Measurements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measurements
}

func (s *SimulatedDevice) WriteRegister(ctx context.Context, reg, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault != nil {
		return &TransportError{Op: "write", Reg: reg, Err: s.fault}
	}

	switch reg {
	case RegReset:
		if value == ResetCommand {
			s.powerOn()
		}
	case RegCtrlMeas:
		s.regs[reg] = value
		if mode := value & 0x03; mode == 0x01 || mode == 0x02 {
			s.latch(value)
			// Forced mode returns to sleep once the conversion is done.
			s.regs[reg] = value &^ 0x03
		}
	case RegConfig:
		s.regs[reg] = value
	default:
		return &TransportError{Op: "write", Reg: reg, Err: fmt.Errorf("register is read-only")}
	}
	return nil
}

func (s *SimulatedDevice) ReadRegisters(ctx context.Context, reg byte, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault != nil {
		return nil, &TransportError{Op: "read", Reg: reg, Err: s.fault}
	}
	if n <= 0 || int(reg)+n > len(s.regs) {
		return nil, &TransportError{Op: "read", Reg: reg, Err: fmt.Errorf("invalid length %d", n)}
	}
	out := make([]byte, n)
	copy(out, s.regs[int(reg):int(reg)+n])
	return out, nil
}

func (s *SimulatedDevice) latch(ctrl byte) {
	s.measurements++
	raw := s.sample()
	// Skipped channels keep the reset value 0x80000.
	if ctrl>>5 == 0 {
		raw.Temperature = 0x80000
	}
	if (ctrl>>2)&0x07 == 0 {
		raw.Pressure = 0x80000
	}
	putRaw20(s.regs[RegData:RegData+3], raw.Pressure)
	putRaw20(s.regs[RegData+3:RegData+6], raw.Temperature)
}

func (s *SimulatedDevice) sample() bme280.RawSample {
	if s.fixed != nil {
		return *s.fixed
	}
	elapsed := s.now().Sub(s.start).Seconds()
	// A six hour pressure swell and a slow temperature wobble.
	return bme280.RawSample{
		Pressure:    uint32(float64(simBasePressure) + 3000*math.Sin(2*math.Pi*elapsed/(6*3600))),
		Temperature: uint32(float64(simBaseTemperature) + 800*math.Sin(elapsed/900)),
	}
}

func putRaw20(dst []byte, v uint32) {
	dst[0] = byte(v >> 12)
	dst[1] = byte(v >> 4)
	dst[2] = byte(v<<4) & 0xF0
}
