// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import (
	"errors"
	"math"
	"testing"
)

// Datasheet example constants (BST-BME280-DS002, section 8.2).
var (
	datasheetTempCal     = []byte{0x70, 0x6b, 0x43, 0x67, 0x18, 0xfc}
	datasheetPressureCal = []byte{
		0x7d, 0x8e, 0x43, 0xd6, 0xd0, 0x0b, 0x27, 0x0b, 0x8c,
		0x00, 0xf9, 0xff, 0x8c, 0x3c, 0xf8, 0xc6, 0x70, 0x17,
	}
)

const (
	datasheetRawTemp     uint32 = 519888 // 0x7EED0
	datasheetRawPressure uint32 = 415148 // 0x655AC
)

func datasheetCalibration(t *testing.T) *Calibration {
	t.Helper()
	var cal Calibration
	if err := cal.SetTemperatureParams(datasheetTempCal); err != nil {
		t.Fatalf("SetTemperatureParams: %v", err)
	}
	if err := cal.SetPressureParams(datasheetPressureCal); err != nil {
		t.Fatalf("SetPressureParams: %v", err)
	}
	return &cal
}

func TestCalibration_Decode(t *testing.T) {
	cal := datasheetCalibration(t)

	if cal.T1 != 27504 || cal.T2 != 26435 || cal.T3 != -1000 {
		t.Errorf("T = %d,%d,%d, want 27504,26435,-1000", cal.T1, cal.T2, cal.T3)
	}
	want := [9]int{36477, -10685, 3024, 2855, 140, -7, 15500, -14600, 6000}
	got := [9]int{int(cal.P1), int(cal.P2), int(cal.P3), int(cal.P4), int(cal.P5), int(cal.P6), int(cal.P7), int(cal.P8), int(cal.P9)}
	if got != want {
		t.Errorf("P = %v, want %v", got, want)
	}
	if !cal.Ready() {
		t.Error("Ready() = false after both groups set")
	}
}

func TestCalibration_DecodeSignedness(t *testing.T) {
	tempCal := []byte{0xff, 0xff, 0x00, 0x80, 0xff, 0x7f}
	pressureCal := make([]byte, PressureCalibrationLen)
	pressureCal[0], pressureCal[1] = 0xff, 0xff // P1 unsigned
	pressureCal[2], pressureCal[3] = 0x00, 0x80 // P2 signed minimum
	pressureCal[16], pressureCal[17] = 0xff, 0xff

	var cal Calibration
	if err := cal.SetTemperatureParams(tempCal); err != nil {
		t.Fatal(err)
	}
	if err := cal.SetPressureParams(pressureCal); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"T1", int(cal.T1), 65535},
		{"T2", int(cal.T2), -32768},
		{"T3", int(cal.T3), 32767},
		{"P1", int(cal.P1), 65535},
		{"P2", int(cal.P2), -32768},
		{"P9", int(cal.P9), -1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestCalibration_ReadyNeedsBothGroups(t *testing.T) {
	var cal Calibration
	if cal.Ready() {
		t.Fatal("zero Calibration reports ready")
	}
	if err := cal.SetTemperatureParams(datasheetTempCal); err != nil {
		t.Fatal(err)
	}
	if cal.Ready() {
		t.Fatal("ready with temperature group only")
	}

	var cal2 Calibration
	if err := cal2.SetPressureParams(datasheetPressureCal); err != nil {
		t.Fatal(err)
	}
	if cal2.Ready() {
		t.Fatal("ready with pressure group only")
	}
}

func TestCalibration_WrongLength(t *testing.T) {
	var cal Calibration
	if err := cal.SetTemperatureParams(make([]byte, 5)); err == nil {
		t.Error("SetTemperatureParams(5 bytes) error = nil")
	}
	if err := cal.SetPressureParams(make([]byte, 24)); err == nil {
		t.Error("SetPressureParams(24 bytes) error = nil")
	}
	if cal.Ready() {
		t.Error("rejected buffers marked calibration ready")
	}
}

func TestDecodeRaw(t *testing.T) {
	raw, err := DecodeRaw([]byte{0x65, 0x5a, 0xc0, 0x7e, 0xed, 0x00})
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if raw.Pressure != datasheetRawPressure {
		t.Errorf("Pressure = %#x, want %#x", raw.Pressure, datasheetRawPressure)
	}
	if raw.Temperature != datasheetRawTemp {
		t.Errorf("Temperature = %#x, want %#x", raw.Temperature, datasheetRawTemp)
	}

	// xlsb carries data in its upper nibble only.
	raw, err = DecodeRaw([]byte{0xff, 0xff, 0xff, 0x00, 0x00, 0x0f})
	if err != nil {
		t.Fatal(err)
	}
	if raw.Pressure != 0xfffff || raw.Temperature != 0 {
		t.Errorf("got %#x/%#x, want 0xfffff/0", raw.Pressure, raw.Temperature)
	}

	if _, err := DecodeRaw([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeRaw(3 bytes) error = nil")
	}
}

func TestCompensateTemperature_Datasheet(t *testing.T) {
	c := NewCompensator(datasheetCalibration(t))

	got, err := c.CompensateTemperature(datasheetRawTemp)
	if err != nil {
		t.Fatalf("CompensateTemperature: %v", err)
	}
	if math.Abs(got-25.08) > 0.01 {
		t.Errorf("temperature = %.4f, want ~25.08", got)
	}
	if c.TFine() != 128422 {
		t.Errorf("t_fine = %d, want 128422", c.TFine())
	}
}

func TestCompensatePressure_Datasheet(t *testing.T) {
	c := NewCompensator(datasheetCalibration(t))
	if _, err := c.CompensateTemperature(datasheetRawTemp); err != nil {
		t.Fatal(err)
	}

	got, err := c.CompensatePressure(datasheetRawPressure)
	if err != nil {
		t.Fatalf("CompensatePressure: %v", err)
	}
	if got != 100656 {
		t.Errorf("pressure = %d Pa, want 100656", got)
	}
	if math.Abs(float64(got)-100653.27) > 5 {
		t.Errorf("pressure = %d Pa, not within 5 Pa of the datasheet 100653.27", got)
	}
}

func TestCompensate_FixedVectors(t *testing.T) {
	tests := []struct {
		name      string
		rawTemp   uint32
		rawPress  uint32
		wantTFine int32
		wantPress uint32
	}{
		{name: "datasheet", rawTemp: 0x7eed0, rawPress: 0x655ac, wantTFine: 128422, wantPress: 100656},
		{name: "cooler sample", rawTemp: 0x7eb80, rawPress: 0x655ac, wantTFine: 127061, wantPress: 100613},
		{name: "low pressure code", rawTemp: 0x7eb80, rawPress: 0x7e970, wantTFine: 127061, wantPress: 82833},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompensator(datasheetCalibration(t))
			if _, err := c.CompensateTemperature(tt.rawTemp); err != nil {
				t.Fatal(err)
			}
			if c.TFine() != tt.wantTFine {
				t.Errorf("t_fine = %d, want %d", c.TFine(), tt.wantTFine)
			}
			got, err := c.CompensatePressure(tt.rawPress)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.wantPress {
				t.Errorf("pressure = %d, want %d", got, tt.wantPress)
			}
		})
	}
}

func TestCompensate_Deterministic(t *testing.T) {
	c := NewCompensator(datasheetCalibration(t))

	firstT, _ := c.CompensateTemperature(datasheetRawTemp)
	firstP, _ := c.CompensatePressure(datasheetRawPressure)
	for i := 0; i < 10; i++ {
		tc, err := c.CompensateTemperature(datasheetRawTemp)
		if err != nil {
			t.Fatal(err)
		}
		pc, err := c.CompensatePressure(datasheetRawPressure)
		if err != nil {
			t.Fatal(err)
		}
		if tc != firstT || pc != firstP {
			t.Fatalf("iteration %d: got %v/%d, want %v/%d", i, tc, pc, firstT, firstP)
		}
	}
}

func TestCompensate_NotCalibrated(t *testing.T) {
	var cal Calibration
	if err := cal.SetTemperatureParams(datasheetTempCal); err != nil {
		t.Fatal(err)
	}
	c := NewCompensator(&cal)

	if _, err := c.CompensateTemperature(datasheetRawTemp); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("CompensateTemperature error = %v, want ErrNotCalibrated", err)
	}
	if _, err := c.CompensatePressure(datasheetRawPressure); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("CompensatePressure error = %v, want ErrNotCalibrated", err)
	}
	if c.TFine() != 0 {
		t.Errorf("t_fine = %d after refused compensation, want 0", c.TFine())
	}

	if _, err := NewCompensator(nil).CompensateTemperature(1); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("nil calibration error = %v, want ErrNotCalibrated", err)
	}
}

func TestCompensatePressure_RequiresTemperature(t *testing.T) {
	c := NewCompensator(datasheetCalibration(t))

	got, err := c.CompensatePressure(datasheetRawPressure)
	if !errors.Is(err, ErrTemperatureNotCompensated) {
		t.Fatalf("error = %v, want ErrTemperatureNotCompensated", err)
	}
	if got != 0 {
		t.Errorf("pressure = %d, want 0", got)
	}

	if _, err := c.CompensateTemperature(datasheetRawTemp); err != nil {
		t.Fatal(err)
	}
	c.Reset()
	if _, err := c.CompensatePressure(datasheetRawPressure); !errors.Is(err, ErrTemperatureNotCompensated) {
		t.Errorf("after Reset error = %v, want ErrTemperatureNotCompensated", err)
	}
}

func TestCompensatePressure_DivideGuard(t *testing.T) {
	cal := datasheetCalibration(t)
	cal.P1 = 0
	c := NewCompensator(cal)
	if _, err := c.CompensateTemperature(datasheetRawTemp); err != nil {
		t.Fatal(err)
	}

	got, err := c.CompensatePressure(datasheetRawPressure)
	if err != nil {
		t.Fatalf("divide guard returned error %v, want nil", err)
	}
	if got != 0 {
		t.Errorf("pressure = %d, want 0", got)
	}
}
