// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"strings"
)

// RegisterInfo describes one register for the register dump.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// BitField describes a field within a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// Readable reports whether the register can be read back.
func (r RegisterInfo) Readable() bool {
	return strings.Contains(r.Access, "R")
}

// BME280RegisterMap returns metadata for the registers the forecaster uses.
func BME280RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: RegCalibT, Name: "CALIB_T", Description: "dig_T1..dig_T3, little endian (6 bytes)", Access: "R"},
		{Address: RegCalibP, Name: "CALIB_P", Description: "dig_P1..dig_P9, little endian (18 bytes)", Access: "R"},
		{Address: RegChipID, Name: "ID", Description: "Chip identification", Access: "R", Default: "0x60",
			BitFields: []BitField{
				{Bits: "7:0", Name: "chip_id", Description: "Chip id", Values: "0x60=BME280, 0x58=BMP280"},
			}},
		{Address: RegReset, Name: "RESET", Description: "Soft reset", Access: "W", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:0", Name: "reset", Description: "Writing 0xB6 resets the device", Values: "0xB6"},
			}},
		{Address: RegStatus, Name: "STATUS", Description: "Device status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "3", Name: "measuring", Description: "Conversion running", Values: "0=Done, 1=Running"},
				{Bits: "0", Name: "im_update", Description: "NVM data being copied", Values: "0=Done, 1=Copying"},
			}},
		{Address: RegCtrlMeas, Name: "CTRL_MEAS", Description: "Measurement control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:5", Name: "osrs_t", Description: "Temperature oversampling", Values: "0=Skipped, 1=x1, 2=x2, 3=x4, 4=x8, 5=x16"},
				{Bits: "4:2", Name: "osrs_p", Description: "Pressure oversampling", Values: "0=Skipped, 1=x1, 2=x2, 3=x4, 4=x8, 5=x16"},
				{Bits: "1:0", Name: "mode", Description: "Power mode", Values: "0=Sleep, 1/2=Forced, 3=Normal"},
			}},
		{Address: RegConfig, Name: "CONFIG", Description: "Rate, filter and interface", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:5", Name: "t_sb", Description: "Standby in normal mode", Values: "0=0.5ms ... 7=20ms"},
				{Bits: "4:2", Name: "filter", Description: "IIR filter coefficient", Values: "0=Off, 1=2, 2=4, 3=8, 4=16"},
				{Bits: "0", Name: "spi3w_en", Description: "3-wire SPI", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: RegData, Name: "PRESS_MSB", Description: "Pressure [19:12]", Access: "R", Default: "0x80"},
		{Address: RegData + 1, Name: "PRESS_LSB", Description: "Pressure [11:4]", Access: "R", Default: "0x00"},
		{Address: RegData + 2, Name: "PRESS_XLSB", Description: "Pressure [3:0] in bits 7:4", Access: "R", Default: "0x00"},
		{Address: RegData + 3, Name: "TEMP_MSB", Description: "Temperature [19:12]", Access: "R", Default: "0x80"},
		{Address: RegData + 4, Name: "TEMP_LSB", Description: "Temperature [11:4]", Access: "R", Default: "0x00"},
		{Address: RegData + 5, Name: "TEMP_XLSB", Description: "Temperature [3:0] in bits 7:4", Access: "R", Default: "0x00"},
	}
}

// RegisterValue is one entry of a register dump.
type RegisterValue struct {
	Info  RegisterInfo `json:"info"`
	Bytes []byte       `json:"bytes"`
}

// Hex formats the value bytes as "0x12 0x34".
func (v RegisterValue) Hex() string {
	parts := make([]string, len(v.Bytes))
	for i, b := range v.Bytes {
		parts[i] = fmt.Sprintf("0x%02X", b)
	}
	return strings.Join(parts, " ")
}

// DumpRegisters reads every readable register of the map. The calibration
// blocks are read whole.
func DumpRegisters(ctx context.Context, dev RegisterDevice) ([]RegisterValue, error) {
	var out []RegisterValue
	for _, info := range BME280RegisterMap() {
		if !info.Readable() {
			continue
		}
		n := 1
		switch info.Address {
		case RegCalibT:
			n = 6
		case RegCalibP:
			n = 18
		}
		b, err := dev.ReadRegisters(ctx, info.Address, n)
		if err != nil {
			return out, fmt.Errorf("dump %s: %w", info.Name, err)
		}
		out = append(out, RegisterValue{Info: info, Bytes: b})
	}
	return out, nil
}
