// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/baro_fdr/internal/bus"
)

// Model identifies which barometer variant answered discovery.
type Model uint8

const (
	ModelNone Model = iota
	ModelA          // BME280: pressure, temperature, humidity
	ModelB          // BMP280: pressure and temperature only
)

func (m Model) String() string {
	switch m {
	case ModelA:
		return "BME280"
	case ModelB:
		return "BMP280"
	default:
		return "none"
	}
}

// ChipID is the value the model reports in its identity register.
func (m Model) ChipID() byte {
	switch m {
	case ModelA:
		return ChipIDBME280
	case ModelB:
		return ChipIDBMP280
	default:
		return 0
	}
}

// Bus addresses and identity register of the BMx280 family.
const (
	AddrPrimary   uint16 = 0x76
	AddrSecondary uint16 = 0x77

	RegChipID    byte = 0xD0
	ChipIDBME280 byte = 0x60
	ChipIDBMP280 byte = 0x58
)

// ErrWrongChip is returned by a Driver when the identity register does not
// match the requested model.
var ErrWrongChip = errors.New("sensors: unexpected chip id")

// Identity is the detected model and its bus address.
type Identity struct {
	Model Model
	Addr  uint16
}

func (id Identity) String() string {
	return fmt.Sprintf("%s@0x%02X", id.Model, id.Addr)
}

// LatencyMode selects the sampling profile.
type LatencyMode uint8

const (
	HighPrecision LatencyMode = iota
	Fast
)

func (m LatencyMode) String() string {
	if m == Fast {
		return "fast"
	}
	return "high_precision"
}

// Profile is a complete sampling configuration. Oversampling values are the
// multiplier (0 skips the channel); Filter is the IIR coefficient (0 = off).
// Standby only applies when the device free-runs in normal mode.
type Profile struct {
	Mode        LatencyMode
	Temperature uint8
	Pressure    uint8
	Humidity    uint8
	Filter      uint8
	Standby     time.Duration
}

// ProfileFor returns the full configuration for model m in mode.
func ProfileFor(m Model, mode LatencyMode) Profile {
	switch {
	case m == ModelB && mode == Fast:
		return Profile{Mode: Fast, Temperature: 1, Pressure: 1, Standby: time.Millisecond}
	case m == ModelB:
		return Profile{Mode: HighPrecision, Temperature: 8, Pressure: 8, Filter: 16, Standby: 125 * time.Millisecond}
	case mode == Fast:
		return Profile{Mode: Fast, Temperature: 1, Pressure: 1, Humidity: 1, Standby: 125 * time.Millisecond}
	default:
		return Profile{Mode: HighPrecision, Temperature: 16, Pressure: 16, Humidity: 16, Filter: 16, Standby: 125 * time.Millisecond}
	}
}

// Raw is one unsmoothed reading.
type Raw struct {
	TemperatureC float64
	PressureHPa  float64
}

// Device is an initialized barometer.
type Device interface {
	// Configure re-applies the complete profile.
	Configure(p Profile) error
	// Sense performs one read transaction.
	Sense() (Raw, error)
	Halt() error
}

// Driver initializes a Device of the given identity, applying p.
type Driver interface {
	Open(b i2c.Bus, id Identity, p Profile) (Device, error)
}

// ReadChipID reads the identity register at addr.
func ReadChipID(b i2c.Bus, addr uint16) (byte, error) {
	var r [1]byte
	if err := bus.Transact(b, addr, []byte{RegChipID}, r[:]); err != nil {
		return 0, fmt.Errorf("read chip id: %w", err)
	}
	return r[0], nil
}

// checkChipID fails with ErrWrongChip unless addr identifies as id.Model.
func checkChipID(b i2c.Bus, id Identity) error {
	chip, err := ReadChipID(b, id.Addr)
	if err != nil {
		return err
	}
	if want := id.Model.ChipID(); chip != want {
		return fmt.Errorf("%s: got 0x%02X, want 0x%02X: %w", id, chip, want, ErrWrongChip)
	}
	return nil
}
