// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/baro_fdr/internal/bus"
)

// SimDriver opens simulated barometers that produce a smooth, slowly
// changing pressure around BasePressure. It still checks the identity
// register, so it must be paired with a bus hosting the chip (see AttachSim).
type SimDriver struct {
	Start        time.Time
	BasePressure float64 // hPa
	BaseTemp     float64 // °C
}

// NewSimDriver returns a driver centered on standard sea-level conditions.
func NewSimDriver() *SimDriver {
	return &SimDriver{Start: time.Now(), BasePressure: 1013.25, BaseTemp: 21.5}
}

// AttachSim places a chip answering as model m at addr on sim.
func AttachSim(sim *bus.Sim, m Model, addr uint16) {
	sim.Attach(addr, bus.NewRegisters(map[byte]byte{RegChipID: m.ChipID()}))
}

func (s *SimDriver) Open(b i2c.Bus, id Identity, p Profile) (Device, error) {
	if err := checkChipID(b, id); err != nil {
		return nil, err
	}
	return &simDevice{drv: s, bus: b, id: id, profile: p}, nil
}

type simDevice struct {
	drv     *SimDriver
	bus     i2c.Bus
	id      Identity
	profile Profile
}

func (d *simDevice) Configure(p Profile) error {
	if err := checkChipID(d.bus, d.id); err != nil {
		return err
	}
	d.profile = p
	return nil
}

// Sense fails once the chip disappears from the bus, like real hardware.
func (d *simDevice) Sense() (Raw, error) {
	if _, err := ReadChipID(d.bus, d.id.Addr); err != nil {
		return Raw{}, err
	}
	elapsed := time.Since(d.drv.Start).Seconds()
	noise := 0.0
	if d.profile.Mode == Fast {
		// Low oversampling shows more jitter.
		noise = 0.08 * math.Sin(elapsed*37)
	}
	return Raw{
		TemperatureC: d.drv.BaseTemp + 0.5*math.Sin(elapsed/60),
		PressureHPa:  d.drv.BasePressure + 0.6*math.Sin(elapsed/10) + noise,
	}, nil
}

func (d *simDevice) Halt() error { return nil }
