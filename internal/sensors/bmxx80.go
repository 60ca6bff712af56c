// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

var errNotConfigured = errors.New("sensors: device not configured")

// BMxx80 is the Driver for real BME280/BMP280 parts, built on periph's
// bmxx80 package. The model is enforced through the identity register since
// bmxx80 itself accepts either chip.
type BMxx80 struct{}

func (BMxx80) Open(b i2c.Bus, id Identity, p Profile) (Device, error) {
	if err := checkChipID(b, id); err != nil {
		return nil, err
	}
	d := &bmxDevice{bus: b, id: id}
	if err := d.Configure(p); err != nil {
		return nil, err
	}
	return d, nil
}

type bmxDevice struct {
	bus i2c.Bus
	id  Identity
	dev *bmxx80.Dev
}

// Configure rebuilds the bmxx80 device so every register of the profile is
// written again; bmxx80 has no partial setters.
func (d *bmxDevice) Configure(p Profile) error {
	if d.dev != nil {
		_ = d.dev.Halt()
		d.dev = nil
	}
	dev, err := bmxx80.NewI2C(d.bus, d.id.Addr, bmxOpts(d.id.Model, p))
	if err != nil {
		return fmt.Errorf("%s configure %s: %w", d.id, p.Mode, err)
	}
	d.dev = dev
	return nil
}

func (d *bmxDevice) Sense() (Raw, error) {
	if d.dev == nil {
		return Raw{}, errNotConfigured
	}
	var e physic.Env
	if err := d.dev.Sense(&e); err != nil {
		return Raw{}, fmt.Errorf("%s sense: %w", d.id, err)
	}
	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return Raw{
		TemperatureC: e.Temperature.Celsius(),
		PressureHPa:  pressurePa / 100.0, // 1 hPa = 100 Pa
	}, nil
}

func (d *bmxDevice) Halt() error {
	if d.dev == nil {
		return nil
	}
	err := d.dev.Halt()
	d.dev = nil
	return err
}

func bmxOpts(m Model, p Profile) *bmxx80.Opts {
	opts := &bmxx80.Opts{
		Temperature: oversampling(p.Temperature),
		Pressure:    oversampling(p.Pressure),
		Filter:      filter(p.Filter),
		// With a filter and a standby the part free-runs in normal mode and
		// Sense only reads the result registers.
		Standby: p.Standby,
	}
	if m == ModelA {
		opts.Humidity = oversampling(p.Humidity)
	}
	return opts
}

func oversampling(n uint8) bmxx80.Oversampling {
	switch {
	case n == 0:
		return bmxx80.Off
	case n == 1:
		return bmxx80.O1x
	case n == 2:
		return bmxx80.O2x
	case n <= 4:
		return bmxx80.O4x
	case n <= 8:
		return bmxx80.O8x
	default:
		return bmxx80.O16x
	}
}

func filter(n uint8) bmxx80.Filter {
	switch {
	case n < 2:
		return bmxx80.NoFilter
	case n < 4:
		return bmxx80.F2
	case n < 8:
		return bmxx80.F4
	case n < 16:
		return bmxx80.F8
	default:
		return bmxx80.F16
	}
}
