// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package status drives the recorder's visual indicators: an RGB LED and an
// optional SSD1306 panel.
package status

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Color is an on/off RGB combination.
type Color struct{ R, G, B bool }

var (
	Off   = Color{}
	Red   = Color{R: true}
	Green = Color{G: true}
	Blue  = Color{B: true}
)

// LED is a common-cathode RGB LED on up to three GPIO pins. Nil pins are
// ignored so boards with a single status LED still work.
type LED struct {
	r, g, b gpio.PinOut
	log     *zap.Logger
	wait    func(time.Duration)
}

// NewLED looks up the named pins. Empty names are skipped.
func NewLED(red, green, blue string, log *zap.Logger) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	lookup := func(name string) (gpio.PinOut, error) {
		if name == "" {
			return nil, nil
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("LED pin %q not found", name)
		}
		return p, nil
	}
	r, err := lookup(red)
	if err != nil {
		return nil, err
	}
	g, err := lookup(green)
	if err != nil {
		return nil, err
	}
	b, err := lookup(blue)
	if err != nil {
		return nil, err
	}
	return newLED(r, g, b, log), nil
}

func newLED(r, g, b gpio.PinOut, log *zap.Logger) *LED {
	if log == nil {
		log = zap.NewNop()
	}
	return &LED{r: r, g: g, b: b, log: log, wait: time.Sleep}
}

// Set drives the pins to c.
func (l *LED) Set(c Color) {
	for _, ch := range []struct {
		pin gpio.PinOut
		on  bool
	}{{l.r, c.R}, {l.g, c.G}, {l.b, c.B}} {
		if ch.pin == nil {
			continue
		}
		if err := ch.pin.Out(gpio.Level(ch.on)); err != nil {
			l.log.Warn("LED pin write failed", zap.String("pin", ch.pin.String()), zap.Error(err))
		}
	}
}

// Recording shows green.
func (l *LED) Recording() { l.Set(Green) }

// Idle shows blue.
func (l *LED) Idle() { l.Set(Blue) }

// StartupBlink toggles red times times, delay apart, and leaves the LED off.
func (l *LED) StartupBlink(times int, delay time.Duration) {
	for i := 0; i < times; i++ {
		if i%2 == 0 {
			l.Set(Red)
		} else {
			l.Set(Off)
		}
		l.wait(delay)
	}
	l.Set(Off)
}

// Halt switches the LED off.
func (l *LED) Halt() { l.Set(Off) }
