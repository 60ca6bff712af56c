// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/baro_fdr/internal/bus"
	"github.com/relabs-tech/baro_fdr/internal/env"
)

const (
	// BadReadsMax consecutive out-of-range readings force a re-scan.
	BadReadsMax = 3

	// EMAAlpha is the weight of the newest raw pressure in the smoothed value.
	EMAAlpha = 0.25

	// ScanSettle is waited after every address that answers during discovery.
	ScanSettle = 5 * time.Millisecond

	TemperatureMin = -40.0
	TemperatureMax = 85.0
	PressureMin    = 300.0
	PressureMax    = 1100.0
)

// attempt is one step of the discovery order. requireChipID, when non-zero,
// must be read from the address before the driver is tried.
type attempt struct {
	id            Identity
	requireChipID byte
}

var discoveryOrder = []attempt{
	{id: Identity{Model: ModelA, Addr: AddrPrimary}},
	{id: Identity{Model: ModelA, Addr: AddrSecondary}},
	{id: Identity{Model: ModelB, Addr: AddrPrimary}, requireChipID: ChipIDBMP280},
}

func isCandidate(addr uint16) bool {
	return addr == AddrPrimary || addr == AddrSecondary
}

// InRange reports whether a raw reading is physically plausible.
func InRange(r Raw) bool {
	return r.TemperatureC >= TemperatureMin && r.TemperatureC <= TemperatureMax &&
		r.PressureHPa >= PressureMin && r.PressureHPa <= PressureMax
}

// Engine discovers, configures and reads a barometer, and recovers it after
// persistent bad readings. It is not safe for concurrent use: one goroutine
// drives Poll and every other method.
type Engine struct {
	bus    i2c.Bus
	driver Driver
	wait   bus.Waiter
	log    *zap.Logger

	dev      Device
	id       Identity
	mode     LatencyMode
	badReads int

	lastTemp     float64
	lastRaw      float64
	lastPressure float64
	ema          float64

	devicesSeen int
	scans       int
}

// Option configures an Engine.
type Option func(*Engine)

// WithWaiter replaces the delay used between probed addresses.
func WithWaiter(w bus.Waiter) Option {
	return func(e *Engine) { e.wait = w }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine returns an engine that has not detected anything yet; the first
// Poll runs discovery.
func NewEngine(b i2c.Bus, d Driver, opts ...Option) *Engine {
	e := &Engine{
		bus:          b,
		driver:       d,
		wait:         bus.Sleep,
		log:          zap.NewNop(),
		lastTemp:     math.NaN(),
		lastRaw:      math.NaN(),
		lastPressure: math.NaN(),
		ema:          math.NaN(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Poll runs discovery while no sensor is attached, otherwise performs one
// read, updates the smoothed values and the health counter.
func (e *Engine) Poll() {
	if e.dev == nil {
		e.discover()
		return
	}

	raw, err := e.dev.Sense()
	if err != nil {
		e.log.Warn("read failed", zap.Stringer("sensor", e.id), zap.Error(err))
		e.badReading()
		return
	}

	if math.IsNaN(e.ema) {
		e.ema = raw.PressureHPa
	}
	e.ema = EMAAlpha*raw.PressureHPa + (1-EMAAlpha)*e.ema

	e.lastTemp = raw.TemperatureC
	e.lastRaw = raw.PressureHPa
	e.lastPressure = e.ema

	if InRange(raw) {
		e.badReads = 0
		return
	}
	e.log.Warn("reading out of range",
		zap.Float64("temp_c", raw.TemperatureC),
		zap.Float64("pressure_hpa", raw.PressureHPa),
	)
	e.badReading()
}

func (e *Engine) badReading() {
	e.badReads++
	e.log.Info("bad reading", zap.Int("count", e.badReads))
	if e.badReads < BadReadsMax {
		return
	}
	e.log.Warn("consecutive bad readings, forcing re-scan", zap.Stringer("sensor", e.id))
	e.forget()
}

// forget drops the attached sensor and every state derived from it.
func (e *Engine) forget() {
	if e.dev != nil {
		if err := e.dev.Halt(); err != nil {
			e.log.Debug("halt failed", zap.Error(err))
		}
	}
	e.dev = nil
	e.id = Identity{}
	e.mode = HighPrecision
	e.badReads = 0
	e.resetSmoothing()
}

// resetSmoothing invalidates the smoothed pressure until the next read.
func (e *Engine) resetSmoothing() {
	e.ema = math.NaN()
	e.lastPressure = math.NaN()
}

func (e *Engine) discover() {
	e.scans++
	e.log.Debug("scanning bus", zap.Int("pass", e.scans))

	count := 0
	for addr := bus.ScanFirst; addr < bus.ScanLast; addr++ {
		if !bus.Probe(e.bus, addr) {
			continue
		}
		count++
		e.log.Debug("device answered", zap.String("addr", fmt.Sprintf("0x%02X", addr)))

		if isCandidate(addr) && e.attach() {
			break
		}
		e.wait(ScanSettle)
	}
	e.devicesSeen = count

	if count == 0 {
		e.log.Info("no I2C devices found")
	}
}

func (e *Engine) attach() bool {
	for _, a := range discoveryOrder {
		if a.requireChipID != 0 {
			chip, err := ReadChipID(e.bus, a.id.Addr)
			if err != nil || chip != a.requireChipID {
				continue
			}
		}
		dev, err := e.driver.Open(e.bus, a.id, ProfileFor(a.id.Model, HighPrecision))
		if err != nil {
			e.log.Debug("init attempt failed", zap.Stringer("sensor", a.id), zap.Error(err))
			continue
		}
		e.dev = dev
		e.id = a.id
		e.mode = HighPrecision
		e.badReads = 0
		e.resetSmoothing()
		e.log.Info("barometer initialized", zap.Stringer("sensor", a.id), zap.Stringer("mode", HighPrecision))
		return true
	}
	e.log.Info("barometer init failed, continuing scan")
	return false
}

// SetLatencyMode re-applies the full profile for mode. It is a no-op while
// no sensor is attached.
func (e *Engine) SetLatencyMode(mode LatencyMode) {
	if e.dev == nil {
		return
	}
	if err := e.dev.Configure(ProfileFor(e.id.Model, mode)); err != nil {
		e.log.Warn("configure failed", zap.Stringer("sensor", e.id), zap.Stringer("mode", mode), zap.Error(err))
		return
	}
	e.mode = mode
	e.log.Info("sampling mode applied", zap.Stringer("sensor", e.id), zap.Stringer("mode", mode))
}

// SetFastMode selects Fast when fast is true, HighPrecision otherwise.
func (e *Engine) SetFastMode(fast bool) {
	if fast {
		e.SetLatencyMode(Fast)
		return
	}
	e.SetLatencyMode(HighPrecision)
}

// Ready reports whether a sensor is attached.
func (e *Engine) Ready() bool { return e.dev != nil }

// IsSecondaryModel reports whether the attached sensor is a BMP280.
func (e *Engine) IsSecondaryModel() bool { return e.dev != nil && e.id.Model == ModelB }

// Identity returns the attached sensor, or the zero Identity.
func (e *Engine) Identity() Identity { return e.id }

// Mode returns the latency mode last applied.
func (e *Engine) Mode() LatencyMode { return e.mode }

// Temperature returns the last temperature in °C, NaN if never read.
func (e *Engine) Temperature() float64 { return e.lastTemp }

// Pressure returns the last smoothed pressure in hPa, NaN if never read.
func (e *Engine) Pressure() float64 { return e.lastPressure }

// RawPressure returns the last unsmoothed pressure in hPa.
func (e *Engine) RawPressure() float64 { return e.lastRaw }

// BadReads returns the current consecutive bad reading count.
func (e *Engine) BadReads() int { return e.badReads }

// DevicesSeen returns how many addresses answered the last scan.
func (e *Engine) DevicesSeen() int { return e.devicesSeen }

// Scans returns how many discovery passes have run.
func (e *Engine) Scans() int { return e.scans }

// Snapshot returns the engine state for outside readers.
func (e *Engine) Snapshot() env.Sample {
	s := env.Sample{
		Ready:       e.Ready(),
		Model:       e.id.Model.String(),
		Secondary:   e.IsSecondaryModel(),
		Mode:        e.mode.String(),
		Temperature: e.lastTemp,
		Pressure:    e.lastPressure,
		RawPressure: e.lastRaw,
	}
	if s.Ready {
		s.Address = e.id.Addr
	}
	return s
}
