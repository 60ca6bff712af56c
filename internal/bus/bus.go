// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus provides the I2C transaction helpers used by the barometer
// engine: presence probing, address scanning, a per-transaction deadline and
// an injectable wait primitive.
package bus

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Valid 7-bit scan range, [ScanFirst, ScanLast).
const (
	ScanFirst uint16 = 0x01
	ScanLast  uint16 = 0x78
)

// Waiter blocks for the given duration. Discovery uses it between probed
// addresses; tests pass NoWait.
type Waiter func(time.Duration)

// Sleep is the production Waiter.
func Sleep(d time.Duration) { time.Sleep(d) }

// NoWait returns immediately.
func NoWait(time.Duration) {}

// Open initializes the periph host drivers and opens the named I2C bus.
// An empty name selects the first available bus.
func Open(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	return b, nil
}

// Probe reports whether a device acknowledges addr. It issues a one byte
// read, which every register-mapped sensor on the bus tolerates.
func Probe(b i2c.Bus, addr uint16) bool {
	var r [1]byte
	return b.Tx(addr, nil, r[:]) == nil
}

// Transact runs one write-then-read transaction against addr.
func Transact(b i2c.Bus, addr uint16, w, r []byte) error {
	if err := b.Tx(addr, w, r); err != nil {
		return fmt.Errorf("i2c tx 0x%02X: %w", addr, err)
	}
	return nil
}

// ScanPresence returns the addresses in [lo, hi) that answer a probe.
func ScanPresence(b i2c.Bus, lo, hi uint16) []uint16 {
	var found []uint16
	for addr := lo; addr < hi; addr++ {
		if Probe(b, addr) {
			found = append(found, addr)
		}
	}
	return found
}
