// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
)

// ErrNack is returned by Sim when no device answers the address.
var ErrNack = errors.New("bus: address not acknowledged")

// Registers is a register-file device for Sim: a write sets the register
// pointer from its first byte and stores any following bytes; a read returns
// consecutive registers from the pointer.
type Registers struct {
	mu   sync.Mutex
	regs [256]byte
	ptr  byte
}

// NewRegisters returns a device with the given initial register values.
func NewRegisters(init map[byte]byte) *Registers {
	d := &Registers{}
	for k, v := range init {
		d.regs[k] = v
	}
	return d
}

// Set stores v at register reg.
func (d *Registers) Set(reg, v byte) {
	d.mu.Lock()
	d.regs[reg] = v
	d.mu.Unlock()
}

// Get returns the value of register reg.
func (d *Registers) Get(reg byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[reg]
}

func (d *Registers) tx(w, r []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(w) > 0 {
		d.ptr = w[0]
		for _, v := range w[1:] {
			d.regs[d.ptr] = v
			d.ptr++
		}
	}
	for i := range r {
		r[i] = d.regs[d.ptr]
		d.ptr++
	}
}

// Sim is an in-memory I2C bus hosting Registers devices. It backs mock runs
// and tests; it is safe for concurrent use.
type Sim struct {
	mu      sync.Mutex
	devices map[uint16]*Registers
	txCount map[uint16]int
}

// NewSim returns an empty simulated bus.
func NewSim() *Sim {
	return &Sim{
		devices: make(map[uint16]*Registers),
		txCount: make(map[uint16]int),
	}
}

// Attach places dev at addr, replacing any device already there.
func (s *Sim) Attach(addr uint16, dev *Registers) {
	s.mu.Lock()
	s.devices[addr] = dev
	s.mu.Unlock()
}

// Detach removes the device at addr; later transactions to it are NACKed.
func (s *Sim) Detach(addr uint16) {
	s.mu.Lock()
	delete(s.devices, addr)
	s.mu.Unlock()
}

// Transactions returns how many transactions were addressed to addr.
func (s *Sim) Transactions(addr uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount[addr]
}

func (s *Sim) String() string { return "sim-i2c" }

func (s *Sim) SetSpeed(physic.Frequency) error { return nil }

func (s *Sim) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	s.txCount[addr]++
	dev := s.devices[addr]
	s.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("0x%02X: %w", addr, ErrNack)
	}
	dev.tx(w, r)
	return nil
}
