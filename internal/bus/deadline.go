// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrTimeout is returned when a transaction does not complete within the
// bus deadline, or when a previous transaction is still holding the bus.
var ErrTimeout = errors.New("bus: transaction deadline exceeded")

type deadlineBus struct {
	inner i2c.Bus
	d     time.Duration
	sem   chan struct{}
}

// WithDeadline bounds every transaction on b by d. A transaction that hangs
// keeps the bus claimed until it returns; callers in the meantime get
// ErrTimeout instead of queueing behind it. d <= 0 returns b unchanged.
func WithDeadline(b i2c.Bus, d time.Duration) i2c.Bus {
	if d <= 0 {
		return b
	}
	return &deadlineBus{inner: b, d: d, sem: make(chan struct{}, 1)}
}

func (b *deadlineBus) String() string { return b.inner.String() }

func (b *deadlineBus) SetSpeed(f physic.Frequency) error { return b.inner.SetSpeed(f) }

func (b *deadlineBus) Tx(addr uint16, w, r []byte) error {
	timer := time.NewTimer(b.d)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
	case <-timer.C:
		return ErrTimeout
	}

	// The worker owns its own buffers so a late completion never writes
	// into memory the caller has already reused.
	wc := append([]byte(nil), w...)
	var rc []byte
	if len(r) > 0 {
		rc = make([]byte, len(r))
	}
	done := make(chan error, 1)
	go func() {
		defer func() { <-b.sem }()
		done <- b.inner.Tx(addr, wc, rc)
	}()

	select {
	case err := <-done:
		if err == nil {
			copy(r, rc)
		}
		return err
	case <-timer.C:
		return ErrTimeout
	}
}
