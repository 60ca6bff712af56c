// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/baro_fdr/internal/env"
	"github.com/relabs-tech/baro_fdr/internal/fdr"
	"github.com/relabs-tech/baro_fdr/internal/sensors"
)

// ErrStopped is returned by commands submitted after the loop has exited.
var ErrStopped = errors.New("controller stopped")

// Status is an immutable snapshot published after every loop step.
type Status struct {
	Barometer env.Sample `json:"barometer"`
	Recorder  fdr.Status `json:"recorder"`
	Time      time.Time  `json:"time"`
}

// Elapsed is the time since the running session started, 0 when idle.
func (s Status) Elapsed() time.Duration {
	if s.Recorder.Session == nil {
		return 0
	}
	return s.Time.Sub(s.Recorder.Session.Start)
}

// Controller owns the barometer engine and the recorder. Only the Run
// goroutine touches them; everything else goes through commands.
type Controller struct {
	engine   *sensors.Engine
	recorder *fdr.Recorder
	store    *fdr.Store
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger

	cmds   chan func()
	done   chan struct{}
	status atomic.Pointer[Status]
}

// NewController wires the core loop. interval is the poll/tick period.
func NewController(engine *sensors.Engine, recorder *fdr.Recorder, store *fdr.Store, interval time.Duration, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		engine:   engine,
		recorder: recorder,
		store:    store,
		interval: interval,
		now:      time.Now,
		log:      log.Named("controller"),
		cmds:     make(chan func()),
		done:     make(chan struct{}),
	}
	c.publish()
	return c
}

// Run drives the loop until ctx is cancelled. A running session is stopped
// (and flushed) on the way out.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Info("control loop started", zap.Duration("interval", c.interval))
	c.step()
	for {
		select {
		case <-ctx.Done():
			c.recorder.Stop()
			c.publish()
			c.log.Info("control loop stopped")
			return ctx.Err()
		case cmd := <-c.cmds:
			cmd()
		case <-ticker.C:
			c.step()
		}
	}
}

func (c *Controller) step() {
	c.engine.Poll()
	c.recorder.Tick(c.now())
	c.publish()
}

func (c *Controller) publish() {
	st := &Status{
		Barometer: c.engine.Snapshot(),
		Recorder:  c.recorder.Status(),
		Time:      c.now(),
	}
	c.status.Store(st)
}

// Status returns the latest snapshot.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// Do runs fn on the loop goroutine between steps and waits for it. The
// snapshot is republished before Do returns.
func (c *Controller) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
		c.publish()
	}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Start begins a recording session.
func (c *Controller) Start(ctx context.Context, duration time.Duration, rate int) (fdr.Session, error) {
	var (
		sess fdr.Session
		err  error
	)
	if derr := c.Do(ctx, func() { sess, err = c.recorder.Start(duration, rate) }); derr != nil {
		return fdr.Session{}, derr
	}
	return sess, err
}

// Stop ends the running session, if any.
func (c *Controller) Stop(ctx context.Context) error {
	return c.Do(ctx, c.recorder.Stop)
}

// Reset stops recording and deletes the log.
func (c *Controller) Reset(ctx context.Context) error {
	var err error
	if derr := c.Do(ctx, func() { err = c.recorder.Reset() }); derr != nil {
		return derr
	}
	return err
}

// OpenExport flushes pending rows and opens the log for download. The
// returned reader is bounded to the log size at open time, so it can be
// drained outside the loop while recording continues.
func (c *Controller) OpenExport(ctx context.Context) (*fdr.Export, error) {
	var (
		exp *fdr.Export
		err error
	)
	if derr := c.Do(ctx, func() { exp, err = fdr.OpenExport(c.store) }); derr != nil {
		return nil, derr
	}
	return exp, err
}
