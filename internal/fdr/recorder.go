// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fdr

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinRate = 1  // samples per second
	MaxRate = 50 // samples per second
)

// Sensor is the part of the barometer engine the recorder depends on.
type Sensor interface {
	Ready() bool
	Pressure() float64
	SetFastMode(fast bool)
}

// Indicator receives the recording state, e.g. a status LED.
type Indicator interface {
	Recording()
	Idle()
}

type nopIndicator struct{}

func (nopIndicator) Recording() {}
func (nopIndicator) Idle()      {}

// ClampRate limits a requested rate to [MinRate, MaxRate]; 0 or negative
// selects MinRate.
func ClampRate(rate int) int {
	switch {
	case rate < MinRate:
		return MinRate
	case rate > MaxRate:
		return MaxRate
	default:
		return rate
	}
}

// IntervalFor returns the sample interval for a requested rate, computed in
// whole milliseconds.
func IntervalFor(rate int) time.Duration {
	return time.Duration(1000/ClampRate(rate)) * time.Millisecond
}

// Session describes one recording.
type Session struct {
	ID       uuid.UUID     `json:"id"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Rate     int           `json:"samples_per_sec"`
	Interval time.Duration `json:"interval_ns"`
}

// Status is a point-in-time view of the recorder.
type Status struct {
	Active    bool     `json:"active"`
	Session   *Session `json:"session,omitempty"`
	Samples   int      `json:"samples"`
	Skipped   int      `json:"skipped"`
	Buffered  int      `json:"buffered_bytes"`
	Persisted int64    `json:"persisted_bytes"`
}

// Recorder schedules samples from a Sensor into a Store over a bounded
// session (Idle -> Recording -> Idle). Not safe for concurrent use: Tick and
// the control methods must be called from one goroutine.
type Recorder struct {
	store  *Store
	sensor Sensor
	ind    Indicator
	clock  func() time.Time
	log    *zap.Logger

	active      bool
	sess        Session
	lastSample  time.Time
	sampled     bool
	sensorReady bool
	samples     int
	skipped     int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithIndicator reports recording state changes to ind.
func WithIndicator(ind Indicator) RecorderOption {
	return func(r *Recorder) { r.ind = ind }
}

// WithClock sets the clock used by Start.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.clock = now }
}

// WithRecorderLogger sets the recorder logger.
func WithRecorderLogger(l *zap.Logger) RecorderOption {
	return func(r *Recorder) { r.log = l }
}

// NewRecorder returns an idle recorder.
func NewRecorder(store *Store, sensor Sensor, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		sensor: sensor,
		ind:    nopIndicator{},
		clock:  time.Now,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start begins a new session of the given duration at rate samples per
// second (clamped to [MinRate, MaxRate]). A session already running is
// stopped first. If the store cannot begin a session the recorder stays idle.
func (r *Recorder) Start(duration time.Duration, rate int) (Session, error) {
	if r.active {
		r.log.Info("restarting, previous session stopped", zap.Stringer("session", r.sess.ID))
		r.Stop()
	}

	clamped := ClampRate(rate)
	if rate > MaxRate {
		r.log.Warn("requested rate too high, capping", zap.Int("requested", rate), zap.Int("rate", clamped))
	}
	if duration < 0 {
		duration = 0
	}

	if err := r.store.BeginSession(); err != nil {
		r.log.Error("failed to create log", zap.Error(err))
		return Session{}, fmt.Errorf("start recording: %w", err)
	}

	now := r.clock()
	r.sess = Session{
		ID:       uuid.New(),
		Start:    now,
		End:      now.Add(duration),
		Rate:     clamped,
		Interval: IntervalFor(clamped),
	}
	r.active = true
	r.sampled = false
	r.samples = 0
	r.skipped = 0

	r.sensor.SetFastMode(true)
	r.sensorReady = r.sensor.Ready()
	r.ind.Recording()

	r.log.Info("recording started",
		zap.Stringer("session", r.sess.ID),
		zap.Duration("duration", duration),
		zap.Int("samples_per_sec", clamped),
		zap.Duration("interval", r.sess.Interval),
	)
	return r.sess, nil
}

// Tick advances the schedule to now. It ends the session once now reaches
// the end time, otherwise takes at most one sample when the interval has
// elapsed since the last attempt. Attempts while the sensor is not ready
// write nothing but still restart the interval.
func (r *Recorder) Tick(now time.Time) {
	if !r.active {
		return
	}
	if !now.Before(r.sess.End) {
		r.Stop()
		return
	}

	// A sensor that re-appears mid-session comes back in high precision.
	if ready := r.sensor.Ready(); ready != r.sensorReady {
		r.sensorReady = ready
		if ready {
			r.sensor.SetFastMode(true)
		}
	}

	if r.sampled && now.Sub(r.lastSample) < r.sess.Interval {
		return
	}
	r.lastSample = now
	r.sampled = true

	pressure := r.sensor.Pressure()
	if !r.sensorReady || math.IsNaN(pressure) {
		r.skipped++
		r.log.Debug("barometer not ready, skipping sample")
		return
	}

	elapsed := now.Sub(r.sess.Start).Seconds()
	if err := r.store.AppendSample(elapsed, pressure); err != nil {
		if errors.Is(err, ErrLogFull) {
			r.log.Warn("log storage budget exhausted, ending session", zap.Int("samples", r.samples))
			r.Stop()
			return
		}
		r.log.Error("append failed", zap.Error(err))
		return
	}
	r.samples++

	// Failures are logged by the store and retried on the next flush point.
	_ = r.store.Flush(false)
}

// Stop ends the session: final flush, handle released, sensor back to high
// precision. It is a no-op when idle.
func (r *Recorder) Stop() {
	if !r.active {
		return
	}
	if err := r.store.EndSession(); err != nil {
		r.log.Warn("final flush incomplete", zap.Int("pending_bytes", r.store.Buffered()), zap.Error(err))
	}
	r.active = false
	r.sensor.SetFastMode(false)
	r.ind.Idle()
	r.log.Info("recording stopped",
		zap.Stringer("session", r.sess.ID),
		zap.Int("samples", r.samples),
		zap.Int("skipped", r.skipped),
	)
}

// Reset deletes the recorded log. A running session is stopped first so the
// artifact is never recreated without its header.
func (r *Recorder) Reset() error {
	r.Stop()
	if err := r.store.Reset(); err != nil {
		return fmt.Errorf("reset recording: %w", err)
	}
	return nil
}

// IsActive reports whether a session is running.
func (r *Recorder) IsActive() bool { return r.active }

// Status returns the recorder state.
func (r *Recorder) Status() Status {
	st := Status{
		Active:    r.active,
		Samples:   r.samples,
		Skipped:   r.skipped,
		Buffered:  r.store.Buffered(),
		Persisted: r.store.Persisted(),
	}
	if r.active {
		sess := r.sess
		st.Session = &sess
	}
	return st
}
