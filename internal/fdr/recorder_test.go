package fdr

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderFixture struct {
	clk    *fakeClock
	st     *memStorage
	store  *Store
	sensor *fakeSensor
	ind    *countingIndicator
	rec    *Recorder
}

func newRecorderFixture() *recorderFixture {
	f := &recorderFixture{
		clk:    newFakeClock(),
		st:     newMemStorage(),
		sensor: &fakeSensor{ready: true, pressure: 1013.25},
		ind:    &countingIndicator{},
	}
	f.store = NewStore(f.st, WithStoreClock(f.clk.Now))
	f.rec = NewRecorder(f.store, f.sensor, WithClock(f.clk.Now), WithIndicator(f.ind))
	return f
}

// run ticks every step until d has elapsed.
func (f *recorderFixture) run(d, step time.Duration) {
	for end := f.clk.Now().Add(d); f.clk.Now().Before(end); f.clk.Advance(step) {
		f.rec.Tick(f.clk.Now())
	}
}

func (f *recorderFixture) rows(t *testing.T) [][2]float64 {
	t.Helper()
	content := f.st.content(DefaultLogName)
	require.True(t, strings.HasPrefix(content, Header), "log starts with header")
	var out [][2]float64
	for _, line := range strings.Split(strings.TrimSuffix(strings.TrimPrefix(content, Header), "\n"), "\n") {
		if line == "" {
			continue
		}
		cols := strings.Split(line, ",")
		require.Len(t, cols, 2)
		ts, err := strconv.ParseFloat(cols[0], 64)
		require.NoError(t, err)
		p, err := strconv.ParseFloat(cols[1], 64)
		require.NoError(t, err)
		out = append(out, [2]float64{ts, p})
	}
	return out
}

func TestClampRate(t *testing.T) {
	tests := []struct {
		rate     int
		clamped  int
		interval time.Duration
	}{
		{rate: -5, clamped: 1, interval: time.Second},
		{rate: 0, clamped: 1, interval: time.Second},
		{rate: 1, clamped: 1, interval: time.Second},
		{rate: 3, clamped: 3, interval: 333 * time.Millisecond},
		{rate: 10, clamped: 10, interval: 100 * time.Millisecond},
		{rate: 50, clamped: 50, interval: 20 * time.Millisecond},
		{rate: 51, clamped: 50, interval: 20 * time.Millisecond},
		{rate: 10000, clamped: 50, interval: 20 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.clamped, ClampRate(tt.rate), "rate %d", tt.rate)
		assert.Equal(t, tt.interval, IntervalFor(tt.rate), "rate %d", tt.rate)
	}
	for r := -100; r <= 200; r++ {
		c := ClampRate(r)
		assert.True(t, c >= MinRate && c <= MaxRate)
		assert.Equal(t, time.Duration(1000/c)*time.Millisecond, IntervalFor(r))
	}
}

func TestRecordFiveSecondsAtTenHz(t *testing.T) {
	f := newRecorderFixture()
	sess, err := f.rec.Start(5*time.Second, 10)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, sess.Interval)
	assert.Equal(t, f.clk.Now().Add(5*time.Second), sess.End)

	f.run(5*time.Second+10*time.Millisecond, 10*time.Millisecond)
	assert.False(t, f.rec.IsActive(), "session ends at its end time")

	rows := f.rows(t)
	require.Len(t, rows, 50)
	for i, r := range rows {
		assert.InDelta(t, float64(i)*0.1, r[0], 1e-9)
		assert.Equal(t, 1013.25, r[1])
	}
	assert.Equal(t, 4.9, rows[len(rows)-1][0])
	assert.Equal(t, []bool{true, false}, f.sensor.fast)
	assert.Equal(t, 1, f.ind.recording)
	assert.Equal(t, 1, f.ind.idle)
}

func TestRecordMaxRate(t *testing.T) {
	f := newRecorderFixture()
	sess, err := f.rec.Start(time.Second, 200)
	require.NoError(t, err)
	assert.Equal(t, MaxRate, sess.Rate)

	f.run(time.Second+time.Millisecond, time.Millisecond)
	rows := f.rows(t)
	require.Len(t, rows, 50)
	for i := 1; i < len(rows); i++ {
		assert.InDelta(t, 0.02, rows[i][0]-rows[i-1][0], 1e-9)
	}
}

func TestSamplesSkippedWhileSensorNotReady(t *testing.T) {
	f := newRecorderFixture()
	f.sensor.ready = false
	_, err := f.rec.Start(time.Second, 10)
	require.NoError(t, err)

	f.run(250*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 3, f.rec.Status().Skipped, "attempts at 0, 100 and 200 ms")

	f.sensor.ready = true
	f.run(100*time.Millisecond, 10*time.Millisecond)
	f.rec.Stop()

	rows := f.rows(t)
	require.Len(t, rows, 1, "no catch-up burst after recovery")
	assert.InDelta(t, 0.3, rows[0][0], 1e-9, "cadence continues from the last attempt")
}

func TestSensorRecoveryReassertsFastMode(t *testing.T) {
	f := newRecorderFixture()
	_, err := f.rec.Start(time.Second, 10)
	require.NoError(t, err)

	f.sensor.ready = false
	f.rec.Tick(f.clk.Now())
	f.sensor.ready = true
	f.clk.Advance(10 * time.Millisecond)
	f.rec.Tick(f.clk.Now())

	assert.Equal(t, []bool{true, true}, f.sensor.fast)
}

func TestNaNPressureIsNotRecorded(t *testing.T) {
	f := newRecorderFixture()
	f.sensor.pressure = math.NaN()
	_, err := f.rec.Start(time.Second, 10)
	require.NoError(t, err)
	f.run(200*time.Millisecond, 10*time.Millisecond)
	f.rec.Stop()
	assert.Empty(t, f.rows(t))
}

func TestStartWhileActiveTruncates(t *testing.T) {
	f := newRecorderFixture()
	_, err := f.rec.Start(10*time.Second, 10)
	require.NoError(t, err)
	f.run(time.Second, 10*time.Millisecond)
	require.NotEmpty(t, f.rows(t))

	f.sensor.pressure = 990
	second, err := f.rec.Start(10*time.Second, 5)
	require.NoError(t, err)
	assert.True(t, f.rec.IsActive())
	assert.Equal(t, 200*time.Millisecond, second.Interval)

	f.run(time.Second, 10*time.Millisecond)
	f.rec.Stop()

	rows := f.rows(t)
	require.Len(t, rows, 5)
	for _, r := range rows {
		assert.Equal(t, 990.0, r[1], "no rows from the previous session")
	}
	assert.InDelta(t, 0.0, rows[0][0], 1e-9)
	assert.Equal(t, []bool{true, false, true, false}, f.sensor.fast)
}

func TestStopIsIdempotent(t *testing.T) {
	f := newRecorderFixture()
	f.rec.Stop()
	assert.Empty(t, f.sensor.fast)

	_, err := f.rec.Start(time.Second, 10)
	require.NoError(t, err)
	f.run(150*time.Millisecond, 10*time.Millisecond)

	f.rec.Stop()
	content := f.st.content(DefaultLogName)
	status := f.rec.Status()
	f.rec.Stop()

	assert.Equal(t, content, f.st.content(DefaultLogName))
	assert.Equal(t, status, f.rec.Status())
	assert.Equal(t, []bool{true, false}, f.sensor.fast)
	assert.Equal(t, 1, f.ind.idle)
	assert.False(t, f.rec.IsActive())
}

func TestStartFailsWhenStorageUnavailable(t *testing.T) {
	f := newRecorderFixture()
	f.st.mountErr = errors.New("no flash")

	_, err := f.rec.Start(time.Second, 10)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.False(t, f.rec.IsActive())
	assert.Empty(t, f.sensor.fast)
	assert.Zero(t, f.ind.recording)

	f.rec.Tick(f.clk.Now())
	assert.Equal(t, 0, f.rec.Status().Samples)
}

func TestTickIdleIsNoop(t *testing.T) {
	f := newRecorderFixture()
	f.rec.Tick(f.clk.Now())
	assert.Empty(t, f.st.files)
}

func TestExportMidSessionSeesEveryRow(t *testing.T) {
	f := newRecorderFixture()
	_, err := f.rec.Start(time.Minute, 50)
	require.NoError(t, err)

	// Steps below the flush interval keep rows buffered.
	for i := 0; i < 5; i++ {
		f.rec.Tick(f.clk.Now())
		f.clk.Advance(20 * time.Millisecond)
	}
	require.Positive(t, f.store.Buffered())

	var sb strings.Builder
	_, err = StreamExport(f.store, &sb)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(strings.TrimPrefix(sb.String(), Header), "\n"))
	assert.True(t, f.rec.IsActive())
}

func TestResetStopsAndDeletes(t *testing.T) {
	f := newRecorderFixture()
	_, err := f.rec.Start(time.Minute, 10)
	require.NoError(t, err)
	f.run(300*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, f.rec.Reset())
	assert.False(t, f.rec.IsActive())
	_, err = StreamExport(f.store, &strings.Builder{})
	assert.ErrorIs(t, err, ErrNoData)

	f.rec.Tick(f.clk.Now())
	_, err = StreamExport(f.store, &strings.Builder{})
	assert.ErrorIs(t, err, ErrNoData, "nothing is written after reset")
}

func TestLogFullEndsSession(t *testing.T) {
	f := newRecorderFixture()
	f.store = NewStore(f.st, WithStoreClock(f.clk.Now), WithMaxBytes(int64(len(Header)+3*len("0.000,1013.25\n"))))
	f.rec = NewRecorder(f.store, f.sensor, WithClock(f.clk.Now))

	_, err := f.rec.Start(time.Minute, 10)
	require.NoError(t, err)
	f.run(time.Second, 10*time.Millisecond)

	assert.False(t, f.rec.IsActive())
	assert.Len(t, f.rows(t), 3)
}

func TestStatus(t *testing.T) {
	f := newRecorderFixture()
	assert.Equal(t, Status{}, f.rec.Status())

	sess, err := f.rec.Start(time.Minute, 10)
	require.NoError(t, err)
	f.run(250*time.Millisecond, 10*time.Millisecond)

	st := f.rec.Status()
	assert.True(t, st.Active)
	require.NotNil(t, st.Session)
	assert.Equal(t, sess.ID, st.Session.ID)
	assert.Equal(t, 3, st.Samples)
}
