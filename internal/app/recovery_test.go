package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/baro_fdr/internal/bus"
	"github.com/relabs-tech/baro_fdr/internal/fdr"
	"github.com/relabs-tech/baro_fdr/internal/sensors"
)

// scriptedDriver hands out devices that replay readings in order, repeating
// the last one.
type scriptedDriver struct {
	readings []sensors.Raw
}

func (d *scriptedDriver) Open(b i2c.Bus, id sensors.Identity, p sensors.Profile) (sensors.Device, error) {
	return &scriptedDevice{drv: d}, nil
}

type scriptedDevice struct {
	drv *scriptedDriver
}

func (d *scriptedDevice) Configure(sensors.Profile) error { return nil }

func (d *scriptedDevice) Sense() (sensors.Raw, error) {
	r := d.drv.readings[0]
	if len(d.drv.readings) > 1 {
		d.drv.readings = d.drv.readings[1:]
	}
	return r, nil
}

func (d *scriptedDevice) Halt() error { return nil }

func TestRecoveredSensorWritesNoStaleRow(t *testing.T) {
	sim := bus.NewSim()
	sensors.AttachSim(sim, sensors.ModelA, sensors.AddrPrimary)
	bad := sensors.Raw{TemperatureC: 20, PressureHPa: 50}
	drv := &scriptedDriver{readings: []sensors.Raw{
		{TemperatureC: 20, PressureHPa: 1000},
		bad, bad, bad,
		{TemperatureC: 20, PressureHPa: 1010},
	}}
	engine := sensors.NewEngine(sim, drv, sensors.WithWaiter(bus.NoWait))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := fdr.NewStore(fdr.DirStorage{Root: t.TempDir()}, fdr.WithStoreClock(clock))
	rec := fdr.NewRecorder(store, engine, fdr.WithClock(clock))

	engine.Poll() // discovery
	engine.Poll()
	require.True(t, engine.Ready())
	_, err := rec.Start(time.Minute, 1)
	require.NoError(t, err)
	start := now

	step := func(sec int) {
		now = start.Add(time.Duration(sec) * time.Second)
		engine.Poll()
		rec.Tick(now)
	}
	rec.Tick(now)
	step(1) // bad
	step(2) // bad
	step(3) // bad: sensor dropped
	assert.False(t, engine.Ready())
	step(4) // re-detected, nothing read yet
	assert.True(t, engine.Ready())
	step(5) // first read after re-detection

	rec.Stop()
	var out bytes.Buffer
	_, err = fdr.StreamExport(store, &out)
	require.NoError(t, err)

	var stamps []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n")[1:] {
		stamps = append(stamps, strings.Split(line, ",")[0])
	}
	assert.Equal(t, []string{"0.000", "1.000", "2.000", "5.000"}, stamps)
	assert.Contains(t, out.String(), "5.000,1010.00\n")
}
