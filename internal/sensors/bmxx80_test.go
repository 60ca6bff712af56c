package sensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"periph.io/x/devices/v3/bmxx80"
)

func TestBMXOptsFollowProfile(t *testing.T) {
	tests := []struct {
		model Model
		mode  LatencyMode
		want  bmxx80.Opts
	}{
		{ModelA, HighPrecision, bmxx80.Opts{Temperature: bmxx80.O16x, Pressure: bmxx80.O16x, Humidity: bmxx80.O16x, Filter: bmxx80.F16, Standby: 125 * time.Millisecond}},
		{ModelA, Fast, bmxx80.Opts{Temperature: bmxx80.O1x, Pressure: bmxx80.O1x, Humidity: bmxx80.O1x, Filter: bmxx80.NoFilter, Standby: 125 * time.Millisecond}},
		{ModelB, HighPrecision, bmxx80.Opts{Temperature: bmxx80.O8x, Pressure: bmxx80.O8x, Filter: bmxx80.F16, Standby: 125 * time.Millisecond}},
		{ModelB, Fast, bmxx80.Opts{Temperature: bmxx80.O1x, Pressure: bmxx80.O1x, Filter: bmxx80.NoFilter, Standby: time.Millisecond}},
	}
	for _, tc := range tests {
		t.Run(tc.model.String()+"/"+tc.mode.String(), func(t *testing.T) {
			p := ProfileFor(tc.model, tc.mode)
			got := bmxOpts(tc.model, p)
			assert.Equal(t, tc.want, *got)
			assert.Equal(t, p.Standby, got.Standby)
		})
	}
}

func TestOversamplingAndFilterSteps(t *testing.T) {
	assert.Equal(t, bmxx80.Off, oversampling(0))
	assert.Equal(t, bmxx80.O4x, oversampling(3))
	assert.Equal(t, bmxx80.O16x, oversampling(16))
	assert.Equal(t, bmxx80.NoFilter, filter(0))
	assert.Equal(t, bmxx80.F8, filter(8))
	assert.Equal(t, bmxx80.F16, filter(16))
}
