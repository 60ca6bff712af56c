package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5*time.Millisecond, cfg.LoopInterval())
	assert.Equal(t, 180*time.Second, cfg.DefaultDuration())
	assert.False(t, cfg.LEDEnabled())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fdr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bus:
  name: "/dev/i2c-1"
  deadline_ms: 50
recorder:
  log_dir: /var/lib/fdr
  max_log_bytes: 1048576
mqtt:
  broker: tcp://localhost:1883
led:
  green_pin: GPIO17
display:
  enabled: true
  i2c_addr: 0x3D
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/i2c-1", cfg.Bus.Name)
	assert.Equal(t, 50*time.Millisecond, cfg.BusDeadline())
	assert.Equal(t, "/var/lib/fdr", cfg.Recorder.LogDir)
	assert.Equal(t, "fdr.csv", cfg.Recorder.LogFile, "unset keys keep defaults")
	assert.Equal(t, int64(1<<20), cfg.Recorder.MaxLogBytes)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.True(t, cfg.LEDEnabled())
	assert.Equal(t, uint16(0x3D), cfg.Display.I2CAddr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := map[string]string{
		"unknown key":    "recorder:\n  sample_rate: 3\n",
		"loop too slow":  "recorder:\n  loop_interval_ms: 50\n",
		"bad frequency":  "recorder:\n  default_frequency: 51\n",
		"negative limit": "recorder:\n  max_log_bytes: -1\n",
		"empty log dir":  "recorder:\n  log_dir: \"\"\n",
		"mqtt interval":  "mqtt:\n  broker: tcp://x:1883\n  publish_interval_ms: 1\n",
		"not yaml":       "bus: [",
	}
	for name, doc := range tests {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}
