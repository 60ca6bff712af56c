// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	Bus      BusConfig      `yaml:"bus"`
	Recorder RecorderConfig `yaml:"recorder"`
	Web      WebConfig      `yaml:"web"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	LED      LEDConfig      `yaml:"led"`
	Display  DisplayConfig  `yaml:"display"`
}

// BusConfig selects the I2C bus the barometer lives on.
type BusConfig struct {
	Name       string `yaml:"name"`        // periph bus name, "" = first available
	DeadlineMS int    `yaml:"deadline_ms"` // per-transaction deadline, 0 disables
}

// RecorderConfig controls the cooperative loop and the log store.
type RecorderConfig struct {
	LogDir           string `yaml:"log_dir"`
	LogFile          string `yaml:"log_file"`
	MaxLogBytes      int64  `yaml:"max_log_bytes"`      // 0 = unlimited
	LoopIntervalMS   int    `yaml:"loop_interval_ms"`   // poll + tick cadence
	DefaultDurationS int    `yaml:"default_duration_s"` // used when a start request omits duration
	DefaultFrequency int    `yaml:"default_frequency"`  // samples/sec when omitted
}

// WebConfig is the HTTP control surface.
type WebConfig struct {
	Addr         string `yaml:"addr"`
	WSIntervalMS int    `yaml:"ws_interval_ms"` // live feed push period
}

// MQTTConfig enables telemetry publishing when Broker is set.
type MQTTConfig struct {
	Broker            string `yaml:"broker"`
	ClientID          string `yaml:"client_id"`
	TopicBarometer    string `yaml:"topic_barometer"`
	TopicStatus       string `yaml:"topic_status"`
	PublishIntervalMS int    `yaml:"publish_interval_ms"`
}

// LEDConfig names the GPIO pins of the RGB status LED. Empty pins are
// skipped; all empty disables the LED.
type LEDConfig struct {
	RedPin   string `yaml:"red_pin"`
	GreenPin string `yaml:"green_pin"`
	BluePin  string `yaml:"blue_pin"`
}

// DisplayConfig enables the SSD1306 status display.
type DisplayConfig struct {
	Enabled          bool   `yaml:"enabled"`
	I2CAddr          uint16 `yaml:"i2c_addr"`
	UpdateIntervalMS int    `yaml:"update_interval_ms"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			DeadlineMS: 100,
		},
		Recorder: RecorderConfig{
			LogDir:           "data",
			LogFile:          "fdr.csv",
			LoopIntervalMS:   5,
			DefaultDurationS: 180,
			DefaultFrequency: 1,
		},
		Web: WebConfig{
			Addr:         ":8080",
			WSIntervalMS: 200,
		},
		MQTT: MQTTConfig{
			ClientID:          "baro-fdr",
			TopicBarometer:    "fdr/barometer",
			TopicStatus:       "fdr/status",
			PublishIntervalMS: 1000,
		},
		Display: DisplayConfig{
			I2CAddr:          0x3C,
			UpdateIntervalMS: 500,
		},
	}
}

// Load reads a YAML configuration file over the defaults. Unknown keys are
// rejected.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if c.Bus.DeadlineMS < 0 {
		return fmt.Errorf("bus.deadline_ms must be >= 0, got %d", c.Bus.DeadlineMS)
	}
	if c.Recorder.LogDir == "" {
		return fmt.Errorf("recorder.log_dir is required")
	}
	if c.Recorder.LogFile == "" {
		return fmt.Errorf("recorder.log_file is required")
	}
	if c.Recorder.MaxLogBytes < 0 {
		return fmt.Errorf("recorder.max_log_bytes must be >= 0, got %d", c.Recorder.MaxLogBytes)
	}
	if c.Recorder.LoopIntervalMS < 1 || c.Recorder.LoopIntervalMS > 20 {
		return fmt.Errorf("recorder.loop_interval_ms must be 1-20 to keep up with 50 samples/sec, got %d", c.Recorder.LoopIntervalMS)
	}
	if c.Recorder.DefaultDurationS < 1 {
		return fmt.Errorf("recorder.default_duration_s must be >= 1, got %d", c.Recorder.DefaultDurationS)
	}
	if c.Recorder.DefaultFrequency < 1 || c.Recorder.DefaultFrequency > 50 {
		return fmt.Errorf("recorder.default_frequency must be 1-50, got %d", c.Recorder.DefaultFrequency)
	}
	if c.Web.Addr == "" {
		return fmt.Errorf("web.addr is required")
	}
	if c.Web.WSIntervalMS < 10 {
		return fmt.Errorf("web.ws_interval_ms must be >= 10, got %d", c.Web.WSIntervalMS)
	}
	if c.MQTT.Broker != "" {
		if c.MQTT.ClientID == "" {
			return fmt.Errorf("mqtt.client_id is required when mqtt.broker is set")
		}
		if c.MQTT.PublishIntervalMS < 10 {
			return fmt.Errorf("mqtt.publish_interval_ms must be >= 10, got %d", c.MQTT.PublishIntervalMS)
		}
	}
	if c.Display.Enabled && c.Display.UpdateIntervalMS < 50 {
		return fmt.Errorf("display.update_interval_ms must be >= 50, got %d", c.Display.UpdateIntervalMS)
	}
	return nil
}

// LoopInterval is the cooperative loop period.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Recorder.LoopIntervalMS) * time.Millisecond
}

// BusDeadline is the per-transaction bus deadline.
func (c *Config) BusDeadline() time.Duration {
	return time.Duration(c.Bus.DeadlineMS) * time.Millisecond
}

// DefaultDuration is the session length used when a request omits it.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.Recorder.DefaultDurationS) * time.Second
}

// LEDEnabled reports whether any LED pin is configured.
func (c *Config) LEDEnabled() bool {
	return c.LED.RedPin != "" || c.LED.GreenPin != "" || c.LED.BluePin != ""
}
