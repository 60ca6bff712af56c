// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import (
	"encoding/json"
	"math"
)

// Sample represents the barometer state as seen by outside readers.
// Values the sensor has not produced yet are NaN.
type Sample struct {
	Ready     bool   `json:"ready"`
	Model     string `json:"model"`             // "BME280", "BMP280" or "none"
	Address   uint16 `json:"address,omitempty"` // bus address while ready
	Secondary bool   `json:"secondary"`         // BMP280 fallback in use
	Mode      string `json:"mode"`              // "high_precision" or "fast"

	Temperature float64 `json:"temp_c"`       // °C, never smoothed
	Pressure    float64 `json:"pressure_hpa"` // hPa, smoothed
	RawPressure float64 `json:"raw_pressure_hpa"`
}

// MarshalJSON encodes NaN readings as null.
func (s Sample) MarshalJSON() ([]byte, error) {
	type plain Sample
	return json.Marshal(struct {
		plain
		Temperature *float64 `json:"temp_c"`
		Pressure    *float64 `json:"pressure_hpa"`
		RawPressure *float64 `json:"raw_pressure_hpa"`
	}{
		plain:       plain(s),
		Temperature: finite(s.Temperature),
		Pressure:    finite(s.Pressure),
		RawPressure: finite(s.RawPressure),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
