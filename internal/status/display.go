// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package status

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Frame is what the panel shows.
type Frame struct {
	Ready       bool
	Model       string
	Pressure    float64 // hPa
	Temperature float64 // °C
	Recording   bool
	Elapsed     time.Duration
	Samples     int
}

// panel is the part of ssd1306.Dev the display uses.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Display renders Frames on a 128x64 SSD1306.
type Display struct {
	dev panel
}

// NewDisplay opens an SSD1306 at addr on b.
func NewDisplay(b i2c.Bus, addr uint16) (*Display, error) {
	dev, err := ssd1306.NewI2C(b, addr, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("display at 0x%02X: %w", addr, err)
	}
	return &Display{dev: dev}, nil
}

// Splash shows the startup screen.
func (d *Display) Splash() error {
	img, drawer := newCanvas()
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Baro FDR"))
	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Looking for"))
	drawer.Dot = fixed.P(5, 56)
	drawer.DrawBytes([]byte("barometer"))
	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}

// Show renders f.
func (d *Display) Show(f Frame) error {
	return d.dev.Draw(d.dev.Bounds(), renderFrame(f), image.Point{})
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	draw.Draw(img, img.Bounds(), &image.Uniform{image1bit.Off}, image.Point{}, draw.Src)
	return img, &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

func renderFrame(f Frame) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	if !f.Ready {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Barometer"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Scanning..."))
	} else {
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(f.Model))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("P: " + formatReading(f.Pressure, "%7.2f hPa")))

		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("T: " + formatReading(f.Temperature, "%6.1f C")))
	}

	drawer.Dot = fixed.P(0, 62)
	if f.Recording {
		drawer.DrawBytes([]byte(fmt.Sprintf("REC %4.0fs %5d", f.Elapsed.Seconds(), f.Samples)))
	} else {
		drawer.DrawBytes([]byte("IDLE"))
	}
	return img
}

func formatReading(v float64, format string) string {
	if math.IsNaN(v) {
		return "---"
	}
	return fmt.Sprintf(format, v)
}
