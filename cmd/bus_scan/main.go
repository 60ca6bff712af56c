// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/baro_fdr/internal/bus"
	"github.com/relabs-tech/baro_fdr/internal/sensors"
)

var errNoBarometer = errors.New("no barometer attached")

func main() {
	name := pflag.StringP("bus", "b", "", "I2C bus name (first available when empty)")
	mock := pflag.Bool("mock", false, "scan a simulated bus")
	polls := pflag.Int("polls", 3, "engine polls to run after the scan")
	pflag.Parse()

	os.Exit(scan(*name, *mock, *polls))
}

// scan returns the process exit code once every deferred cleanup has run.
func scan(name string, mock bool, polls int) int {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	var (
		b   i2c.Bus
		drv sensors.Driver = sensors.BMxx80{}
	)
	if mock {
		sim := bus.NewSim()
		sensors.AttachSim(sim, sensors.ModelB, sensors.AddrPrimary)
		b, drv = sim, sensors.NewSimDriver()
	} else {
		bc, err := bus.Open(name)
		if err != nil {
			logger.Error("failed to open bus", zap.Error(err))
			return 1
		}
		defer bc.Close()
		b = bc
	}

	if err := run(b, drv, polls, os.Stdout, logger); err != nil {
		fmt.Println(err)
		return 2
	}
	return 0
}

func run(b i2c.Bus, drv sensors.Driver, polls int, out io.Writer, logger *zap.Logger) error {
	fmt.Fprintf(out, "scanning %s 0x%02X-0x%02X\n", b, bus.ScanFirst, bus.ScanLast-1)
	found := bus.ScanPresence(b, bus.ScanFirst, bus.ScanLast)
	if len(found) == 0 {
		fmt.Fprintln(out, "no devices answered")
	}
	for _, addr := range found {
		line := fmt.Sprintf("  0x%02X", addr)
		if id, err := sensors.ReadChipID(b, addr); err == nil {
			line += fmt.Sprintf("  id[0x%02X]=0x%02X", sensors.RegChipID, id)
			switch id {
			case sensors.ChipIDBME280:
				line += "  BME280"
			case sensors.ChipIDBMP280:
				line += "  BMP280"
			}
		}
		fmt.Fprintln(out, line)
	}

	engine := sensors.NewEngine(b, drv, sensors.WithLogger(logger))
	for i := 0; i < polls; i++ {
		engine.Poll()
	}
	s := engine.Snapshot()
	if !s.Ready {
		return errNoBarometer
	}
	fmt.Fprintf(out, "barometer %s at 0x%02X (secondary=%v) mode=%s\n", s.Model, s.Address, s.Secondary, s.Mode)
	fmt.Fprintf(out, "  temperature %.2f C  pressure %.2f hPa (raw %.2f)\n", s.Temperature, s.Pressure, s.RawPressure)
	return nil
}
