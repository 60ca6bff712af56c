// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/baro_fdr/internal/app"
	"github.com/relabs-tech/baro_fdr/internal/bus"
	"github.com/relabs-tech/baro_fdr/internal/config"
	"github.com/relabs-tech/baro_fdr/internal/fdr"
	"github.com/relabs-tech/baro_fdr/internal/sensors"
	"github.com/relabs-tech/baro_fdr/internal/status"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML configuration file (defaults apply when empty)")
	mock := pflag.Bool("mock", false, "use a simulated bus and barometer instead of hardware")
	addr := pflag.String("addr", "", "HTTP listen address, overrides web.addr")
	debug := pflag.Bool("debug", false, "development logging")
	pflag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Fatal("failed to load config", zap.String("path", *configPath), zap.Error(err))
		}
	}
	if *addr != "" {
		cfg.Web.Addr = *addr
	}

	if err := run(cfg, *mock, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
	logger.Info("recorder stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, mock bool, logger *zap.Logger) error {
	logger.Info("starting barometric flight data recorder", zap.Bool("mock", mock))

	raw, driver, closeBus, err := openBus(cfg, mock)
	if err != nil {
		return err
	}
	defer closeBus()
	b := bus.WithDeadline(raw, cfg.BusDeadline())

	engine := sensors.NewEngine(b, driver, sensors.WithLogger(logger))
	store := fdr.NewStore(fdr.DirStorage{Root: cfg.Recorder.LogDir},
		fdr.WithLogName(cfg.Recorder.LogFile),
		fdr.WithMaxBytes(cfg.Recorder.MaxLogBytes),
		fdr.WithStoreLogger(logger),
	)

	recOpts := []fdr.RecorderOption{fdr.WithRecorderLogger(logger)}
	if cfg.LEDEnabled() {
		led, err := status.NewLED(cfg.LED.RedPin, cfg.LED.GreenPin, cfg.LED.BluePin, logger)
		if err != nil {
			logger.Warn("status LED unavailable", zap.Error(err))
		} else {
			defer led.Halt()
			led.StartupBlink(3, 150*time.Millisecond)
			led.Idle()
			recOpts = append(recOpts, fdr.WithIndicator(led))
		}
	}
	recorder := fdr.NewRecorder(store, engine, recOpts...)

	ctrl := app.NewController(engine, recorder, store, cfg.LoopInterval(), logger)
	web := app.NewWeb(ctrl, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := web.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	if cfg.MQTT.Broker != "" {
		tel, disconnect, err := app.ConnectTelemetry(cfg.MQTT, logger)
		if err != nil {
			logger.Warn("telemetry disabled", zap.Error(err))
		} else {
			defer disconnect()
			go tel.Run(ctx, ctrl)
		}
	}

	if cfg.Display.Enabled && !mock {
		disp, err := status.NewDisplay(b, cfg.Display.I2CAddr)
		if err != nil {
			logger.Warn("display unavailable", zap.Error(err))
		} else {
			_ = disp.Splash()
			interval := time.Duration(cfg.Display.UpdateIntervalMS) * time.Millisecond
			go app.RunDisplay(ctx, disp, ctrl, interval, logger.Named("display"))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err = <-errCh:
		logger.Error("service error", zap.Error(err))
	}
	cancel()
	<-loopDone
	return err
}

// openBus returns the I2C bus and the barometer driver for it.
func openBus(cfg *config.Config, mock bool) (i2c.Bus, sensors.Driver, func(), error) {
	if mock {
		sim := bus.NewSim()
		sensors.AttachSim(sim, sensors.ModelA, sensors.AddrPrimary)
		return sim, sensors.NewSimDriver(), func() {}, nil
	}
	b, err := bus.Open(cfg.Bus.Name)
	if err != nil {
		return nil, nil, nil, err
	}
	return b, sensors.BMxx80{}, func() { b.Close() }, nil
}
