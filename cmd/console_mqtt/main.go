package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/relabs-tech/baro_fdr/internal/app"
	"github.com/relabs-tech/baro_fdr/internal/config"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML configuration file")
	broker := pflag.String("broker", "", "MQTT broker, overrides mqtt.broker")
	pflag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if cfg.MQTT.Broker == "" {
		logger.Fatal("no MQTT broker configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, cfg.MQTT, os.Stdout, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}
