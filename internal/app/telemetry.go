package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/baro_fdr/internal/config"
)

// publisher is the part of mqtt.Client telemetry needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Telemetry publishes retained barometer and recorder status messages.
type Telemetry struct {
	client         publisher
	topicBarometer string
	topicStatus    string
	interval       time.Duration
	log            *zap.Logger
}

// connectTimeout bounds the wait for the first broker connection; the client
// keeps retrying in the background after it.
var connectTimeout = 10 * time.Second

// ConnectTelemetry connects to the broker named in cfg. The returned
// function disconnects.
func ConnectTelemetry(cfg config.MQTTConfig, log *zap.Logger) (*Telemetry, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(connectTimeout) && token.Error() != nil {
		return nil, nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	log.Info("connected to MQTT broker", zap.String("broker", cfg.Broker))

	t := newTelemetry(client, cfg, log)
	return t, func() { client.Disconnect(250) }, nil
}

func newTelemetry(client publisher, cfg config.MQTTConfig, log *zap.Logger) *Telemetry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telemetry{
		client:         client,
		topicBarometer: cfg.TopicBarometer,
		topicStatus:    cfg.TopicStatus,
		interval:       time.Duration(cfg.PublishIntervalMS) * time.Millisecond,
		log:            log.Named("mqtt"),
	}
}

// Run publishes the controller status every interval until ctx is done.
func (t *Telemetry) Run(ctx context.Context, ctrl *Controller) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Publish(ctrl.Status()); err != nil {
				t.log.Warn("publish failed", zap.Error(err))
			}
		}
	}
}

// Publish sends one snapshot. The barometer reading is skipped while no
// sensor is attached so the retained message keeps the last good value.
func (t *Telemetry) Publish(st Status) error {
	if st.Barometer.Ready {
		if err := t.send(t.topicBarometer, st.Barometer); err != nil {
			return err
		}
	}
	return t.send(t.topicStatus, st.Recorder)
}

func (t *Telemetry) send(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	token := t.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(time.Second) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
