package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/baro_fdr/internal/config"
	"github.com/relabs-tech/baro_fdr/internal/fdr"
)

// subscriber is the part of mqtt.Client the console needs.
type subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// reading mirrors the barometer telemetry payload; null values stay nil.
type reading struct {
	Model       string   `json:"model"`
	Mode        string   `json:"mode"`
	Temperature *float64 `json:"temp_c"`
	Pressure    *float64 `json:"pressure_hpa"`
	RawPressure *float64 `json:"raw_pressure_hpa"`
}

// RunConsoleMQTT prints recorder telemetry from the broker to out until ctx
// is done.
func RunConsoleMQTT(ctx context.Context, cfg config.MQTTConfig, out io.Writer, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	defer client.Disconnect(250)
	log.Info("console connected", zap.String("broker", cfg.Broker))

	if err := subscribeConsole(client, cfg, out, log); err != nil {
		return err
	}
	<-ctx.Done()
	log.Info("console shutting down")
	return nil
}

func subscribeConsole(client subscriber, cfg config.MQTTConfig, out io.Writer, log *zap.Logger) error {
	handlers := map[string]func([]byte) (string, error){
		cfg.TopicBarometer: formatReading,
		cfg.TopicStatus:    formatRecorderStatus,
	}
	for topic, format := range handlers {
		format := format
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Warn("console: unmarshal error", zap.String("topic", msg.Topic()), zap.Error(err))
				return
			}
			fmt.Fprintln(out, line)
		})
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("subscribe %s: timed out", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		log.Info("console subscribed", zap.String("topic", topic))
	}
	return nil
}

func formatReading(payload []byte) (string, error) {
	var r reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return "", err
	}
	return fmt.Sprintf("[BARO] %-6s %-14s P=%s hPa  raw=%s hPa  T=%s C",
		r.Model, r.Mode, optional(r.Pressure, "%7.2f"), optional(r.RawPressure, "%7.2f"), optional(r.Temperature, "%5.1f")), nil
}

func formatRecorderStatus(payload []byte) (string, error) {
	var st fdr.Status
	if err := json.Unmarshal(payload, &st); err != nil {
		return "", err
	}
	if !st.Active {
		return fmt.Sprintf("[FDR ] idle  persisted=%dB", st.Persisted), nil
	}
	return fmt.Sprintf("[FDR ] rec %s  %d/s  samples=%d skipped=%d  buffered=%dB persisted=%dB",
		st.Session.ID, st.Session.Rate, st.Samples, st.Skipped, st.Buffered, st.Persisted), nil
}

func optional(v *float64, format string) string {
	if v == nil {
		return "---"
	}
	return fmt.Sprintf(format, *v)
}
