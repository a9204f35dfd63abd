package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/rover_collector/internal/config"
)

// RunTelemetryConsole prints the rover's MQTT telemetry until Ctrl+C.
func RunTelemetryConsole(cfg *config.Config) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := []struct {
		topic  string
		format func([]byte) (string, error)
	}{
		{cfg.TopicState, formatState},
		{cfg.TopicCapture, formatCapture},
		{cfg.TopicSession, formatSession},
	}
	for _, sub := range subs {
		format := sub.format
		topic := sub.topic
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Printf("console: %s unmarshal error: %v", topic, err)
				return
			}
			fmt.Println(line)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatState(payload []byte) (string, error) {
	var m StateMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	return fmt.Sprintf("[STATE]  angle=%3d  speed=%3d%%  dir=%s",
		m.State.Angle, m.State.Speed, m.State.Direction), nil
}

func formatCapture(payload []byte) (string, error) {
	var ev CaptureEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", err
	}
	switch {
	case ev.Error != "":
		return fmt.Sprintf("[FRAME]  angle=%3d  dropped: %s", ev.Angle, ev.Error), nil
	case ev.Label == "":
		return fmt.Sprintf("[FRAME]  angle=%3d  no bucket", ev.Angle), nil
	default:
		return fmt.Sprintf("[FRAME]  angle=%3d  %-8s %s", ev.Angle, ev.Label, ev.Path), nil
	}
}

func formatSession(payload []byte) (string, error) {
	var m SessionMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	line := fmt.Sprintf("[SESS]   %s  %s  saved=%d", m.Session, m.Phase, m.Saved)
	if m.Reason != "" {
		line += "  reason=" + m.Reason
	}
	return line, nil
}
