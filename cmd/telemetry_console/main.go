package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/rover_collector/internal/app"
	"github.com/relabs-tech/rover_collector/internal/config"
)

func main() {
	configPath := flag.String("config", "./rover_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting rover telemetry console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		log.Fatalf("MQTT_BROKER is not set in %s", *configPath)
	}

	if err := app.RunTelemetryConsole(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
