// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command collector drives the rover from the keyboard and records camera
// frames into dataset/<steering bucket>/ for training a steering model.
//
// Run (GPIO access usually needs root):
//
//	sudo ./collector -config rover_config.txt
//
// Keys: arrows steer and drive, space stops, esc quits.
package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/rover_collector/internal/app"
	"github.com/relabs-tech/rover_collector/internal/config"
)

func main() {
	configPath := flag.String("config", "./rover_config.txt", "path to configuration file (missing file = built-in defaults)")
	flag.Parse()

	log.Println("starting rover dataset collector")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCollector(config.Get()); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
