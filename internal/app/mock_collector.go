// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/rover_collector/internal/board"
	"github.com/relabs-tech/rover_collector/internal/config"
)

// RunMockCollector runs a session with the camera and keyboard but no GPIO:
// actuator writes go to an in-memory board and are summarized at the end.
// Useful on a laptop or before the motor driver is wired.
func RunMockCollector(cfg *config.Config) error {
	mock := board.NewMock()

	hw := RoverHardware(cfg)
	hw.OpenBoard = func() (board.Board, error) {
		log.Println("mock: using in-memory GPIO, nothing will move")
		return mock, nil
	}
	hw.OpenDisplay = nil

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := NewSession(cfg, hw).Run(ctx)

	for _, line := range summarizeWrites(mock.Writes()) {
		fmt.Println(line)
	}
	return err
}

func summarizeWrites(writes []board.Write) []string {
	type count struct{ pwm, digital int }
	counts := make(map[string]*count)
	var order []string
	for _, w := range writes {
		c, ok := counts[w.Pin]
		if !ok {
			c = &count{}
			counts[w.Pin] = c
			order = append(order, w.Pin)
		}
		if w.PWM {
			c.pwm++
		} else {
			c.digital++
		}
	}

	lines := make([]string, 0, len(order))
	for _, pin := range order {
		c := counts[pin]
		lines = append(lines, fmt.Sprintf("PIN=%-8s  PWM=%4d  DIGITAL=%4d", pin, c.pwm, c.digital))
	}
	return lines
}
