// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package board is the GPIO/PWM layer the rover's actuators are wired to.
package board

// Mode is the direction a pin is set up for.
type Mode int

const (
	ModeOutput Mode = iota
)

// Level is a digital output level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PWM is a running PWM output.
type PWM interface {
	// SetDutyCycle sets the high fraction of the period, 0-100 percent.
	SetDutyCycle(percent float64) error
	// Stop halts the output and leaves the line low.
	Stop() error
}

// Board exposes the pins the rover uses.
type Board interface {
	Setup(pin string, mode Mode) error
	PWMStart(pin string, frequencyHz int) (PWM, error)
	DigitalWrite(pin string, level Level) error
	// Cleanup drives every set-up pin low and releases the buses.
	Cleanup() error
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
