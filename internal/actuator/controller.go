// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package actuator owns the rover's steering servo and drive motor.
//
// Controller is the only writer of the actuator State. Other goroutines read it
// through Snapshot. The state lock is never held while talking to the hardware,
// so a snapshot never waits on a servo pulse.
package actuator

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/rover_collector/internal/board"
)

// Pins describes how the servo and the H-bridge are wired.
type Pins struct {
	Servo   string
	IN1     string
	IN2     string
	ENA     string
	ServoHz int
	MotorHz int
}

// Controller drives the servo and motor and keeps their State.
type Controller struct {
	board board.Board
	pins  Pins
	servo board.PWM
	motor board.PWM
	pulse time.Duration

	hwMu sync.Mutex // serializes hardware writes

	mu       sync.RWMutex
	state    State
	observer func(State)
}

// New sets up the pins and starts both PWM outputs at 0% duty.
// pulse is how long the servo is driven before its duty is released.
func New(b board.Board, pins Pins, pulse time.Duration) (*Controller, error) {
	for _, pin := range []string{pins.Servo, pins.IN1, pins.IN2, pins.ENA} {
		if err := b.Setup(pin, board.ModeOutput); err != nil {
			return nil, fmt.Errorf("actuator: setup %s: %w", pin, err)
		}
	}

	servo, err := b.PWMStart(pins.Servo, pins.ServoHz)
	if err != nil {
		return nil, fmt.Errorf("actuator: servo pwm on %s: %w", pins.Servo, err)
	}
	motor, err := b.PWMStart(pins.ENA, pins.MotorHz)
	if err != nil {
		servo.Stop()
		return nil, fmt.Errorf("actuator: motor pwm on %s: %w", pins.ENA, err)
	}

	return &Controller{
		board: b,
		pins:  pins,
		servo: servo,
		motor: motor,
		pulse: pulse,
		state: InitialState(),
	}, nil
}

// SetObserver registers fn to be called with the new State after every command.
// It must be set before the controller is shared.
func (c *Controller) SetObserver(fn func(State)) {
	c.observer = fn
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// update applies fn to the state under the lock and returns the result.
func (c *Controller) update(fn func(s *State)) State {
	c.mu.Lock()
	fn(&c.state)
	s := c.state
	c.mu.Unlock()

	if c.observer != nil {
		c.observer(s)
	}
	return s
}

// Center puts the steering at 90 degrees with the motor stopped and pulses the servo once.
func (c *Controller) Center() error {
	c.hwMu.Lock()
	defer c.hwMu.Unlock()

	s := c.update(func(s *State) { *s = InitialState() })
	if err := c.writeMotor(board.Low, board.Low, 0); err != nil {
		return err
	}
	log.Printf("actuator: centered: angle %d", s.Angle)
	return c.pulseServo(s.Angle)
}

// Turn moves the steering one increment to the given side, clamped to [MinAngle, MaxAngle].
func (c *Controller) Turn(side Side) error {
	c.hwMu.Lock()
	defer c.hwMu.Unlock()

	delta := AngleIncrement
	if side == Left {
		delta = -delta
	}
	s := c.update(func(s *State) { s.Angle = clamp(s.Angle+delta, MinAngle, MaxAngle) })

	log.Printf("actuator: turn %s: angle %d", side, s.Angle)
	return c.pulseServo(s.Angle)
}

// Accelerate raises the speed one step (max 100) and drives forward.
func (c *Controller) Accelerate() error {
	c.hwMu.Lock()
	defer c.hwMu.Unlock()

	s := c.update(func(s *State) {
		s.Speed = clamp(s.Speed+SpeedStep, MinSpeed, MaxSpeed)
		s.Direction = Forward
	})

	log.Printf("actuator: forward: speed %d%%", s.Speed)
	return c.writeMotor(board.Low, board.High, s.Speed)
}

// Decelerate lowers the speed one step (min 0). The direction is left as is.
func (c *Controller) Decelerate() error {
	c.hwMu.Lock()
	defer c.hwMu.Unlock()

	s := c.update(func(s *State) { s.Speed = clamp(s.Speed-SpeedStep, MinSpeed, MaxSpeed) })

	log.Printf("actuator: slow down: speed %d%%", s.Speed)
	if err := c.motor.SetDutyCycle(float64(s.Speed)); err != nil {
		return fmt.Errorf("actuator: motor duty %d%%: %w", s.Speed, err)
	}
	return nil
}

// Stop cuts the motor. Calling it again changes nothing.
func (c *Controller) Stop() error {
	c.hwMu.Lock()
	defer c.hwMu.Unlock()

	c.update(func(s *State) {
		s.Speed = 0
		s.Direction = Stopped
	})

	log.Println("actuator: motor stopped")
	return c.writeMotor(board.Low, board.Low, 0)
}

// Close stops both PWM outputs and releases the GPIO pins.
// Every step runs even if an earlier one fails.
func (c *Controller) Close() error {
	c.hwMu.Lock()
	defer c.hwMu.Unlock()

	var errs []error
	if err := c.motor.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("actuator: motor pwm stop: %w", err))
	}
	if err := c.servo.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("actuator: servo pwm stop: %w", err))
	}
	if err := c.board.Cleanup(); err != nil {
		errs = append(errs, fmt.Errorf("actuator: gpio cleanup: %w", err))
	}
	return errors.Join(errs...)
}

// pulseServo drives the servo to angle, waits for the pulse, then releases it
// so the servo does not draw current holding position.
func (c *Controller) pulseServo(angle int) error {
	if err := c.servo.SetDutyCycle(ServoDuty(angle)); err != nil {
		return fmt.Errorf("actuator: servo duty for %d deg: %w", angle, err)
	}
	if c.pulse > 0 {
		time.Sleep(c.pulse)
	}
	if err := c.servo.SetDutyCycle(0); err != nil {
		return fmt.Errorf("actuator: servo release: %w", err)
	}
	return nil
}

func (c *Controller) writeMotor(in1, in2 board.Level, speed int) error {
	if err := c.board.DigitalWrite(c.pins.IN1, in1); err != nil {
		return fmt.Errorf("actuator: IN1: %w", err)
	}
	if err := c.board.DigitalWrite(c.pins.IN2, in2); err != nil {
		return fmt.Errorf("actuator: IN2: %w", err)
	}
	if err := c.motor.SetDutyCycle(float64(speed)); err != nil {
		return fmt.Errorf("actuator: motor duty %d%%: %w", speed, err)
	}
	return nil
}
