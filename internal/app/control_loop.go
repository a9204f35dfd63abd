// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"

	"github.com/relabs-tech/rover_collector/internal/actuator"
	"github.com/relabs-tech/rover_collector/internal/keyboard"
)

// ExitKey ends the session when released.
const ExitKey = keyboard.KeyEscape

// Command is what a key press asks the actuators to do.
type Command int

const (
	CommandNone Command = iota
	CommandAccelerate
	CommandDecelerate
	CommandTurnLeft
	CommandTurnRight
	CommandStop
)

var commandNames = [...]string{"none", "accelerate", "decelerate", "turn left", "turn right", "stop"}

func (c Command) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Dispatch maps a key to its command. Keys without a command map to CommandNone.
func Dispatch(k keyboard.Key) Command {
	switch k {
	case keyboard.KeyUp:
		return CommandAccelerate
	case keyboard.KeyDown:
		return CommandDecelerate
	case keyboard.KeyLeft:
		return CommandTurnLeft
	case keyboard.KeyRight:
		return CommandTurnRight
	case keyboard.KeySpace:
		return CommandStop
	default:
		return CommandNone
	}
}

// Actuator is the part of actuator.Controller the control loop drives.
type Actuator interface {
	Accelerate() error
	Decelerate() error
	Turn(side actuator.Side) error
	Stop() error
}

func apply(a Actuator, cmd Command) error {
	switch cmd {
	case CommandAccelerate:
		return a.Accelerate()
	case CommandDecelerate:
		return a.Decelerate()
	case CommandTurnLeft:
		return a.Turn(actuator.Left)
	case CommandTurnRight:
		return a.Turn(actuator.Right)
	case CommandStop:
		return a.Stop()
	default:
		return nil
	}
}

// runControlLoop dispatches key presses until the exit key is released or
// shutdown is signaled elsewhere. Shutdown is checked after every event.
func runControlLoop(events <-chan keyboard.Event, act Actuator, sd *shutdown) {
	log.Println("control: waiting for keys (arrows steer/drive, space stops, esc quits)")
	for {
		select {
		case <-sd.Done():
			return
		default:
		}

		select {
		case <-sd.Done():
			return

		case ev, ok := <-events:
			if !ok {
				sd.Signal(ReasonKeyboardClosed, nil)
				return
			}

			switch {
			case ev.Kind == keyboard.Release && ev.Key == ExitKey:
				log.Println("control: exit key released, shutting down")
				sd.Signal(ReasonExitKey, nil)
				return
			case ev.Kind == keyboard.Press && ev.Key == keyboard.KeyInterrupt:
				log.Println("control: interrupt key, shutting down")
				sd.Signal(ReasonInterrupt, nil)
				return
			case ev.Kind != keyboard.Press:
				continue
			}

			if err := apply(act, Dispatch(ev.Key)); err != nil {
				log.Printf("control: %s failed: %v", Dispatch(ev.Key), err)
				sd.Signal(ReasonActuatorFailure, err)
				return
			}
		}
	}
}
