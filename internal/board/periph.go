// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/rover_collector/internal/fault"
)

// PCA9685Pin is the pin name PWMStart routes to the attached PCA9685 channel.
const PCA9685Pin = "PCA9685"

// pca9685 counters are 12 bit.
const pca9685Resolution = 4095

// Periph drives the rover through periph.io host drivers.
type Periph struct {
	mu   sync.Mutex
	pins map[string]gpio.PinIO

	pcaBus     i2c.BusCloser
	pca        *pca9685.Dev
	pcaChannel int
}

// Open initializes the periph host drivers.
func Open() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: periph host init: %v", fault.ErrDeviceUnavailable, err)
	}
	return &Periph{pins: make(map[string]gpio.PinIO)}, nil
}

// AttachPCA9685 opens a PCA9685 on the given I2C bus ("" = first bus) so that
// PWMStart(PCA9685Pin, ...) drives one of its channels.
func (p *Periph) AttachPCA9685(busName string, addr uint16, channel int) error {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return fmt.Errorf("%w: pca9685 i2c open %q: %v", fault.ErrDeviceUnavailable, busName, err)
	}
	dev, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		bus.Close()
		return fmt.Errorf("%w: pca9685 at 0x%02X: %v", fault.ErrDeviceUnavailable, addr, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pcaBus = bus
	p.pca = dev
	p.pcaChannel = channel
	log.Printf("board: pca9685 attached at 0x%02X, channel %d", addr, channel)
	return nil
}

// Setup resolves a pin by name and drives it low.
func (p *Periph) Setup(pin string, mode Mode) error {
	if mode != ModeOutput {
		return fmt.Errorf("board: pin %s: unsupported mode %d", pin, mode)
	}
	if pin == PCA9685Pin {
		return nil
	}
	io := gpioreg.ByName(pin)
	if io == nil {
		return fmt.Errorf("%w: pin %q not found", fault.ErrDeviceUnavailable, pin)
	}
	if err := io.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: pin %s out: %v", fault.ErrDeviceUnavailable, pin, err)
	}

	p.mu.Lock()
	p.pins[pin] = io
	p.mu.Unlock()
	return nil
}

// PWMStart starts a PWM output at 0% duty.
func (p *Periph) PWMStart(pin string, frequencyHz int) (PWM, error) {
	freq := physic.Frequency(frequencyHz) * physic.Hertz

	p.mu.Lock()
	defer p.mu.Unlock()

	if pin == PCA9685Pin {
		if p.pca == nil {
			return nil, fmt.Errorf("%w: no pca9685 attached", fault.ErrDeviceUnavailable)
		}
		if err := p.pca.SetPwmFreq(freq); err != nil {
			return nil, fmt.Errorf("%w: pca9685 freq %s: %v", fault.ErrDeviceUnavailable, freq, err)
		}
		out := &pcaPWM{dev: p.pca, channel: p.pcaChannel}
		return out, out.SetDutyCycle(0)
	}

	io, ok := p.pins[pin]
	if !ok {
		return nil, fmt.Errorf("board: pin %s used before Setup", pin)
	}
	return &pinPWM{pin: io, freq: freq}, nil
}

// DigitalWrite sets a set-up pin's level.
func (p *Periph) DigitalWrite(pin string, level Level) error {
	p.mu.Lock()
	io, ok := p.pins[pin]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("board: pin %s used before Setup", pin)
	}
	return io.Out(gpio.Level(level))
}

// Cleanup drives every pin low, halts them and closes the PCA9685 bus.
// It keeps going after a failure and returns all failures joined.
func (p *Periph) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for name, io := range p.pins {
		if err := io.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("pin %s halt: %w", name, err))
		}
		if err := io.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("pin %s low: %w", name, err))
		}
	}
	p.pins = make(map[string]gpio.PinIO)

	if p.pca != nil {
		if err := p.pca.SetPwm(p.pcaChannel, 0, 0); err != nil {
			errs = append(errs, fmt.Errorf("pca9685 channel %d off: %w", p.pcaChannel, err))
		}
		p.pca = nil
	}
	if p.pcaBus != nil {
		if err := p.pcaBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pca9685 bus close: %w", err))
		}
		p.pcaBus = nil
	}
	return errors.Join(errs...)
}

type pinPWM struct {
	pin  gpio.PinIO
	freq physic.Frequency
}

func (o *pinPWM) SetDutyCycle(percent float64) error {
	percent = clampPercent(percent)
	if percent == 0 {
		// Some drivers reject a zero duty; a low line is the same signal.
		return o.pin.Out(gpio.Low)
	}
	duty := gpio.Duty(float64(gpio.DutyMax) * percent / 100)
	return o.pin.PWM(duty, o.freq)
}

func (o *pinPWM) Stop() error {
	if err := o.pin.Halt(); err != nil {
		return err
	}
	return o.pin.Out(gpio.Low)
}

type pcaPWM struct {
	dev     *pca9685.Dev
	channel int
}

func (o *pcaPWM) SetDutyCycle(percent float64) error {
	off := gpio.Duty(clampPercent(percent) / 100 * pca9685Resolution)
	return o.dev.SetPwm(o.channel, 0, off)
}

func (o *pcaPWM) Stop() error {
	return o.dev.SetPwm(o.channel, 0, 0)
}
