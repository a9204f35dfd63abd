// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/rover_collector/internal/actuator"
	"github.com/relabs-tech/rover_collector/internal/board"
	"github.com/relabs-tech/rover_collector/internal/config"
	"github.com/relabs-tech/rover_collector/internal/dataset"
	"github.com/relabs-tech/rover_collector/internal/fault"
	"github.com/relabs-tech/rover_collector/internal/frame"
	"github.com/relabs-tech/rover_collector/internal/keyboard"
)

// Phase is where a session is in its lifecycle.
type Phase int

const (
	PhaseUninit Phase = iota
	PhaseReady
	PhaseRunning
	PhaseShuttingDown
	PhaseTerminated
)

var phaseNames = [...]string{"uninit", "ready", "running", "shutting down", "terminated"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Hardware opens the devices a session needs. OpenDisplay and DialTelemetry
// are optional; a nil func disables that output.
type Hardware struct {
	OpenBoard     func() (board.Board, error)
	OpenCamera    func(index, width, height int) (frame.Source, error)
	OpenKeyboard  func() (keyboard.Source, error)
	OpenDisplay   func() (Panel, error)
	DialTelemetry func(session string) (*Telemetry, error)
}

// Session is one data collection run, from acquiring the hardware to
// releasing it.
type Session struct {
	ID string

	cfg *config.Config
	hw  Hardware
	now func() time.Time

	mu     sync.Mutex
	phase  Phase
	reason Reason

	ctrl    *actuator.Controller
	cam     frame.Source
	keys    keyboard.Source
	writer  *dataset.Writer
	tel     *Telemetry
	display *StatusDisplay
}

// NewSession prepares a session. Nothing is opened until Run.
func NewSession(cfg *config.Config, hw Hardware) *Session {
	return &Session{
		ID:     uuid.NewString(),
		cfg:    cfg,
		hw:     hw,
		now:    time.Now,
		writer: dataset.NewWriter(cfg.DatasetDir),
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Reason returns what ended the session, or ReasonNone while it runs.
func (s *Session) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Stats returns the dataset counters.
func (s *Session) Stats() dataset.Stats {
	return s.writer.Stats()
}

func (s *Session) enter(p Phase) {
	s.mu.Lock()
	s.phase = p
	reason := s.reason
	s.mu.Unlock()

	if reason != ReasonNone {
		log.Printf("session %s: %s (%s)", s.ID, p, reason)
	} else {
		log.Printf("session %s: %s", s.ID, p)
	}
	if s.tel != nil {
		s.tel.Phase(p, reason, s.writer.Stats().Total())
	}
}

// Run acquires the hardware, drives the rover until shutdown and releases
// everything. It returns nil when the session ends on the exit key, an
// interrupt, ctx cancellation or a camera read failure. It returns an error
// wrapping fault.ErrDeviceUnavailable when the hardware cannot be acquired,
// and the write error when an actuator command fails.
func (s *Session) Run(ctx context.Context) error {
	log.Printf("session %s: %s", s.ID, PhaseUninit)

	if err := s.acquire(); err != nil {
		if relErr := s.release(); relErr != nil {
			log.Printf("session %s: release after failed start: %v", s.ID, relErr)
		}
		s.enter(PhaseTerminated)
		return err
	}
	s.enter(PhaseReady)

	sd := newShutdown()

	// Initial pose. A failure here ends the session before anything runs.
	if err := s.ctrl.Center(); err != nil {
		sd.Signal(ReasonActuatorFailure, err)
	}

	var wg sync.WaitGroup
	if !sd.Fired() {
		s.startOutputs()
		s.enter(PhaseRunning)

		go func() {
			select {
			case <-ctx.Done():
				log.Printf("session %s: interrupted", s.ID)
				sd.Signal(ReasonInterrupt, nil)
			case <-sd.Done():
			}
		}()

		capture := &captureLoop{
			src:      s.cam,
			state:    s.ctrl,
			writer:   s.writer,
			interval: s.cfg.CaptureEvery(),
			now:      s.now,
		}
		if s.tel != nil {
			capture.onCapture = s.tel.Capture
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			capture.run(sd)
		}()

		runControlLoop(s.keys.Events(), s.ctrl, sd)
	}

	reason, cause := sd.Cause()
	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()
	s.enter(PhaseShuttingDown)

	// The camera is released only after the capture loop has stopped reading it.
	wg.Wait()

	if err := s.release(); err != nil {
		log.Printf("session %s: teardown report: %v", s.ID, err)
	}

	st := s.writer.Stats()
	log.Printf("session %s: %d frames saved, %d without bucket, %d failed", s.ID, st.Total(), st.Skipped, st.Failed)
	for _, label := range dataset.Labels() {
		log.Printf("session %s:   %-8s %d", s.ID, label, st.Saved[label])
	}

	s.enter(PhaseTerminated)
	if s.tel != nil {
		s.tel.Close()
	}

	if reason == ReasonActuatorFailure {
		return fmt.Errorf("session: %w", cause)
	}
	return nil
}

// acquire opens every device needed before Running. Whatever was opened
// stays in s so release can undo a partial acquisition.
func (s *Session) acquire() error {
	b, err := s.hw.OpenBoard()
	if err != nil {
		return fmt.Errorf("session: open board: %w", asUnavailable(err))
	}

	pins := actuator.Pins{
		Servo:   s.cfg.ServoPin,
		IN1:     s.cfg.MotorIN1,
		IN2:     s.cfg.MotorIN2,
		ENA:     s.cfg.MotorENA,
		ServoHz: s.cfg.ServoPWMHz,
		MotorHz: s.cfg.MotorPWMHz,
	}
	if s.cfg.ServoDriver == config.ServoDriverPCA9685 {
		pins.Servo = board.PCA9685Pin
	}
	ctrl, err := actuator.New(b, pins, s.cfg.ServoPulseDuration())
	if err != nil {
		if cerr := b.Cleanup(); cerr != nil {
			log.Printf("session %s: gpio cleanup: %v", s.ID, cerr)
		}
		return fmt.Errorf("session: actuators: %w", asUnavailable(err))
	}
	s.ctrl = ctrl

	cam, err := s.hw.OpenCamera(s.cfg.CameraIndex, s.cfg.CameraWidth, s.cfg.CameraHeight)
	if err != nil {
		return fmt.Errorf("session: open camera: %w", asUnavailable(err))
	}
	s.cam = cam

	if err := s.writer.Prepare(); err != nil {
		return fmt.Errorf("session: dataset %s: %w", s.writer.Root(), asUnavailable(err))
	}

	keys, err := s.hw.OpenKeyboard()
	if err != nil {
		return fmt.Errorf("session: open keyboard: %w", asUnavailable(err))
	}
	s.keys = keys

	return nil
}

// startOutputs connects the optional telemetry and display. Failures only
// disable the output.
func (s *Session) startOutputs() {
	if s.hw.DialTelemetry != nil {
		tel, err := s.hw.DialTelemetry(s.ID)
		if err != nil {
			log.Printf("session %s: telemetry disabled: %v", s.ID, err)
		} else {
			s.tel = tel
			s.ctrl.SetObserver(tel.State)
		}
	}

	if s.hw.OpenDisplay != nil {
		panel, err := s.hw.OpenDisplay()
		if err != nil {
			log.Printf("session %s: display disabled: %v", s.ID, err)
		} else {
			interval := time.Duration(s.cfg.DisplayUpdateInterval) * time.Millisecond
			s.display = newStatusDisplay(panel, s.ctrl.Snapshot, s.writer.Stats, interval)
			s.display.Start()
		}
	}
}

// release runs every teardown step even if earlier ones fail and joins
// their errors.
func (s *Session) release() error {
	var errs []error

	if s.ctrl != nil {
		if err := s.ctrl.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop motor: %w", err))
		}
		if err := s.ctrl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cam != nil {
		if err := s.cam.Close(); err != nil {
			errs = append(errs, fmt.Errorf("camera: %w", err))
		}
	}
	if s.keys != nil {
		if err := s.keys.Close(); err != nil {
			errs = append(errs, fmt.Errorf("keyboard: %w", err))
		}
	}
	if s.display != nil {
		if err := s.display.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("display: %w", err))
		}
	}

	for _, err := range errs {
		log.Printf("session %s: release: %v", s.ID, err)
	}
	return errors.Join(errs...)
}

func asUnavailable(err error) error {
	if errors.Is(err, fault.ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", fault.ErrDeviceUnavailable, err)
}
