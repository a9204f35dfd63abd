// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"time"

	"github.com/relabs-tech/rover_collector/internal/actuator"
	"github.com/relabs-tech/rover_collector/internal/dataset"
	"github.com/relabs-tech/rover_collector/internal/frame"
)

// CaptureEvent describes what happened to one captured frame.
type CaptureEvent struct {
	Session string    `json:"session,omitempty"`
	At      time.Time `json:"at"`
	Angle   int       `json:"angle"`
	Label   string    `json:"label,omitempty"` // empty when the angle has no bucket
	Path    string    `json:"path,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// stateReader is what the capture loop needs from the controller.
type stateReader interface {
	Snapshot() actuator.State
}

type captureLoop struct {
	src      frame.Source
	state    stateReader
	writer   *dataset.Writer
	interval time.Duration
	now      func() time.Time

	// onCapture, when set, is told about every frame read.
	onCapture func(CaptureEvent)
}

// run reads, classifies and persists frames until shutdown is signaled or the
// camera fails. A read failure signals shutdown itself.
func (l *captureLoop) run(sd *shutdown) {
	log.Printf("capture: started, one frame every %s", l.interval)
	defer log.Println("capture: stopped")

	wait := time.NewTimer(l.interval)
	defer wait.Stop()

	for {
		select {
		case <-sd.Done():
			return
		default:
		}

		img, err := l.src.Read()
		if err != nil {
			log.Printf("capture: %v", err)
			sd.Signal(ReasonReadFailure, err)
			return
		}

		// The angle is sampled when the frame is in hand, not when it was commanded.
		f := frame.Captured{JPEG: img, At: l.now(), Angle: l.state.Snapshot().Angle}
		l.persist(f)

		wait.Reset(l.interval)
		select {
		case <-sd.Done():
			return
		case <-wait.C:
		}
	}
}

func (l *captureLoop) persist(f frame.Captured) {
	label, ok := dataset.Classify(f.Angle)
	ev := CaptureEvent{At: f.At, Angle: f.Angle, Label: label}

	path, err := l.writer.Persist(f, label, ok)
	switch {
	case err != nil:
		log.Printf("capture: frame dropped: %v", err)
		ev.Error = err.Error()
	case ok:
		log.Printf("capture: saved %s", path)
		ev.Path = path
	}

	if l.onCapture != nil {
		l.onCapture(ev)
	}
}
