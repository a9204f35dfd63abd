// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fault holds the error kinds shared by the hardware and dataset layers.
package fault

import "errors"

var (
	// ErrDeviceUnavailable means the camera or the GPIO/PWM board could not be opened.
	// It aborts the session before it starts running.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrReadFailure means the camera stopped delivering frames mid-session.
	ErrReadFailure = errors.New("camera read failure")

	// ErrWriteFailure means a frame could not be persisted. The frame is dropped.
	ErrWriteFailure = errors.New("frame write failure")
)
