// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package camera reads frames from a V4L2/UVC camera through OpenCV.
package camera

import (
	"errors"
	"fmt"
	"log"

	"gocv.io/x/gocv"

	"github.com/relabs-tech/rover_collector/internal/fault"
	"github.com/relabs-tech/rover_collector/internal/uithread"
)

var (
	// ErrEndOfStream means the device returned no frame.
	ErrEndOfStream = errors.New("end of stream")
	// ErrDevice means the device returned a frame that could not be used.
	ErrDevice = errors.New("device error")
)

// PreviewTitle is the title of the live preview window.
const PreviewTitle = "Camera Feed"

// Device is an open camera. It is not safe for concurrent use: after startup
// only the capture loop reads from it.
type Device struct {
	index   int
	vc      *gocv.VideoCapture
	img     gocv.Mat
	ui      *uithread.Thread // owns preview; every window call runs on it
	preview *gocv.Window
}

// Open opens camera index and asks for width x height.
// Failures wrap fault.ErrDeviceUnavailable.
func Open(index, width, height int) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %v", fault.ErrDeviceUnavailable, index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: camera %d not opened", fault.ErrDeviceUnavailable, index)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	log.Printf("camera: opened device %d at %.0fx%.0f", index,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))

	return &Device{index: index, vc: vc, img: gocv.NewMat()}, nil
}

// EnablePreview shows frames read in a window. Frames arriving while the
// window is still drawing the previous one are not shown.
func (d *Device) EnablePreview() {
	if d.ui != nil {
		return
	}
	d.ui = uithread.Start(1)
	d.ui.Do(func() { d.preview = gocv.NewWindow(PreviewTitle) })
}

func (d *Device) show() {
	m := d.img.Clone()
	queued := d.ui.TryDo(func() {
		d.preview.IMShow(m)
		d.preview.WaitKey(1)
		m.Close()
	})
	if !queued {
		m.Close()
	}
}

// Read grabs the next frame and returns it JPEG-encoded.
// Failures wrap fault.ErrReadFailure and ErrEndOfStream or ErrDevice.
func (d *Device) Read() ([]byte, error) {
	if ok := d.vc.Read(&d.img); !ok {
		return nil, fmt.Errorf("%w: camera %d: %w", fault.ErrReadFailure, d.index, ErrEndOfStream)
	}
	if d.img.Empty() {
		return nil, fmt.Errorf("%w: camera %d: empty frame: %w", fault.ErrReadFailure, d.index, ErrDevice)
	}

	if d.ui != nil {
		d.show()
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, d.img)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: encode: %w", fault.ErrReadFailure, d.index, ErrDevice)
	}
	defer buf.Close()

	// GetBytes points into C memory released by buf.Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the preview window and the device.
func (d *Device) Close() error {
	var errs []error
	if d.ui != nil {
		var err error
		d.ui.Do(func() { err = d.preview.Close() })
		d.ui.Stop()
		if err != nil {
			errs = append(errs, fmt.Errorf("camera: preview close: %w", err))
		}
		d.ui = nil
		d.preview = nil
	}
	if err := d.img.Close(); err != nil {
		errs = append(errs, fmt.Errorf("camera: mat close: %w", err))
	}
	if err := d.vc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("camera %d: close: %w", d.index, err))
	}
	return errors.Join(errs...)
}
