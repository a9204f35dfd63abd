// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dataset sorts captured frames into angle-labeled directories:
//
//	<root>/<bucket label>/<unix seconds>.<microseconds>.jpg
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/relabs-tech/rover_collector/internal/fault"
	"github.com/relabs-tech/rover_collector/internal/frame"
)

// Stats counts what the writer did with the frames it was handed.
type Stats struct {
	Saved   map[string]int `json:"saved"`   // per bucket label
	Skipped int            `json:"skipped"` // no bucket for the angle
	Failed  int            `json:"failed"`  // write errors
}

// Total is the number of frames saved across all buckets.
func (s Stats) Total() int {
	n := 0
	for _, v := range s.Saved {
		n += v
	}
	return n
}

// Writer persists frames under root.
type Writer struct {
	root string

	mu    sync.Mutex
	stats Stats
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{root: dir, stats: Stats{Saved: make(map[string]int)}}
}

// Root is the dataset directory.
func (w *Writer) Root() string {
	return w.root
}

// Prepare creates the root and every bucket directory. Existing ones are fine.
func (w *Writer) Prepare() error {
	for _, label := range Labels() {
		dir := filepath.Join(w.root, label)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dataset: create %s: %w", dir, err)
		}
	}
	return nil
}

// FileName is the file name a frame captured at t is stored under.
// Microsecond precision keeps names unique at the capture rate.
func FileName(t time.Time) string {
	return fmt.Sprintf("%d.%06d.jpg", t.Unix(), t.Nanosecond()/1000)
}

// Persist stores f in the directory for label and returns the written path.
// With ok false the frame has no bucket and is dropped: no file, no error.
// Failures wrap fault.ErrWriteFailure.
func (w *Writer) Persist(f frame.Captured, label string, ok bool) (string, error) {
	if !ok {
		w.mu.Lock()
		w.stats.Skipped++
		w.mu.Unlock()
		return "", nil
	}

	dir := filepath.Join(w.root, label)
	path := filepath.Join(dir, FileName(f.At))

	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		err = os.WriteFile(path, f.JPEG, 0o644)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.stats.Failed++
		return "", fmt.Errorf("%w: %s: %v", fault.ErrWriteFailure, path, err)
	}
	w.stats.Saved[label]++
	return path, nil
}

// Stats returns a copy of the counters.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	saved := make(map[string]int, len(w.stats.Saved))
	for k, v := range w.stats.Saved {
		saved[k] = v
	}
	return Stats{Saved: saved, Skipped: w.stats.Skipped, Failed: w.stats.Failed}
}
