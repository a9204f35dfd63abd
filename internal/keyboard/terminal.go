// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package keyboard

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// escTimeout is how long a trailing ESC waits for the rest of an arrow key
// sequence before it counts as the Escape key.
const escTimeout = 50 * time.Millisecond

// Terminal reads keys from a terminal in raw mode. A terminal only reports
// presses, so every press is followed by a synthesized release.
type Terminal struct {
	fd     int
	state  *term.State
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
}

func newTerminal() *Terminal {
	return &Terminal{events: make(chan Event, 16), done: make(chan struct{})}
}

// OpenTerminal puts f (normally os.Stdin) in raw mode and starts reading it.
func OpenTerminal(f *os.File) (*Terminal, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("keyboard: %s is not a terminal", f.Name())
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("keyboard: raw mode: %w", err)
	}

	t := newTerminal()
	t.fd = fd
	t.state = state
	go t.readLoop(f)
	return t, nil
}

// Events implements Source.
func (t *Terminal) Events() <-chan Event {
	return t.events
}

// Close stops event delivery, closes the event channel and restores the
// terminal. A read already blocked on stdin returns its bytes to nobody.
func (t *Terminal) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		if t.state != nil {
			err = term.Restore(t.fd, t.state)
		}
	})
	return err
}

func (t *Terminal) readLoop(r io.Reader) {
	defer close(t.events)

	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case chunks <- bytes.Clone(buf[:n]):
				case <-t.done:
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					log.Printf("keyboard: read error: %v", err)
				}
				return
			}
		}
	}()

	var p parser
	esc := time.NewTimer(escTimeout)
	esc.Stop()
	defer esc.Stop()

	for {
		select {
		case <-t.done:
			return
		case b, ok := <-chunks:
			if !ok {
				t.emit(p.flush())
				return
			}
			if !t.emit(p.feed(b)) {
				return
			}
			if p.pending() {
				esc.Reset(escTimeout)
			}
		case <-esc.C:
			if !t.emit(p.flush()) {
				return
			}
		}
	}
}

// emit sends a press and a release per key. It reports false once the
// terminal is closed.
func (t *Terminal) emit(keys []Key) bool {
	for _, k := range keys {
		for _, kind := range [...]Kind{Press, Release} {
			select {
			case t.events <- Event{Kind: kind, Key: k}:
			case <-t.done:
				return false
			}
		}
	}
	return true
}

// parser decodes raw terminal input that may arrive split across reads.
// An ESC at the end of a chunk, alone or followed by '[' or 'O', is held
// until the next chunk or flush.
type parser struct {
	held []byte
}

func (p *parser) pending() bool {
	return len(p.held) > 0
}

func (p *parser) feed(b []byte) []Key {
	buf := append(p.held, b...)
	p.held = nil

	var keys []Key
	for i := 0; i < len(buf); i++ {
		switch c := buf[i]; {
		case c == 0x1b:
			rest := len(buf) - i - 1
			if rest == 0 || (rest == 1 && isIntroducer(buf[i+1])) {
				p.held = bytes.Clone(buf[i:])
				return keys
			}
			if isIntroducer(buf[i+1]) {
				keys = append(keys, arrowKey(buf[i+2]))
				i += 2
				continue
			}
			keys = append(keys, KeyEscape)
		case c == ' ':
			keys = append(keys, KeySpace)
		case c == 0x03:
			keys = append(keys, KeyInterrupt)
		default:
			keys = append(keys, KeyOther)
		}
	}
	return keys
}

// flush gives up waiting for the rest of a held sequence.
func (p *parser) flush() []Key {
	held := p.held
	p.held = nil
	switch len(held) {
	case 0:
		return nil
	case 1:
		return []Key{KeyEscape}
	default:
		// truncated sequence
		return []Key{KeyOther}
	}
}

func isIntroducer(c byte) bool {
	return c == '[' || c == 'O'
}

// ParseKeys decodes one complete chunk of raw terminal input. Arrow keys
// arrive as ESC [ A..D (or ESC O A..D in application mode); a lone ESC is the
// Escape key.
func ParseKeys(b []byte) []Key {
	var p parser
	keys := p.feed(b)
	return append(keys, p.flush()...)
}

func arrowKey(c byte) Key {
	switch c {
	case 'A':
		return KeyUp
	case 'B':
		return KeyDown
	case 'C':
		return KeyRight
	case 'D':
		return KeyLeft
	default:
		return KeyOther
	}
}

// CRLF returns a writer that turns "\n" into "\r\n". A terminal in raw mode
// does not return the carriage on its own, so log output would stair-step.
func CRLF(w io.Writer) io.Writer {
	return crlfWriter{w: w}
}

type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
