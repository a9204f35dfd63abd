package board

import (
	"errors"
	"fmt"
	"sync"
)

// Write is one hardware write recorded by Mock.
type Write struct {
	Pin   string
	Duty  float64 // for PWM writes
	Level Level   // for digital writes
	PWM   bool
}

// Mock implements Board in memory and records every write, for tests and dry runs.
type Mock struct {
	mu      sync.Mutex
	setup   map[string]Mode
	writes  []Write
	stopped map[string]int
	cleaned int

	// FailPin makes every write to that pin fail.
	FailPin string
	// FailCleanup makes Cleanup return an error (after doing its work).
	FailCleanup bool
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{setup: make(map[string]Mode), stopped: make(map[string]int)}
}

func (m *Mock) Setup(pin string, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pin == m.FailPin {
		return fmt.Errorf("mock: setup %s failed", pin)
	}
	m.setup[pin] = mode
	return nil
}

func (m *Mock) PWMStart(pin string, frequencyHz int) (PWM, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.setup[pin]; !ok {
		return nil, fmt.Errorf("mock: pin %s used before Setup", pin)
	}
	return &mockPWM{board: m, pin: pin}, nil
}

func (m *Mock) DigitalWrite(pin string, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pin == m.FailPin {
		return fmt.Errorf("mock: write %s failed", pin)
	}
	m.writes = append(m.writes, Write{Pin: pin, Level: level})
	return nil
}

func (m *Mock) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaned++
	m.setup = make(map[string]Mode)
	if m.FailCleanup {
		return errors.New("mock: cleanup failed")
	}
	return nil
}

// Writes returns a copy of the recorded writes.
func (m *Mock) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

// WritesTo returns the recorded writes for one pin.
func (m *Mock) WritesTo(pin string) []Write {
	var out []Write
	for _, w := range m.Writes() {
		if w.Pin == pin {
			out = append(out, w)
		}
	}
	return out
}

// Stopped reports how many times the PWM on pin was stopped.
func (m *Mock) Stopped(pin string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped[pin]
}

// Cleaned reports how many times Cleanup ran.
func (m *Mock) Cleaned() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleaned
}

type mockPWM struct {
	board *Mock
	pin   string
}

func (p *mockPWM) SetDutyCycle(percent float64) error {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	if p.pin == p.board.FailPin {
		return fmt.Errorf("mock: pwm %s failed", p.pin)
	}
	p.board.writes = append(p.board.writes, Write{Pin: p.pin, Duty: clampPercent(percent), PWM: true})
	return nil
}

func (p *mockPWM) Stop() error {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	p.board.stopped[p.pin]++
	if p.pin == p.board.FailPin {
		return fmt.Errorf("mock: pwm %s stop failed", p.pin)
	}
	return nil
}
