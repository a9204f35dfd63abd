package app

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/relabs-tech/rover_collector/internal/actuator"
	"github.com/relabs-tech/rover_collector/internal/board"
	"github.com/relabs-tech/rover_collector/internal/fault"
	"github.com/relabs-tech/rover_collector/internal/keyboard"
)

// fakeCamera returns a tiny payload per read. With failAfter >= 0 every read
// after the first failAfter ones fails.
type fakeCamera struct {
	failAfter int
	closeErr  error

	mu     sync.Mutex
	reads  int
	closed int

	// readCh gets a tick for every read, dropped when nobody listens.
	readCh chan struct{}
}

func newFakeCamera(failAfter int) *fakeCamera {
	return &fakeCamera{failAfter: failAfter, readCh: make(chan struct{}, 1)}
}

func (c *fakeCamera) Read() ([]byte, error) {
	c.mu.Lock()
	c.reads++
	n := c.reads
	c.mu.Unlock()

	select {
	case c.readCh <- struct{}{}:
	default:
	}

	if c.failAfter >= 0 && n > c.failAfter {
		return nil, fmt.Errorf("%w: fake camera: end of stream", fault.ErrReadFailure)
	}
	return []byte{0xFF, 0xD8, byte(n), 0xFF, 0xD9}, nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return c.closeErr
}

func (c *fakeCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *fakeCamera) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeKeys is a keyboard fed by the test through an unbuffered channel, so a
// send returns only once the control loop has taken the event.
type fakeKeys struct {
	ch       chan keyboard.Event
	closeErr error
	closed   atomic.Int32
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{ch: make(chan keyboard.Event)}
}

func (k *fakeKeys) Events() <-chan keyboard.Event { return k.ch }

func (k *fakeKeys) Close() error {
	k.closed.Add(1)
	return k.closeErr
}

// tap sends a press and its release.
func (k *fakeKeys) tap(key keyboard.Key) {
	k.ch <- keyboard.Event{Kind: keyboard.Press, Key: key}
	k.ch <- keyboard.Event{Kind: keyboard.Release, Key: key}
}

// failingMotorBoard is a Mock whose digital writes fail once armed, so servo
// commands keep working and motor commands do not.
type failingMotorBoard struct {
	*board.Mock
	armed *atomic.Bool
}

func (b failingMotorBoard) DigitalWrite(pin string, level board.Level) error {
	if b.armed.Load() {
		return errors.New("fake: h-bridge write failed")
	}
	return b.Mock.DigitalWrite(pin, level)
}

// recordingActuator records the commands applied to it.
type recordingActuator struct {
	mu       sync.Mutex
	commands []Command
	failOn   Command
}

func (a *recordingActuator) do(cmd Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)
	if cmd == a.failOn {
		return errors.New("fake: write failed")
	}
	return nil
}

func (a *recordingActuator) Accelerate() error { return a.do(CommandAccelerate) }
func (a *recordingActuator) Decelerate() error { return a.do(CommandDecelerate) }
func (a *recordingActuator) Stop() error       { return a.do(CommandStop) }

func (a *recordingActuator) Turn(side actuator.Side) error {
	if side == actuator.Left {
		return a.do(CommandTurnLeft)
	}
	return a.do(CommandTurnRight)
}

func (a *recordingActuator) Commands() []Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Command(nil), a.commands...)
}

// fixedState is a stateReader stuck at one angle.
type fixedState struct {
	angle atomic.Int64
}

func (s *fixedState) Snapshot() actuator.State {
	return actuator.State{Angle: int(s.angle.Load())}
}

// fakePanel records draws.
type fakePanel struct {
	mu     sync.Mutex
	draws  int
	halted int
}

func (p *fakePanel) Draw(_ image.Rectangle, _ image.Image, _ image.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draws++
	return nil
}

func (p *fakePanel) Bounds() image.Rectangle {
	return image.Rect(0, 0, panelWidth, panelHeight)
}

func (p *fakePanel) Halt() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halted++
	return nil
}

func (p *fakePanel) counts() (draws, halted int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draws, p.halted
}
