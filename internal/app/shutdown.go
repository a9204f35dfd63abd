package app

import (
	"fmt"
	"sync"
)

// Reason is what ended a session.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonExitKey
	ReasonInterrupt
	ReasonReadFailure
	ReasonActuatorFailure
	ReasonKeyboardClosed
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonExitKey:
		return "exit key"
	case ReasonInterrupt:
		return "interrupt"
	case ReasonReadFailure:
		return "camera read failure"
	case ReasonActuatorFailure:
		return "actuator write failure"
	case ReasonKeyboardClosed:
		return "keyboard closed"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// shutdown is a one-way signal both loops watch. Only the first Signal counts.
type shutdown struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	reason Reason
	err    error
}

func newShutdown() *shutdown {
	return &shutdown{done: make(chan struct{})}
}

// Signal requests shutdown. It reports whether this call was the one that fired.
func (s *shutdown) Signal(reason Reason, err error) bool {
	fired := false
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.err = err
		s.mu.Unlock()
		close(s.done)
		fired = true
	})
	return fired
}

// Done is closed once shutdown has been signaled.
func (s *shutdown) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether shutdown has been signaled.
func (s *shutdown) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Cause returns the reason and error of the signal that fired.
func (s *shutdown) Cause() (Reason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason, s.err
}
