// Package uithread runs functions on one goroutine locked to its OS thread.
// OpenCV HighGUI windows must be created, drawn and destroyed from the same
// thread.
package uithread

import (
	"runtime"
	"sync"
)

// Thread is a goroutine pinned to one OS thread that runs queued calls in order.
type Thread struct {
	calls chan func()
	done  chan struct{}
	stop  sync.Once
}

// Start starts a thread whose queue holds up to queue pending calls.
func Start(queue int) *Thread {
	t := &Thread{calls: make(chan func(), queue), done: make(chan struct{})}
	go t.loop()
	return t
}

func (t *Thread) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.done)

	for f := range t.calls {
		f()
	}
}

// Do runs f on the thread and waits for it to return.
func (t *Thread) Do(f func()) {
	ran := make(chan struct{})
	t.calls <- func() {
		defer close(ran)
		f()
	}
	<-ran
}

// TryDo queues f unless the queue is full and reports whether it was queued.
func (t *Thread) TryDo(f func()) bool {
	select {
	case t.calls <- f:
		return true
	default:
		return false
	}
}

// Stop runs the calls already queued and ends the thread. Do and TryDo must
// not be called after Stop.
func (t *Thread) Stop() {
	t.stop.Do(func() { close(t.calls) })
	<-t.done
}
