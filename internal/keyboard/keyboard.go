// Package keyboard turns operator key presses into events.
package keyboard

import "fmt"

// Key is a key the rover knows about.
type Key int

const (
	KeyOther Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeySpace
	KeyEscape
	// KeyInterrupt is Ctrl-C read from a raw terminal, where it no longer raises SIGINT.
	KeyInterrupt
)

var keyNames = map[Key]string{
	KeyOther:     "other",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeySpace:     "space",
	KeyEscape:    "esc",
	KeyInterrupt: "ctrl-c",
}

func (k Key) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

// Kind tells presses from releases.
type Kind int

const (
	Press Kind = iota
	Release
)

func (k Kind) String() string {
	if k == Press {
		return "down"
	}
	return "up"
}

// Event is one key transition.
type Event struct {
	Kind Kind
	Key  Key
}

// Source delivers key events until it is closed. The channel is closed when
// the source ends.
type Source interface {
	Events() <-chan Event
	Close() error
}
