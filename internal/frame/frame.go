package frame

import "time"

// Captured is one camera frame with the steering angle it was taken at.
type Captured struct {
	JPEG  []byte    `json:"-"`     // encoded image
	At    time.Time `json:"at"`    // capture time
	Angle int       `json:"angle"` // steering angle sampled when the frame arrived
}

// Source is anything that can deliver encoded frames, one per call.
// Read blocks until a frame is available or the source fails.
type Source interface {
	Read() ([]byte, error)
	Close() error
}
