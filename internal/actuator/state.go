package actuator

import "fmt"

// Steering and drive limits.
const (
	MinAngle       = 40
	MaxAngle       = 140
	CenterAngle    = 90
	AngleIncrement = 20

	MinSpeed  = 0
	MaxSpeed  = 100
	SpeedStep = 5
)

// Direction of the drive motor.
type Direction int

const (
	Stopped Direction = iota
	Forward
)

func (d Direction) String() string {
	switch d {
	case Stopped:
		return "stopped"
	case Forward:
		return "forward"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// MarshalText makes Direction readable in JSON telemetry.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stopped":
		*d = Stopped
	case "forward":
		*d = Forward
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

// Side is a steering direction.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// State is the rover's actuator state.
type State struct {
	Angle     int       `json:"angle"`     // steering, degrees
	Speed     int       `json:"speed"`     // drive, percent
	Direction Direction `json:"direction"` // forward / stopped
}

// InitialState is centered steering with the motor stopped.
func InitialState() State {
	return State{Angle: CenterAngle, Speed: 0, Direction: Stopped}
}

// ServoDuty maps a steering angle to a servo duty cycle percent
// (0 deg = 2%, 180 deg = 12% on a 50 Hz signal).
func ServoDuty(angle int) float64 {
	return 2 + float64(angle)/18
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
