package actuator

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/rover_collector/internal/board"
)

var testPins = Pins{Servo: "SERVO", IN1: "IN1", IN2: "IN2", ENA: "ENA", ServoHz: 50, MotorHz: 100}

func newTestController(t *testing.T) (*Controller, *board.Mock) {
	t.Helper()
	m := board.NewMock()
	c, err := New(m, testPins, 0)
	require.NoError(t, err)
	return c, m
}

func TestNewStartsAtInitialState(t *testing.T) {
	c, _ := newTestController(t)
	assert.Equal(t, State{Angle: 90, Speed: 0, Direction: Stopped}, c.Snapshot())
}

func TestNewSetupFailure(t *testing.T) {
	m := board.NewMock()
	m.FailPin = "IN2"
	_, err := New(m, testPins, 0)
	assert.Error(t, err)
}

func TestTurnStepsAndClamps(t *testing.T) {
	c, _ := newTestController(t)

	want := []int{110, 130, 140, 140}
	for _, w := range want {
		require.NoError(t, c.Turn(Right))
		assert.Equal(t, w, c.Snapshot().Angle)
	}

	want = []int{120, 100, 80, 60, 40, 40}
	for _, w := range want {
		require.NoError(t, c.Turn(Left))
		assert.Equal(t, w, c.Snapshot().Angle)
	}
}

func TestTurnRandomSequenceStaysInBounds(t *testing.T) {
	c, _ := newTestController(t)
	rng := rand.New(rand.NewSource(7))

	prev := c.Snapshot().Angle
	for i := 0; i < 500; i++ {
		side := Side(rng.Intn(2))
		require.NoError(t, c.Turn(side))
		got := c.Snapshot().Angle

		require.GreaterOrEqual(t, got, MinAngle)
		require.LessOrEqual(t, got, MaxAngle)

		step := got - prev
		if side == Right {
			if prev+AngleIncrement <= MaxAngle {
				require.Equal(t, AngleIncrement, step)
			} else {
				require.Equal(t, MaxAngle, got)
			}
		} else {
			if prev-AngleIncrement >= MinAngle {
				require.Equal(t, -AngleIncrement, step)
			} else {
				require.Equal(t, MinAngle, got)
			}
		}
		prev = got
	}
}

func TestTurnPulsesThenReleasesServo(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Turn(Left))

	writes := m.WritesTo("SERVO")
	require.Len(t, writes, 2)
	assert.InDelta(t, ServoDuty(70), writes[0].Duty, 1e-9)
	assert.Equal(t, 0.0, writes[1].Duty)
}

func TestSpeedStepsAndClamps(t *testing.T) {
	c, m := newTestController(t)

	for i := 1; i <= 25; i++ {
		before := c.Snapshot().Speed
		require.NoError(t, c.Accelerate())
		after := c.Snapshot()
		assert.GreaterOrEqual(t, after.Speed, before)
		assert.LessOrEqual(t, after.Speed, MaxSpeed)
		assert.Equal(t, Forward, after.Direction)
	}
	assert.Equal(t, 100, c.Snapshot().Speed)

	for i := 1; i <= 25; i++ {
		before := c.Snapshot().Speed
		require.NoError(t, c.Decelerate())
		after := c.Snapshot().Speed
		assert.LessOrEqual(t, after, before)
		assert.GreaterOrEqual(t, after, MinSpeed)
		if before >= SpeedStep {
			assert.Equal(t, before-SpeedStep, after)
		}
	}
	assert.Equal(t, 0, c.Snapshot().Speed)
	// decelerate leaves the direction alone
	assert.Equal(t, Forward, c.Snapshot().Direction)

	last := m.WritesTo("ENA")
	assert.Equal(t, 0.0, last[len(last)-1].Duty)
}

func TestAccelerateDrivesHBridgeForward(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Accelerate())

	assert.Equal(t, []board.Write{
		{Pin: "IN1", Level: board.Low},
		{Pin: "IN2", Level: board.High},
		{Pin: "ENA", Duty: 5, PWM: true},
	}, m.Writes())
}

func TestStopIsIdempotent(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Accelerate())
	require.NoError(t, c.Accelerate())

	require.NoError(t, c.Stop())
	once := c.Snapshot()
	require.NoError(t, c.Stop())

	assert.Equal(t, once, c.Snapshot())
	assert.Equal(t, State{Angle: 90, Speed: 0, Direction: Stopped}, once)
}

func TestCenter(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Turn(Right))
	require.NoError(t, c.Accelerate())

	require.NoError(t, c.Center())
	assert.Equal(t, InitialState(), c.Snapshot())

	servo := m.WritesTo("SERVO")
	assert.InDelta(t, ServoDuty(90), servo[len(servo)-2].Duty, 1e-9)
	assert.Equal(t, 0.0, servo[len(servo)-1].Duty)
}

func TestWriteFailureIsReturned(t *testing.T) {
	c, m := newTestController(t)
	m.FailPin = "SERVO"

	err := c.Turn(Right)
	require.Error(t, err)
	// the state change is kept; only the hardware write failed
	assert.Equal(t, 110, c.Snapshot().Angle)
}

func TestObserverSeesEveryCommand(t *testing.T) {
	c, _ := newTestController(t)
	var seen []State
	c.SetObserver(func(s State) { seen = append(seen, s) })

	require.NoError(t, c.Turn(Right))
	require.NoError(t, c.Accelerate())
	require.NoError(t, c.Stop())

	assert.Equal(t, []State{
		{Angle: 110, Speed: 0, Direction: Stopped},
		{Angle: 110, Speed: 5, Direction: Forward},
		{Angle: 110, Speed: 0, Direction: Stopped},
	}, seen)
}

func TestCloseRunsEveryStep(t *testing.T) {
	c, m := newTestController(t)
	m.FailPin = "ENA"
	m.FailCleanup = true

	err := c.Close()
	require.Error(t, err)
	assert.Equal(t, 1, m.Stopped("ENA"))
	assert.Equal(t, 1, m.Stopped("SERVO"))
	assert.Equal(t, 1, m.Cleaned())
}

func TestSnapshotConcurrentWithCommands(t *testing.T) {
	c, _ := newTestController(t)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				s := c.Snapshot()
				if s.Angle < MinAngle || s.Angle > MaxAngle || s.Speed < MinSpeed || s.Speed > MaxSpeed {
					t.Errorf("snapshot out of bounds: %+v", s)
					return
				}
			}
		}
	}()

	for i := 0; i < 200; i++ {
		_ = c.Turn(Side(i % 2))
		_ = c.Accelerate()
		_ = c.Decelerate()
	}
	close(done)
	wg.Wait()
}

func TestStateJSON(t *testing.T) {
	b, err := json.Marshal(State{Angle: 70, Speed: 15, Direction: Forward})
	require.NoError(t, err)
	assert.JSONEq(t, `{"angle":70,"speed":15,"direction":"forward"}`, string(b))

	var s State
	require.NoError(t, json.Unmarshal(b, &s))
	assert.Equal(t, Forward, s.Direction)
}

func TestServoDuty(t *testing.T) {
	assert.InDelta(t, 2.0, ServoDuty(0), 1e-9)
	assert.InDelta(t, 7.0, ServoDuty(90), 1e-9)
	assert.InDelta(t, 12.0, ServoDuty(180), 1e-9)
}
