package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesRoverConstants(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 640, cfg.CameraWidth)
	assert.Equal(t, 480, cfg.CameraHeight)
	assert.Equal(t, 50, cfg.ServoPWMHz)
	assert.Equal(t, 100, cfg.MotorPWMHz)
	assert.Equal(t, 100*time.Millisecond, cfg.CaptureEvery())
	assert.Equal(t, 100*time.Millisecond, cfg.ServoPulseDuration())
	assert.Equal(t, "dataset", cfg.DatasetDir)
	assert.Equal(t, ServoDriverGPIO, cfg.ServoDriver)
	assert.Empty(t, cfg.MQTTBroker)
	assert.False(t, cfg.DisplayEnabled)
	require.NoError(t, cfg.validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	input := `
# rover wiring
SERVO_PIN = GPIO12
SERVO_DRIVER=pca9685
PCA9685_I2C_ADDR=0x41
PCA9685_CHANNEL=3
CAPTURE_INTERVAL=200
PREVIEW_WINDOW=false
MQTT_BROKER=tcp://localhost:1883
DISPLAY_ENABLED=true
`
	cfg, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "GPIO12", cfg.ServoPin)
	assert.Equal(t, ServoDriverPCA9685, cfg.ServoDriver)
	assert.Equal(t, uint16(0x41), cfg.PCA9685I2CAddr)
	assert.Equal(t, 3, cfg.PCA9685Channel)
	assert.Equal(t, 200*time.Millisecond, cfg.CaptureEvery())
	assert.False(t, cfg.PreviewWindow)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.True(t, cfg.DisplayEnabled)

	// untouched keys keep their defaults
	assert.Equal(t, "P1_31", cfg.MotorIN1)
	assert.Equal(t, 640, cfg.CameraWidth)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing equals", "SERVO_PIN", "invalid config line 1"},
		{"unknown key", "FOO=bar", "unknown config key"},
		{"bad int", "CAPTURE_INTERVAL=fast", "invalid CAPTURE_INTERVAL"},
		{"non positive", "CAMERA_WIDTH=0", "CAMERA_WIDTH must be > 0"},
		{"bad driver", "SERVO_DRIVER=stepper", "SERVO_DRIVER must be"},
		{"channel range", "PCA9685_CHANNEL=16", "PCA9685_CHANNEL must be 0-15"},
		{"bad bool", "PREVIEW_WINDOW=maybe", "invalid PREVIEW_WINDOW"},
		{"empty dataset", "DATASET_DIR=", "DATASET_DIR is required"},
		{"mqtt without topic", "MQTT_BROKER=tcp://x:1883\nTOPIC_STATE=", "TOPIC_STATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover_config.txt")
	require.NoError(t, os.WriteFile(path, []byte("DATASET_DIR=/data/run1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/run1", cfg.DatasetDir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
