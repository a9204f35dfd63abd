// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Servo drivers accepted by SERVO_DRIVER.
const (
	ServoDriverGPIO    = "gpio"
	ServoDriverPCA9685 = "pca9685"
)

// Config holds all application configuration values.
type Config struct {
	// Rover wiring. Pin names are periph.io names (header aliases like P1_32 work on a Pi).
	ServoPin   string
	MotorIN1   string
	MotorIN2   string
	MotorENA   string
	ServoPWMHz int
	MotorPWMHz int

	// Servo driver: "gpio" drives ServoPin directly, "pca9685" uses a PCA9685 channel.
	ServoDriver    string
	PCA9685I2CBus  string
	PCA9685I2CAddr uint16
	PCA9685Channel int

	// Camera
	CameraIndex  int
	CameraWidth  int
	CameraHeight int

	// Timing
	CaptureInterval int // milliseconds
	ServoPulse      int // milliseconds the servo is driven before release

	// Dataset
	DatasetDir    string
	PreviewWindow bool

	// MQTT telemetry. Empty broker disables it.
	MQTTBroker          string
	MQTTClientIDRover   string
	MQTTClientIDConsole string
	TopicState          string
	TopicCapture        string
	TopicSession        string

	// Status display (SSD1306 over I2C)
	DisplayEnabled        bool
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for the singleton:
//   - globalConfig is only reachable through InitGlobal and Get.
//   - configOnce makes InitGlobal run once.
//   - configMu guards globalConfig for concurrent readers.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the fixed rover constants. A missing config file yields exactly this.
func Default() *Config {
	return &Config{
		ServoPin:   "P1_32",
		MotorIN1:   "P1_31",
		MotorIN2:   "P1_29",
		MotorENA:   "P1_33",
		ServoPWMHz: 50,
		MotorPWMHz: 100,

		ServoDriver:    ServoDriverGPIO,
		PCA9685I2CBus:  "",
		PCA9685I2CAddr: 0x40,
		PCA9685Channel: 0,

		CameraIndex:  0,
		CameraWidth:  640,
		CameraHeight: 480,

		CaptureInterval: 100,
		ServoPulse:      100,

		DatasetDir:    "dataset",
		PreviewWindow: true,

		MQTTClientIDRover:   "rover-collector",
		MQTTClientIDConsole: "rover-telemetry-console",
		TopicState:          "rover/state",
		TopicCapture:        "rover/capture",
		TopicSession:        "rover/session",

		DisplayEnabled:        false,
		DisplayI2CBus:         "",
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys not present in the file keep their Default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse reads KEY=VALUE lines from r on top of Default().
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Wiring
	case "SERVO_PIN":
		c.ServoPin = value
	case "MOTOR_IN1_PIN":
		c.MotorIN1 = value
	case "MOTOR_IN2_PIN":
		c.MotorIN2 = value
	case "MOTOR_ENA_PIN":
		c.MotorENA = value
	case "SERVO_PWM_HZ":
		return setPositiveInt(&c.ServoPWMHz, key, value)
	case "MOTOR_PWM_HZ":
		return setPositiveInt(&c.MotorPWMHz, key, value)

	// Servo driver
	case "SERVO_DRIVER":
		if value != ServoDriverGPIO && value != ServoDriverPCA9685 {
			return fmt.Errorf("SERVO_DRIVER must be %q or %q, got %q", ServoDriverGPIO, ServoDriverPCA9685, value)
		}
		c.ServoDriver = value
	case "PCA9685_I2C_BUS":
		c.PCA9685I2CBus = value
	case "PCA9685_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid PCA9685_I2C_ADDR %q: %w", value, err)
		}
		c.PCA9685I2CAddr = uint16(addr)
	case "PCA9685_CHANNEL":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PCA9685_CHANNEL %q: %w", value, err)
		}
		if ch < 0 || ch > 15 {
			return fmt.Errorf("PCA9685_CHANNEL must be 0-15, got %d", ch)
		}
		c.PCA9685Channel = ch

	// Camera
	case "CAMERA_INDEX":
		idx, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CAMERA_INDEX %q: %w", value, err)
		}
		if idx < 0 {
			return fmt.Errorf("CAMERA_INDEX must be >= 0, got %d", idx)
		}
		c.CameraIndex = idx
	case "CAMERA_WIDTH":
		return setPositiveInt(&c.CameraWidth, key, value)
	case "CAMERA_HEIGHT":
		return setPositiveInt(&c.CameraHeight, key, value)

	// Timing
	case "CAPTURE_INTERVAL":
		return setPositiveInt(&c.CaptureInterval, key, value)
	case "SERVO_PULSE":
		return setPositiveInt(&c.ServoPulse, key, value)

	// Dataset
	case "DATASET_DIR":
		c.DatasetDir = value
	case "PREVIEW_WINDOW":
		return setBool(&c.PreviewWindow, key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_ROVER":
		c.MQTTClientIDRover = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_CAPTURE":
		c.TopicCapture = value
	case "TOPIC_SESSION":
		c.TopicSession = value

	// Display
	case "DISPLAY_ENABLED":
		return setBool(&c.DisplayEnabled, key, value)
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		return setPositiveInt(&c.DisplayUpdateInterval, key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func setPositiveInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be > 0, got %d", key, v)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, key, value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MotorIN1 == "" || c.MotorIN2 == "" || c.MotorENA == "" {
		return fmt.Errorf("MOTOR_IN1_PIN, MOTOR_IN2_PIN and MOTOR_ENA_PIN are required")
	}
	if c.ServoDriver == ServoDriverGPIO && c.ServoPin == "" {
		return fmt.Errorf("SERVO_PIN is required when SERVO_DRIVER=%s", ServoDriverGPIO)
	}
	if c.DatasetDir == "" {
		return fmt.Errorf("DATASET_DIR is required")
	}
	if c.MQTTBroker != "" && (c.TopicState == "" || c.TopicCapture == "" || c.TopicSession == "") {
		return fmt.Errorf("TOPIC_STATE, TOPIC_CAPTURE and TOPIC_SESSION are required when MQTT_BROKER is set")
	}
	return nil
}

// CaptureEvery is CaptureInterval as a duration.
func (c *Config) CaptureEvery() time.Duration {
	return time.Duration(c.CaptureInterval) * time.Millisecond
}

// ServoPulseDuration is ServoPulse as a duration.
func (c *Config) ServoPulseDuration() time.Duration {
	return time.Duration(c.ServoPulse) * time.Millisecond
}

// InitGlobal initializes the global configuration from file, falling back to
// Default() when the file does not exist. Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = LoadOrDefault(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
