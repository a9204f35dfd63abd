package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/rover_collector/internal/board"
	"github.com/relabs-tech/rover_collector/internal/camera"
	"github.com/relabs-tech/rover_collector/internal/config"
	"github.com/relabs-tech/rover_collector/internal/frame"
	"github.com/relabs-tech/rover_collector/internal/keyboard"
)

// RunCollector runs one collection session on the real rover hardware.
func RunCollector(cfg *config.Config) error {
	log.Printf("collector: dataset in %s, one frame every %s", cfg.DatasetDir, cfg.CaptureEvery())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return NewSession(cfg, RoverHardware(cfg)).Run(ctx)
}

// RoverHardware opens the periph.io board, the gocv camera and the terminal
// keyboard, plus the OLED and MQTT telemetry when they are configured.
func RoverHardware(cfg *config.Config) Hardware {
	hw := Hardware{
		OpenBoard: func() (board.Board, error) {
			b, err := board.Open()
			if err != nil {
				return nil, err
			}
			if cfg.ServoDriver == config.ServoDriverPCA9685 {
				if err := b.AttachPCA9685(cfg.PCA9685I2CBus, cfg.PCA9685I2CAddr, cfg.PCA9685Channel); err != nil {
					b.Cleanup()
					return nil, err
				}
			}
			return b, nil
		},
		OpenCamera: func(index, width, height int) (frame.Source, error) {
			dev, err := camera.Open(index, width, height)
			if err != nil {
				return nil, err
			}
			if cfg.PreviewWindow {
				dev.EnablePreview()
			}
			return dev, nil
		},
		OpenKeyboard: func() (keyboard.Source, error) {
			t, err := keyboard.OpenTerminal(os.Stdin)
			if err != nil {
				return nil, err
			}
			log.SetOutput(keyboard.CRLF(os.Stderr))
			return t, nil
		},
	}

	if cfg.DisplayEnabled {
		hw.OpenDisplay = func() (Panel, error) {
			return OpenOLED(cfg.DisplayI2CBus)
		}
	}
	if cfg.MQTTBroker != "" {
		hw.DialTelemetry = func(session string) (*Telemetry, error) {
			return DialTelemetry(cfg, session)
		}
	}
	return hw
}
