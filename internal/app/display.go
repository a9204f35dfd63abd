package app

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/rover_collector/internal/actuator"
	"github.com/relabs-tech/rover_collector/internal/dataset"
)

const (
	panelWidth  = 128
	panelHeight = 64
)

// Panel is a monochrome display the status is drawn on.
type Panel interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Bounds() image.Rectangle
	Halt() error
}

type oledPanel struct {
	*ssd1306.Dev
	bus i2c.BusCloser
}

// Halt blanks the display and closes its bus.
func (p *oledPanel) Halt() error {
	return errors.Join(p.Dev.Halt(), p.bus.Close())
}

// OpenOLED opens an SSD1306 on the given I2C bus ("" = first bus).
// The periph host must already be initialized.
func OpenOLED(busName string) (Panel, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("display: failed to open I2C bus %q: %w", busName, err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("display: failed to initialize ssd1306: %w", err)
	}
	log.Printf("display: ssd1306 initialized on bus %q", busName)
	return &oledPanel{Dev: dev, bus: bus}, nil
}

// StatusDisplay redraws the actuator state and frame counts at a fixed rate.
type StatusDisplay struct {
	panel    Panel
	state    func() actuator.State
	stats    func() dataset.Stats
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func newStatusDisplay(p Panel, state func() actuator.State, stats func() dataset.Stats, interval time.Duration) *StatusDisplay {
	return &StatusDisplay{panel: p, state: state, stats: stats, interval: interval, stop: make(chan struct{})}
}

// Start shows the splash screen and starts the update loop.
func (d *StatusDisplay) Start() {
	if err := d.panel.Draw(d.panel.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				img := renderStatus(d.state(), d.stats())
				if err := d.panel.Draw(d.panel.Bounds(), img, image.Point{}); err != nil {
					log.Printf("display: error updating display: %v", err)
				}
			}
		}
	}()
}

// Stop ends the update loop and halts the panel.
func (d *StatusDisplay) Stop() error {
	close(d.stop)
	d.wg.Wait()
	return d.panel.Halt()
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, panelWidth, panelHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func renderSplash() image.Image {
	img, drawer := newCanvas()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Rover dataset")

	drawer.Dot = fixed.P(25, 43)
	drawer.DrawString("Starting...")

	return img
}

func renderStatus(s actuator.State, st dataset.Stats) image.Image {
	img, drawer := newCanvas()

	label, ok := dataset.Classify(s.Angle)
	if !ok {
		label = "none"
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(fmt.Sprintf("Ang:%3d  %s", s.Angle, label))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString(fmt.Sprintf("Spd:%3d%% %s", s.Speed, s.Direction))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString(fmt.Sprintf("Saved: %d", st.Total()))

	drawer.Dot = fixed.P(0, 52)
	drawer.DrawString(fmt.Sprintf("Skip:%d Err:%d", st.Skipped, st.Failed))

	return img
}
