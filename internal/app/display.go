package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/barometer_forecaster/internal/config"
	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/mqtt"
)

// DisplayAddr is the I2C address the ssd1306 driver talks to.
const DisplayAddr = 0x3C

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// DisplayLines returns the four text lines shown for the current snapshot.
func DisplayLines(snap *events.Snapshot) []string {
	lines := []string{"Barometer", "", "", ""}

	p, haveP := snap.Pressure()
	f, haveF := snap.Forecast()
	st, haveSt := snap.Status()

	if !haveP && !haveF {
		lines[1] = "Waiting..."
	}
	if haveP {
		lines[1] = fmt.Sprintf("%.1fhPa %.1fC", p.Reading.PressureHPa, p.Reading.Temperature)
	}
	if haveF {
		lines[2] = f.Forecast.Category.Label()
		lines[3] = fmt.Sprintf("%+.2f hPa/h", f.Forecast.Rate)
	} else if haveP {
		lines[2] = "Collecting trend"
	}
	if haveSt && st.Status.State == events.ConnectionError {
		lines[3] = "Sensor offline"
	}
	return lines
}

// RenderLines draws up to four lines of text on a blank frame.
func RenderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if line == "" {
			continue
		}
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}

// RunDisplay shows the latest forecast on the SSD1306 until ctx is done.
func RunDisplay(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	logger.Info("display initialized", "addr", fmt.Sprintf("0x%02X", DisplayAddr))

	if err := dev.Draw(dev.Bounds(), RenderLines([]string{"", " Barometer", " Forecaster"}), image.Point{}); err != nil {
		logger.Warn("error showing splash", "err", err)
	}

	snap := &events.Snapshot{}
	client := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientIDDisplay, logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	if err := mqtt.SubscribeEvents(client, MQTTTopics(cfg), snap, logger); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.DisplayUpdateInterval)
	defer ticker.Stop()
	logger.Info("display: starting update loop", "interval", cfg.DisplayUpdateInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dev.Draw(dev.Bounds(), RenderLines(DisplayLines(snap)), image.Point{}); err != nil {
				logger.Warn("error updating display", "err", err)
			}
		}
	}
}
