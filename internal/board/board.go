package board

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"torpedo/internal/config"
	"torpedo/internal/gpio"
	"torpedo/internal/i2c"
	"torpedo/internal/power"
	"torpedo/internal/sensors/battery"
	"torpedo/internal/sensors/ds18b20"
	"torpedo/internal/sensors/mpu6050"
)

// iioDevice is the ADC the battery divider is wired to.
const iioDevice = "/sys/bus/iio/devices/iio:device0"

var errNoGPIO = errors.New("board: gpio chip not open")

// Board implements power.Board on a GPIO chip, an I2C bus and the sysfs
// 1-Wire and IIO trees.
//
// Output lines are requested on first use. A deep-sleep wake only touches
// VPP, so the LED lines stay in whatever state the hold left them.
type Board struct {
	cfg  config.BoardConfig
	pins Pins

	chip *gpio.Chip
	bus  *i2c.Bus

	// output requests a line as a driven output; nil without a chip.
	output func(pin int, activeLow bool) (power.Switch, error)

	mu       sync.Mutex
	switches map[int]power.Switch
}

// Open opens the GPIO chip and the I2C bus. A missing I2C bus is not fatal;
// the tilt sensor then reports unavailable.
func Open(cfg config.BoardConfig, pins Pins) (*Board, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}
	chipName := cfg.GPIOChip
	if strings.EqualFold(chipName, "auto") {
		name, err := gpio.Find(fmt.Sprintf("GPIO%d", pins.VPP))
		if err != nil {
			return nil, err
		}
		chipName = name
	}
	chip, err := gpio.Open(chipName)
	if err != nil {
		return nil, err
	}
	b := newBoard(cfg, pins, func(pin int, activeLow bool) (power.Switch, error) {
		out, err := chip.Output(pin, activeLow)
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	b.chip = chip
	b.openBus()
	return b, nil
}

// WithoutGPIO is the board used when the GPIO chip cannot be opened. Every
// line reports an error; the sysfs sensors and the I2C bus still work.
func WithoutGPIO(cfg config.BoardConfig, pins Pins) *Board {
	b := newBoard(cfg, pins, nil)
	b.openBus()
	return b
}

func newBoard(cfg config.BoardConfig, pins Pins, output func(int, bool) (power.Switch, error)) *Board {
	return &Board{cfg: cfg, pins: pins, output: output, switches: map[int]power.Switch{}}
}

func (b *Board) openBus() {
	if bus, err := i2c.Open(b.cfg.I2CBus); err != nil {
		log.Printf("board: %v", err)
	} else {
		b.bus = bus
	}
}

// line returns the output for pin, requesting it the first time. A failed
// request is remembered and logged once.
func (b *Board) line(pin int, activeLow bool) power.Switch {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.switches[pin]; ok {
		return s
	}
	var s power.Switch
	if b.output == nil {
		s = brokenSwitch{errNoGPIO}
	} else if out, err := b.output(pin, activeLow); err != nil {
		log.Printf("board: gpio%d unavailable: %v", pin, err)
		s = brokenSwitch{err}
	} else {
		s = out
	}
	b.switches[pin] = s
	return s
}

func (b *Board) VPP() power.Switch { return b.line(b.pins.VPP, false) }
func (b *Board) ModeLED() power.Switch {
	return b.line(b.pins.ModeLED, b.pins.ModeLEDActiveLow)
}
func (b *Board) GreenLED() power.Switch {
	return b.line(b.pins.GreenLED, b.pins.GreenLEDActiveLow)
}
func (b *Board) RedLED() power.Switch {
	return b.line(b.pins.RedLED, b.pins.RedLEDActiveLow)
}

// Hold and Release let the board serve as the sleep scheduler's pin
// controller.
func (b *Board) Hold(offset int) error {
	if b.chip == nil {
		return errNoGPIO
	}
	return b.chip.Hold(offset)
}

func (b *Board) Release(offset int) error {
	if b.chip == nil {
		return errNoGPIO
	}
	return b.chip.Release(offset)
}

func (b *Board) WatchModeSwitch(fn func()) (io.Closer, error) {
	if b.chip == nil {
		return nil, errNoGPIO
	}
	w, err := b.chip.WatchFalling(b.pins.Mode, fn)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (b *Board) OpenTilt() (power.TiltSensor, error) {
	if b.bus == nil {
		return nil, errors.New("board: i2c bus not open")
	}
	d, err := mpu6050.New(b.bus.Dev(mpu6050.DefaultAddress()))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (b *Board) OpenThermometer() (power.Thermometer, error) {
	s, err := ds18b20.Open(b.cfg.W1Devices)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// batteryPath is the configured ADC file, or the pin table's channel on
// the default IIO device.
func (b *Board) batteryPath() string {
	if b.cfg.BatteryADC != "" {
		return b.cfg.BatteryADC
	}
	return filepath.Join(iioDevice, fmt.Sprintf("in_voltage%d_raw", b.pins.BatteryChannel))
}

func (b *Board) OpenBattery() (power.Battery, error) {
	m, err := battery.Open(b.batteryPath(), b.cfg.BatteryScale)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (b *Board) Close() error {
	var errs []error
	if b.bus != nil {
		errs = append(errs, b.bus.Close())
	}
	if b.chip != nil {
		errs = append(errs, b.chip.Close())
	}
	return errors.Join(errs...)
}

type brokenSwitch struct{ err error }

func (s brokenSwitch) On() error  { return s.err }
func (s brokenSwitch) Off() error { return s.err }
