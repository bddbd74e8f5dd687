// Package board binds the hydrometer's hardware roles to Linux devices.
package board

import (
	"fmt"

	"torpedo/internal/sleep"
)

// Pins are BCM GPIO numbers.
type Pins struct {
	SDA      int
	SCL      int
	OneWire  int
	VPP      int
	Mode     int
	ModeLED  int
	GreenLED int
	RedLED   int

	// The ActiveLow bits are set for LEDs that sink to their pin.
	ModeLEDActiveLow  bool
	GreenLEDActiveLow bool
	RedLEDActiveLow   bool

	// BatteryChannel is the ADC channel wired to the cell divider.
	BatteryChannel int
}

// DefaultPins is the hydrometer hat layout on a Raspberry Pi header.
func DefaultPins() Pins {
	return Pins{
		SDA:               2,
		SCL:               3,
		OneWire:           4,
		VPP:               23,
		Mode:              27,
		ModeLED:           5,
		GreenLED:          25,
		RedLED:            26,
		ModeLEDActiveLow:  true,
		GreenLEDActiveLow: false,
		RedLEDActiveLow:   false,
		BatteryChannel:    0,
	}
}

// Sleep is the pin set the deep-sleep scheduler holds and releases.
func (p Pins) Sleep() sleep.Pins {
	return sleep.Pins{
		SDA:  p.SDA,
		SCL:  p.SCL,
		VPP:  p.VPP,
		LEDs: []int{p.ModeLED, p.GreenLED, p.RedLED},
	}
}

// Validate rejects tables where two roles share a line.
func (p Pins) Validate() error {
	seen := map[int]string{}
	for _, r := range []struct {
		name string
		pin  int
	}{
		{"sda", p.SDA}, {"scl", p.SCL}, {"onewire", p.OneWire}, {"vpp", p.VPP},
		{"mode", p.Mode}, {"modeLed", p.ModeLED}, {"greenLed", p.GreenLED}, {"redLed", p.RedLED},
	} {
		if r.pin < 0 {
			return fmt.Errorf("board: %s pin %d is negative", r.name, r.pin)
		}
		if other, ok := seen[r.pin]; ok {
			return fmt.Errorf("board: %s and %s share GPIO%d", other, r.name, r.pin)
		}
		seen[r.pin] = r.name
	}
	if p.BatteryChannel < 0 {
		return fmt.Errorf("board: battery channel %d is negative", p.BatteryChannel)
	}
	return nil
}
