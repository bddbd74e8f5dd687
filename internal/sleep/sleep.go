// Package sleep engages the low-power pin hold and enters timed deep sleep.
package sleep

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// PinController reconfigures a GPIO line by offset.
type PinController interface {
	// Hold parks the line as a bias-free input that keeps its level
	// across power-down.
	Hold(offset int) error
	// Release restores the line to a driven output.
	Release(offset int) error
}

// Sleeper powers the board down until the wake timer fires.
type Sleeper interface {
	DeepSleep(d time.Duration) error
}

// Pins names the power-relevant lines.
type Pins struct {
	SDA  int
	SCL  int
	VPP  int
	LEDs []int
}

// Held is the set engaged before deep sleep.
func (p Pins) Held() []int {
	out := []int{p.SDA, p.SCL, p.VPP}
	return append(out, p.LEDs...)
}

// Released is the set restored on wake. LED lines are not in it; working
// mode never drives them.
func (p Pins) Released() []int {
	return []int{p.SDA, p.SCL, p.VPP}
}

type Scheduler struct {
	pins    PinController
	sleeper Sleeper
	set     Pins
}

func NewScheduler(pins PinController, sleeper Sleeper, set Pins) *Scheduler {
	return &Scheduler{pins: pins, sleeper: sleeper, set: set}
}

// EngageHold holds every line in the hold set. It keeps going past a
// failing line so one bad pin does not leave the rest driven.
func (s *Scheduler) EngageHold() error {
	var errs []error
	for _, off := range s.set.Held() {
		if err := s.pins.Hold(off); err != nil {
			log.Printf("sleep: hold gpio%d failed: %v", off, err)
			errs = append(errs, fmt.Errorf("hold gpio%d: %w", off, err))
		}
	}
	return errors.Join(errs...)
}

// ReleaseHold restores the bus and power lines after a deep-sleep wake.
func (s *Scheduler) ReleaseHold() error {
	var errs []error
	for _, off := range s.set.Released() {
		if err := s.pins.Release(off); err != nil {
			log.Printf("sleep: release gpio%d failed: %v", off, err)
			errs = append(errs, fmt.Errorf("release gpio%d: %w", off, err))
		}
	}
	return errors.Join(errs...)
}

// Sleep engages the hold and enters deep sleep for d. Hold failures are
// logged and do not prevent sleeping.
func (s *Scheduler) Sleep(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("sleep: invalid duration %v", d)
	}
	_ = s.EngageHold()
	log.Printf("sleep: deep sleep for %v", d)
	if err := s.sleeper.DeepSleep(d); err != nil {
		return fmt.Errorf("sleep: deep sleep: %w", err)
	}
	return nil
}
