package sleep

import (
	"errors"
	"testing"
	"time"
)

type fakePins struct {
	state map[int]string
	fail  map[int]bool
}

func newFakePins() *fakePins {
	return &fakePins{state: map[int]string{}, fail: map[int]bool{}}
}

func (f *fakePins) Hold(off int) error {
	if f.fail[off] {
		return errors.New("busy")
	}
	f.state[off] = "held"
	return nil
}

func (f *fakePins) Release(off int) error {
	if f.fail[off] {
		return errors.New("busy")
	}
	f.state[off] = "output"
	return nil
}

type fakeSleeper struct {
	calls []time.Duration
	err   error
}

func (f *fakeSleeper) DeepSleep(d time.Duration) error {
	f.calls = append(f.calls, d)
	return f.err
}

var testPins = Pins{SDA: 2, SCL: 3, VPP: 23, LEDs: []int{5, 25, 26}}

func TestReleaseHold_LeavesLEDsHeld(t *testing.T) {
	pins := newFakePins()
	s := NewScheduler(pins, &fakeSleeper{}, testPins)

	if err := s.EngageHold(); err != nil {
		t.Fatalf("EngageHold: %v", err)
	}
	for _, off := range []int{2, 3, 23, 5, 25, 26} {
		if pins.state[off] != "held" {
			t.Fatalf("gpio%d=%q want held", off, pins.state[off])
		}
	}

	if err := s.ReleaseHold(); err != nil {
		t.Fatalf("ReleaseHold: %v", err)
	}
	for _, off := range []int{2, 3, 23} {
		if pins.state[off] != "output" {
			t.Fatalf("gpio%d=%q want output", off, pins.state[off])
		}
	}
	for _, off := range []int{5, 25, 26} {
		if pins.state[off] != "held" {
			t.Fatalf("led gpio%d=%q want held", off, pins.state[off])
		}
	}
}

func TestEngageHold_ContinuesPastFailure(t *testing.T) {
	pins := newFakePins()
	pins.fail[3] = true
	s := NewScheduler(pins, &fakeSleeper{}, testPins)

	if err := s.EngageHold(); err == nil {
		t.Fatalf("expected error")
	}
	if pins.state[26] != "held" || pins.state[23] != "held" {
		t.Fatalf("later pins not held: %v", pins.state)
	}
}

func TestSleep_HoldsThenSleeps(t *testing.T) {
	pins := newFakePins()
	sl := &fakeSleeper{}
	s := NewScheduler(pins, sl, testPins)

	if err := s.Sleep(20 * time.Minute); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if len(sl.calls) != 1 || sl.calls[0] != 20*time.Minute {
		t.Fatalf("calls=%v", sl.calls)
	}
	if pins.state[5] != "held" {
		t.Fatalf("pins not held before sleep")
	}
}

func TestSleep_Errors(t *testing.T) {
	sl := &fakeSleeper{err: errors.New("no rtc")}
	s := NewScheduler(newFakePins(), sl, testPins)
	if err := s.Sleep(time.Second); err == nil {
		t.Fatalf("expected deep sleep error")
	}
	if err := s.Sleep(0); err == nil {
		t.Fatalf("expected invalid duration error")
	}
	if len(sl.calls) != 1 {
		t.Fatalf("calls=%d want 1", len(sl.calls))
	}
}
