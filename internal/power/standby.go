package power

import "sync/atomic"

// Standby tracks the cold-start window: the blinking mode LED and the
// one-shot mode switch.
type Standby struct {
	presses  atomic.Int32
	requests chan struct{}
	lit      bool
}

func NewStandby() *Standby {
	return &Standby{requests: make(chan struct{}, 1)}
}

// Trigger is called from the switch edge handler. Only the first edge of a
// boot posts a reset request; it reports whether this call did.
func (s *Standby) Trigger() bool {
	if s.presses.Add(1) != 1 {
		return false
	}
	s.requests <- struct{}{}
	return true
}

// Requests delivers at most one reset request per boot.
func (s *Standby) Requests() <-chan struct{} {
	return s.requests
}

// Toggle flips the LED and returns the new state.
func (s *Standby) Toggle(led Switch) bool {
	s.lit = !s.lit
	if s.lit {
		_ = led.On()
	} else {
		_ = led.Off()
	}
	return s.lit
}
