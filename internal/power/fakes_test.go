package power

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"torpedo/internal/config"
	"torpedo/internal/flags"
	"torpedo/internal/gravity"
	"torpedo/internal/publish"
)

type fakeSwitch struct {
	on        bool
	ons, offs int
}

func (s *fakeSwitch) On() error  { s.on = true; s.ons++; return nil }
func (s *fakeSwitch) Off() error { s.on = false; s.offs++; return nil }

type fakeTilt struct {
	v   float64
	err error
}

func (f *fakeTilt) Tilt() (float64, error) { return f.v, f.err }

type fakeThermometer struct {
	readings []float64
	errs     []error
	calls    int
}

func (f *fakeThermometer) Temperature() (float64, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return 0, f.errs[i]
	}
	if i < len(f.readings) {
		return f.readings[i], nil
	}
	return 0, errors.New("no reading")
}

type fakeBattery struct {
	volts   float64
	percent int
}

func (f *fakeBattery) Voltage() (float64, error) { return f.volts, nil }
func (f *fakeBattery) Percent() (int, error)     { return f.percent, nil }

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

type fakeBoard struct {
	vpp, mode, green, red fakeSwitch

	// presses is how many edges the switch delivers as soon as it is armed.
	presses  int
	watchErr error
	watched  bool

	// ledLookups counts ModeLED, GreenLED and RedLED calls.
	ledLookups int

	tilt    *fakeTilt
	tiltErr error
	therm   *fakeThermometer
	bat     *fakeBattery
	batErr  error
}

func (b *fakeBoard) VPP() Switch      { return &b.vpp }
func (b *fakeBoard) ModeLED() Switch  { b.ledLookups++; return &b.mode }
func (b *fakeBoard) GreenLED() Switch { b.ledLookups++; return &b.green }
func (b *fakeBoard) RedLED() Switch   { b.ledLookups++; return &b.red }

func (b *fakeBoard) WatchModeSwitch(fn func()) (io.Closer, error) {
	if b.watchErr != nil {
		return nil, b.watchErr
	}
	b.watched = true
	for i := 0; i < b.presses; i++ {
		fn()
	}
	return closerFunc(func() error { b.watched = false; return nil }), nil
}

func (b *fakeBoard) OpenTilt() (TiltSensor, error) {
	if b.tiltErr != nil {
		return nil, b.tiltErr
	}
	return b.tilt, nil
}

func (b *fakeBoard) OpenThermometer() (Thermometer, error) {
	if b.therm == nil {
		return nil, errors.New("no probe")
	}
	return b.therm, nil
}

func (b *fakeBoard) OpenBattery() (Battery, error) {
	if b.batErr != nil {
		return nil, b.batErr
	}
	return b.bat, nil
}

type fakePlatform struct {
	resets int
	id     uint64
}

func (p *fakePlatform) Reset() error               { p.resets++; return nil }
func (p *fakePlatform) MachineID() (uint64, error) { return p.id, nil }

type fakeScheduler struct {
	holds, releases int
	sleeps          []time.Duration
}

func (s *fakeScheduler) EngageHold() error  { s.holds++; return nil }
func (s *fakeScheduler) ReleaseHold() error { s.releases++; return nil }
func (s *fakeScheduler) Sleep(d time.Duration) error {
	s.holds++
	s.sleeps = append(s.sleeps, d)
	return nil
}

type fakeNetwork struct {
	mu          sync.Mutex
	connectErr  error
	connected   bool
	aps         []string
	joins       []string
	disconnects int
}

func (n *fakeNetwork) StartAP(_ context.Context, ssid, _ string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aps = append(n.aps, ssid)
	return "192.168.4.1", nil
}

func (n *fakeNetwork) Connect(_ context.Context, ssid, _ string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joins = append(n.joins, ssid)
	if n.connectErr != nil {
		return "", n.connectErr
	}
	n.connected = true
	return "10.0.0.7", nil
}

func (n *fakeNetwork) Connected(context.Context) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

func (n *fakeNetwork) Disconnect(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnects++
	n.connected = false
	return nil
}

type fakeSink struct {
	reports []publish.Report
	err     error
}

func (s *fakeSink) Publish(_ context.Context, r publish.Report) error {
	s.reports = append(s.reports, r)
	return s.err
}

type harness struct {
	flags    *flags.Store
	board    *fakeBoard
	platform *fakePlatform
	sched    *fakeScheduler
	net      *fakeNetwork
	sink     *fakeSink
	params   gravity.Params
	paramErr error
	settings config.Settings

	mu     sync.Mutex
	sleeps []time.Duration
	// fire lists the afterFn durations that elapse immediately.
	fire map[time.Duration]bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fs, err := flags.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	h := &harness{
		flags:    fs,
		board:    &fakeBoard{tilt: &fakeTilt{v: 40}, therm: &fakeThermometer{readings: []float64{85, 19.5}}, bat: &fakeBattery{volts: 3.9, percent: 65}},
		platform: &fakePlatform{id: 0xb827eb010203},
		sched:    &fakeScheduler{},
		net:      &fakeNetwork{},
		sink:     &fakeSink{},
		params:   gravity.NewParams(0, 0.001, 1.0, "sg"),
		settings: config.Settings{
			APSSID:              "torpedo",
			FermenterAP:         config.FermenterAPConfig{SSID: "fermenter", Pass: "pw", Host: "192.168.4.1", API: "gravity"},
			DeepSleepIntervalMs: 900000,
		},
		fire: map[time.Duration]bool{},
	}

	oldSleep, oldAfter := sleep, afterFn
	sleep = func(d time.Duration) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sleeps = append(h.sleeps, d)
	}
	afterFn = func(d time.Duration) <-chan time.Time {
		if !h.fire[d] {
			return nil
		}
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	t.Cleanup(func() { sleep, afterFn = oldSleep, oldAfter })
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Flags:          h.flags,
		Platform:       h.platform,
		Scheduler:      h.sched,
		Board:          h.board,
		Network:        h.net,
		Settings:       h.settings,
		LoadRegression: func() (gravity.Params, error) { return h.params, h.paramErr },
		NewSink:        func(config.Settings) publish.Sink { return h.sink },
	}
}

func (h *harness) slept(d time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sleeps {
		if s == d {
			return true
		}
	}
	return false
}

func (h *harness) requireOnlyFlag(t *testing.T, want flags.Flag) {
	t.Helper()
	active := h.flags.Active()
	if want == "" {
		if len(active) != 0 {
			t.Fatalf("flags=%v want none", active)
		}
		return
	}
	if len(active) != 1 || active[0] != want {
		t.Fatalf("flags=%v want only %s", active, want)
	}
}
