// Package power runs the per-boot state machine: classify the boot, execute
// the mode's entry actions, and end in deep sleep, a reset, or a wait for
// the operator.
package power

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"torpedo/internal/boot"
	"torpedo/internal/flags"
	"torpedo/internal/gravity"
	"torpedo/internal/publish"
	"torpedo/internal/sampler"
)

var (
	sleep   = time.Sleep
	afterFn = time.After
)

const (
	coldStartWindow    = 60 * time.Second
	firstSleepDuration = 20 * time.Minute
	blinkPeriod        = 500 * time.Millisecond

	// Battery voltage at or above which the green LED is lit.
	batteryHealthyVolts = 3.66

	firstSleepSettle  = 500 * time.Millisecond
	switchResetDelay  = 3 * time.Second
	fallbackDelay     = 5 * time.Second
	calibrationSettle = time.Second
	workingSettle     = 500 * time.Millisecond
	readGap           = 200 * time.Millisecond
	tempGap           = 100 * time.Millisecond
	modeRequestSettle = 500 * time.Millisecond
)

// ErrUnsupportedMode is returned by RequestMode for flags the operator
// cannot select.
var ErrUnsupportedMode = errors.New("power: unsupported mode request")

type Machine struct {
	d        Deps
	cause    boot.ResetCause
	mode     boot.Mode
	standby  *Standby
	requests chan flags.Flag
}

// New classifies the boot immediately; the mode is fixed for the lifetime
// of the Machine.
func New(cause boot.ResetCause, d Deps) *Machine {
	return &Machine{
		d:        d,
		cause:    cause,
		mode:     boot.Classify(cause, d.Flags),
		standby:  NewStandby(),
		requests: make(chan flags.Flag, 1),
	}
}

func (m *Machine) Mode() boot.Mode { return m.mode }

func (m *Machine) Cause() boot.ResetCause { return m.cause }

// Run executes the entry actions for the boot's mode. It returns after a
// reset or deep sleep has been issued, when ctx ends in a waiting mode, or
// when the platform refuses to go down.
func (m *Machine) Run(ctx context.Context) error {
	log.Printf("power: reset cause %s, entering %s mode", m.cause, m.mode)
	switch m.mode {
	case boot.EnterDeepSleepFirstTime:
		return m.enterFirstSleep()
	case boot.ContinueDeepSleepCycle:
		return m.continueSleep()
	case boot.FtpService:
		return m.ftpService(ctx)
	case boot.CalibrationMode:
		return m.calibration(ctx)
	case boot.WorkingMode:
		return m.working(ctx)
	default:
		return m.coldStart(ctx)
	}
}

// RequestMode asks a waiting calibration boot to restart into another mode:
// flags.Ftp for file transfer or flags.FirstSleep for the working cycle.
// The flag is written by the control loop, not the caller.
func (m *Machine) RequestMode(f flags.Flag) error {
	if f != flags.Ftp && f != flags.FirstSleep {
		return fmt.Errorf("%w: %s", ErrUnsupportedMode, f)
	}
	select {
	case m.requests <- f:
		return nil
	default:
		return errors.New("power: mode change already pending")
	}
}

// switchFlag leaves next as the only flag set.
func (m *Machine) switchFlag(next flags.Flag) error {
	var errs []error
	for _, f := range flags.All {
		if f == next {
			continue
		}
		if err := m.d.Flags.Clear(f); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.d.Flags.Set(next); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("power: switch to %s flag: %v", next, err)
		return err
	}
	return nil
}

func (m *Machine) clearFlag(f flags.Flag) {
	if err := m.d.Flags.Clear(f); err != nil {
		log.Printf("power: clear %s flag: %v", f, err)
	}
}

func (m *Machine) reset() error {
	if err := m.d.Platform.Reset(); err != nil {
		return fmt.Errorf("power: reset: %w", err)
	}
	return nil
}

// fallbackToCalibration drops the working cycle so the next boot lands in
// calibration mode, where the missing input can be supplied.
func (m *Machine) fallbackToCalibration(reason string) error {
	log.Printf("power: %s; entering calibration mode in %v", reason, fallbackDelay)
	m.clearFlag(flags.DeepSleep)
	sleep(fallbackDelay)
	return m.reset()
}

func (m *Machine) enterFirstSleep() error {
	if err := m.switchFlag(flags.DeepSleep); err != nil {
		return err
	}
	return m.d.Scheduler.Sleep(firstSleepDuration)
}

func (m *Machine) continueSleep() error {
	return m.d.Scheduler.Sleep(time.Duration(m.d.Settings.DeepSleepIntervalMs) * time.Millisecond)
}

func (m *Machine) coldStart(ctx context.Context) error {
	m.clearFlag(flags.DeepSleep)
	m.clearFlag(flags.FirstSleep)

	b := m.d.Board
	modeLED, green, red := b.ModeLED(), b.GreenLED(), b.RedLED()
	for _, led := range []Switch{modeLED, green, red} {
		_ = led.Off()
	}
	m.showBatteryHealth(green, red)

	w, err := b.WatchModeSwitch(func() { m.standby.Trigger() })
	if err != nil {
		log.Printf("power: mode switch unavailable: %v", err)
	} else {
		defer w.Close()
	}

	log.Printf("power: trigger the mode switch within %v to enter calibration mode", coldStartWindow)
	timeout := afterFn(coldStartWindow)
	blink := afterFn(blinkPeriod)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.standby.Requests():
			log.Printf("power: mode switch triggered, restarting into calibration mode")
			_ = red.Off()
			_ = green.Off()
			sleep(switchResetDelay)
			return m.reset()
		case <-timeout:
			log.Printf("power: no mode switch, starting first sleep")
			if err := m.switchFlag(flags.FirstSleep); err != nil {
				return err
			}
			sleep(firstSleepSettle)
			return m.reset()
		case <-blink:
			m.standby.Toggle(modeLED)
			blink = afterFn(blinkPeriod)
		}
	}
}

// showBatteryHealth powers the divider just long enough for one reading.
func (m *Machine) showBatteryHealth(green, red Switch) {
	vpp := m.d.Board.VPP()
	_ = vpp.On()
	v, err := m.readVoltage()
	_ = vpp.Off()
	if err != nil {
		log.Printf("power: battery check failed: %v", err)
		_ = red.On()
		return
	}
	log.Printf("power: battery %.2fV", v)
	if v >= batteryHealthyVolts {
		_ = green.On()
		_ = red.Off()
	} else {
		_ = green.Off()
		_ = red.On()
	}
}

func (m *Machine) readVoltage() (float64, error) {
	bat, err := m.d.Board.OpenBattery()
	if err != nil {
		return 0, err
	}
	return bat.Voltage()
}

// openWireless starts the AP and, when configured, joins the station
// network too.
func (m *Machine) openWireless(ctx context.Context) {
	s := m.d.Settings
	if ip, err := m.d.Network.StartAP(ctx, s.APSSID, s.APPass); err != nil {
		log.Printf("power: access point %q failed: %v", s.APSSID, err)
	} else {
		log.Printf("power: access point %q up at %s", s.APSSID, ip)
	}
	if s.WiFi.SSID == "" {
		return
	}
	if ip, err := m.d.Network.Connect(ctx, s.WiFi.SSID, s.WiFi.Pass); err != nil {
		log.Printf("power: join %q failed: %v", s.WiFi.SSID, err)
	} else {
		log.Printf("power: joined %q as %s", s.WiFi.SSID, ip)
	}
}

func (m *Machine) ftpService(ctx context.Context) error {
	m.clearFlag(flags.Ftp)
	_ = m.d.Board.ModeLED().On()
	m.openWireless(ctx)
	return m.serveUntilDone(ctx, m.d.FileServer)
}

func (m *Machine) calibration(ctx context.Context) error {
	b := m.d.Board
	_ = b.VPP().On()

	var src sampler.Source
	if tilt, err := b.OpenTilt(); err != nil {
		log.Printf("power: tilt sensor unavailable: %v", err)
	} else {
		src = tilt
	}
	_ = b.ModeLED().On()
	sleep(calibrationSettle)
	m.openWireless(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	live := sampler.New(src, sampler.DefaultInterval)
	if err := live.Start(ctx); err != nil {
		log.Printf("power: sampler: %v", err)
	}
	defer live.Close()

	var serve func(context.Context) error
	if m.d.CalibrationServer != nil {
		serve = func(ctx context.Context) error { return m.d.CalibrationServer(ctx, live) }
	}
	return m.serveUntilDone(ctx, serve)
}

// serveUntilDone runs a terminal-mode service and waits for ctx to end or
// for an operator mode request, which restarts the board.
func (m *Machine) serveUntilDone(ctx context.Context, serve func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	if serve != nil {
		go func() { done <- serve(ctx) }()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			if err != nil {
				log.Printf("power: server stopped: %v", err)
			}
			done = nil
		case f := <-m.requests:
			log.Printf("power: %s mode requested, restarting", f)
			if err := m.switchFlag(f); err != nil {
				return err
			}
			cancel()
			sleep(modeRequestSettle)
			return m.reset()
		}
	}
}

type measurement struct {
	tilt           float64
	tiltOK         bool
	temperature    *float64
	batteryVoltage float64
	batteryPercent int
}

func (m *Machine) working(ctx context.Context) error {
	b := m.d.Board
	s := m.d.Settings

	if err := m.d.Scheduler.ReleaseHold(); err != nil {
		log.Printf("power: release pin hold: %v", err)
	}
	_ = b.VPP().On()
	sleep(workingSettle)

	ssid, pass, err := s.Credentials()
	if err != nil {
		return m.fallbackToCalibration("no wifi credentials configured")
	}
	if ip, err := m.d.Network.Connect(ctx, ssid, pass); err != nil {
		log.Printf("power: join %q failed: %v", ssid, err)
	} else {
		log.Printf("power: joined %q as %s", ssid, ip)
	}

	meas := m.measure()
	_ = b.VPP().Off()

	params, err := m.d.LoadRegression()
	if err == nil && !params.Complete() {
		err = gravity.ErrNotCalibrated
	}
	if err != nil {
		return m.fallbackToCalibration(fmt.Sprintf("hydrometer not calibrated (%v)", err))
	}

	var reading gravity.Reading
	if meas.tiltOK {
		reading, err = gravity.Compute(meas.tilt, params)
		if err != nil {
			return m.fallbackToCalibration(err.Error())
		}
		log.Printf("power: tilt %.2f sg %.3f plato %.1f", meas.tilt, reading.SG, reading.Plato)
	}

	if m.d.Network.Connected(ctx) {
		if meas.tiltOK {
			m.report(ctx, meas, reading)
		} else {
			log.Printf("power: no tilt reading, skipping report")
		}
		if err := m.d.Network.Disconnect(ctx); err != nil {
			log.Printf("power: disconnect: %v", err)
		}
		sleep(readGap)
	} else {
		log.Printf("power: network not connected, skipping report")
	}

	if err := m.switchFlag(flags.DeepSleep); err != nil {
		return err
	}
	log.Printf("power: cycle done, sleeping")
	return m.reset()
}

func (m *Machine) measure() measurement {
	b := m.d.Board
	var out measurement

	if bat, err := b.OpenBattery(); err != nil {
		log.Printf("power: battery unavailable: %v", err)
	} else {
		if v, err := bat.Voltage(); err != nil {
			log.Printf("power: battery voltage: %v", err)
		} else {
			out.batteryVoltage = v
		}
		sleep(readGap)
		if p, err := bat.Percent(); err != nil {
			log.Printf("power: battery level: %v", err)
		} else {
			out.batteryPercent = p
		}
	}

	if tilt, err := b.OpenTilt(); err != nil {
		log.Printf("power: tilt sensor unavailable: %v", err)
	} else if a, err := tilt.Tilt(); err != nil {
		log.Printf("power: tilt read: %v", err)
	} else {
		out.tilt, out.tiltOK = a, true
	}
	sleep(readGap)

	out.temperature = m.readTemperature()
	return out
}

// readTemperature discards the first conversion, which reads stale after
// power-up. Any failure yields an unknown temperature.
func (m *Machine) readTemperature() *float64 {
	th, err := m.d.Board.OpenThermometer()
	if err != nil {
		log.Printf("power: thermometer unavailable: %v", err)
		return nil
	}
	if _, err := th.Temperature(); err != nil {
		log.Printf("power: temperature read: %v", err)
		return nil
	}
	sleep(tempGap)
	t, err := th.Temperature()
	if err != nil {
		log.Printf("power: temperature read: %v", err)
		return nil
	}
	return &t
}

func (m *Machine) report(ctx context.Context, meas measurement, reading gravity.Reading) {
	s := m.d.Settings
	id, err := m.d.Platform.MachineID()
	if err != nil {
		log.Printf("power: machine id: %v", err)
	}
	r := publish.Report{
		Name:             s.APSSID,
		DeviceID:         id,
		Tilt:             meas.tilt,
		Temperature:      meas.temperature,
		BatteryVoltage:   meas.batteryVoltage,
		BatteryPercent:   meas.batteryPercent,
		SG:               reading.SG,
		Plato:            reading.Plato,
		UpdateIntervalMs: s.DeepSleepIntervalMs,
	}
	if err := m.d.NewSink(s).Publish(ctx, r); err != nil {
		log.Printf("power: report not delivered: %v", err)
	}
}
