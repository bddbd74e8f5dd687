package power

import (
	"context"
	"io"
	"time"

	"torpedo/internal/config"
	"torpedo/internal/flags"
	"torpedo/internal/gravity"
	"torpedo/internal/publish"
	"torpedo/internal/sampler"
)

// Switch is a logical on/off output; polarity is handled below it.
type Switch interface {
	On() error
	Off() error
}

type TiltSensor interface {
	Tilt() (float64, error)
}

type Thermometer interface {
	Temperature() (float64, error)
}

type Battery interface {
	Voltage() (float64, error)
	Percent() (int, error)
}

// Board exposes the hydrometer hardware. Open* return an error when the
// peripheral is absent; callers treat that as "unavailable".
type Board interface {
	VPP() Switch
	ModeLED() Switch
	GreenLED() Switch
	RedLED() Switch
	WatchModeSwitch(fn func()) (io.Closer, error)
	OpenTilt() (TiltSensor, error)
	OpenThermometer() (Thermometer, error)
	OpenBattery() (Battery, error)
}

type Platform interface {
	Reset() error
	MachineID() (uint64, error)
}

type Scheduler interface {
	EngageHold() error
	ReleaseHold() error
	Sleep(d time.Duration) error
}

type Network interface {
	StartAP(ctx context.Context, ssid, pass string) (string, error)
	Connect(ctx context.Context, ssid, pass string) (string, error)
	Connected(ctx context.Context) bool
	Disconnect(ctx context.Context) error
}

type FlagStore interface {
	Set(f flags.Flag) error
	Clear(f flags.Flag) error
	IsSet(f flags.Flag) bool
}

// Deps wires a Machine to its collaborators.
type Deps struct {
	Flags     FlagStore
	Platform  Platform
	Scheduler Scheduler
	Board     Board
	Network   Network
	Settings  config.Settings

	LoadRegression func() (gravity.Params, error)
	NewSink        func(config.Settings) publish.Sink

	// CalibrationServer serves the calibration API until ctx ends.
	CalibrationServer func(ctx context.Context, live *sampler.Service) error
	// FileServer serves the data directory until ctx ends.
	FileServer func(ctx context.Context) error
}
