// Package publish delivers hydrometer reports to the configured sink.
package publish

import (
	"context"
	"log"

	"torpedo/internal/config"
	"torpedo/internal/gravity"
	"torpedo/internal/mqtt"
)

// Report is one measurement cycle's output.
type Report struct {
	Name             string
	DeviceID         uint64
	Tilt             float64
	Temperature      *float64 // nil when the probe could not be read
	BatteryVoltage   float64
	BatteryPercent   int
	SG               float64
	Plato            float64
	UpdateIntervalMs int
}

func (r Report) fahrenheit() *float64 {
	if r.Temperature == nil {
		return nil
	}
	f := gravity.Fahrenheit(*r.Temperature)
	return &f
}

// Sink sends a report somewhere.
type Sink interface {
	Publish(ctx context.Context, r Report) error
}

// FromSettings picks exactly one sink: MQTT when enabled, otherwise HTTP to
// the fermenter endpoint.
func FromSettings(s config.Settings) Sink {
	if s.MQTT.Enabled {
		return NewMQTTSink(s.MQTT, func(c mqtt.Config) (Conn, error) {
			return mqtt.New(c, log.Default())
		})
	}
	return NewHTTPSink(s.FermenterAP.Host, s.FermenterAP.API, nil)
}
