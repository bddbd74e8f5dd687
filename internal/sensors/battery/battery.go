// Package battery samples the LiPo cell through an IIO ADC channel.
package battery

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

const samples = 8

// Monitor reads <path> (an in_voltageN_raw file) and converts counts to
// cell volts with scale, which folds in the ADC step and the divider ratio.
type Monitor struct {
	path  string
	scale float64
}

func Open(path string, scale float64) (*Monitor, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("battery: scale must be > 0")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("battery: %w", err)
	}
	return &Monitor{path: path, scale: scale}, nil
}

// Voltage averages several conversions, rounded to 2 decimals.
func (m *Monitor) Voltage() (float64, error) {
	var sum float64
	for i := 0; i < samples; i++ {
		raw, err := m.readRaw()
		if err != nil {
			return 0, err
		}
		sum += float64(raw)
	}
	v := sum / samples * m.scale
	return math.Round(v*100) / 100, nil
}

// Percent is the state of charge estimated from the resting voltage.
func (m *Monitor) Percent() (int, error) {
	v, err := m.Voltage()
	if err != nil {
		return 0, err
	}
	return LipoPercent(v), nil
}

func (m *Monitor) readRaw() (int, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return 0, fmt.Errorf("battery: read adc: %w", err)
	}
	s := strings.TrimSpace(string(b))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("battery: parse adc %q: %w", s, err)
	}
	return n, nil
}

// Single-cell LiPo discharge curve, volts to percent.
var lipoCurve = []struct {
	v float64
	p float64
}{
	{3.27, 0},
	{3.61, 5},
	{3.69, 10},
	{3.71, 15},
	{3.73, 20},
	{3.75, 25},
	{3.77, 30},
	{3.79, 35},
	{3.80, 40},
	{3.82, 45},
	{3.84, 50},
	{3.85, 55},
	{3.87, 60},
	{3.91, 65},
	{3.95, 70},
	{3.98, 75},
	{4.02, 80},
	{4.08, 85},
	{4.11, 90},
	{4.15, 95},
	{4.20, 100},
}

// LipoPercent interpolates the discharge curve and clamps to 0..100.
func LipoPercent(v float64) int {
	if v <= lipoCurve[0].v {
		return 0
	}
	last := lipoCurve[len(lipoCurve)-1]
	if v >= last.v {
		return 100
	}
	for i := 1; i < len(lipoCurve); i++ {
		hi := lipoCurve[i]
		if v > hi.v {
			continue
		}
		lo := lipoCurve[i-1]
		frac := (v - lo.v) / (hi.v - lo.v)
		return int(math.Round(lo.p + frac*(hi.p-lo.p)))
	}
	return 100
}
