package gravity

import (
	"errors"
	"math"
)

// ErrNotCalibrated is returned when a regression coefficient is missing.
var ErrNotCalibrated = errors.New("gravity: regression parameters missing")

// UnitPlato selects the Plato-scale fit. Any other unit, normally
// UnitSG, is a specific gravity fit.
const (
	UnitPlato = "p"
	UnitSG    = "sg"
)

// Params are the quadratic coefficients mapping tilt angle to gravity.
// A nil coefficient means it was never stored.
type Params struct {
	A    *float64 `json:"a"`
	B    *float64 `json:"b"`
	C    *float64 `json:"c"`
	Unit string   `json:"unit"`
}

// NewParams is a convenience for fully populated parameters.
func NewParams(a, b, c float64, unit string) Params {
	return Params{A: &a, B: &b, C: &c, Unit: unit}
}

func (p Params) Complete() bool {
	return p.A != nil && p.B != nil && p.C != nil
}

// Raw evaluates a*t^2 + b*t + c.
func (p Params) Raw(tilt float64) (float64, error) {
	if !p.Complete() {
		return 0, ErrNotCalibrated
	}
	return *p.A*tilt*tilt + *p.B*tilt + *p.C, nil
}

// Reading is a gravity value expressed on both scales.
type Reading struct {
	SG    float64
	Plato float64
}

// Compute converts a tilt angle to specific gravity and degrees Plato.
func Compute(tilt float64, p Params) (Reading, error) {
	g, err := p.Raw(tilt)
	if err != nil {
		return Reading{}, err
	}
	if p.Unit == UnitPlato {
		return Reading{
			SG:    round(1+(g/(258.6-((g/258.2)*227.1))), 3),
			Plato: round(g, 1),
		}, nil
	}
	return Reading{
		SG:    round(g, 3),
		Plato: round((-1*616.868)+(1111.14*g)-(630.272*math.Pow(g, 2))+(135.997*math.Pow(g, 3)), 1),
	}, nil
}

// Fahrenheit converts Celsius rounded to one decimal.
func Fahrenheit(c float64) float64 {
	return round(c*1.8+32, 1)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
