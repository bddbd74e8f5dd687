package gravity

import (
	"errors"
	"math"
	"testing"
)

func TestCompute_SpecificGravityUnit(t *testing.T) {
	r, err := Compute(2, NewParams(1, 0, 0, "sg"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if r.SG != 4.0 {
		t.Fatalf("sg=%v want 4.0", r.SG)
	}
	wantPlato := math.Round((-616.868+1111.14*4-630.272*16+135.997*64)*10) / 10
	if r.Plato != wantPlato {
		t.Fatalf("plato=%v want %v", r.Plato, wantPlato)
	}
	if r.Plato != 2447.1 {
		t.Fatalf("plato=%v want 2447.1", r.Plato)
	}
}

func TestCompute_PlatoUnit(t *testing.T) {
	r, err := Compute(2, NewParams(1, 0, 0, UnitPlato))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	wantSG := math.Round((1+4/(258.6-(4.0/258.2)*227.1))*1000) / 1000
	if r.SG != wantSG {
		t.Fatalf("sg=%v want %v", r.SG, wantSG)
	}
	if r.SG != 1.016 {
		t.Fatalf("sg=%v want 1.016", r.SG)
	}
	if r.Plato != 4.0 {
		t.Fatalf("plato=%v want 4.0", r.Plato)
	}
}

func TestCompute_ZeroCoefficientIsPresent(t *testing.T) {
	r, err := Compute(10, NewParams(0, 0, 1.05, ""))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if r.SG != 1.05 {
		t.Fatalf("sg=%v want 1.05", r.SG)
	}
}

func TestCompute_MissingCoefficient(t *testing.T) {
	a, b := 1.0, 2.0
	cases := []Params{
		{},
		{A: &a, B: &b},
		{A: &a, C: &b},
		{B: &a, C: &b},
	}
	for i, p := range cases {
		if _, err := Compute(30, p); !errors.Is(err, ErrNotCalibrated) {
			t.Fatalf("case %d: err=%v want ErrNotCalibrated", i, err)
		}
	}
}

func TestFahrenheit(t *testing.T) {
	if got := Fahrenheit(20); got != 68 {
		t.Fatalf("got=%v want 68", got)
	}
	if got := Fahrenheit(18.5); got != 65.3 {
		t.Fatalf("got=%v want 65.3", got)
	}
}

func TestFit_RecoversQuadratic(t *testing.T) {
	a, b, c := 0.0002, -0.001, 1.0
	var pts []Point
	for _, x := range []float64{25, 35, 45, 55, 65} {
		pts = append(pts, Point{Tilt: x, Gravity: a*x*x + b*x + c})
	}
	p, err := Fit(pts, "sg")
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !p.Complete() || p.Unit != "sg" {
		t.Fatalf("params=%+v", p)
	}
	if math.Abs(*p.A-a) > 1e-8 || math.Abs(*p.B-b) > 1e-6 || math.Abs(*p.C-c) > 1e-4 {
		t.Fatalf("a=%v b=%v c=%v want %v %v %v", *p.A, *p.B, *p.C, a, b, c)
	}
}

func TestFit_Errors(t *testing.T) {
	if _, err := Fit([]Point{{1, 1}, {2, 2}}, ""); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("err=%v want ErrTooFewPoints", err)
	}
	if _, err := Fit([]Point{{30, 1.0}, {30, 1.01}, {30, 1.02}}, ""); err == nil {
		t.Fatalf("expected degenerate error")
	}
}
