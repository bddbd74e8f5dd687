package gravity

import (
	"errors"
	"fmt"
	"math"
)

// Point is one calibration sample: the tilt measured while floating in a
// liquid of known gravity.
type Point struct {
	Tilt    float64 `json:"tilt"`
	Gravity float64 `json:"gravity"`
}

var ErrTooFewPoints = errors.New("gravity: at least 3 calibration points are required")

// Fit computes a least-squares quadratic through the points.
func Fit(points []Point, unit string) (Params, error) {
	if len(points) < 3 {
		return Params{}, ErrTooFewPoints
	}

	// Normal equations for y = a*x^2 + b*x + c.
	var s [5]float64 // sums of x^0..x^4
	var t [3]float64 // sums of y*x^0..y*x^2
	for _, p := range points {
		xp := 1.0
		for i := 0; i < 5; i++ {
			s[i] += xp
			if i < 3 {
				t[i] += p.Gravity * xp
			}
			xp *= p.Tilt
		}
	}

	m := [3][4]float64{
		{s[4], s[3], s[2], t[2]},
		{s[3], s[2], s[1], t[1]},
		{s[2], s[1], s[0], t[0]},
	}
	sol, err := solve3(m)
	if err != nil {
		return Params{}, err
	}
	return NewParams(sol[0], sol[1], sol[2], unit), nil
}

// solve3 runs Gaussian elimination with partial pivoting on an augmented
// 3x4 matrix.
func solve3(m [3][4]float64) ([3]float64, error) {
	const n = 3
	scale := 0.0
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			scale = math.Max(scale, math.Abs(m[r][c]))
		}
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) <= 1e-12*scale {
			return [3]float64{}, fmt.Errorf("gravity: calibration points are degenerate (need 3 distinct tilts)")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	var x [3]float64
	for r := n - 1; r >= 0; r-- {
		v := m[r][n]
		for c := r + 1; c < n; c++ {
			v -= m[r][c] * x[c]
		}
		x[r] = v / m[r][r]
	}
	return x, nil
}
