// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rtd

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNotEnoughPoints is returned when a fit has fewer than two distinct
// temperatures.
var ErrNotEnoughPoints = errors.New("rtd: not enough distinct temperatures to fit")

// MinSeparation is the gap in °C between two reference temperatures for
// them to count as distinct. Readings taken around one setpoint spread
// over the chamber tolerance and count once.
const MinSeparation = 1.0

// Point is a calibration point.
type Point struct {
	Celsius float64 // reference temperature
	Ohms    float64 // sensor resistance
}

// Fit is the result of fitting a sensor's coefficients.
type Fit struct {
	Curve
	// RMS is the root mean square of the residuals in Ω.
	RMS float64
	// N is the number of points used.
	N int
	// Linear is set when only two distinct temperatures were available and B
	// was fixed to 0.
	Linear bool
}

// FitPoints fits R0, A and B by linear least squares. C is kept at the IEC
// 60751 value since it only matters below 0 °C, where it is tiny.
func FitPoints(pts []Point) (Fit, error) {
	distinct := References(pts)
	if distinct < 2 {
		return Fit{}, fmt.Errorf("%w: %d", ErrNotEnoughPoints, distinct)
	}
	n := 3
	if distinct == 2 {
		n = 2
	}

	// With x = T/100 the model R = p0·(1 + C·g(T)) + p1·x + p2·x² is linear
	// in p0 = R0, p1 = 100·R0·A and p2 = 10⁴·R0·B.
	basis := func(t float64) [3]float64 {
		g := 1.0
		if t < 0 {
			g += C * (t - 100) * t * t * t
		}
		x := t / 100
		return [3]float64{g, x, x * x}
	}
	var m [3][4]float64
	for _, p := range pts {
		b := basis(p.Celsius)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				m[i][j] += b[i] * b[j]
			}
			m[i][3] += b[i] * p.Ohms
		}
	}
	sol, err := solve(m, n)
	if err != nil {
		return Fit{}, err
	}
	if sol[0] <= 0 {
		return Fit{}, fmt.Errorf("rtd: fit yields R0=%g", sol[0])
	}
	f := Fit{
		Curve:  Curve{R0: sol[0], A: sol[1] / 100 / sol[0], B: sol[2] / 1e4 / sol[0], C: C},
		N:      len(pts),
		Linear: n == 2,
	}
	var ss float64
	for _, p := range pts {
		d := f.Ohms(p.Celsius) - p.Ohms
		ss += d * d
	}
	f.RMS = math.Sqrt(ss / float64(len(pts)))
	return f, nil
}

// References returns the number of distinct reference temperatures in pts:
// after sorting, a new one starts at each gap wider than MinSeparation.
func References(pts []Point) int {
	if len(pts) == 0 {
		return 0
	}
	t := make([]float64, 0, len(pts))
	for _, p := range pts {
		t = append(t, p.Celsius)
	}
	sort.Float64s(t)
	n := 1
	for i := 1; i < len(t); i++ {
		if t[i]-t[i-1] > MinSeparation {
			n++
		}
	}
	return n
}

// solve solves the n×n augmented system m by Gaussian elimination with
// partial pivoting.
func solve(m [3][4]float64, n int) ([3]float64, error) {
	var x [3]float64
	for col := 0; col < n; col++ {
		p := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[p][col]) {
				p = r
			}
		}
		if math.Abs(m[p][col]) < 1e-12 {
			return x, errors.New("rtd: singular fit")
		}
		m[col], m[p] = m[p], m[col]
		for r := col + 1; r < n; r++ {
			k := m[r][col] / m[col][col]
			for c := col; c < n; c++ {
				m[r][c] -= k * m[col][c]
			}
			m[r][3] -= k * m[col][3]
		}
	}
	for r := n - 1; r >= 0; r-- {
		s := m[r][3]
		for c := r + 1; c < n; c++ {
			s -= m[r][c] * x[c]
		}
		x[r] = s / m[r][r]
	}
	return x, nil
}
