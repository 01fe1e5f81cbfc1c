// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rtd converts between resistance and temperature of platinum
// resistance thermometers and fits sensor coefficients from measurements.
//
// The Callendar–Van Dusen equation of IEC 60751 is used:
//
//	R(T) = R0·(1 + A·T + B·T²)                   0 °C ≤ T ≤ 850 °C
//	R(T) = R0·(1 + A·T + B·T² + C·(T−100)·T³)   −200 °C ≤ T < 0 °C
package rtd

import (
	"errors"
	"fmt"
	"math"

	"github.com/GermanBionicSystems/pt100/common"
	"periph.io/x/conn/v3/physic"
)

// IEC 60751 coefficients.
const (
	A = 3.9083e-3
	B = -5.775e-7
	C = -4.183e-12

	// Validity range of the standard, in °C.
	MinCelsius = -200
	MaxCelsius = 850
)

// ErrRange is returned for resistances outside of the curve's validity range.
var ErrRange = errors.New("rtd: resistance out of range")

// Curve is a Callendar–Van Dusen curve.
type Curve struct {
	R0      float64 // Ω at 0 °C
	A, B, C float64
}

// PT100 is the nominal IEC 60751 curve of a 100 Ω sensor.
var PT100 = Curve{R0: 100, A: A, B: B, C: C}

// PT1000 is the nominal IEC 60751 curve of a 1000 Ω sensor.
var PT1000 = Curve{R0: 1000, A: A, B: B, C: C}

// Ohms returns the resistance at t °C.
func (c Curve) Ohms(t float64) float64 {
	r := 1 + c.A*t + c.B*t*t
	if t < 0 {
		r += c.C * (t - 100) * t * t * t
	}
	return c.R0 * r
}

// Celsius returns the temperature at which the sensor has resistance r.
func (c Curve) Celsius(r float64) (float64, error) {
	if c.R0 <= 0 {
		return 0, fmt.Errorf("rtd: invalid R0 %g", c.R0)
	}
	if r < c.Ohms(MinCelsius) || r > c.Ohms(MaxCelsius) || math.IsNaN(r) {
		return 0, fmt.Errorf("%w: %g Ω", ErrRange, r)
	}
	t := c.quadratic(r)
	if r >= c.R0 || c.C == 0 {
		return t, nil
	}
	// Below 0 °C the quartic term has no closed form solution. The quadratic
	// solution is a close first guess.
	for i := 0; i < 50; i++ {
		f := c.Ohms(t) - r
		df := c.R0 * (c.A + 2*c.B*t + c.C*(4*t*t*t-300*t*t))
		dt := f / df
		t -= dt
		if math.Abs(dt) < 1e-9 {
			break
		}
	}
	return t, nil
}

func (c Curve) quadratic(r float64) float64 {
	if c.B == 0 {
		return (r/c.R0 - 1) / c.A
	}
	return (-c.A + math.Sqrt(c.A*c.A-4*c.B*(1-r/c.R0))) / (2 * c.B)
}

// Alpha returns the mean temperature coefficient between 0 °C and 100 °C,
// 0.00385055 for the nominal curve.
func (c Curve) Alpha() float64 {
	return c.A + 100*c.B
}

// Resistance returns the resistance at temperature t.
func (c Curve) Resistance(t physic.Temperature) physic.ElectricResistance {
	return common.Ohms(c.Ohms(t.Celsius()))
}

// Temperature returns the temperature at which the sensor has resistance r.
func (c Curve) Temperature(r physic.ElectricResistance) (physic.Temperature, error) {
	t, err := c.Celsius(common.ToOhms(r))
	if err != nil {
		return 0, err
	}
	return common.Celsius(t), nil
}

func (c Curve) String() string {
	return fmt.Sprintf("R0=%.4fΩ A=%.5e B=%.5e C=%.5e", c.R0, c.A, c.B, c.C)
}
