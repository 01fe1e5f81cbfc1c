// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, conversions between the float values instruments report and the
// physic units used by the drivers.
package common

import (
	"math"

	"periph.io/x/conn/v3/physic"
)

// Celsius returns the temperature for a value in degrees Celsius, rounded to
// the nanokelvin.
func Celsius(c float64) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(math.Round(c*float64(physic.Kelvin)))
}

// Ohms returns the resistance for a value in ohms, rounded to the nanoohm.
func Ohms(r float64) physic.ElectricResistance {
	return physic.ElectricResistance(math.Round(r * float64(physic.Ohm)))
}

// ToOhms returns r in ohms.
func ToOhms(r physic.ElectricResistance) float64 {
	return float64(r) / float64(physic.Ohm)
}

// Percent returns the relative humidity for a value in %RH.
func Percent(rh float64) physic.RelativeHumidity {
	return physic.RelativeHumidity(math.Round(rh * float64(physic.PercentRH)))
}

// ToPercent returns h in %RH.
func ToPercent(h physic.RelativeHumidity) float64 {
	return float64(h) / float64(physic.PercentRH)
}

// Kelvins returns a temperature difference for a value in kelvin.
func Kelvins(k float64) physic.Temperature {
	return physic.Temperature(math.Round(k * float64(physic.Kelvin)))
}

// Abs returns the absolute value of a temperature difference.
func Abs(t physic.Temperature) physic.Temperature {
	if t < 0 {
		return -t
	}
	return t
}
