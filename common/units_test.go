// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import (
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestCelsius(t *testing.T) {
	tests := []struct {
		c    float64
		want physic.Temperature
	}{
		{0, physic.ZeroCelsius},
		{23.4, physic.ZeroCelsius + 23400*physic.MilliKelvin},
		{-40, physic.ZeroCelsius - 40*physic.Kelvin},
	}
	for _, test := range tests {
		if got := Celsius(test.c); got != test.want {
			t.Errorf("Celsius(%v) = %s, want %s", test.c, got, test.want)
		}
		if got := Celsius(test.c).Celsius(); got != test.c {
			t.Errorf("Celsius(%v).Celsius() = %v", test.c, got)
		}
	}
}

func TestOhms(t *testing.T) {
	r := Ohms(138.5055)
	if r != 138505500*physic.MicroOhm {
		t.Errorf("Ohms() = %d", r)
	}
	if got := ToOhms(r); got != 138.5055 {
		t.Errorf("ToOhms() = %v", got)
	}
}

func TestPercent(t *testing.T) {
	h := Percent(45.5)
	if h != 455*physic.PercentRH/10 {
		t.Errorf("Percent() = %d", h)
	}
	if got := ToPercent(h); got != 45.5 {
		t.Errorf("ToPercent() = %v", got)
	}
}

func TestAbs(t *testing.T) {
	if got := Abs(-Kelvins(0.1)); got != 100*physic.MilliKelvin {
		t.Errorf("Abs() = %s", got)
	}
}
