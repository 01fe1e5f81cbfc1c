// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cts

import (
	"errors"
	"testing"
	"time"

	"github.com/GermanBionicSystems/pt100/common"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
)

func op(w, r string) conntest.IO {
	return conntest.IO{W: []byte(w), R: []byte(r)}
}

func TestAnalogChannel(t *testing.T) {
	tests := []struct {
		resp           string
		actual, target float64
	}{
		{"A1 023.4 025.0", 23.4, 25},
		{"A1 -10.3 -10.0", -10.3, -10},
		{"A1 119.9 120.0", 119.9, 120},
	}
	for _, test := range tests {
		pb := &conntest.Playback{Ops: []conntest.IO{op("A1", test.resp)}, DontPanic: true}
		d := New(pb, nil)
		actual, target, err := d.AnalogChannel(Temperature)
		if err != nil {
			t.Errorf("AnalogChannel() with %q: %v", test.resp, err)
			continue
		}
		if actual != test.actual || target != test.target {
			t.Errorf("AnalogChannel() = %v, %v, want %v, %v", actual, target, test.actual, test.target)
		}
		if err := pb.Close(); err != nil {
			t.Error(err)
		}
	}
}

func TestAnalogChannelGarbage(t *testing.T) {
	pb := &conntest.Playback{Ops: []conntest.IO{op("A2", "A1 023.4 025.0")}, DontPanic: true}
	d := New(pb, nil)
	if _, _, err := d.AnalogChannel(Humidity); !errors.Is(err, ErrRejected) {
		t.Fatalf("AnalogChannel() = %v, want %v", err, ErrRejected)
	}
	if _, _, err := d.AnalogChannel(0); err == nil {
		t.Fatal("AnalogChannel(0) succeeded")
	}
}

func TestSetTemperature(t *testing.T) {
	pb := &conntest.Playback{
		Ops: []conntest.IO{
			op("a1 025.0", "a1"),
			op("a1 -40.5", "a1"),
		},
		DontPanic: true,
	}
	d := New(pb, nil)
	if err := d.SetTemperature(common.Celsius(25)); err != nil {
		t.Fatal(err)
	}
	want := physic.ZeroCelsius - 40500*physic.MilliKelvin
	if err := d.SetTemperature(want); err != nil {
		t.Fatal(err)
	}
	if got := d.Target(); got != want {
		t.Errorf("Target() = %s, want %s", got, want)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}

	if err := d.SetTemperature(common.Celsius(200)); !errors.Is(err, ErrRange) {
		t.Errorf("SetTemperature(200°C) = %v, want %v", err, ErrRange)
	}
}

func TestSetAnalogChannelRejected(t *testing.T) {
	pb := &conntest.Playback{Ops: []conntest.IO{op("a2 050.0", "??")}, DontPanic: true}
	d := New(pb, nil)
	if err := d.SetAnalogChannel(Humidity, 50); !errors.Is(err, ErrRejected) {
		t.Fatalf("SetAnalogChannel() = %v, want %v", err, ErrRejected)
	}
	if err := d.SetAnalogChannel(7, 1); err == nil {
		t.Fatal("SetAnalogChannel(7) succeeded")
	}
}

func TestStartStop(t *testing.T) {
	pb := &conntest.Playback{
		Ops: []conntest.IO{
			op("s1 1", "s1"),
			op("s1 0", "s1"),
			op("s1 1", "s0"),
		},
		DontPanic: true,
	}
	d := New(pb, nil)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if !d.Running() {
		t.Error("Running() = false after Start()")
	}
	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}
	if d.Running() {
		t.Error("Running() = true after Stop()")
	}
	if err := d.Start(); !errors.Is(err, ErrRejected) {
		t.Fatalf("Start() = %v, want %v", err, ErrRejected)
	}
}

func TestSense(t *testing.T) {
	pb := &conntest.Playback{
		Ops: []conntest.IO{
			op("A1", "A1 024.9 025.0"),
			op("A2", "A2 031.5 000.0"),
		},
		DontPanic: true,
	}
	d := New(pb, nil)
	e := physic.Env{}
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if e.Temperature != common.Celsius(24.9) {
		t.Errorf("Temperature = %s", e.Temperature)
	}
	if e.Humidity != common.Percent(31.5) {
		t.Errorf("Humidity = %s", e.Humidity)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestSenseContinuousAndHalt(t *testing.T) {
	pb := &conntest.Playback{
		Ops: []conntest.IO{
			op("A1", "A1 024.9 025.0"),
			op("A2", "A2 031.5 000.0"),
			op("s1 0", "s1"),
		},
		DontPanic: true,
	}
	d := New(pb, nil)
	if _, err := d.SenseContinuous(time.Millisecond); err == nil {
		t.Fatal("SenseContinuous(1ms) succeeded")
	}
	ch, err := d.SenseContinuous(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	e := <-ch
	if e.Temperature != common.Celsius(24.9) {
		t.Errorf("Temperature = %s", e.Temperature)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	for range ch {
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestString(t *testing.T) {
	d := New(&conntest.Playback{}, nil)
	if s := d.String(); s != "cts: playback" {
		t.Errorf("String() = %q", s)
	}
}
