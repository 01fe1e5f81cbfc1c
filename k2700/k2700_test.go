// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package k2700

import (
	"errors"
	"testing"

	"github.com/GermanBionicSystems/pt100/common"
	"github.com/GermanBionicSystems/pt100/scpi"
	"github.com/GermanBionicSystems/pt100/scpi/scpitest"
	"github.com/google/go-cmp/cmp"
)

func configureOps(f string) []scpitest.IO {
	return []scpitest.IO{
		{W: "*RST"},
		{W: "*CLS"},
		{W: "SENS:FUNC '" + f + "'"},
		{W: "SENS:" + f + ":NPLC 1"},
		{W: "SENS:" + f + ":RANG:AUTO ON"},
		{W: "FORM:ELEM READ,TST,RNUM"},
		{W: "SYST:ERR?", R: `0,"No error"`},
	}
}

func TestNew(t *testing.T) {
	pb := &scpitest.Playback{Ops: configureOps("FRES"), DontPanic: true}
	if _, err := New(pb, nil); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOpts(t *testing.T) {
	rec := &scpitest.Record{Port: &scpitest.Playback{
		Ops: []scpitest.IO{
			{W: "*RST"},
			{W: "*CLS"},
			{W: "SENS:FUNC 'RES'"},
			{W: "SENS:RES:NPLC 10"},
			{W: "SENS:RES:RANG 1000"},
			{W: "FORM:ELEM READ,TST,RNUM"},
			{W: "SYST:ERR?", R: `-221,"Settings conflict"`},
		},
		DontPanic: true,
	}}
	d, err := New(rec, &Opts{Function: TwoWire, NPLC: 10, Range: 1000})
	if d != nil {
		t.Errorf("New() returned %v with an error", d)
	}
	var e *scpi.Error
	if !errors.As(err, &e) || e.Code != -221 {
		t.Fatalf("New() = %v, want instrument error -221", err)
	}
	if len(rec.Ops) != 7 {
		t.Errorf("recorded %d ops", len(rec.Ops))
	}

	if _, err := New(&scpitest.Playback{DontPanic: true}, &Opts{Function: "VOLT"}); err == nil {
		t.Error("New(VOLT) succeeded")
	}
	if _, err := New(&scpitest.Playback{DontPanic: true}, &Opts{NPLC: 100}); err == nil {
		t.Error("New(NPLC 100) succeeded")
	}
}

func TestResistance(t *testing.T) {
	ops := append(configureOps("FRES"),
		scpitest.IO{W: "ROUT:CLOS (@101)"},
		scpitest.IO{W: "READ?", R: "+1.09735E+02OHM4W,+12.345SECS,+00001RDNG#"},
		scpitest.IO{W: "READ?", R: "+1.09736E+02OHM4W,+13.345SECS,+00002RDNG#"},
		scpitest.IO{W: "ROUT:CLOS (@102)"},
		scpitest.IO{W: "READ?", R: "+8.42707E+01OHM4W,+14.345SECS,+00003RDNG#"},
		scpitest.IO{W: "ROUT:OPEN:ALL"},
	)
	pb := &scpitest.Playback{Ops: ops, DontPanic: true}
	d, err := New(pb, nil)
	if err != nil {
		t.Fatal(err)
	}
	var got []float64
	for _, ch := range []int{101, 101, 102} {
		r, err := d.Resistance(ch)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, common.ToOhms(r))
	}
	if diff := cmp.Diff([]float64{109.735, 109.736, 84.2707}, got); diff != "" {
		t.Errorf("Resistance() mismatch (-want +got):\n%s", diff)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestResistanceErrors(t *testing.T) {
	ops := append(configureOps("FRES"),
		scpitest.IO{W: "ROUT:CLOS (@103)"},
		scpitest.IO{W: "READ?", R: "+9.9E37OHM4W,+1.0SECS,+1RDNG#"},
		scpitest.IO{W: "READ?", R: "+1.2E-03VDC,+2.0SECS,+2RDNG#"},
	)
	pb := &scpitest.Playback{Ops: ops, DontPanic: true}
	d, err := New(pb, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Resistance(103); !errors.Is(err, ErrOverflow) {
		t.Errorf("Resistance() = %v, want %v", err, ErrOverflow)
	}
	if _, err := d.Resistance(103); !errors.Is(err, ErrNoResistance) {
		t.Errorf("Resistance() = %v, want %v", err, ErrNoResistance)
	}
	for _, ch := range []int{0, 1, 100, 141, 301} {
		if _, err := d.Resistance(ch); !errors.Is(err, ErrChannel) {
			t.Errorf("Resistance(%d) = %v, want %v", ch, err, ErrChannel)
		}
	}
}

func TestFetch(t *testing.T) {
	ops := append(configureOps("FRES"),
		scpitest.IO{W: "*IDN?", R: "KEITHLEY INSTRUMENTS INC.,MODEL 2700,1234567,B09"},
		scpitest.IO{W: "INIT"},
		scpitest.IO{W: "FETC?", R: "+2.3412E+01_C,+1.0SECS,+1RDNG#,+2.3415E+01_C,+2.0SECS,+2RDNG#"},
	)
	pb := &scpitest.Playback{Ops: ops, DontPanic: true}
	d, err := New(pb, nil)
	if err != nil {
		t.Fatal(err)
	}
	id, err := d.Identify()
	if err != nil {
		t.Fatal(err)
	}
	t.Log(id)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	r, err := d.Fetch()
	if err != nil {
		t.Fatal(err)
	}
	want := []scpi.Reading{
		{"_C": 23.412, "SECS": 1, "RDNG": 1},
		{"_C": 23.415, "SECS": 2, "RDNG": 2},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
	}
}
