// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/pt100/common"
	"github.com/GermanBionicSystems/pt100/record"
	"github.com/GermanBionicSystems/pt100/rtd"
)

func TestMainImplUsage(t *testing.T) {
	if err := mainImpl(nil); !errors.Is(err, errUsage) {
		t.Errorf("mainImpl() = %v", err)
	}
	if err := mainImpl([]string{"calibrate"}); !errors.Is(err, errUsage) {
		t.Errorf("mainImpl(calibrate) = %v", err)
	}
	if err := mainImpl([]string{"report"}); err == nil {
		t.Error("report without -in succeeded")
	}
}

func TestReportCmd(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "run.csv")
	w, err := record.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	for i, c := range []float64{0, 40, 80} {
		s := record.Sample{
			Time:       start.Add(time.Duration(i) * time.Hour),
			Run:        "run",
			Step:       i,
			Setpoint:   common.Celsius(c),
			Chamber:    common.Celsius(c),
			Channel:    101,
			Resistance: common.Ohms(rtd.PT100.Ohms(c)),
		}
		if err := w.Append(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := reportCmd([]string{"-in", in}, &out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "run.png")); err != nil {
		t.Error(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "101") || !strings.Contains(lines[1], "100.0000") {
		t.Errorf("output:\n%s", out.String())
	}
}
