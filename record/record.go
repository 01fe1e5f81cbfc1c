// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package record defines the measurement sample of a characterization run
// and its flat file representation.
//
// Samples are written as CSV, one flushed row per sample, so an interrupted
// run keeps everything acquired up to the interruption.
package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/GermanBionicSystems/pt100/common"
	"periph.io/x/conn/v3/physic"
)

// Sample is one resistance reading of one channel at a settled chamber
// temperature.
type Sample struct {
	Time time.Time
	// Run identifies the acquisition run.
	Run string
	// Step is the index of the temperature ramp, starting at 0.
	Step int
	// Setpoint is the commanded chamber temperature.
	Setpoint physic.Temperature
	// Chamber is the chamber temperature measured right before the channels
	// were read.
	Chamber  physic.Temperature
	Humidity physic.RelativeHumidity
	Channel  int
	// Resistance is the sensor reading.
	Resistance physic.ElectricResistance
	// Sensor is the temperature derived from Resistance with the nominal
	// curve. Only meaningful when SensorValid is set.
	Sensor      physic.Temperature
	SensorValid bool
}

// Header is the first row of a results file.
var Header = []string{"time", "run", "step", "setpoint_c", "chamber_c", "humidity_rh", "channel", "resistance_ohm", "sensor_c"}

// ErrHeader is returned by Read for files that are not results files.
var ErrHeader = errors.New("record: unexpected header")

// Filename returns the default results file name for a run started at t,
// e.g. pt100-2026-10-19T14-03-27.csv. The name is safe on every filesystem.
func Filename(dir string, t time.Time) string {
	return filepath.Join(dir, "pt100-"+t.Format("2006-01-02T15-04-05")+".csv")
}

// Writer appends samples to a CSV stream.
type Writer struct {
	c io.Closer
	w *csv.Writer
	n int
}

// NewWriter writes the header to w and returns a Writer appending to it.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	return &Writer{w: cw}, nil
}

// Create creates a new results file. It fails if the file already exists.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.c = f
	return w, nil
}

// Append writes and flushes one sample.
func (w *Writer) Append(s Sample) error {
	sensor := ""
	if s.SensorValid {
		sensor = formatFloat(s.Sensor.Celsius())
	}
	row := []string{
		s.Time.Format(time.RFC3339Nano),
		s.Run,
		strconv.Itoa(s.Step),
		formatFloat(s.Setpoint.Celsius()),
		formatFloat(s.Chamber.Celsius()),
		formatFloat(common.ToPercent(s.Humidity)),
		strconv.Itoa(s.Channel),
		formatFloat(common.ToOhms(s.Resistance)),
		sensor,
	}
	if err := w.w.Write(row); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	w.n++
	return nil
}

// Count returns the number of samples appended.
func (w *Writer) Count() int {
	return w.n
}

// Close flushes and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.w.Flush()
	err := w.w.Error()
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
		w.c = nil
	}
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return nil
}

// Read parses a results file.
func Read(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	for i := range Header {
		if head[i] != Header[i] {
			return nil, fmt.Errorf("%w: column %d is %q", ErrHeader, i, head[i])
		}
	}
	var out []Sample
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record: %w", err)
		}
		s, err := parseRow(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("record: line %d: %w", line, err)
		}
		out = append(out, s)
	}
}

// ReadFile parses the results file at path.
func ReadFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func parseRow(row []string) (Sample, error) {
	var s Sample
	var err error
	if s.Time, err = time.Parse(time.RFC3339Nano, row[0]); err != nil {
		return s, err
	}
	s.Run = row[1]
	if s.Step, err = strconv.Atoi(row[2]); err != nil {
		return s, err
	}
	var f [4]float64
	for i, col := range []int{3, 4, 5, 7} {
		if f[i], err = strconv.ParseFloat(row[col], 64); err != nil {
			return s, err
		}
	}
	s.Setpoint = common.Celsius(f[0])
	s.Chamber = common.Celsius(f[1])
	s.Humidity = common.Percent(f[2])
	s.Resistance = common.Ohms(f[3])
	if s.Channel, err = strconv.Atoi(row[6]); err != nil {
		return s, err
	}
	if row[8] != "" {
		v, err := strconv.ParseFloat(row[8], 64)
		if err != nil {
			return s, err
		}
		s.Sensor = common.Celsius(v)
		s.SensorValid = true
	}
	return s, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
