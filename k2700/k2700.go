// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package k2700

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/GermanBionicSystems/pt100/common"
	"github.com/GermanBionicSystems/pt100/scpi"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// Function is the resistance measurement function.
type Function string

const (
	// FourWire measures with separate sense leads (FRES).
	FourWire Function = "FRES"
	// TwoWire measures through the source leads (RES).
	TwoWire Function = "RES"
)

// The instrument reports +9.9E37 on overflow, an open sensor for example.
const overflow = 9.9e37

var (
	// ErrNoResistance is returned when a reading carries no resistance
	// element, usually because the front panel changed the function.
	ErrNoResistance = errors.New("k2700: reading has no resistance")
	// ErrOverflow is returned for an overrange reading.
	ErrOverflow = errors.New("k2700: reading overflow")
	// ErrChannel is returned for channels the switch card doesn't have.
	ErrChannel = errors.New("k2700: invalid channel")
)

func wrap(err error) error {
	return fmt.Errorf("k2700: %w", err)
}

// Opts represents configurable options for the multimeter.
type Opts struct {
	Function Function
	// NPLC is the integration time in power line cycles, 0.01 to 60.
	NPLC float64
	// Range in ohms. 0 selects auto range.
	Range float64
}

// DefaultOpts is used when nil is passed to New.
var DefaultOpts = Opts{Function: FourWire, NPLC: 1}

// Dev is a Keithley 2700 with a switch card.
type Dev struct {
	p    scpi.Port
	opts Opts
	mu   sync.Mutex
	// Currently closed channel, 0 if none.
	closed int
}

// New resets and configures the multimeter for resistance measurements.
func New(p scpi.Port, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{p: p, opts: *opts}
	if d.opts.Function == "" {
		d.opts.Function = DefaultOpts.Function
	}
	if d.opts.Function != FourWire && d.opts.Function != TwoWire {
		return nil, wrap(fmt.Errorf("unsupported function %q", d.opts.Function))
	}
	if d.opts.NPLC == 0 {
		d.opts.NPLC = DefaultOpts.NPLC
	}
	if d.opts.NPLC < 0.01 || d.opts.NPLC > 60 {
		return nil, wrap(fmt.Errorf("NPLC %g out of range", d.opts.NPLC))
	}
	if err := d.configure(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) configure() error {
	f := string(d.opts.Function)
	cmds := []string{
		"*RST",
		"*CLS",
		"SENS:FUNC '" + f + "'",
		"SENS:" + f + ":NPLC " + strconv.FormatFloat(d.opts.NPLC, 'g', -1, 64),
	}
	if d.opts.Range == 0 {
		cmds = append(cmds, "SENS:"+f+":RANG:AUTO ON")
	} else {
		cmds = append(cmds, "SENS:"+f+":RANG "+strconv.FormatFloat(d.opts.Range, 'g', -1, 64))
	}
	cmds = append(cmds, "FORM:ELEM READ,TST,RNUM")
	for _, c := range cmds {
		if err := d.p.Write(c); err != nil {
			return wrap(err)
		}
	}
	if err := scpi.CheckError(d.p); err != nil {
		return wrap(err)
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("k2700: %s", d.p)
}

// Identify returns the *IDN? string.
func (d *Dev) Identify() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, err := d.p.Query("*IDN?")
	if err != nil {
		return "", wrap(err)
	}
	return id, nil
}

// ValidChannel reports whether ch is a switch card channel.
func ValidChannel(ch int) bool {
	slot, n := ch/100, ch%100
	return (slot == 1 || slot == 2) && n >= 1 && n <= 40
}

// Resistance closes channel ch and triggers one reading.
func (d *Dev) Resistance(ch int) (physic.ElectricResistance, error) {
	if !ValidChannel(ch) {
		return 0, fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed != ch {
		if err := d.p.Write(fmt.Sprintf("ROUT:CLOS (@%d)", ch)); err != nil {
			return 0, wrap(err)
		}
		d.closed = ch
	}
	resp, err := d.p.Query("READ?")
	if err != nil {
		return 0, wrap(err)
	}
	readings, err := scpi.ParseReadings(resp)
	if err != nil {
		return 0, wrap(err)
	}
	v, ok := readings[0].Value("OHM4W", "OHM")
	if !ok {
		return 0, fmt.Errorf("%w: channel %d answered %q", ErrNoResistance, ch, resp)
	}
	if v >= overflow {
		return 0, fmt.Errorf("%w: channel %d", ErrOverflow, ch)
	}
	return common.Ohms(v), nil
}

// Init arms the trigger model for one measurement cycle.
func (d *Dev) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.p.Write("INIT"); err != nil {
		return wrap(err)
	}
	return nil
}

// Fetch returns the latest available readings. It does not trigger a
// measurement.
func (d *Dev) Fetch() ([]scpi.Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	resp, err := d.p.Query("FETC?")
	if err != nil {
		return nil, wrap(err)
	}
	r, err := scpi.ParseReadings(resp)
	if err != nil {
		return nil, wrap(err)
	}
	return r, nil
}

// Halt opens all relays of the switch card. Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = 0
	if err := d.p.Write("ROUT:OPEN:ALL"); err != nil {
		return wrap(err)
	}
	return nil
}

var _ conn.Resource = &Dev{}
