// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cts

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/GermanBionicSystems/pt100/common"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// Channel is an analog channel of the ITC controller.
type Channel int

const (
	// Temperature is the chamber air temperature in °C.
	Temperature Channel = 1
	// Humidity is the chamber relative humidity in %RH.
	Humidity Channel = 2

	// Setpoints can only be written to the first six channels.
	maxWritableChannel Channel = 6
	maxChannel         Channel = 9

	// "A1 +23.4 025.0", fields formatted as %05.1f.
	analogResponseLen = 14
)

const (
	// MinimumTemperature is the lowest setpoint accepted by default.
	MinimumTemperature physic.Temperature = physic.ZeroCelsius - 75*physic.Kelvin
	// MaximumTemperature is the highest setpoint accepted by default.
	MaximumTemperature physic.Temperature = physic.ZeroCelsius + 180*physic.Kelvin

	resolution physic.Temperature = 100 * physic.MilliKelvin
)

var (
	// ErrRejected is returned when the controller doesn't acknowledge a
	// command.
	ErrRejected = errors.New("cts: command rejected")
	// ErrRange is returned for setpoints outside of the configured limits.
	ErrRange = errors.New("cts: setpoint out of range")

	analogRe = regexp.MustCompile(`^A(\d)\s+([+-]?\d+\.\d)\s+([+-]?\d+\.\d)$`)
)

func wrap(err error) error {
	return fmt.Errorf("cts: %w", err)
}

// Opts represents configurable options for the chamber.
type Opts struct {
	// MinTemperature and MaxTemperature bound temperature setpoints.
	MinTemperature physic.Temperature
	MaxTemperature physic.Temperature
}

// DefaultOpts is used when nil is passed to New.
var DefaultOpts = Opts{
	MinTemperature: MinimumTemperature,
	MaxTemperature: MaximumTemperature,
}

// Dev is a CTS climate chamber.
type Dev struct {
	c        conn.Conn
	opts     Opts
	mu       sync.Mutex
	target   physic.Temperature
	running  bool
	shutdown chan struct{}
}

// New returns a chamber talking over c. No I/O is done.
func New(c conn.Conn, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Dev{c: c, opts: *opts}
}

func (d *Dev) String() string {
	return fmt.Sprintf("cts: %s", d.c)
}

// Start switches the chamber on.
func (d *Dev) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("s1 1", "s1"); err != nil {
		return err
	}
	d.running = true
	return nil
}

// Stop switches the chamber off.
func (d *Dev) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command("s1 0", "s1"); err != nil {
		return err
	}
	d.running = false
	return nil
}

// Running reports whether the chamber was switched on through this Dev.
func (d *Dev) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// AnalogChannel returns the actual and target values of an analog channel.
func (d *Dev) AnalogChannel(ch Channel) (actual, target float64, err error) {
	if ch < 1 || ch > maxChannel {
		return 0, 0, wrap(fmt.Errorf("invalid analog channel %d", ch))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.analogChannel(ch)
}

func (d *Dev) analogChannel(ch Channel) (float64, float64, error) {
	r := make([]byte, analogResponseLen)
	if err := d.c.Tx([]byte("A"+strconv.Itoa(int(ch))), r); err != nil {
		return 0, 0, wrap(err)
	}
	m := analogRe.FindStringSubmatch(string(r))
	if m == nil || m[1] != strconv.Itoa(int(ch)) {
		return 0, 0, fmt.Errorf("%w: unexpected response %q", ErrRejected, r)
	}
	actual, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, wrap(err)
	}
	target, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, 0, wrap(err)
	}
	return actual, target, nil
}

// SetAnalogChannel writes the target value of an analog channel.
func (d *Dev) SetAnalogChannel(ch Channel, value float64) error {
	if ch < 1 || ch > maxWritableChannel {
		return wrap(fmt.Errorf("analog channel %d is not writable", ch))
	}
	if value <= -999.95 || value >= 999.95 {
		return fmt.Errorf("%w: %.1f", ErrRange, value)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setAnalogChannel(ch, value)
}

func (d *Dev) setAnalogChannel(ch Channel, value float64) error {
	n := strconv.Itoa(int(ch))
	return d.command(fmt.Sprintf("a%s %05.1f", n, value), "a"+n)
}

// SetTemperature commands a new temperature setpoint.
func (d *Dev) SetTemperature(t physic.Temperature) error {
	if t < d.opts.MinTemperature || t > d.opts.MaxTemperature {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrRange, t, d.opts.MinTemperature, d.opts.MaxTemperature)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.setAnalogChannel(Temperature, t.Celsius()); err != nil {
		return err
	}
	d.target = t
	return nil
}

// Target returns the last setpoint commanded through SetTemperature.
func (d *Dev) Target() physic.Temperature {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

// Sense reads the chamber temperature and humidity. Implements
// physic.SenseEnv.
func (d *Dev) Sense(env *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, _, err := d.analogChannel(Temperature)
	if err != nil {
		return err
	}
	h, _, err := d.analogChannel(Humidity)
	if err != nil {
		return err
	}
	env.Temperature = common.Celsius(t)
	env.Humidity = common.Percent(h)
	return nil
}

// SenseContinuous reads the chamber at interval until Halt is called.
// Implements physic.SenseEnv.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < time.Second {
		return nil, wrap(errors.New("invalid duration, minimum 1s"))
	}
	d.mu.Lock()
	if d.shutdown != nil {
		d.mu.Unlock()
		return nil, wrap(errors.New("continuous sensing already running"))
	}
	d.shutdown = make(chan struct{})
	shutdown := d.shutdown
	d.mu.Unlock()

	ch := make(chan physic.Env)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				e := physic.Env{}
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case ch <- e:
				case <-shutdown:
					return
				}
			}
		}
	}()
	return ch, nil
}

// Precision implements physic.SenseEnv. The controller reports one decimal.
func (d *Dev) Precision(env *physic.Env) {
	env.Temperature = resolution
	env.Pressure = 0
	env.Humidity = physic.PercentRH / 10
}

// Halt stops continuous sensing and switches the chamber off. Implements
// conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	if d.shutdown != nil {
		close(d.shutdown)
		d.shutdown = nil
	}
	d.mu.Unlock()
	return d.Stop()
}

// command sends cmd and expects the controller to echo ack.
func (d *Dev) command(cmd, ack string) error {
	r := make([]byte, len(ack))
	if err := d.c.Tx([]byte(cmd), r); err != nil {
		return wrap(err)
	}
	if string(r) != ack {
		return fmt.Errorf("%w: %q answered %q", ErrRejected, cmd, r)
	}
	return nil
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
