// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package abort watches a push button on a GPIO pin so the operator can stop
// a run at the bench.
//
// The button is expected between the pin and ground, with the internal
// pull-up enabled, unless Opts.ActiveHigh is set.
package abort

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/pt100/logging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var log = logging.MustGetLogger("abort")

// ErrPressed is returned by Watch when the button was pressed.
var ErrPressed = errors.New("abort: button pressed")

// Opts represents the options of the button.
type Opts struct {
	// ActiveHigh is set for a button pulling the pin to VCC.
	ActiveHigh bool
	// Debounce is how long the pin must stay active after the edge.
	Debounce time.Duration
	// Poll bounds how long Watch takes to notice a canceled context.
	Poll time.Duration
}

// DefaultOpts is a button to ground.
var DefaultOpts = Opts{
	Debounce: 20 * time.Millisecond,
	Poll:     250 * time.Millisecond,
}

// Button is an abort button.
type Button struct {
	p      gpio.PinIn
	active gpio.Level
	opts   Opts
}

// Open initializes the host drivers and returns the button on the pin
// named name, e.g. "GPIO17".
func Open(name string, opts *Opts) (*Button, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("abort: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("abort: no pin %q", name)
	}
	return New(p, opts)
}

// New configures p as an input with the pull and edge detection matching
// the button.
func New(p gpio.PinIn, opts *Opts) (*Button, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	b := &Button{p: p, active: gpio.Low, opts: *opts}
	if b.opts.Poll <= 0 {
		b.opts.Poll = DefaultOpts.Poll
	}
	pull, edge := gpio.PullUp, gpio.FallingEdge
	if opts.ActiveHigh {
		b.active = gpio.High
		pull, edge = gpio.PullDown, gpio.RisingEdge
	}
	if err := p.In(pull, edge); err != nil {
		return nil, fmt.Errorf("abort: %s: %w", p, err)
	}
	return b, nil
}

func (b *Button) String() string {
	return fmt.Sprintf("abort{%s}", b.p)
}

// Halt implements conn.Resource.
//
// It disables edge detection.
func (b *Button) Halt() error {
	return b.p.In(gpio.PullNoChange, gpio.NoEdge)
}

// Watch blocks until the button is pressed or ctx is done. It returns
// ErrPressed or the context error.
func (b *Button) Watch(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !b.p.WaitForEdge(b.opts.Poll) || b.p.Read() != b.active {
			continue
		}
		if b.opts.Debounce > 0 {
			t := time.NewTimer(b.opts.Debounce)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			if b.p.Read() != b.active {
				log.Debugf("%s: bounce ignored", b.p)
				continue
			}
		}
		log.Warningf("%s: abort requested", b.p)
		return ErrPressed
	}
}

// CancelOnPress cancels the context returned when the button is pressed.
// The watch stops with the parent context or the returned cancel function.
func (b *Button) CancelOnPress(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		if errors.Is(b.Watch(ctx), ErrPressed) {
			cancel()
		}
	}()
	return ctx, cancel
}
