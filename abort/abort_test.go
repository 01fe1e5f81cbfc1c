// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package abort

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newPin() *gpiotest.Pin {
	return &gpiotest.Pin{N: "GPIO17", Num: 17, L: gpio.High, EdgesChan: make(chan gpio.Level, 4)}
}

var fast = Opts{Poll: 5 * time.Millisecond}

func TestNew(t *testing.T) {
	b, err := New(newPin(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.active != gpio.Low || b.opts != DefaultOpts {
		t.Errorf("button = %+v", b)
	}
	if b, err = New(newPin(), &Opts{ActiveHigh: true}); err != nil {
		t.Fatal(err)
	}
	if b.active != gpio.High || b.opts.Poll != DefaultOpts.Poll {
		t.Errorf("button = %+v", b)
	}
	// Edge detection needs an edge channel.
	if _, err := New(&gpiotest.Pin{N: "GPIO4"}, nil); err == nil {
		t.Error("New() succeeded on a pin without edge detection")
	}
}

func TestWatchPressed(t *testing.T) {
	p := newPin()
	b, err := New(p, &fast)
	if err != nil {
		t.Fatal(err)
	}
	p.EdgesChan <- gpio.Low
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Watch(ctx); !errors.Is(err, ErrPressed) {
		t.Fatalf("Watch() = %v, want %v", err, ErrPressed)
	}
}

func TestWatchIgnoresRelease(t *testing.T) {
	p := newPin()
	b, err := New(p, &fast)
	if err != nil {
		t.Fatal(err)
	}
	p.EdgesChan <- gpio.High
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Watch(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Watch() = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestCancelOnPress(t *testing.T) {
	p := newPin()
	b, err := New(p, &Opts{Poll: 5 * time.Millisecond, Debounce: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := b.CancelOnPress(context.Background())
	defer cancel()
	p.EdgesChan <- gpio.Low
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not canceled")
	}
	if err := b.Halt(); err != nil {
		t.Fatal(err)
	}
}
