// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scpitest is meant to be used to test drivers over a fake scpi.Port.
//
// It mirrors periph.io/x/conn/v3/conntest for line oriented protocols.
package scpitest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/pt100/scpi"
)

// IO registers one command and its response. R is empty for commands sent
// with Write.
type IO struct {
	W string
	R string
}

// Record implements scpi.Port that records everything written to it.
//
// This can then be used to feed to Playback to do "replay" based unit tests.
type Record struct {
	sync.Mutex
	Port scpi.Port // Port can be nil if only writes are being recorded.
	Ops  []IO
}

func (r *Record) String() string {
	return "record"
}

// Write implements scpi.Port.
func (r *Record) Write(cmd string) error {
	r.Lock()
	defer r.Unlock()
	if r.Port != nil {
		if err := r.Port.Write(cmd); err != nil {
			return err
		}
	}
	r.Ops = append(r.Ops, IO{W: cmd})
	return nil
}

// Query implements scpi.Port.
func (r *Record) Query(cmd string) (string, error) {
	r.Lock()
	defer r.Unlock()
	if r.Port == nil {
		return "", errors.New("scpitest: query on a Record without Port")
	}
	resp, err := r.Port.Query(cmd)
	if err != nil {
		return "", err
	}
	r.Ops = append(r.Ops, IO{W: cmd, R: resp})
	return resp, nil
}

// Playback implements scpi.Port and plays back a recorded I/O flow.
//
// While "replay" type of unit tests are of limited value, they still present
// an easy way to do basic code coverage.
type Playback struct {
	sync.Mutex
	Ops []IO
	// Count is the number of operations done so far.
	Count int
	// DontPanic makes a mismatch return an error instead of panicking.
	DontPanic bool
}

func (p *Playback) String() string {
	return "playback"
}

// Write implements scpi.Port.
func (p *Playback) Write(cmd string) error {
	p.Lock()
	defer p.Unlock()
	op, err := p.next(cmd)
	if err != nil {
		return err
	}
	if op.R != "" {
		return p.fail("Write(%q) but a query returning %q was expected", cmd, op.R)
	}
	return nil
}

// Query implements scpi.Port.
func (p *Playback) Query(cmd string) (string, error) {
	p.Lock()
	defer p.Unlock()
	op, err := p.next(cmd)
	if err != nil {
		return "", err
	}
	return op.R, nil
}

// Close verifies that all the expected operations were done.
func (p *Playback) Close() error {
	p.Lock()
	defer p.Unlock()
	if len(p.Ops) != p.Count {
		return p.fail("expected playback to be empty: I/O count %d; expected %d", p.Count, len(p.Ops))
	}
	return nil
}

func (p *Playback) next(cmd string) (IO, error) {
	if p.Count >= len(p.Ops) {
		return IO{}, p.fail("unexpected command %q after %d operations", cmd, p.Count)
	}
	op := p.Ops[p.Count]
	if op.W != cmd {
		return IO{}, p.fail("unexpected command #%d: %q, expected %q", p.Count, cmd, op.W)
	}
	p.Count++
	return op, nil
}

func (p *Playback) fail(format string, a ...interface{}) error {
	err := fmt.Errorf("scpitest: "+format, a...)
	if !p.DontPanic {
		panic(err)
	}
	return err
}

var _ scpi.Port = &Record{}
var _ scpi.Port = &Playback{}
