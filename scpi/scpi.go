// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scpi contains the pieces shared by drivers of instruments that speak
// line oriented SCPI: the Port interface, the instrument error queue and the
// parser for Keithley style readings with unit suffixes.
package scpi

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Port is a line oriented command channel to an instrument.
type Port interface {
	// Write sends a command that produces no response.
	Write(cmd string) error
	// Query sends a command and returns its single line response.
	Query(cmd string) (string, error)
}

// Error is an entry of the instrument error queue.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("scpi: instrument error %d: %s", e.Code, e.Message)
}

// ErrMalformed is returned when a response can't be parsed.
var ErrMalformed = errors.New("scpi: malformed response")

// CheckError pops the oldest entry of the error queue. It returns nil when the
// queue is empty, an *Error otherwise.
func CheckError(p Port) error {
	resp, err := p.Query("SYST:ERR?")
	if err != nil {
		return err
	}
	return parseError(resp)
}

func parseError(resp string) error {
	code, msg, ok := strings.Cut(strings.TrimSpace(resp), ",")
	if !ok {
		return fmt.Errorf("%w: error queue %q", ErrMalformed, resp)
	}
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("%w: error queue %q", ErrMalformed, resp)
	}
	if n == 0 {
		return nil
	}
	return &Error{Code: n, Message: strings.Trim(strings.TrimSpace(msg), `"`)}
}

// Reading is one reading element set, keyed by unit suffix. For example
// "+1.0039E+02OHM4W,+12.345SECS,+00012RDNG#" yields
// {"OHM4W": 100.39, "SECS": 12.345, "RDNG": 12}.
type Reading map[string]float64

// Value returns the first element present among units.
func (r Reading) Value(units ...string) (float64, bool) {
	for _, u := range units {
		if v, ok := r[u]; ok {
			return v, true
		}
	}
	return 0, false
}

var elementRe = regexp.MustCompile(`^([+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?)([_A-Z0-9]*[_A-Z])$`)

// ParseReadings parses a comma separated list of readings where each reading
// is terminated by '#'. A trailing reading without '#' is accepted.
func ParseReadings(s string) ([]Reading, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty reading", ErrMalformed)
	}
	var out []Reading
	cur := Reading{}
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		end := strings.HasSuffix(field, "#")
		field = strings.TrimSuffix(field, "#")
		if field != "" {
			m := elementRe.FindStringSubmatch(field)
			if m == nil {
				return nil, fmt.Errorf("%w: reading element %q", ErrMalformed, field)
			}
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: reading element %q", ErrMalformed, field)
			}
			cur[m[2]] = v
		}
		if end && len(cur) != 0 {
			out = append(out, cur)
			cur = Reading{}
		}
	}
	if len(cur) != 0 {
		out = append(out, cur)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no reading in %q", ErrMalformed, s)
	}
	return out, nil
}
