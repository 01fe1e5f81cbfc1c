// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package statusbar implements a one line display.Drawer on the terminal
// using ANSI color codes, showing one block per channel followed by the
// state of the run.
//
// A block is green while the temperature is within tolerance of the
// setpoint, blue when below and red when above; the further away, the
// brighter.
package statusbar

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/GermanBionicSystems/pt100/acquire"
	"github.com/GermanBionicSystems/pt100/common"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
)

// Opts represents the options available for this display.
type Opts struct {
	// Channels is the number of blocks.
	Channels int
	Palette  *ansi256.Palette
	// W defaults to stdout.
	W io.Writer

	_ struct{}
}

// Dev is a status line on the console.
type Dev struct {
	w       io.Writer
	palette ansi256.Palette

	blocks []color.NRGBA
	text   string
}

// New returns a Dev that displays at the console.
func New(opts *Opts) (*Dev, error) {
	if opts.Channels <= 0 {
		return nil, errors.New("statusbar: need at least one channel")
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	return &Dev{w: w, palette: *p, blocks: make([]color.NRGBA, opts.Channels)}, nil
}

func (d *Dev) String() string {
	return "StatusBar"
}

// Halt implements conn.Resource.
//
// It ends the line so the next log line is not corrupted.
func (d *Dev) Halt() error {
	_, err := io.WriteString(d.w, "\n\033[0m")
	return err
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer. Each channel is one pixel of a single
// row.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, len(d.blocks), 1)
}

// Draw implements display.Drawer. Transparency is ignored.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	for x := r.Min.X; x < r.Max.X; x++ {
		c := color.NRGBAModel.Convert(src.At(sp.X+x-r.Min.X, sp.Y)).(color.NRGBA)
		c.A = 0xff
		d.blocks[x] = c
	}
	return d.show()
}

// Observe implements acquire.Observer.
//
// While dwelling each block shows its channel's sensor temperature, otherwise
// every block shows the chamber temperature.
func (d *Dev) Observe(s acquire.Status) {
	img := image.NewNRGBA(d.Bounds())
	fill := Shade(s.Deviation(), s.Tolerance)
	for x := range d.blocks {
		img.SetNRGBA(x, 0, fill)
	}
	for i, r := range s.Readings {
		if i >= len(d.blocks) {
			break
		}
		c := Gray
		if r.Valid {
			c = Shade(r.Sensor-s.Setpoint, s.Tolerance)
		}
		img.SetNRGBA(i, 0, c)
	}
	d.text = describe(&s)
	_ = d.Draw(d.Bounds(), img, image.Point{})
}

// Gray is shown for a channel without a valid reading.
var Gray = color.NRGBA{0x60, 0x60, 0x60, 0xff}

// Shade returns the color of a deviation from the setpoint.
func Shade(dev, tolerance physic.Temperature) color.NRGBA {
	a := common.Abs(dev)
	if a <= tolerance {
		return color.NRGBA{0, 0xc0, 0, 0xff}
	}
	f := 1.0
	if tolerance > 0 {
		// Full brightness at ten times the tolerance.
		f = float64(a-tolerance) / float64(9*tolerance)
		if f > 1 {
			f = 1
		}
	}
	v := byte(0x60 + f*0x9f)
	if dev < 0 {
		return color.NRGBA{0, 0, v, 0xff}
	}
	return color.NRGBA{v, 0, 0, 0xff}
}

func describe(s *acquire.Status) string {
	switch s.Phase {
	case acquire.Starting:
		return fmt.Sprintf("starting: chamber %s %s", s.Env.Temperature, s.Env.Humidity)
	case acquire.Finished:
		return "finished"
	}
	return fmt.Sprintf("step %d/%d %s: chamber %s → %s ±%s %s",
		s.Step+1, s.Steps, s.Phase, s.Env.Temperature, s.Setpoint, s.Tolerance, s.Env.Humidity)
}

// show rewrites the line in place: blocks, then the text, then clears what
// a longer previous line left.
func (d *Dev) show() error {
	var b strings.Builder
	b.WriteString("\r\033[0m")
	for _, c := range d.blocks {
		b.WriteString(d.palette.Block(c))
	}
	b.WriteString("\033[0m ")
	b.WriteString(d.text)
	b.WriteString("\033[K")
	_, err := io.WriteString(d.w, b.String())
	return err
}

var _ display.Drawer = &Dev{}
var _ acquire.Observer = &Dev{}
var _ fmt.Stringer = &Dev{}
