// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package report draws the resistance versus temperature chart of a run,
// with the curve fitted for each channel.
package report

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/GermanBionicSystems/pt100/record"
	"github.com/GermanBionicSystems/pt100/rtd"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("report: no samples")

// Opts represents the options of a chart.
type Opts struct {
	Width, Height int
	Title         string
	// FontSize is in points.
	FontSize float64
}

// DefaultOpts is a chart readable on a laptop screen.
var DefaultOpts = Opts{
	Width:    1280,
	Height:   800,
	Title:    "PT100 characterization",
	FontSize: 14,
}

// Palette is the color of each channel, in channel order.
var Palette = []color.NRGBA{
	{0x1f, 0x77, 0xb4, 0xff},
	{0xff, 0x7f, 0x0e, 0xff},
	{0x2c, 0xa0, 0x2c, 0xff},
	{0xd6, 0x27, 0x28, 0xff},
	{0x94, 0x67, 0xbd, 0xff},
	{0x8c, 0x56, 0x4b, 0xff},
	{0xe3, 0x77, 0xc2, 0xff},
	{0x7f, 0x7f, 0x7f, 0xff},
}

const (
	marginLeft   = 100
	marginRight  = 30
	marginTop    = 60
	marginBottom = 70
)

// Chart is a rendered report.
type Chart struct {
	// Fits is the fit of each channel, sorted by channel.
	Fits []rtd.ChannelFit

	dc *gg.Context
}

// Render fits every channel found in samples and draws the chart.
func Render(samples []record.Sample, opts *Opts) (*Chart, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if len(samples) == 0 {
		return nil, ErrNoData
	}
	if opts.Width <= marginLeft+marginRight || opts.Height <= marginTop+marginBottom {
		return nil, fmt.Errorf("report: %dx%d is too small", opts.Width, opts.Height)
	}
	size := opts.FontSize
	if size <= 0 {
		size = DefaultOpts.FontSize
	}
	face, err := newFace(size)
	if err != nil {
		return nil, err
	}
	c := &Chart{Fits: rtd.FitChannels(samples), dc: gg.NewContext(opts.Width, opts.Height)}
	c.draw(opts.Title, face)
	return c, nil
}

// Image returns the chart.
func (c *Chart) Image() image.Image {
	return c.dc.Image()
}

// EncodePNG writes the chart as PNG to w.
func (c *Chart) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}

// SavePNG writes the chart as PNG to path.
func (c *Chart) SavePNG(path string) error {
	return c.dc.SavePNG(path)
}

func newFace(size float64) (font.Face, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// axes maps data coordinates to the plot area.
type axes struct {
	left, top, w, h        float64
	xMin, xMax, yMin, yMax float64
}

func (a *axes) x(v float64) float64 {
	return a.left + (v-a.xMin)/(a.xMax-a.xMin)*a.w
}

func (a *axes) y(v float64) float64 {
	return a.top + a.h - (v-a.yMin)/(a.yMax-a.yMin)*a.h
}

func newAxes(fits []rtd.ChannelFit, width, height int) *axes {
	a := &axes{
		left: marginLeft,
		top:  marginTop,
		w:    float64(width - marginLeft - marginRight),
		h:    float64(height - marginTop - marginBottom),
		xMin: math.Inf(1), xMax: math.Inf(-1),
		yMin: math.Inf(1), yMax: math.Inf(-1),
	}
	for _, f := range fits {
		for _, p := range f.Points {
			a.xMin = math.Min(a.xMin, p.Celsius)
			a.xMax = math.Max(a.xMax, p.Celsius)
			a.yMin = math.Min(a.yMin, p.Ohms)
			a.yMax = math.Max(a.yMax, p.Ohms)
		}
	}
	a.xMin, a.xMax = pad(a.xMin, a.xMax, 1)
	a.yMin, a.yMax = pad(a.yMin, a.yMax, 0.1)
	return a
}

// pad widens [lo, hi] by 5% on each side, or by min when it is empty.
func pad(lo, hi, min float64) (float64, float64) {
	d := (hi - lo) * 0.05
	if d < min/2 {
		d = min / 2
	}
	return lo - d, hi + d
}

func (c *Chart) draw(title string, face font.Face) {
	dc := c.dc
	a := newAxes(c.Fits, dc.Width(), dc.Height())
	dc.SetFontFace(face)
	lineH := 1.6 * dc.FontHeight()

	dc.SetColor(color.White)
	dc.Clear()

	// Grid and tick labels.
	sx := niceStep(a.xMax-a.xMin, 10)
	sy := niceStep(a.yMax-a.yMin, 8)
	dc.SetLineWidth(1)
	for v := math.Ceil(a.xMin/sx) * sx; v <= a.xMax; v += sx {
		dc.SetRGB(0.88, 0.88, 0.88)
		dc.DrawLine(a.x(v), a.top, a.x(v), a.top+a.h)
		dc.Stroke()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(formatTick(v, sx), a.x(v), a.top+a.h+8, 0.5, 1)
	}
	for v := math.Ceil(a.yMin/sy) * sy; v <= a.yMax; v += sy {
		dc.SetRGB(0.88, 0.88, 0.88)
		dc.DrawLine(a.left, a.y(v), a.left+a.w, a.y(v))
		dc.Stroke()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(formatTick(v, sy), a.left-8, a.y(v), 1, 0.5)
	}
	dc.SetRGB(0, 0, 0)
	dc.DrawRectangle(a.left, a.top, a.w, a.h)
	dc.Stroke()

	dc.DrawStringAnchored(title, float64(dc.Width())/2, marginTop/2, 0.5, 0.5)
	dc.DrawStringAnchored("Chamber temperature (°C)", a.left+a.w/2, float64(dc.Height())-marginBottom/4, 0.5, 0)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), marginLeft/4, a.top+a.h/2)
	dc.DrawStringAnchored("Resistance (Ω)", marginLeft/4, a.top+a.h/2, 0.5, 0.5)
	dc.Pop()

	// Points and fitted curves, clipped to the plot area.
	dc.DrawRectangle(a.left, a.top, a.w, a.h)
	dc.Clip()
	for i, f := range c.Fits {
		dc.SetColor(Palette[i%len(Palette)])
		for _, p := range f.Points {
			dc.DrawCircle(a.x(p.Celsius), a.y(p.Ohms), 3)
			dc.Fill()
		}
		if f.Err != nil {
			continue
		}
		const steps = 200
		for k := 0; k <= steps; k++ {
			t := a.xMin + float64(k)*(a.xMax-a.xMin)/steps
			dc.LineTo(a.x(t), a.y(f.Fit.Ohms(t)))
		}
		dc.SetLineWidth(1.5)
		dc.Stroke()
	}
	dc.ResetClip()

	// Legend.
	for i, f := range c.Fits {
		y := a.top + 12 + float64(i)*lineH
		dc.SetColor(Palette[i%len(Palette)])
		dc.DrawRectangle(a.left+12, y, 12, 12)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(legend(&f), a.left+32, y+6, 0, 0.5)
	}
}

func legend(f *rtd.ChannelFit) string {
	if f.Err != nil {
		return fmt.Sprintf("%d: %d points, no fit", f.Channel, len(f.Points))
	}
	s := fmt.Sprintf("%d: R0=%.4f Ω  α=%.7f  B=%.4g  rms=%.4f Ω  n=%d",
		f.Channel, f.Fit.R0, f.Fit.Alpha(), f.Fit.B, f.Fit.RMS, f.Fit.N)
	if f.Fit.Linear {
		s += " (linear)"
	}
	return s
}

// niceStep returns a 1, 2 or 5 multiple of a power of ten that divides span
// in about n intervals.
func niceStep(span float64, n int) float64 {
	raw := span / float64(n)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch r := raw / mag; {
	case r < 1.5:
		return mag
	case r < 3.5:
		return 2 * mag
	case r < 7.5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

func formatTick(v, step float64) string {
	d := int(-math.Floor(math.Log10(step)))
	if d < 0 {
		d = 0
	}
	if math.Abs(v) < step/1e6 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', d, 64)
}
