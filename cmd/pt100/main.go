// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// pt100 characterizes PT100 sensors in a climate chamber.
//
// Usage:
//
//	pt100 run [-config pt100.yaml] [-out results.csv] [-report chart.png] [-status] [-v]
//	pt100 report -in results.csv [-out chart.png]
//	pt100 ports
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/pt100/abort"
	"github.com/GermanBionicSystems/pt100/acquire"
	"github.com/GermanBionicSystems/pt100/config"
	"github.com/GermanBionicSystems/pt100/cts"
	"github.com/GermanBionicSystems/pt100/k2700"
	"github.com/GermanBionicSystems/pt100/logging"
	"github.com/GermanBionicSystems/pt100/record"
	"github.com/GermanBionicSystems/pt100/report"
	"github.com/GermanBionicSystems/pt100/rtd"
	"github.com/GermanBionicSystems/pt100/statusbar"
	"github.com/GermanBionicSystems/pt100/visa"
)

var log = logging.MustGetLogger("main")

const usage = "pt100 run|report|ports [flags]; pt100 <command> -h for help"

var errUsage = errors.New("usage: " + usage)

func main() {
	if err := mainImpl(os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "pt100: %s.\n", err)
			os.Exit(1)
		}
	}
}

func mainImpl(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "run":
		return runCmd(args[1:])
	case "report":
		return reportCmd(args[1:], os.Stdout)
	case "ports":
		return portsCmd(os.Stdout)
	case "help", "-h", "-help", "--help":
		fmt.Println(usage)
		return nil
	}
	return fmt.Errorf("unknown command %q; %w", args[0], errUsage)
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "configuration file (YAML)")
	out := fs.String("out", "", "results file; defaults to pt100-<time>.csv in output-dir")
	png := fs.String("report", "", "write a chart of the run to this PNG file")
	status := fs.Bool("status", false, "show a status line with one block per channel")
	verbose := fs.Bool("v", false, "log debug messages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unexpected arguments %q", fs.Args())
	}

	c, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	level := c.LogLevel
	if *verbose {
		level = "DEBUG"
	}
	initLog := logging.Init
	if *status {
		initLog = logging.InitStderr
	}
	if err := initLog(level); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.AbortPin != "" {
		o := c.Abort()
		b, err := abort.Open(c.AbortPin, &o)
		if err != nil {
			return err
		}
		defer b.Halt()
		var cancel context.CancelFunc
		ctx, cancel = b.CancelOnPress(ctx)
		defer cancel()
		log.Infof("abort button on %s", c.AbortPin)
	}

	path := *out
	if path == "" {
		path = record.Filename(c.OutputDir, time.Now())
	}
	in, err := openInstruments(c)
	if err != nil {
		return err
	}
	w, err := record.Create(path)
	if err != nil {
		_ = in.Close()
		return err
	}
	opts := c.Acquire()
	r, err := acquire.New(in, c.Plan(), w, &opts)
	if err != nil {
		_ = in.Close()
		_ = w.Close()
		return err
	}
	if *status {
		bar, err := statusbar.New(&statusbar.Opts{Channels: len(opts.Channels)})
		if err != nil {
			_ = in.Close()
			_ = w.Close()
			return err
		}
		defer bar.Halt()
		r.SetObserver(bar)
	}
	log.Noticef("run %s: writing %s", r.ID(), path)

	sum, err := r.Run(ctx)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	log.Noticef("run %s: %d samples in %s, %d polls skipped", sum.Run, sum.Samples, sum.Finished.Sub(sum.Started).Round(time.Second), sum.Skipped)
	if *png != "" && sum.Samples != 0 {
		if rerr := writeReport(path, *png, io.Discard); rerr != nil {
			log.Errorf("report: %v", rerr)
		}
	}
	return err
}

// openInstruments connects both instruments. On error every connection
// opened so far is closed.
func openInstruments(c *config.Config) (*acquire.Instruments, error) {
	o := c.Conn()
	cc, err := visa.OpenName(c.CTS, &o)
	if err != nil {
		return nil, fmt.Errorf("chamber: %w", err)
	}
	mc, err := visa.OpenName(c.Multi, &o)
	if err != nil {
		_ = cc.Close()
		return nil, fmt.Errorf("multimeter: %w", err)
	}
	in := &acquire.Instruments{Closers: []io.Closer{cc, mc}}
	co := c.Chamber()
	in.Chamber = cts.New(cc, &co)
	mo := c.Meter()
	m, err := k2700.New(mc, &mo)
	if err != nil {
		_ = in.Close()
		return nil, err
	}
	in.Meter = m
	if id, err := m.Identify(); err == nil {
		log.Infof("multimeter: %s", id)
	}
	return in, nil
}

func reportCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	in := fs.String("in", "", "results file")
	out := fs.String("out", "", "PNG file; defaults to the results file with a .png extension")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}
	if err := logging.Init("WARNING"); err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = strings.TrimSuffix(*in, ".csv") + ".png"
	}
	return writeReport(*in, path, stdout)
}

// writeReport fits the channels of a results file, draws the chart to png
// and prints the coefficients to w.
func writeReport(results, png string, w io.Writer) error {
	samples, err := record.ReadFile(results)
	if err != nil {
		return err
	}
	chart, err := report.Render(samples, nil)
	if err != nil {
		return err
	}
	if err := chart.SavePNG(png); err != nil {
		return err
	}
	printFits(w, chart.Fits)
	log.Infof("chart written to %s", png)
	return nil
}

func printFits(w io.Writer, fits []rtd.ChannelFit) {
	fmt.Fprintf(w, "%-8s %10s %12s %14s %10s %5s\n", "channel", "R0 (Ω)", "alpha", "B", "rms (Ω)", "n")
	for _, f := range fits {
		if f.Err != nil {
			fmt.Fprintf(w, "%-8d %v\n", f.Channel, f.Err)
			continue
		}
		fmt.Fprintf(w, "%-8d %10.4f %12.8f %14.6g %10.5f %5d\n", f.Channel, f.Fit.R0, f.Fit.Alpha(), f.Fit.B, f.Fit.RMS, f.Fit.N)
	}
}

func portsCmd(w io.Writer) error {
	ports, err := visa.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial port found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintf(w, "ASRL%s::INSTR\n", p)
	}
	return nil
}
