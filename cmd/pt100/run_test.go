// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GermanBionicSystems/pt100/record"
	"github.com/GermanBionicSystems/pt100/scpi"
	"periph.io/x/conn/v3/physic"
)

func TestRunCmd(t *testing.T) {
	chamber := listenChamber(t)
	meter := listenMeter(t, `0,"No error"`)
	cfg := writeConfig(t, chamber, meter)
	out := filepath.Join(t.TempDir(), "run.csv")

	if err := runCmd([]string{"-config", cfg, "-out", out}); err != nil {
		t.Fatal(err)
	}
	chamber.waitClosed(t)
	meter.waitClosed(t)

	samples, err := record.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	for i, s := range samples {
		if want := 101 + i; s.Channel != want {
			t.Errorf("sample %d: channel %d, want %d", i, s.Channel, want)
		}
		if d := s.Resistance - 109735*physic.MilliOhm; d < -physic.MilliOhm || d > physic.MilliOhm {
			t.Errorf("sample %d: resistance %s", i, s.Resistance)
		}
		if s.Step != 0 {
			t.Errorf("sample %d: step %d", i, s.Step)
		}
	}
	if !chamber.saw("s1 1") || !chamber.saw("a1 025.0") || !chamber.saw("s1 0") {
		t.Errorf("chamber commands %q", chamber.commands())
	}
	if !meter.saw("ROUT:CLOS (@102)") || !meter.saw("ROUT:OPEN:ALL") {
		t.Errorf("meter commands %q", meter.commands())
	}
}

func TestRunCmdMeterError(t *testing.T) {
	chamber := listenChamber(t)
	meter := listenMeter(t, `-221,"Settings conflict"`)
	cfg := writeConfig(t, chamber, meter)
	out := filepath.Join(t.TempDir(), "run.csv")

	err := runCmd([]string{"-config", cfg, "-out", out})
	var e *scpi.Error
	if !errors.As(err, &e) || e.Code != -221 {
		t.Fatalf("runCmd() = %v", err)
	}
	chamber.waitClosed(t)
	meter.waitClosed(t)
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("results file created: %v", err)
	}
}

func TestRunCmdExistingOutput(t *testing.T) {
	chamber := listenChamber(t)
	meter := listenMeter(t, `0,"No error"`)
	cfg := writeConfig(t, chamber, meter)
	out := filepath.Join(t.TempDir(), "run.csv")
	if err := os.WriteFile(out, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runCmd([]string{"-config", cfg, "-out", out}); !errors.Is(err, os.ErrExist) {
		t.Fatalf("runCmd() = %v", err)
	}
	chamber.waitClosed(t)
	meter.waitClosed(t)
	if b, err := os.ReadFile(out); err != nil || string(b) != "keep" {
		t.Errorf("results file overwritten: %q, %v", b, err)
	}
	if chamber.saw("s1 1") {
		t.Error("chamber started")
	}
}

//

// fakeInstrument serves a single connection on the loopback interface.
type fakeInstrument struct {
	ln     net.Listener
	closed chan struct{}
	mu     sync.Mutex
	cmds   []string
}

func listen(t *testing.T, serve func(f *fakeInstrument, r *bufio.Reader, w io.Writer) error) *fakeInstrument {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeInstrument{ln: ln, closed: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		defer close(f.closed)
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		if err := serve(f, bufio.NewReader(c), c); err != nil && !errors.Is(err, io.EOF) {
			t.Errorf("%s: %v", ln.Addr(), err)
		}
	}()
	return f
}

func (f *fakeInstrument) resource() string {
	return fmt.Sprintf("TCPIP::127.0.0.1::%d::SOCKET", f.ln.Addr().(*net.TCPAddr).Port)
}

func (f *fakeInstrument) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
}

func (f *fakeInstrument) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}

func (f *fakeInstrument) saw(cmd string) bool {
	for _, c := range f.commands() {
		if c == cmd {
			return true
		}
	}
	return false
}

// waitClosed waits for the client to close the connection.
func (f *fakeInstrument) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-f.closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("%s: connection left open", f.ln.Addr())
	}
}

// listenChamber answers the raw chamber commands. The chamber reaches any
// setpoint immediately.
func listenChamber(t *testing.T) *fakeInstrument {
	return listen(t, func(f *fakeInstrument, r *bufio.Reader, w io.Writer) error {
		temp := 25.0
		for {
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			var n int
			switch b {
			case 's':
				n = 3 // "1 1"
			case 'A':
				n = 1 // "1"
			case 'a':
				n = 7 // "1 025.0"
			default:
				return fmt.Errorf("unexpected byte %q", b)
			}
			rest := make([]byte, n)
			if _, err := io.ReadFull(r, rest); err != nil {
				return err
			}
			cmd := string(b) + string(rest)
			f.record(cmd)
			var resp string
			switch {
			case b == 's':
				resp = "s1"
			case cmd == "A1":
				resp = fmt.Sprintf("A1 %05.1f %05.1f", temp, temp)
			case cmd == "A2":
				resp = "A2 030.0 030.0"
			case strings.HasPrefix(cmd, "a1 "):
				v, err := strconv.ParseFloat(cmd[3:], 64)
				if err != nil {
					return err
				}
				temp = v
				resp = "a1"
			default:
				return fmt.Errorf("unexpected command %q", cmd)
			}
			if _, err := io.WriteString(w, resp); err != nil {
				return err
			}
		}
	})
}

// listenMeter answers the multimeter SCPI queries; errorQueue is the
// SYST:ERR? response.
func listenMeter(t *testing.T, errorQueue string) *fakeInstrument {
	return listen(t, func(f *fakeInstrument, r *bufio.Reader, w io.Writer) error {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return err
			}
			cmd := strings.TrimSpace(line)
			f.record(cmd)
			var resp string
			switch cmd {
			case "SYST:ERR?":
				resp = errorQueue
			case "*IDN?":
				resp = "KEITHLEY INSTRUMENTS INC.,MODEL 2700,1234567,B09  /A02"
			case "READ?":
				resp = "+1.09735E+02OHM4W,+12.345SECS,+00001RDNG#"
			default:
				if strings.HasSuffix(cmd, "?") {
					return fmt.Errorf("unexpected query %q", cmd)
				}
				continue
			}
			if _, err := io.WriteString(w, resp+"\n"); err != nil {
				return err
			}
		}
	})
}

func writeConfig(t *testing.T, chamber, meter *fakeInstrument) string {
	t.Setenv("PT100_CTS", chamber.resource())
	t.Setenv("PT100_MULTI", meter.resource())
	p := filepath.Join(t.TempDir(), "bench.yaml")
	cfg := `timeout: 2s
ramps:
  - end: 25
    interval: 0
channels: [101, 102]
poll-interval: 1s
log-level: ERROR
`
	if err := os.WriteFile(p, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
