// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package visa

import (
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
)

// Kind is the interface class of a resource.
type Kind int

const (
	// TCPIPSocket is a raw socket, "TCPIP::host::port::SOCKET".
	TCPIPSocket Kind = iota + 1
	// Serial is a local serial port, "ASRL<device>::INSTR".
	Serial
)

func (k Kind) String() string {
	switch k {
	case TCPIPSocket:
		return "TCPIP"
	case Serial:
		return "ASRL"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

var (
	// ErrUnsupported is returned for resource names this package can't open.
	ErrUnsupported = errors.New("visa: unsupported resource")
	// ErrEmpty is returned when no resource name was configured.
	ErrEmpty = errors.New("visa: empty resource name")
)

// Resource is a parsed resource name.
type Resource struct {
	Kind Kind
	// Host and Port are set for TCPIPSocket.
	Host string
	Port int
	// Device is the serial device path or name, e.g. /dev/ttyUSB0 or COM3,
	// or a port number starting at 1.
	Device string
}

// Parse parses a VISA resource name. Keywords are case insensitive.
func Parse(name string) (Resource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resource{}, ErrEmpty
	}
	parts := strings.Split(name, "::")
	head := strings.ToUpper(parts[0])
	switch {
	case strings.HasPrefix(head, "TCPIP"):
		if _, err := strconv.Atoi("0" + head[len("TCPIP"):]); err != nil {
			return Resource{}, fmt.Errorf("%w: %q", ErrUnsupported, name)
		}
		if len(parts) != 4 || !strings.EqualFold(parts[3], "SOCKET") {
			return Resource{}, fmt.Errorf("%w: %q: only raw SOCKET resources are supported", ErrUnsupported, name)
		}
		port, err := strconv.Atoi(parts[2])
		if err != nil || port < 1 || port > 65535 {
			return Resource{}, fmt.Errorf("visa: invalid port in %q", name)
		}
		if parts[1] == "" {
			return Resource{}, fmt.Errorf("visa: missing host in %q", name)
		}
		return Resource{Kind: TCPIPSocket, Host: parts[1], Port: port}, nil
	case strings.HasPrefix(head, "ASRL"):
		if len(parts) > 2 || (len(parts) == 2 && !strings.EqualFold(parts[1], "INSTR")) {
			return Resource{}, fmt.Errorf("%w: %q", ErrUnsupported, name)
		}
		dev := parts[0][len("ASRL"):]
		if dev == "" {
			return Resource{}, fmt.Errorf("visa: missing serial device in %q", name)
		}
		if n, err := strconv.Atoi(dev); err == nil && n < 1 {
			return Resource{}, fmt.Errorf("visa: serial port number must start at 1 in %q", name)
		}
		return Resource{Kind: Serial, Device: dev}, nil
	}
	return Resource{}, fmt.Errorf("%w: %q", ErrUnsupported, name)
}

// Address returns the dial address of a TCPIPSocket resource.
func (r Resource) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// String returns the canonical resource name.
func (r Resource) String() string {
	switch r.Kind {
	case TCPIPSocket:
		return fmt.Sprintf("TCPIP::%s::%d::SOCKET", r.Host, r.Port)
	case Serial:
		return "ASRL" + r.Device + "::INSTR"
	default:
		return "<invalid resource>"
	}
}

// SerialPort returns the name to open for a Serial resource. A port number
// n maps to COMn on Windows and /dev/ttyS<n-1> elsewhere.
func (r Resource) SerialPort() string {
	return serialPort(r.Device, runtime.GOOS)
}

func serialPort(dev, goos string) string {
	n, err := strconv.Atoi(dev)
	if err != nil || n < 1 {
		return dev
	}
	if goos == "windows" {
		return "COM" + dev
	}
	return "/dev/ttyS" + strconv.Itoa(n-1)
}
