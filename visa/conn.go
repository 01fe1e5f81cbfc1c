// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package visa

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3"
)

var (
	// ErrTimeout is returned when the instrument doesn't answer in time.
	ErrTimeout = errors.New("visa: timeout")
	// ErrClosed is returned on use of a closed connection.
	ErrClosed = errors.New("visa: connection closed")
)

// Opts are the connection options. The zero value of each field selects its
// default.
type Opts struct {
	// Timeout bounds dialing and every single exchange. Default 8s.
	Timeout time.Duration
	// ReadTermination ends a response line. Default '\n'.
	ReadTermination byte
	// WriteTermination is appended to each command. Default "\n".
	WriteTermination string
	// BaudRate of serial resources. Default 9600.
	BaudRate int
}

// DefaultOpts is used when nil is passed to Open.
var DefaultOpts = Opts{
	Timeout:          8 * time.Second,
	ReadTermination:  '\n',
	WriteTermination: "\n",
	BaudRate:         9600,
}

func (o *Opts) withDefaults() Opts {
	r := DefaultOpts
	if o == nil {
		return r
	}
	if o.Timeout > 0 {
		r.Timeout = o.Timeout
	}
	if o.ReadTermination != 0 {
		r.ReadTermination = o.ReadTermination
	}
	if o.WriteTermination != "" {
		r.WriteTermination = o.WriteTermination
	}
	if o.BaudRate > 0 {
		r.BaudRate = o.BaudRate
	}
	return r
}

// Conn is an open instrument connection. It is safe for concurrent use; each
// exchange holds the connection for its full duration.
type Conn struct {
	mu       sync.Mutex
	name     string
	rw       io.ReadWriteCloser
	br       *bufio.Reader
	deadline func(time.Time) error
	opts     Opts
	closed   bool
}

// Open connects to the resource.
func Open(r Resource, opts *Opts) (*Conn, error) {
	o := opts.withDefaults()
	switch r.Kind {
	case TCPIPSocket:
		d := net.Dialer{Timeout: o.Timeout}
		c, err := d.Dial("tcp", r.Address())
		if err != nil {
			return nil, fmt.Errorf("visa: %s: %w", r, err)
		}
		return newConn(r.String(), c, c.SetDeadline, o), nil
	case Serial:
		mode := &serial.Mode{
			BaudRate: o.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
		p, err := serial.Open(r.SerialPort(), mode)
		if err != nil {
			return nil, fmt.Errorf("visa: %s: %w", r, err)
		}
		if err := p.SetReadTimeout(o.Timeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("visa: %s: %w", r, err)
		}
		return newConn(r.String(), &serialConn{p: p}, nil, o), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, r)
}

// OpenName parses name and connects to it.
func OpenName(name string, opts *Opts) (*Conn, error) {
	r, err := Parse(name)
	if err != nil {
		return nil, err
	}
	return Open(r, opts)
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

func newConn(name string, rw io.ReadWriteCloser, deadline func(time.Time) error, o Opts) *Conn {
	return &Conn{name: name, rw: rw, br: bufio.NewReader(rw), deadline: deadline, opts: o}
}

func (c *Conn) String() string {
	return c.name
}

// Duplex implements conn.Conn.
func (c *Conn) Duplex() conn.Duplex {
	return conn.Half
}

// Tx implements conn.Conn. It writes w as is and reads exactly len(r) bytes.
func (c *Conn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.arm(); err != nil {
		return err
	}
	if len(w) != 0 {
		if _, err := c.rw.Write(w); err != nil {
			return c.wrap(err)
		}
	}
	if len(r) != 0 {
		if _, err := io.ReadFull(c.br, r); err != nil {
			return c.wrap(err)
		}
	}
	return nil
}

// Write sends msg followed by the write termination.
func (c *Conn) Write(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.arm(); err != nil {
		return err
	}
	return c.write(msg)
}

// Query sends msg and returns the response line without its termination.
func (c *Conn) Query(msg string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.arm(); err != nil {
		return "", err
	}
	if err := c.write(msg); err != nil {
		return "", err
	}
	line, err := c.br.ReadString(c.opts.ReadTermination)
	if err != nil {
		return "", c.wrap(err)
	}
	return strings.TrimRight(line, "\r\n"+string(c.opts.ReadTermination)), nil
}

// Close releases the connection. Calling it more than once is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.rw.Close(); err != nil {
		return fmt.Errorf("visa: %s: %w", c.name, err)
	}
	return nil
}

func (c *Conn) arm() error {
	if c.closed {
		return ErrClosed
	}
	if c.deadline != nil {
		if err := c.deadline(time.Now().Add(c.opts.Timeout)); err != nil {
			return c.wrap(err)
		}
	}
	return nil
}

func (c *Conn) write(msg string) error {
	if _, err := io.WriteString(c.rw, msg+c.opts.WriteTermination); err != nil {
		return c.wrap(err)
	}
	return nil
}

func (c *Conn) wrap(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w after %s on %s", ErrTimeout, c.opts.Timeout, c.name)
	}
	return fmt.Errorf("visa: %s: %w", c.name, err)
}

// serialConn turns the (0, nil) result of a timed out serial read into an
// error.
type serialConn struct {
	p serial.Port
}

func (s *serialConn) Read(b []byte) (int, error) {
	n, err := s.p.Read(b)
	if n == 0 && err == nil && len(b) != 0 {
		return 0, ErrTimeout
	}
	return n, err
}

func (s *serialConn) Write(b []byte) (int, error) {
	return s.p.Write(b)
}

func (s *serialConn) Close() error {
	return s.p.Close()
}

var _ conn.Conn = &Conn{}
