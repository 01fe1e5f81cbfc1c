// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the bench configuration.
//
// Settings come from a YAML file, overridden by PT100_* environment
// variables (e.g. PT100_POLL_INTERVAL=5s). Without either, both instruments
// are expected on local LAN to serial adapters.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/GermanBionicSystems/pt100/abort"
	"github.com/GermanBionicSystems/pt100/acquire"
	"github.com/GermanBionicSystems/pt100/common"
	"github.com/GermanBionicSystems/pt100/cts"
	"github.com/GermanBionicSystems/pt100/k2700"
	"github.com/GermanBionicSystems/pt100/rtd"
	"github.com/GermanBionicSystems/pt100/visa"
	"github.com/spf13/viper"
)

// ErrInvalid is returned for an unusable configuration.
var ErrInvalid = errors.New("config: invalid")

// Ramp is one temperature step.
type Ramp struct {
	// End is the chamber setpoint in °C.
	End float64 `mapstructure:"end"`
	// Interval is the dwell time once the chamber is stable, written with a
	// unit ("30m"). 0 takes a single set of readings.
	Interval time.Duration `mapstructure:"interval"`
}

// Config is the bench configuration.
type Config struct {
	// CTS is the chamber VISA resource.
	CTS string `mapstructure:"cts"`
	// Multi is the multimeter VISA resource.
	Multi    string        `mapstructure:"multi"`
	Timeout  time.Duration `mapstructure:"timeout"`
	BaudRate int           `mapstructure:"baud-rate"`

	Ramps    []Ramp `mapstructure:"ramps"`
	Channels []int  `mapstructure:"channels"`
	// Offset is the tolerance around the setpoint in K.
	Offset           float64       `mapstructure:"offset"`
	PollInterval     time.Duration `mapstructure:"poll-interval"`
	SettleTime       time.Duration `mapstructure:"settle-time"`
	StabilizeTimeout time.Duration `mapstructure:"stabilize-timeout"`
	KeepRunning      bool          `mapstructure:"keep-running"`
	// MinTemperature and MaxTemperature bound the setpoints in °C.
	MinTemperature float64 `mapstructure:"min-temperature"`
	MaxTemperature float64 `mapstructure:"max-temperature"`

	FourWire bool    `mapstructure:"four-wire"`
	NPLC     float64 `mapstructure:"nplc"`
	// R0 is the nominal sensor resistance at 0 °C, 100 or 1000.
	R0 float64 `mapstructure:"r0"`

	OutputDir string `mapstructure:"output-dir"`
	LogLevel  string `mapstructure:"log-level"`
	// AbortPin is the GPIO of the abort button, empty to disable.
	AbortPin        string `mapstructure:"abort-pin"`
	AbortActiveHigh bool   `mapstructure:"abort-active-high"`
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("cts", "TCPIP::127.0.0.1::1080::SOCKET")
	v.SetDefault("multi", "TCPIP::127.0.0.1::10001::SOCKET")
	v.SetDefault("timeout", "8s")
	v.SetDefault("baud-rate", 9600)
	v.SetDefault("ramps", []map[string]interface{}{{"end": 25.0, "interval": "1m"}})
	v.SetDefault("channels", []int{101})
	v.SetDefault("offset", 0.1)
	v.SetDefault("poll-interval", "10s")
	v.SetDefault("settle-time", "0s")
	v.SetDefault("stabilize-timeout", "0s")
	v.SetDefault("keep-running", false)
	v.SetDefault("min-temperature", -40.0)
	v.SetDefault("max-temperature", 120.0)
	v.SetDefault("four-wire", true)
	v.SetDefault("nplc", 1.0)
	v.SetDefault("r0", 100.0)
	v.SetDefault("output-dir", home)
	v.SetDefault("log-level", "INFO")
	v.SetDefault("abort-pin", "")
	v.SetDefault("abort-active-high", false)
}

// Load reads path, if not empty, and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PT100")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkDuration rejects negative values and non-zero values under a second,
// which come from unit-less YAML numbers read as nanoseconds.
func checkDuration(name string, d time.Duration) error {
	if d < 0 {
		return invalid("%s: negative duration %s", name, d)
	}
	if d > 0 && d < time.Second {
		return invalid("%s: %s is below 1s, write the unit, e.g. 5m", name, d)
	}
	return nil
}

func invalid(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, a...))
}

// Validate checks the configuration without touching the instruments.
func (c *Config) Validate() error {
	if c.CTS == "" {
		return invalid("missing chamber resource address")
	}
	if c.Multi == "" {
		return invalid("missing multimeter resource address")
	}
	for _, r := range []string{c.CTS, c.Multi} {
		if _, err := visa.Parse(r); err != nil {
			return invalid("%v", err)
		}
	}
	if c.MinTemperature >= c.MaxTemperature {
		return invalid("temperature range %g…%g °C", c.MinTemperature, c.MaxTemperature)
	}
	if len(c.Ramps) == 0 {
		return invalid("no ramp")
	}
	for i, r := range c.Ramps {
		if r.End < c.MinTemperature || r.End > c.MaxTemperature {
			return invalid("ramp %d: %g °C outside %g…%g °C", i+1, r.End, c.MinTemperature, c.MaxTemperature)
		}
		if err := checkDuration(fmt.Sprintf("ramp %d: interval", i+1), r.Interval); err != nil {
			return err
		}
	}
	if len(c.Channels) == 0 {
		return invalid("no channel")
	}
	for _, ch := range c.Channels {
		if !k2700.ValidChannel(ch) {
			return invalid("channel %d", ch)
		}
	}
	if c.Offset <= 0 {
		return invalid("offset must be positive")
	}
	if c.PollInterval <= 0 {
		return invalid("poll interval must be positive")
	}
	for _, d := range []struct {
		name string
		d    time.Duration
	}{{"poll-interval", c.PollInterval}, {"settle-time", c.SettleTime}, {"stabilize-timeout", c.StabilizeTimeout}} {
		if err := checkDuration(d.name, d.d); err != nil {
			return err
		}
	}
	if c.R0 != 100 && c.R0 != 1000 {
		return invalid("r0 must be 100 or 1000, got %g", c.R0)
	}
	return nil
}

// Plan returns the temperature program.
func (c *Config) Plan() []acquire.Ramp {
	out := make([]acquire.Ramp, 0, len(c.Ramps))
	for _, r := range c.Ramps {
		out = append(out, acquire.Ramp{Target: common.Celsius(r.End), Dwell: r.Interval})
	}
	return out
}

// Acquire returns the acquisition loop options.
func (c *Config) Acquire() acquire.Opts {
	curve := rtd.PT100
	if c.R0 == 1000 {
		curve = rtd.PT1000
	}
	return acquire.Opts{
		Channels:         append([]int(nil), c.Channels...),
		Tolerance:        common.Kelvins(c.Offset),
		PollInterval:     c.PollInterval,
		SettleTime:       c.SettleTime,
		StabilizeTimeout: c.StabilizeTimeout,
		KeepRunning:      c.KeepRunning,
		Curve:            curve,
	}
}

// Chamber returns the chamber options.
func (c *Config) Chamber() cts.Opts {
	return cts.Opts{
		MinTemperature: common.Celsius(c.MinTemperature),
		MaxTemperature: common.Celsius(c.MaxTemperature),
	}
}

// Meter returns the multimeter options.
func (c *Config) Meter() k2700.Opts {
	f := k2700.TwoWire
	if c.FourWire {
		f = k2700.FourWire
	}
	return k2700.Opts{Function: f, NPLC: c.NPLC}
}

// Conn returns the connection options shared by both instruments.
func (c *Config) Conn() visa.Opts {
	return visa.Opts{Timeout: c.Timeout, BaudRate: c.BaudRate}
}

// Abort returns the abort button options.
func (c *Config) Abort() abort.Opts {
	o := abort.DefaultOpts
	o.ActiveHigh = c.AbortActiveHigh
	return o
}
