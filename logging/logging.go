// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logging configures the leveled loggers used across the module.
//
// Every package gets its own module logger through MustGetLogger; Init
// installs the single shared backend.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	gologging "github.com/op/go-logging"
)

const (
	colorFormat = "%{color}%{time:15:04:05.000} %{level:.4s} [%{module}] ▶ %{message}%{color:reset}"
	plainFormat = "%{time:2006-01-02T15:04:05.000} %{level:.4s} [%{module}] %{message}"

	prefix = "pt100."
)

var (
	mu      sync.Mutex
	leveled gologging.LeveledBackend
)

// MustGetLogger returns the logger of a package.
func MustGetLogger(module string) *gologging.Logger {
	return gologging.MustGetLogger(prefix + module)
}

// Init logs to stdout at level, in color when stdout is a terminal.
func Init(level string) error {
	return InitWriter(colorable.NewColorableStdout(), level, isTerminal(os.Stdout))
}

// InitStderr logs to stderr at level, leaving stdout to a status line.
func InitStderr(level string) error {
	return InitWriter(colorable.NewColorableStderr(), level, isTerminal(os.Stderr))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// InitWriter logs to w at level.
func InitWriter(w io.Writer, level string, color bool) error {
	lvl, err := gologging.LogLevel(level)
	if err != nil {
		return fmt.Errorf("logging: invalid level %q", level)
	}
	f := plainFormat
	if color {
		f = colorFormat
	}
	b := gologging.NewBackendFormatter(gologging.NewLogBackend(w, "", 0), gologging.MustStringFormatter(f))
	mu.Lock()
	defer mu.Unlock()
	leveled = gologging.AddModuleLevel(b)
	leveled.SetLevel(lvl, "")
	gologging.SetBackend(leveled)
	return nil
}

// SetLevel changes the level of the installed backend.
func SetLevel(level string) error {
	lvl, err := gologging.LogLevel(level)
	if err != nil {
		return fmt.Errorf("logging: invalid level %q", level)
	}
	mu.Lock()
	defer mu.Unlock()
	if leveled == nil {
		return fmt.Errorf("logging: not initialized")
	}
	leveled.SetLevel(lvl, "")
	return nil
}
