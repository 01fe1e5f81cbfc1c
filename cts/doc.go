// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cts controls a CTS climate chamber through its ITC controller.
//
// The ITC speaks a terse ASCII protocol without terminators: every command
// has a response of known length. The driver only needs a conn.Conn, usually
// a *visa.Conn to a LAN to serial adapter.
//
// Analog channel 1 is the chamber temperature in °C, channel 2 the relative
// humidity in %RH. The cts.Dev type implements physic.SenseEnv.
package cts
