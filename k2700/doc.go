// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package k2700 reads resistances from a Keithley 2700 multimeter through a
// multiplexer switch card (7700 or compatible).
//
// Channels are addressed the way the instrument does it, <slot><nn>: 101 is
// the first channel of the card in slot 1. In four-wire mode the card pairs
// channel nn with nn+10 for the sense leads.
//
// The driver needs a scpi.Port, usually a *visa.Conn.
package k2700
