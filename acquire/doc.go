// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package acquire runs a PT100 characterization: it walks the climate chamber
// through a list of temperature ramps, waits at each setpoint until the
// chamber is stable, and records the resistance of every configured channel
// while the chamber dwells there.
//
// The loop is synchronous. The only suspension is the poll interval, and it
// ends early when the run context is canceled. Whatever the outcome, Run
// switches the chamber off, opens the switch card relays and closes the
// instrument connections before returning.
package acquire
