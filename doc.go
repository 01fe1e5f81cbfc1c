// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pt100 is a container for the packages characterizing platinum
// resistance thermometers in a climate chamber.
//
// visa opens the instrument connections, cts and k2700 drive the chamber and
// the multimeter, acquire runs the temperature program and record stores the
// samples. The pt100 command in cmd/pt100 ties them together.
package pt100
