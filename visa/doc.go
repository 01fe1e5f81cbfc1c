// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package visa opens connections to bench instruments addressed by VISA style
// resource names.
//
// Two resource classes are supported:
//
//	TCPIP::127.0.0.1::1080::SOCKET   raw TCP socket (LAN to serial adapters)
//	ASRL/dev/ttyUSB0::INSTR          local serial port, 8N1
//
// The returned *Conn implements conn.Conn for fixed length binary or ASCII
// exchanges and scpi.Port for line terminated command/response protocols.
package visa
