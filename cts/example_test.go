// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cts_test

import (
	"fmt"
	"log"

	"github.com/GermanBionicSystems/pt100/common"
	"github.com/GermanBionicSystems/pt100/cts"
	"github.com/GermanBionicSystems/pt100/visa"
	"periph.io/x/conn/v3/physic"
)

func Example() {
	// The ITC is usually reached through a LAN to serial adapter.
	c, err := visa.OpenName("TCPIP::127.0.0.1::1080::SOCKET", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	d := cts.New(c, nil) // nil for default options or &cts.DefaultOpts
	if err := d.Start(); err != nil {
		log.Fatal(err)
	}
	defer d.Halt()
	if err := d.SetTemperature(common.Celsius(25)); err != nil {
		log.Fatal(err)
	}

	e := physic.Env{}
	if err := d.Sense(&e); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%8s %9s\n", e.Temperature, e.Humidity)
}
