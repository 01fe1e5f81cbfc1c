// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rtd

import (
	"fmt"
	"sort"

	"github.com/GermanBionicSystems/pt100/common"
	"github.com/GermanBionicSystems/pt100/record"
)

// ChannelFit is the fit of one switch card channel.
type ChannelFit struct {
	Channel int
	Points  []Point
	Fit     Fit
	// Err is set when the channel could not be fitted, e.g. a run aborted
	// after the first ramp.
	Err error
}

// FitChannels groups samples by channel, using the chamber temperature as
// the reference, and fits each channel. The result is sorted by channel.
func FitChannels(samples []record.Sample) []ChannelFit {
	byChannel := map[int][]Point{}
	for _, s := range samples {
		byChannel[s.Channel] = append(byChannel[s.Channel], Point{
			Celsius: s.Chamber.Celsius(),
			Ohms:    common.ToOhms(s.Resistance),
		})
	}
	out := make([]ChannelFit, 0, len(byChannel))
	for ch, pts := range byChannel {
		f, err := FitPoints(pts)
		if err != nil {
			err = fmt.Errorf("channel %d: %w", ch, err)
		}
		out = append(out, ChannelFit{Channel: ch, Points: pts, Fit: f, Err: err})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}
