// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logic is the pure rule evaluator: (config, inputs, sensors,
// mode) -> (outputs, reason). It performs no I/O and is deterministic
// given its inputs, mirroring the closed-enum style of a device status
// type rather than a loose string or bitmask.
package logic

import (
	"strings"

	"github.com/tcmctl/cabinet/state"
)

// Thresholds is the climate configuration: three setpoints and one shared
// hysteresis band.
type Thresholds struct {
	HeaterC float64
	CoolerC float64
	FanC    float64
	H       float64
}

// Snapshot is the conditioned input state the evaluator reasons over:
// door_i -> OPEN, flood_j -> FLOOD.
type Snapshot map[string]bool

// AnyDoorOpen reports whether any door_* entry is true.
func (s Snapshot) AnyDoorOpen() bool {
	for name, v := range s {
		if strings.HasPrefix(name, "door_") && v {
			return true
		}
	}
	return false
}

// AnyFlood reports whether any flood_* entry is true.
func (s Snapshot) AnyFlood() bool {
	for name, v := range s {
		if strings.HasPrefix(name, "flood_") && v {
			return true
		}
	}
	return false
}

// Prior is the hysteresis memory the evaluator needs across calls: the
// previous heater/cooler/fan state, since the bands are defined in terms
// of "turn on" and "turn off" thresholds rather than a single setpoint.
type Prior struct {
	Heater bool
	Cooler bool
	Fans   bool
}

// Manual is the manual-mode override state.
type Manual struct {
	Enabled   bool
	Overrides state.Outputs
}

const (
	ReasonManual    = "MANUAL"
	ReasonDoorOpen  = "door_open"
	ReasonFlood     = "flood"
	ReasonOverheat  = "overheat"
)

// Evaluate runs the priority chain described for the logic evaluator and
// returns the resulting outputs plus a composed reason string (empty when
// no alarm condition applies).
func Evaluate(th Thresholds, in Snapshot, tempCab *float64, prior Prior, manual Manual) (state.Outputs, string) {
	if manual.Enabled {
		return manual.Overrides, ReasonManual
	}

	var reasons []string

	if in.AnyDoorOpen() {
		reasons = append(reasons, ReasonDoorOpen)
		if in.AnyFlood() {
			reasons = append(reasons, ReasonFlood)
		}
		return state.Outputs{Alarm: true, Light: true}, strings.Join(reasons, "+")
	}

	alarm := false
	if in.AnyFlood() {
		alarm = true
		reasons = append(reasons, ReasonFlood)
	}

	out := state.Outputs{Alarm: alarm}

	if tempCab == nil {
		return out, composeReason(reasons)
	}
	tc := *tempCab

	heater := prior.Heater
	switch {
	case tc <= th.HeaterC:
		heater = true
	case tc >= th.HeaterC+th.H:
		heater = false
	}

	cooler := prior.Cooler
	switch {
	case tc >= th.CoolerC:
		cooler = true
	case tc <= th.CoolerC-th.H:
		cooler = false
	}

	if heater {
		cooler = false
	}
	if cooler {
		heater = false
	}

	fans := prior.Fans
	switch {
	case tc >= th.FanC:
		fans = true
	case tc <= th.FanC-th.H:
		fans = false
	}

	if fans {
		cooler = false
		heater = false
		alarm = true
		reasons = append(reasons, ReasonOverheat)
	}

	out.Alarm = alarm
	out.Heater = heater
	out.Cooler = cooler
	out.Fan48V = fans
	out.Fan230V = fans

	return out, composeReason(reasons)
}

func composeReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return strings.Join(reasons, "+")
}
