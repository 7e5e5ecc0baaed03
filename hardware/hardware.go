// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hardware maps logical channel labels (K1..K8 relays, T1..T8
// transistors, A0..A7/B0..B7 inputs) onto the two expander.Bus handles and
// commits output bytes in a single masked write per bank, honoring each
// bank's polarity.
package hardware

import (
	"fmt"
	"strings"

	"github.com/tcmctl/cabinet/expander"
)

// Bank is the expander port letter a logical channel belongs to.
type Bank int

const (
	BankA Bank = iota
	BankB
)

func (b Bank) String() string {
	if b == BankA {
		return "A"
	}
	return "B"
}

// Channel identifies one bit on one bank: a port letter plus bit index 0..7.
type Channel struct {
	Bank Bank
	Bit  uint
}

// RelayChannel returns the fixed board-wiring channel for relay label
// K1..K8 (bit i-1 of port A).
func RelayChannel(i int) Channel { return Channel{Bank: BankA, Bit: uint(i - 1)} }

// TransistorChannel returns the fixed board-wiring channel for transistor
// label T1..T8 (bit i-1 of port B).
func TransistorChannel(i int) Channel { return Channel{Bank: BankB, Bit: uint(i - 1)} }

// Interface is the commit/read surface the control loop drives each cycle.
// It owns the two expander buses: out for relays (A) + transistors (B), in
// for doors/flood (A) + DIP switches (B).
type Interface struct {
	out *expander.Bus
	in  *expander.Bus

	relaysActiveLow      bool
	transistorsActiveLow bool
	dipOnIsHigh          bool
	doorOpenIsHigh       bool
	floodLowIsFlood      bool

	// logical input name ("door_1".."door_6", "flood_1".."flood_2") ->
	// channel on the input bus, configured by the caller.
	inputMap map[string]Channel

	buzzer BuzzerPin
}

// BuzzerPin is a discrete host GPIO pin, satisfied directly by
// periph.io/x/periph/conn/gpio.PinOut. It is optional: a nil BuzzerPin
// makes SetBuzzer a no-op, matching a board variant with no buzzer fitted.
type BuzzerPin interface {
	Out(level bool) error
}

// Polarity bundles the five configured polarity flags (§3 Config): two
// govern how output bytes are encoded, three how raw input bits are read
// as logical states.
type Polarity struct {
	RelaysActiveLow      bool
	TransistorsActiveLow bool
	DIPOnIsHigh          bool
	DoorOpenIsHigh       bool
	FloodLowIsFlood      bool
}

// New builds an Interface over already-opened expander buses.
func New(out, in *expander.Bus, pol Polarity, inputMap map[string]Channel, buzzer BuzzerPin) *Interface {
	return &Interface{
		out:                  out,
		in:                   in,
		relaysActiveLow:      pol.RelaysActiveLow,
		transistorsActiveLow: pol.TransistorsActiveLow,
		dipOnIsHigh:          pol.DIPOnIsHigh,
		doorOpenIsHigh:       pol.DoorOpenIsHigh,
		floodLowIsFlood:      pol.FloodLowIsFlood,
		inputMap:             inputMap,
		buzzer:               buzzer,
	}
}

// RelayStates is the eight logical relay states K1..K8, indexed 0..7.
type RelayStates [8]bool

// TransistorStates is the eight logical transistor states T1..T8, indexed
// 0..7.
type TransistorStates [8]bool

// CommitOutputs composes an A-byte from relays and a B-byte from
// transistors, applies force_on overrides (from active strike timers) on
// top of the logic-derived transistor states, inverts per bank polarity,
// and issues exactly one OLATA write and one OLATB write. forceOn maps a
// transistor label ("T3") to forced-on; it never clears a bit, only sets
// it, so it can never mask an alarm-driven relay.
func (hw *Interface) CommitOutputs(relays RelayStates, transistors TransistorStates, forceOn map[string]bool) error {
	var a, b byte
	for i := 0; i < 8; i++ {
		if relays[i] {
			a |= byte(1) << uint(i)
		}
	}
	for i := 0; i < 8; i++ {
		on := transistors[i]
		if forceOn[fmt.Sprintf("T%d", i+1)] {
			on = true
		}
		if on {
			b |= byte(1) << uint(i)
		}
	}
	if hw.relaysActiveLow {
		a = ^a
	}
	if hw.transistorsActiveLow {
		b = ^b
	}
	if err := hw.out.WriteReg(expander.OLATA, a); err != nil {
		return fmt.Errorf("hardware: commit relays: %w", err)
	}
	if err := hw.out.WriteReg(expander.OLATB, b); err != nil {
		return fmt.Errorf("hardware: commit transistors: %w", err)
	}
	return nil
}

// Inputs is the decoded state of one read_inputs cycle.
type Inputs struct {
	// Named is the set of configured door/flood input names, decoded per
	// their configured polarity: door_i true means OPEN, flood_j true
	// means FLOOD.
	Named map[string]bool
	// DIP is the eight DIP switch positions, true meaning "on" per
	// dip_on_is_high, only populated when withDIP is requested.
	DIP [8]bool
}

// isFloodName reports whether a logical input name is a flood_j name
// rather than a door_i name.
func isFloodName(name string) bool {
	return strings.HasPrefix(name, "flood_")
}

// ReadInputs issues one GPIOA read for the configured door/flood names and,
// only when withDIP is set, one additional GPIOB read for the DIP bank.
func (hw *Interface) ReadInputs(withDIP bool) (Inputs, error) {
	a, err := hw.in.ReadReg(expander.GPIOA)
	if err != nil {
		return Inputs{}, fmt.Errorf("hardware: read inputs: %w", err)
	}
	named := make(map[string]bool, len(hw.inputMap))
	for name, ch := range hw.inputMap {
		if ch.Bank != BankA {
			continue
		}
		high := a&(byte(1)<<ch.Bit) != 0
		if isFloodName(name) {
			// flood_low_is_flood: logical FLOOD is asserted on a low
			// reading when true, on a high reading when false.
			if hw.floodLowIsFlood {
				named[name] = !high
			} else {
				named[name] = high
			}
			continue
		}
		if hw.doorOpenIsHigh {
			named[name] = high
		} else {
			named[name] = !high
		}
	}
	in := Inputs{Named: named}
	if withDIP {
		bbyte, err := hw.in.ReadReg(expander.GPIOB)
		if err != nil {
			return Inputs{}, fmt.Errorf("hardware: read DIP: %w", err)
		}
		for i := 0; i < 8; i++ {
			high := bbyte&(byte(1)<<uint(i)) != 0
			if hw.dipOnIsHigh {
				in.DIP[i] = high
			} else {
				in.DIP[i] = !high
			}
		}
	}
	return in, nil
}

// ServiceUnlock reports whether the DIP bank is set to the service-unlock
// pattern: bits 0, 2 and 4 all on.
func ServiceUnlock(dip [8]bool) bool {
	return dip[0] && dip[2] && dip[4]
}

// SetBuzzer drives the discrete buzzer pin directly; it is a no-op when no
// buzzer pin was configured.
func (hw *Interface) SetBuzzer(on bool) error {
	if hw.buzzer == nil {
		return nil
	}
	if err := hw.buzzer.Out(on); err != nil {
		return fmt.Errorf("hardware: set buzzer: %w", err)
	}
	return nil
}
