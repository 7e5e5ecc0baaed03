// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hardware

import (
	"errors"
	"testing"

	"github.com/tcmctl/cabinet/expander"
)

func openSimBus(t *testing.T, role expander.Role) *expander.Bus {
	t.Helper()
	bus, err := expander.Open(role, func(expander.Mode) (expander.Conn, error) {
		return nil, errors.New("no hardware in test")
	})
	if err != nil && !errors.Is(err, expander.ErrBusUnavailable) {
		t.Fatalf("Open: %v", err)
	}
	return bus
}

func TestCommitOutputsActiveLowAndForceOn(t *testing.T) {
	out := openSimBus(t, expander.RoleOutput)
	in := openSimBus(t, expander.RoleInput)
	hw := New(out, in, Polarity{RelaysActiveLow: true, TransistorsActiveLow: false}, nil, nil)

	var relays RelayStates
	relays[0] = true // K1 on
	var transistors TransistorStates
	transistors[1] = true // T2 on

	if err := hw.CommitOutputs(relays, transistors, map[string]bool{"T3": true}); err != nil {
		t.Fatalf("CommitOutputs: %v", err)
	}

	a, _ := out.ReadReg(expander.OLATA)
	// relays active_low: K1 on -> bit0=1 before inversion -> 0xFE after.
	if a != 0xFE {
		t.Fatalf("OLATA = %#x, want 0xFE", a)
	}
	b, _ := out.ReadReg(expander.OLATB)
	// T2 (bit1) from logic, T3 (bit2) forced on, not active_low.
	if b != 0x06 {
		t.Fatalf("OLATB = %#x, want 0x06", b)
	}
}

func TestReadInputsDecodesPolarity(t *testing.T) {
	in := openSimBus(t, expander.RoleInput)
	// Simulate a door-open (raw high) and flood (raw low, flood_low_is_flood).
	in.WriteReg(expander.GPIOA, 0x01) // bit0 high
	hw := New(nil, in, Polarity{DoorOpenIsHigh: true, FloodLowIsFlood: true}, map[string]Channel{
		"door_1":  {Bank: BankA, Bit: 0},
		"flood_1": {Bank: BankA, Bit: 1},
	}, nil)

	ins, err := hw.ReadInputs(false)
	if err != nil {
		t.Fatalf("ReadInputs: %v", err)
	}
	if !ins.Named["door_1"] {
		t.Fatal("door_1 should read OPEN (true)")
	}
	if !ins.Named["flood_1"] {
		t.Fatal("flood_1 bit low should read FLOOD (true) under flood_low_is_flood")
	}
}

func TestServiceUnlock(t *testing.T) {
	var dip [8]bool
	dip[0], dip[2], dip[4] = true, true, true
	if !ServiceUnlock(dip) {
		t.Fatal("expected service unlock pattern to be recognized")
	}
	dip[2] = false
	if ServiceUnlock(dip) {
		t.Fatal("expected pattern to fail with bit 2 cleared")
	}
}
