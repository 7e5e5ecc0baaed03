// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package logic

import (
	"testing"

	"github.com/tcmctl/cabinet/state"
)

var th = Thresholds{HeaterC: 5, CoolerC: 25, FanC: 30, H: 1}

func f(v float64) *float64 { return &v }

func TestManualModeOverridesEverything(t *testing.T) {
	manual := Manual{Enabled: true, Overrides: state.Outputs{Light: true}}
	out, reason := Evaluate(th, Snapshot{"door_1": true}, f(100), Prior{}, manual)
	if reason != ReasonManual {
		t.Fatalf("reason = %q, want %q", reason, ReasonManual)
	}
	if !out.Light || out.Alarm {
		t.Fatalf("manual overrides not applied verbatim: %+v", out)
	}
}

func TestDoorOpenWinsOverEverythingElse(t *testing.T) {
	out, reason := Evaluate(th, Snapshot{"door_1": true, "flood_1": true}, f(100), Prior{}, Manual{})
	if !out.Alarm || !out.Light {
		t.Fatalf("expected alarm+light on door open: %+v", out)
	}
	if out.Heater || out.Cooler || out.Fan48V || out.Fan230V {
		t.Fatalf("expected all climate off on door open: %+v", out)
	}
	if reason != "door_open+flood" {
		t.Fatalf("reason = %q, want door_open+flood", reason)
	}
}

func TestFloodAlarmsButClimateContinues(t *testing.T) {
	out, reason := Evaluate(th, Snapshot{"flood_1": true}, f(3), Prior{}, Manual{})
	if !out.Alarm {
		t.Fatal("expected alarm on flood")
	}
	if !out.Heater {
		t.Fatal("expected heater on below heater_c despite flood")
	}
	if reason != ReasonFlood {
		t.Fatalf("reason = %q, want %q", reason, ReasonFlood)
	}
}

func TestUnknownTempKeepsClimateOff(t *testing.T) {
	out, _ := Evaluate(th, Snapshot{}, nil, Prior{Heater: true, Cooler: true}, Manual{})
	if out.Heater || out.Cooler {
		t.Fatalf("expected heater/cooler off when Tc unknown: %+v", out)
	}
}

func TestHeaterHysteresis(t *testing.T) {
	out, _ := Evaluate(th, Snapshot{}, f(5), Prior{}, Manual{})
	if !out.Heater {
		t.Fatal("expected heater on at Tc == heater_c")
	}
	out, _ = Evaluate(th, Snapshot{}, f(5.5), Prior{Heater: true}, Manual{})
	if !out.Heater {
		t.Fatal("expected heater to stay on inside the hysteresis band")
	}
	out, _ = Evaluate(th, Snapshot{}, f(6), Prior{Heater: true}, Manual{})
	if out.Heater {
		t.Fatal("expected heater off once Tc >= heater_c+H")
	}
}

func TestCoolerHysteresis(t *testing.T) {
	out, _ := Evaluate(th, Snapshot{}, f(25), Prior{}, Manual{})
	if !out.Cooler {
		t.Fatal("expected cooler on at Tc == cooler_c")
	}
	out, _ = Evaluate(th, Snapshot{}, f(24.5), Prior{Cooler: true}, Manual{})
	if !out.Cooler {
		t.Fatal("expected cooler to stay on inside the hysteresis band")
	}
	out, _ = Evaluate(th, Snapshot{}, f(24), Prior{Cooler: true}, Manual{})
	if out.Cooler {
		t.Fatal("expected cooler off once Tc <= cooler_c-H")
	}
}

func TestHeaterAndCoolerAreMutuallyExclusive(t *testing.T) {
	// Seed prior cooler on and drop below heater_c in one step: Tc=4 is
	// also below cooler_c-H, so only the heater may end up on.
	out, _ := Evaluate(th, Snapshot{}, f(4), Prior{Cooler: true}, Manual{})
	if out.Cooler {
		t.Fatal("heater turning on must force cooler off")
	}
	if !out.Heater {
		t.Fatal("expected heater on below heater_c")
	}
}

func TestOvertemperatureForcesFansAndAlarm(t *testing.T) {
	out, reason := Evaluate(th, Snapshot{}, f(31), Prior{Cooler: true, Heater: false}, Manual{})
	if !out.Alarm || !out.Fan48V || !out.Fan230V {
		t.Fatalf("expected alarm+fans on overheat: %+v", out)
	}
	if out.Cooler || out.Heater {
		t.Fatalf("expected cooler/heater off during overheat: %+v", out)
	}
	if reason != ReasonOverheat {
		t.Fatalf("reason = %q, want %q", reason, ReasonOverheat)
	}

	out, _ = Evaluate(th, Snapshot{}, f(29.5), Prior{Fans: true}, Manual{})
	if !out.Fan48V {
		t.Fatal("fans should remain on above fan_c-H")
	}
	out, _ = Evaluate(th, Snapshot{}, f(29), Prior{Fans: true}, Manual{})
	if out.Fan48V {
		t.Fatal("fans should turn off once Tc <= fan_c-H")
	}
}
