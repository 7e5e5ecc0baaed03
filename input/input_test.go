// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package input

import (
	"testing"
	"time"
)

func TestDoorDebounceRejectsShortGlitch(t *testing.T) {
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }

	res := c.Apply(map[string]bool{"door_1": false})
	if res.States["door_1"] {
		t.Fatal("initial state should be false")
	}

	// Flip to true but not long enough to confirm.
	now = now.Add(50 * time.Millisecond)
	res = c.Apply(map[string]bool{"door_1": true})
	if res.States["door_1"] {
		t.Fatal("door_1 should still read false before anti_glitch_ms elapses")
	}

	// Flip back before confirmation: pending record must be discarded.
	now = now.Add(50 * time.Millisecond)
	res = c.Apply(map[string]bool{"door_1": false})
	if res.States["door_1"] {
		t.Fatal("door_1 should remain false")
	}
	if res.Changed {
		t.Fatal("a discarded glitch must not report Changed")
	}
}

func TestDoorDebounceAcceptsAfterPersisting(t *testing.T) {
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Apply(map[string]bool{"door_1": false})
	now = now.Add(10 * time.Millisecond)
	c.Apply(map[string]bool{"door_1": true})
	now = now.Add(200 * time.Millisecond)
	res := c.Apply(map[string]bool{"door_1": true})
	if !res.States["door_1"] {
		t.Fatal("door_1 should be accepted as OPEN after anti_glitch_ms elapsed")
	}
	if !res.Changed {
		t.Fatal("expected Changed to be true on acceptance")
	}
}

func TestFloodAntiFlapHoldsState(t *testing.T) {
	c := New()
	c.FloodRefreshSeconds = 1 // isolate anti-flap from the refresh throttle
	now := time.Now()
	c.now = func() time.Time { return now }

	// Seed, then accept an initial transition to establish lastChange.
	c.Apply(map[string]bool{"flood_1": false})
	now = now.Add(2 * time.Second)
	res := c.Apply(map[string]bool{"flood_1": true})
	if !res.States["flood_1"] {
		t.Fatal("first-ever flood transition should be accepted")
	}

	// A flip back within anti_flap_seconds of that accepted change must
	// be rejected.
	now = now.Add(2 * time.Second)
	res = c.Apply(map[string]bool{"flood_1": false})
	if !res.States["flood_1"] {
		t.Fatal("flood change within anti_flap_seconds should be rejected")
	}

	// Once anti_flap_seconds has elapsed since the last accepted change,
	// the flip is accepted.
	now = now.Add(5 * time.Second)
	res = c.Apply(map[string]bool{"flood_1": false})
	if res.States["flood_1"] {
		t.Fatal("flood change after anti_flap_seconds should be accepted")
	}
}

func TestFloodRefreshThrottlesResampling(t *testing.T) {
	c := New()
	c.FloodRefreshSeconds = 10
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Apply(map[string]bool{"flood_1": false})
	now = now.Add(2 * time.Second)
	res := c.Apply(map[string]bool{"flood_1": true})
	if res.States["flood_1"] {
		t.Fatal("flood reading within refresh window must republish last value")
	}

	now = now.Add(20 * time.Second)
	res = c.Apply(map[string]bool{"flood_1": true})
	if !res.States["flood_1"] {
		t.Fatal("flood reading after refresh window should resample")
	}
}

func TestGlobalDoorGlitchHoldsAllDoors(t *testing.T) {
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Apply(map[string]bool{"door_1": false, "door_2": false})

	now = now.Add(10 * time.Millisecond)
	res := c.Apply(map[string]bool{"door_1": true, "door_2": true})
	if res.States["door_1"] || res.States["door_2"] {
		t.Fatal("simultaneous all-doors flip should be held as a suspected glitch")
	}

	now = now.Add(260 * time.Millisecond)
	res = c.Apply(map[string]bool{"door_1": true, "door_2": true})
	if !res.States["door_1"] || !res.States["door_2"] {
		t.Fatal("a flip persisting beyond the glitch hold window should be accepted")
	}
}
