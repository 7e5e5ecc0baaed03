// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package busprobe

import "testing"

func TestBridgeString(t *testing.T) {
	b := Bridge{Bus: 1, Addr: 4, Vendor: 0x0403, Product: 0x6001, Serial: "A900FEJL"}
	want := "bus 1 addr 4 (0403:6001) A900FEJL"
	if got := b.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestSortBridgesByBusThenAddr(t *testing.T) {
	found := []Bridge{
		{Bus: 2, Addr: 1},
		{Bus: 1, Addr: 5},
		{Bus: 1, Addr: 2},
	}
	sortBridges(found)
	want := []Bridge{
		{Bus: 1, Addr: 2},
		{Bus: 1, Addr: 5},
		{Bus: 2, Addr: 1},
	}
	for i := range want {
		if found[i] != want[i] {
			t.Fatalf("found[%d] = %+v, want %+v", i, found[i], want[i])
		}
	}
}
