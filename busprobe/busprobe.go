// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package busprobe is a diagnostic-only USB-to-serial bridge scanner. It
// never gates expander.Open: a deployment with the expanders wired
// directly to a UART has no FTDI bridge to find, and a failed scan here
// must never be mistaken for a bus failure.
package busprobe

import (
	"fmt"
	"sort"

	"github.com/google/gousb"
)

// ftdiVendorID is FTDI's USB vendor ID, covering the common FT232-family
// USB-to-serial bridges used to reach the expander bus from a host without
// a native UART.
const ftdiVendorID = 0x0403

// Bridge describes one detected USB-to-serial bridge candidate.
type Bridge struct {
	Bus     int
	Addr    int
	Vendor  uint16
	Product uint16
	Serial  string
}

func (b Bridge) String() string {
	return fmt.Sprintf("bus %d addr %d (%04x:%04x) %s", b.Bus, b.Addr, b.Vendor, b.Product, b.Serial)
}

// Scan enumerates every USB device carrying the FTDI vendor ID and returns
// one Bridge per match, sorted by bus then address. It opens and closes
// each candidate device only long enough to read its serial number string;
// a device that cannot be opened (commonly a permissions issue) is skipped
// rather than treated as an error, since the caller can always wire the
// bus directly and never invoke this package at all. An error is returned
// only when enumeration reported one and no candidate could be opened.
func Scan() ([]Bridge, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []Bridge
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == ftdiVendorID
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("busprobe: scan: %w", err)
	}
	for _, d := range devs {
		serial, err := d.SerialNumber()
		if err != nil {
			serial = ""
		}
		found = append(found, Bridge{
			Bus:     d.Desc.Bus,
			Addr:    d.Desc.Address,
			Vendor:  uint16(d.Desc.Vendor),
			Product: uint16(d.Desc.Product),
			Serial:  serial,
		})
		d.Close()
	}
	sortBridges(found)
	return found, nil
}

// sortBridges orders bridges by bus then address, the order Scan reports
// them in.
func sortBridges(found []Bridge) {
	sort.Slice(found, func(i, j int) bool {
		if found[i].Bus != found[j].Bus {
			return found[i].Bus < found[j].Bus
		}
		return found[i].Addr < found[j].Addr
	})
}
