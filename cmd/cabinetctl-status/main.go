// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command cabinetctl-status renders a cabinet runtime-state snapshot as a
// row of colored terminal cells: green for a logical output that is on,
// red for an active alarm, grey for off. It reads a JSON snapshot (as
// produced by the out-of-scope HTTP surface's state.read() endpoint) from
// a file or stdin, so it can be pointed at a live cabinet or at a captured
// snapshot for troubleshooting offline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// snapshotDTO mirrors the subset of state.Snapshot's fields this command
// renders (outputs, alarm reason, error); defined
// locally so the state package itself carries no JSON tags or encoding
// concerns of its own.
type snapshotDTO struct {
	Outputs struct {
		Alarm   bool `json:"alarm"`
		Cooler  bool `json:"cooler"`
		Light   bool `json:"light"`
		Heater  bool `json:"heater"`
		Fan48V  bool `json:"fan_48v"`
		Fan230V bool `json:"fan_230v"`
	} `json:"outputs"`
	AlarmReason string `json:"alarm_reason"`
	Error       string `json:"error"`
}

type cell struct {
	label string
	on    bool
	alarm bool
}

func cellsFor(s snapshotDTO) []cell {
	return []cell{
		{"ALARM", s.Outputs.Alarm, true},
		{"COOL", s.Outputs.Cooler, false},
		{"LIGHT", s.Outputs.Light, false},
		{"HEAT", s.Outputs.Heater, false},
		{"F48", s.Outputs.Fan48V, false},
		{"F230", s.Outputs.Fan230V, false},
	}
}

func main() {
	path := flag.String("f", "-", "path to a JSON state snapshot, or - for stdin")
	flag.Parse()

	var r io.Reader = os.Stdin
	if *path != "-" {
		f, err := os.Open(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cabinetctl-status:", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	var snap snapshotDTO
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		fmt.Fprintln(os.Stderr, "cabinetctl-status: decode snapshot:", err)
		os.Exit(1)
	}

	w := colorable.NewColorableStdout()
	render(w, snap)
}

func render(w io.Writer, snap snapshotDTO) {
	tty := isatty.IsTerminal(os.Stdout.Fd())
	for _, c := range cellsFor(snap) {
		fmt.Fprintf(w, " %s", c.label)
		if !tty {
			fmt.Fprintf(w, "=%v", c.on)
			continue
		}
		fmt.Fprint(w, "=")
		fmt.Fprint(w, block(c))
	}
	fmt.Fprintln(w)
	if snap.AlarmReason != "" {
		fmt.Fprintln(w, "reason:", snap.AlarmReason)
	}
	if snap.Error != "" {
		fmt.Fprintln(w, "error:", snap.Error)
	}
}

func block(c cell) string {
	switch {
	case !c.on:
		return ansi256.Default.Block(color.NRGBA{R: 0x40, G: 0x40, B: 0x40, A: 255})
	case c.alarm:
		return ansi256.Default.Block(color.NRGBA{R: 0xff, A: 255})
	default:
		return ansi256.Default.Block(color.NRGBA{G: 0xff, A: 255})
	}
}
