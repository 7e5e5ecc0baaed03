// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hardware

import (
	"strconv"
	"strings"

	"github.com/tcmctl/cabinet/state"
)

// OutputMapping composes the logic evaluator's six logical outputs into
// physical bank states, following the config's logical->physical-channel
// table (relays -> K1..K8, transistors -> T1..T8).
type OutputMapping struct {
	RelayChannels      map[string][]string
	TransistorChannels map[string][]string
}

// NewOutputMapping builds an OutputMapping from the channel-list maps
// loaded from configuration.
func NewOutputMapping(relays, transistors map[string][]string) OutputMapping {
	return OutputMapping{RelayChannels: relays, TransistorChannels: transistors}
}

func logicalBool(outputs state.Outputs, name string) bool {
	switch name {
	case "alarm":
		return outputs.Alarm
	case "cooler":
		return outputs.Cooler
	case "light":
		return outputs.Light
	case "heater":
		return outputs.Heater
	case "fan_48v":
		return outputs.Fan48V
	case "fan_230v":
		return outputs.Fan230V
	default:
		return false
	}
}

// Relays composes the eight relay states from every logical output
// assigned to a K-channel.
func (m OutputMapping) Relays(outputs state.Outputs) RelayStates {
	var states RelayStates
	for name, channels := range m.RelayChannels {
		if !logicalBool(outputs, name) {
			continue
		}
		for _, ch := range channels {
			if i, ok := parseBankIndex(ch, "K"); ok {
				states[i] = true
			}
		}
	}
	return states
}

// Transistors composes the eight transistor states from every logical
// output assigned to a T-channel.
func (m OutputMapping) Transistors(outputs state.Outputs) TransistorStates {
	var states TransistorStates
	for name, channels := range m.TransistorChannels {
		if !logicalBool(outputs, name) {
			continue
		}
		for _, ch := range channels {
			if i, ok := parseBankIndex(ch, "T"); ok {
				states[i] = true
			}
		}
	}
	return states
}

// parseBankIndex parses a channel label like "K3" or "T8" with the given
// prefix into a zero-based index, 0..7.
func parseBankIndex(ch, prefix string) (int, bool) {
	if !strings.HasPrefix(ch, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(ch, prefix))
	if err != nil || n < 1 || n > 8 {
		return 0, false
	}
	return n - 1, true
}
