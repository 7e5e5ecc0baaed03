// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the single YAML document that holds every
// configurable field named in §3: thresholds, polarities, channel/output
// maps, strike assignments and loop tick periods. Validation is
// hand-written rather than schema-driven: nothing in the retrieval pack
// depends on a struct-tag validation library, so each section gets an
// explicit Validate method instead.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata identifies the cabinet this config applies to.
type Metadata struct {
	ID       string `yaml:"id"`
	Location string `yaml:"location"`
	Timezone string `yaml:"timezone"`
}

// Loops holds the two control loop tick periods plus the flood re-sample
// interval.
type Loops struct {
	FastTickSeconds         float64 `yaml:"fast_tick_seconds"`
	LogicTickSeconds        float64 `yaml:"logic_tick_seconds"`
	FloodRefreshSeconds     float64 `yaml:"flood_refresh_seconds"`
}

// DHT11 configures the combined temperature/humidity probes.
type DHT11 struct {
	Enabled     bool `yaml:"enabled"`
	BatteryPin  int  `yaml:"battery_pin"`
	CabinetPin  int  `yaml:"cabinet_pin"`
}

// DS18B20 configures the one-wire cabinet temperature probe.
type DS18B20 struct {
	Enabled bool     `yaml:"enabled"`
	BusPath string   `yaml:"bus_path"`
	IDs     []string `yaml:"ids"`
}

// Buzzer names the host GPIO pin driving the discrete buzzer.
type Buzzer struct {
	GPIOPin int `yaml:"gpio_pin"`
}

// SensorConfig groups the three sensor sub-configs.
type SensorConfig struct {
	DHT11   DHT11   `yaml:"dht11"`
	DS18B20 DS18B20 `yaml:"ds18b20"`
	Buzzer  Buzzer  `yaml:"buzzer"`
}

// Thresholds is §3's climate Config: three setpoints plus shared
// hysteresis.
type Thresholds struct {
	HeaterC    float64 `yaml:"heater_c"`
	CoolerC    float64 `yaml:"cooler_c"`
	FanC       float64 `yaml:"fan_c"`
	Hysteresis float64 `yaml:"hysteresis_c"`
}

// InputPolarities is the three input polarity flags from §3.
type InputPolarities struct {
	DoorOpenIsHigh  bool `yaml:"door_open_is_high"`
	FloodLowIsFlood bool `yaml:"flood_low_is_flood"`
	DIPOnIsHigh     bool `yaml:"dip_on_is_high"`
}

// InputConfig is the input side of the channel mapping plus the
// conditioner thresholds.
type InputConfig struct {
	// DoorChannels maps logical door name ("door_1") to input channel
	// ("A0").
	DoorChannels map[string]string `yaml:"door_channels"`
	// FloodChannels maps logical flood name ("flood_1") to input channel.
	FloodChannels   map[string]string `yaml:"flood_channels"`
	Polarities      InputPolarities   `yaml:"polarities"`
	AntiGlitchMS    int               `yaml:"anti_glitch_ms"`
	AntiFlapSeconds float64           `yaml:"anti_flap_seconds"`
}

// OutputMap is one bank's (relays or transistors) active_low flag plus its
// logical-output -> physical-channel-list map.
type OutputMap struct {
	ActiveLow bool                `yaml:"active_low"`
	Map       map[string][]string `yaml:"map"`
}

// OutputConfig groups the two output banks.
type OutputConfig struct {
	Relays      OutputMap `yaml:"relays"`
	Transistors OutputMap `yaml:"transistors"`
}

// StrikeAssignment is one strike_id's assigned transistor, or unassigned
// when Transistor is empty.
type StrikeAssignment struct {
	Transistor string `yaml:"transistor"`
}

// StrikeConfig is the strike scheduler's configuration.
type StrikeConfig struct {
	DefaultDurationSeconds float64                     `yaml:"default_duration_seconds"`
	Assignments            map[string]StrikeAssignment `yaml:"assignments"`
}

// ManualOutputs is the per-output manual-mode override state.
type ManualOutputs struct {
	Alarm   bool `yaml:"alarm"`
	Cooler  bool `yaml:"cooler"`
	Light   bool `yaml:"light"`
	Heater  bool `yaml:"heater"`
	Fan48V  bool `yaml:"fan_48v"`
	Fan230V bool `yaml:"fan_230v"`
}

// ManualConfig is the startup manual-mode state; runtime toggles mutate
// state.State, not this struct.
type ManualConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Overrides ManualOutputs `yaml:"overrides"`
}

// Config is the full application configuration document.
type Config struct {
	Metadata   Metadata     `yaml:"metadata"`
	Loops      Loops        `yaml:"loops"`
	Sensors    SensorConfig `yaml:"sensors"`
	Thresholds Thresholds   `yaml:"thresholds"`
	Inputs     InputConfig  `yaml:"inputs"`
	Outputs    OutputConfig `yaml:"outputs"`
	Strike     StrikeConfig `yaml:"strike"`
	Manual     ManualConfig `yaml:"manual"`
}

// Default returns a Config with the defaults mirrored from the original
// pydantic model field defaults.
func Default() *Config {
	return &Config{
		Loops: Loops{
			FastTickSeconds:     0.25,
			LogicTickSeconds:    60,
			FloodRefreshSeconds: 120,
		},
		Sensors: SensorConfig{
			DHT11:   DHT11{Enabled: true, BatteryPin: 4, CabinetPin: 5},
			DS18B20: DS18B20{Enabled: false, BusPath: "/sys/bus/w1/devices"},
			Buzzer:  Buzzer{GPIOPin: 22},
		},
		Thresholds: Thresholds{HeaterC: 5.0, CoolerC: 25.0, FanC: 30.0, Hysteresis: 1.0},
		Inputs: InputConfig{
			Polarities:      InputPolarities{DoorOpenIsHigh: true, FloodLowIsFlood: true, DIPOnIsHigh: true},
			AntiGlitchMS:    150,
			AntiFlapSeconds: 3.0,
		},
		Strike: StrikeConfig{DefaultDurationSeconds: 10.0},
	}
}

// Load reads and parses the YAML document at path, applying Default
// first so unset sections keep their documented defaults, then validates
// the result. Load always builds a fresh Config, so on a validation error
// any config the caller already holds in memory is left untouched.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate enforces the invariants from §3: unique input channels, every
// logical output mapped to a channel matching its bank, strike
// assignments restricted to T2..T8.
func (c *Config) Validate() error {
	if err := c.validateInputChannels(); err != nil {
		return err
	}
	if err := c.validateOutputBanks(); err != nil {
		return err
	}
	if err := c.validateStrikeAssignments(); err != nil {
		return err
	}
	if c.Loops.FastTickSeconds <= 0 || c.Loops.LogicTickSeconds <= 0 || c.Loops.FloodRefreshSeconds <= 0 {
		return fmt.Errorf("config: loop periods must be positive")
	}
	return nil
}

func (c *Config) validateInputChannels() error {
	seen := make(map[string]string)
	check := func(logical, channel string) error {
		if channel == "" {
			return nil
		}
		if owner, ok := seen[channel]; ok {
			return fmt.Errorf("config: input channel %s assigned to both %s and %s", channel, owner, logical)
		}
		seen[channel] = logical
		return nil
	}
	if len(c.Inputs.DoorChannels)+len(c.Inputs.FloodChannels) > 8 {
		return fmt.Errorf("config: more than 8 input channels assigned on port A")
	}
	for name, ch := range c.Inputs.DoorChannels {
		if !strings.HasPrefix(name, "door_") {
			return fmt.Errorf("config: door channel key %q must start with door_", name)
		}
		if err := check(name, ch); err != nil {
			return err
		}
	}
	for name, ch := range c.Inputs.FloodChannels {
		if !strings.HasPrefix(name, "flood_") {
			return fmt.Errorf("config: flood channel key %q must start with flood_", name)
		}
		if err := check(name, ch); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateOutputBanks() error {
	for name := range c.Outputs.Relays.Map {
		if !isLogicalOutput(name) {
			return fmt.Errorf("config: unknown logical output %q in relays map", name)
		}
	}
	for name, channels := range c.Outputs.Relays.Map {
		for _, ch := range channels {
			if !strings.HasPrefix(ch, "K") {
				return fmt.Errorf("config: relay output %q maps to non-K channel %q", name, ch)
			}
		}
	}
	for name, channels := range c.Outputs.Transistors.Map {
		if !isLogicalOutput(name) {
			return fmt.Errorf("config: unknown logical output %q in transistors map", name)
		}
		for _, ch := range channels {
			if !strings.HasPrefix(ch, "T") {
				return fmt.Errorf("config: transistor output %q maps to non-T channel %q", name, ch)
			}
		}
	}
	return nil
}

func isLogicalOutput(name string) bool {
	switch name {
	case "alarm", "cooler", "light", "heater", "fan_48v", "fan_230v":
		return true
	default:
		return false
	}
}

func (c *Config) validateStrikeAssignments() error {
	for strikeID, assignment := range c.Strike.Assignments {
		if assignment.Transistor == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(assignment.Transistor, "T"))
		if err != nil || !strings.HasPrefix(assignment.Transistor, "T") {
			return fmt.Errorf("config: strike %q has malformed transistor %q", strikeID, assignment.Transistor)
		}
		if n < 2 || n > 8 {
			return fmt.Errorf("config: strike %q transistor %q must be T2..T8", strikeID, assignment.Transistor)
		}
	}
	return nil
}
