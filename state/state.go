// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package state holds the single mutex-guarded runtime snapshot mutated
// exclusively by the control loop and read by external callers (the HTTP
// surface is out of scope here, but this is its only point of contact with
// the control plane).
package state

import (
	"sync"
	"time"
)

// Outputs is the six logical output states.
type Outputs struct {
	Alarm    bool
	Cooler   bool
	Light    bool
	Heater   bool
	Fan48V   bool
	Fan230V  bool
}

// Inputs is the last-conditioned door/flood state, keyed by logical name
// ("door_1".."door_6", "flood_1".."flood_2").
type Inputs map[string]bool

// Sensors mirrors sensors.Snapshot without importing that package, keeping
// state free of a dependency on the sensor acquisition machinery it only
// stores the result of.
type Sensors struct {
	TempBatt *float64
	HumBatt  *float64
	TempCab  *float64
	HumCab   *float64
}

// State is the full runtime snapshot described in §3's RuntimeState.
type State struct {
	mu sync.Mutex

	inputs             Inputs
	sensors            Sensors
	outputs            Outputs
	alarmReason        string
	hasAlarmReason     bool
	buzzerMuted        bool
	strikeActiveUntil  time.Time
	hasStrikeActive    bool
	lastUpdated        time.Time
	errMsg             string
	hasErr             bool
	manualMode         bool
	manualOverrides    Outputs
}

// New returns an empty State with no alarm reason, no error, manual mode
// disabled.
func New() *State {
	return &State{lastUpdated: time.Now()}
}

// Snapshot is the deep-copied value returned by Read; no internal map
// escapes to the caller.
type Snapshot struct {
	Inputs            Inputs
	Sensors           Sensors
	Outputs           Outputs
	AlarmReason       string
	HasAlarmReason    bool
	BuzzerMuted       bool
	StrikeActiveUntil time.Time
	HasStrikeActive   bool
	LastUpdated       time.Time
	Error             string
	HasError          bool
	ManualMode        bool
	ManualOverrides   Outputs
}

// Read returns a deep copy of the current state. The mutex is held only
// for the duration of the copy, never across I/O.
func (s *State) Read() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	inputs := make(Inputs, len(s.inputs))
	for k, v := range s.inputs {
		inputs[k] = v
	}
	return Snapshot{
		Inputs:            inputs,
		Sensors:           s.sensors,
		Outputs:           s.outputs,
		AlarmReason:       s.alarmReason,
		HasAlarmReason:    s.hasAlarmReason,
		BuzzerMuted:       s.buzzerMuted,
		StrikeActiveUntil: s.strikeActiveUntil,
		HasStrikeActive:   s.hasStrikeActive,
		LastUpdated:       s.lastUpdated,
		Error:             s.errMsg,
		HasError:          s.hasErr,
		ManualMode:        s.manualMode,
		ManualOverrides:   s.manualOverrides,
	}
}

// Option is a functional setter applied under the state lock by Update,
// replacing a Python-style **kwargs merge with a closed, type-checked set
// of mutations.
type Option func(*State)

// WithInputs replaces the stored input snapshot with a copy of inputs.
func WithInputs(inputs Inputs) Option {
	return func(s *State) {
		cp := make(Inputs, len(inputs))
		for k, v := range inputs {
			cp[k] = v
		}
		s.inputs = cp
	}
}

// WithSensors replaces the stored sensor snapshot.
func WithSensors(sensors Sensors) Option {
	return func(s *State) { s.sensors = sensors }
}

// WithOutputs replaces the stored output state; RuntimeState.outputs must
// equal the last value actually written to hardware.
func WithOutputs(outputs Outputs) Option {
	return func(s *State) { s.outputs = outputs }
}

// WithAlarmReason sets the alarm reason string; an empty reason clears it.
func WithAlarmReason(reason string) Option {
	return func(s *State) {
		s.alarmReason = reason
		s.hasAlarmReason = reason != ""
	}
}

// WithBuzzerMuted sets the buzzer-muted flag.
func WithBuzzerMuted(muted bool) Option {
	return func(s *State) { s.buzzerMuted = muted }
}

// WithStrikeActiveUntil sets the maximum strike expiry, or clears it when
// active is false.
func WithStrikeActiveUntil(until time.Time, active bool) Option {
	return func(s *State) {
		s.strikeActiveUntil = until
		s.hasStrikeActive = active
	}
}

// WithError sets the error string; an empty message clears it.
func WithError(msg string) Option {
	return func(s *State) {
		s.errMsg = msg
		s.hasErr = msg != ""
	}
}

// WithManualMode sets the manual-mode flag.
func WithManualMode(enabled bool) Option {
	return func(s *State) { s.manualMode = enabled }
}

// WithManualOverrides replaces the manual override outputs.
func WithManualOverrides(outputs Outputs) Option {
	return func(s *State) { s.manualOverrides = outputs }
}

// Update applies each Option under the lock and refreshes LastUpdated.
func (s *State) Update(opts ...Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range opts {
		opt(s)
	}
	s.lastUpdated = time.Now()
}
