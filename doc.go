// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cabinet is for documentation only.
//
// cabinetctl is the supervisory controller for a telecom/battery cabinet. It
// reads door/flood sensors and a DIP switch bank over a pair of 16-bit GPIO
// expanders, evaluates alarm/climate rules against configurable thresholds,
// and drives relay/transistor outputs plus electric door strikes.
//
// Packages
//
// expander talks to the two GPIO expanders over the board's serial register
// bus. hardware maps logical channel names (K1..K8, T1..T8) onto expander
// bits and commits output bytes. sensors reads cabinet/battery temperature
// and humidity with retry and staleness handling. state holds the single
// mutex-guarded runtime snapshot read by external callers. input debounces
// doors and flood sensors. logic is the pure rule evaluator. strike schedules
// time-bounded door-release overrides. control glues all of the above into
// the fast/slow dual-rate loop described in the package docs of each leaf
// package.
package cabinet
