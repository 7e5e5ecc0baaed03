// Copyright 2024 The Cabinet Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package control

import (
	"github.com/tcmctl/cabinet/config"
	"github.com/tcmctl/cabinet/strike"
)

// StrikeResolver implements strike.Resolver against the loaded
// configuration's strike assignments.
type StrikeResolver struct {
	Assignments map[string]config.StrikeAssignment
}

// NewStrikeResolver builds a resolver from the strike section of
// configuration.
func NewStrikeResolver(cfg *config.Config) StrikeResolver {
	return StrikeResolver{Assignments: cfg.Strike.Assignments}
}

// ResolveStrike implements strike.Resolver. A transistor is available when
// its label is a legal strike target (T2..T8); a strike is not normally a
// climate/alarm logical output, so membership in the transistor output map
// is not the right test for availability.
func (r StrikeResolver) ResolveStrike(strikeID string) (label string, assigned bool, available bool) {
	a, ok := r.Assignments[strikeID]
	if !ok || a.Transistor == "" {
		return "", false, false
	}
	return a.Transistor, true, strike.ValidateTransistorLabel(a.Transistor) == nil
}
