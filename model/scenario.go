package model

import (
	"strings"

	"github.com/couplex/couplex/sets"
)

// Scenario is one coordinate combination over the model's inter-problem
// sets. Every problem is instantiated independently per scenario.
type Scenario struct {
	names  []string
	coords []string
}

// Coord returns the scenario coordinate of an inter-problem set.
func (s Scenario) Coord(set string) (string, bool) {
	for i, n := range s.names {
		if n == set {
			return s.coords[i], true
		}
	}
	return "", false
}

// Key is a stable identifier for the scenario, usable in staging names and
// report records. The scenario of a model without inter-problem sets has key
// "-".
func (s Scenario) Key() string {
	if len(s.coords) == 0 {
		return "-"
	}
	return strings.Join(s.coords, ",")
}

// Fix returns the selection pinning each inter-problem set to the scenario
// coordinate.
func (s Scenario) Fix() sets.Selection {
	sel := make(sets.Selection, len(s.names))
	for i, n := range s.names {
		sel[n] = []string{s.coords[i]}
	}
	return sel
}

// enumerateScenarios builds the Cartesian product of the inter-problem sets
// in declared order. Without inter-problem sets there is exactly one empty
// scenario.
func enumerateScenarios(inter []*sets.Set) []Scenario {
	names := make([]string, len(inter))
	for i, s := range inter {
		names[i] = s.Name()
	}
	total := 1
	for _, s := range inter {
		total *= s.Len()
	}
	scenarios := make([]Scenario, 0, total)
	coords := make([]string, len(inter))
	var rec func(i int)
	rec = func(i int) {
		if i == len(inter) {
			scenarios = append(scenarios, Scenario{
				names:  names,
				coords: append([]string(nil), coords...),
			})
			return
		}
		for _, c := range inter[i].Coords() {
			coords[i] = c
			rec(i + 1)
		}
	}
	rec(0)
	return scenarios
}
