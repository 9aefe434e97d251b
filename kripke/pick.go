package kripke

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/rfielding/kripke-atlk/bdd"
)

func (s *System) stateInputBits() []int {
	return append(append([]int(nil), s.curBits...), s.inputBits...)
}

// PickOneState returns one state of set.
func (s *System) PickOneState(set bdd.Set) (bdd.Set, error) {
	return s.m.PickOne(set.Exists(s.inputsCube).And(s.statesMask), s.curBits)
}

// PickOneInputs returns one input valuation of set.
func (s *System) PickOneInputs(set bdd.Set) (bdd.Set, error) {
	return s.m.PickOne(set.Exists(s.statesCube).And(s.inputsMask), s.inputBits)
}

// PickOneStateInputs returns one state/input pair of set.
func (s *System) PickOneStateInputs(set bdd.Set) (bdd.Set, error) {
	return s.m.PickOne(set.And(s.statesMask).And(s.inputsMask), s.stateInputBits())
}

// PickAllStates enumerates the states of set.
func (s *System) PickAllStates(set bdd.Set) ([]bdd.Set, error) {
	return s.m.PickAll(set.Exists(s.inputsCube).And(s.statesMask), s.curBits)
}

// PickAllInputs enumerates the input valuations of set.
func (s *System) PickAllInputs(set bdd.Set) ([]bdd.Set, error) {
	return s.m.PickAll(set.Exists(s.statesCube).And(s.inputsMask), s.inputBits)
}

// PickAllStatesInputs enumerates the state/input pairs of set.
func (s *System) PickAllStatesInputs(set bdd.Set) ([]bdd.Set, error) {
	return s.m.PickAll(set.And(s.statesMask).And(s.inputsMask), s.stateInputBits())
}

// CountStates returns the number of states of set.
func (s *System) CountStates(set bdd.Set) *big.Int {
	return s.m.Count(set.Exists(s.inputsCube).And(s.statesMask), s.curBits)
}

// Values decodes a single assignment into variable values. Variables that
// set does not fix are reported with their first possible value.
func (s *System) Values(set bdd.Set) map[string]string {
	out := map[string]string{}
	for _, v := range s.Vars() {
		for i, val := range v.Domain {
			if set.Intersects(s.valueSet(v, false, i)) {
				out[v.Name] = val
				break
			}
		}
	}
	return out
}

// Describe renders one state of set as "var=value" pairs in declaration
// order.
func (s *System) Describe(set bdd.Set) string {
	return s.describe(set, s.stateVars)
}

// DescribeInputs renders the inputs of one move of set.
func (s *System) DescribeInputs(set bdd.Set) string {
	return s.describe(set, s.inputVars)
}

func (s *System) describe(set bdd.Set, vars []*Var) string {
	values := s.Values(set)
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		if val, ok := values[v.Name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", v.Name, val))
		}
	}
	return strings.Join(parts, " ")
}
