package kripke

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/rfielding/kripke-atlk/bdd"
)

type VarKind int

const (
	StateVar VarKind = iota
	InputVar
)

// Var is a finite-domain variable encoded on one or more BDD variables.
type Var struct {
	Name   string
	Kind   VarKind
	Domain []string

	cur  []int // least significant bit first
	next []int // state variables only
}

// Bits returns the BDD variables encoding the current value of v.
func (v *Var) Bits() []int { return v.cur }

// NextBits returns the BDD variables encoding the next value of v.
func (v *Var) NextBits() []int { return v.next }

// Boolean reports whether v ranges over false and true.
func (v *Var) Boolean() bool {
	return len(v.Domain) == 2 && v.Domain[0] == "false" && v.Domain[1] == "true"
}

func (v *Var) index(value string) int {
	return slices.Index(v.Domain, value)
}

// width is the number of bits needed for a domain of size n, at least one.
func width(n int) int {
	if n <= 2 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

func (s *System) valueSet(v *Var, next bool, idx int) bdd.Set {
	if next {
		return s.m.Literal(v.next, idx)
	}
	return s.m.Literal(v.cur, idx)
}

// mask is the set of valid codes of v.
func (s *System) mask(v *Var, next bool) bdd.Set {
	r := s.m.False()
	for i := range v.Domain {
		r = r.Or(s.valueSet(v, next, i))
	}
	return r
}

// Value is the set where v has the given value.
func (s *System) Value(v *Var, value string, next bool) (bdd.Set, error) {
	i := v.index(value)
	if i < 0 {
		return bdd.Set{}, &TypeError{Expr: v.Name, Msg: fmt.Sprintf("%q is not in the domain %v", value, v.Domain)}
	}
	if next && v.Kind != StateVar {
		return bdd.Set{}, &TypeError{Expr: v.Name, Msg: "next() of an input variable"}
	}
	return s.valueSet(v, next, i), nil
}

// Unchanged is the set where the next value of the state variable v equals
// its current value.
func (s *System) Unchanged(v *Var) bdd.Set {
	r := s.m.True()
	for i := range v.cur {
		r = r.And(s.m.Var(v.cur[i]).Iff(s.m.Var(v.next[i])))
	}
	return r
}

// Var returns the variable with the given name.
func (s *System) Var(name string) (*Var, bool) {
	v, ok := s.byName[name]
	return v, ok
}

// Vars returns the state variables followed by the input variables.
func (s *System) Vars() []*Var {
	out := append([]*Var(nil), s.stateVars...)
	return append(out, s.inputVars...)
}

// NewStateVars lays extra state variables over the variables reserved after
// the model's own. They are not part of StatesCube or StatesMask; relations
// that involve them are built with NewRelation. Every call reuses the same
// reserved variables, so sets over the variables of two calls must not be
// combined.
func (s *System) NewStateVars(names []string, sizes []int) ([]*Var, error) {
	total := 0
	for _, n := range sizes {
		total += 2 * width(n)
	}
	first, err := s.m.Scratch(total)
	if err != nil {
		return nil, fmt.Errorf("%d strategy variables: %w", len(names), err)
	}
	next := first
	out := make([]*Var, len(names))
	for i, name := range names {
		v := &Var{Name: name, Kind: StateVar}
		for k := 0; k < sizes[i]; k++ {
			v.Domain = append(v.Domain, fmt.Sprint(k))
		}
		for b := 0; b < width(sizes[i]); b++ {
			v.cur = append(v.cur, next)
			v.next = append(v.next, next+1)
			next += 2
		}
		out[i] = v
	}
	return out, nil
}

// Mask is the set of valid codes of v, on its current or next bits.
func (s *System) Mask(v *Var, next bool) bdd.Set { return s.mask(v, next) }

// Index returns the set where v has the value at position i of its domain.
func (s *System) Index(v *Var, i int, next bool) bdd.Set { return s.valueSet(v, next, i) }
