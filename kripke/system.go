// Package kripke holds the symbolic multi-agent transition systems checked
// by the atlk package: variables and their encoding, the model expression
// language, pre and post images, protocols, observation equivalences and
// strategic pre-images.
package kripke

import (
	"fmt"
	"sync"

	"github.com/rfielding/kripke-atlk/bdd"
)

// System is a finite multi-agent transition system encoded on BDDs.
//
// States are assignments of the state variables; inputs (the agents'
// actions) label transitions. Trans relates a state and an input to the
// next state and already includes every agent protocol.
type System struct {
	Name string

	m          *bdd.Manager
	stateVars  []*Var
	inputVars  []*Var
	byName     map[string]*Var
	agents     map[string]*Agent
	agentOrder []string
	groups     map[string]*Group
	specs      []string

	init     bdd.Set
	trans    bdd.Set
	rel      *Relation
	fairness []bdd.Set

	curBits, nextBits, inputBits     []int
	statesCube, nextCube, inputsCube bdd.Set
	statesMask, nextMask, inputsMask bdd.Set
	identity                         bdd.Set

	defines    map[string]string
	defMu      sync.Mutex
	defineSets map[string]bdd.Set
	resolving  map[string]bool

	reachOnce sync.Once
	reachable bdd.Set

	mu        sync.Mutex
	protocols map[string]bdd.Set
	relations map[string]bdd.Set
	atoms     map[string]bdd.Set
}

func newSystem(name string, m *bdd.Manager) *System {
	return &System{
		Name:       name,
		m:          m,
		byName:     map[string]*Var{},
		agents:     map[string]*Agent{},
		groups:     map[string]*Group{},
		defineSets: map[string]bdd.Set{},
		resolving:  map[string]bool{},
		protocols:  map[string]bdd.Set{},
		relations:  map[string]bdd.Set{},
		atoms:      map[string]bdd.Set{},
	}
}

// index computes the cubes and masks once every variable is allocated.
func (s *System) index() {
	s.statesMask, s.nextMask, s.inputsMask = s.m.True(), s.m.True(), s.m.True()
	s.identity = s.m.True()
	for _, v := range s.stateVars {
		s.curBits = append(s.curBits, v.cur...)
		s.nextBits = append(s.nextBits, v.next...)
		s.statesMask = s.statesMask.And(s.mask(v, false))
		s.nextMask = s.nextMask.And(s.mask(v, true))
		s.identity = s.identity.And(s.Unchanged(v))
	}
	for _, v := range s.inputVars {
		s.inputBits = append(s.inputBits, v.cur...)
		s.inputsMask = s.inputsMask.And(s.mask(v, false))
	}
	s.statesCube = s.m.Cube(s.curBits)
	s.nextCube = s.m.Cube(s.nextBits)
	s.inputsCube = s.m.Cube(s.inputBits)
}

func (s *System) Manager() *bdd.Manager { return s.m }
func (s *System) True() bdd.Set         { return s.m.True() }
func (s *System) False() bdd.Set        { return s.m.False() }

// Init is the set of initial states.
func (s *System) Init() bdd.Set { return s.init }

// Trans is the transition relation over current state, inputs and next state.
func (s *System) Trans() bdd.Set { return s.trans }

// Fairness returns the fairness constraints, each a set of states to be
// visited infinitely often.
func (s *System) Fairness() []bdd.Set { return s.fairness }

// Specs returns the properties listed in the model file.
func (s *System) Specs() []string { return s.specs }

func (s *System) StatesCube() bdd.Set       { return s.statesCube }
func (s *System) InputsCube() bdd.Set       { return s.inputsCube }
func (s *System) StatesMask() bdd.Set       { return s.statesMask }
func (s *System) InputsMask() bdd.Set       { return s.inputsMask }
func (s *System) NextMask() bdd.Set         { return s.nextMask }
func (s *System) StatesInputsMask() bdd.Set { return s.statesMask.And(s.inputsMask) }

// StateBits returns the BDD variables of the current state.
func (s *System) StateBits() []int { return s.curBits }

// InputBits returns the BDD variables of the inputs.
func (s *System) InputBits() []int { return s.inputBits }

// Atom compiles a state expression used as an atomic proposition.
func (s *System) Atom(text string) (bdd.Set, error) {
	s.mu.Lock()
	r, ok := s.atoms[text]
	s.mu.Unlock()
	if ok {
		return r, nil
	}
	r, err := s.compile(text, stateScope)
	if err != nil {
		return bdd.Set{}, err
	}
	r = r.And(s.statesMask)
	s.mu.Lock()
	s.atoms[text] = r
	s.mu.Unlock()
	return r, nil
}

// Pre returns the states having a successor in states.
func (s *System) Pre(states bdd.Set) bdd.Set {
	return s.rel.Pre(states)
}

// PreSub is Pre restricted to the transitions whose state and inputs are
// in subsystem.
func (s *System) PreSub(states, subsystem bdd.Set) bdd.Set {
	return s.rel.restrict(subsystem).Pre(states)
}

// PreInputs returns the state/input pairs leading into states.
func (s *System) PreInputs(states, subsystem bdd.Set) bdd.Set {
	xn := s.m.AndExists(states.Exists(s.inputsCube), s.identity, s.statesCube)
	return s.m.AndExists(s.trans.And(subsystem), xn, s.nextCube)
}

// Post returns the successors of states. States may carry inputs, in
// which case only the transitions labelled by those inputs are followed.
func (s *System) Post(states bdd.Set) bdd.Set {
	return s.PostSub(states, s.m.True())
}

// PostSub is Post restricted to the transitions in subsystem.
func (s *System) PostSub(states, subsystem bdd.Set) bdd.Set {
	img := s.m.AndExists(s.trans.And(subsystem), states, s.statesCube.And(s.inputsCube))
	return s.m.AndExists(img, s.identity, s.nextCube)
}

// Reachable returns the states reachable from Init.
func (s *System) Reachable() bdd.Set {
	s.reachOnce.Do(func() {
		s.reachable = s.ReachFrom(s.init)
	})
	return s.reachable
}

// ReachFrom returns the states reachable from states, states included.
func (s *System) ReachFrom(states bdd.Set) bdd.Set {
	start := states.Exists(s.inputsCube).And(s.statesMask)
	return bdd.LFP(s.m.False(), func(z bdd.Set) bdd.Set {
		return start.Or(s.Post(z))
	})
}

// Relation is a transition relation over the model's state variables plus
// any extra state variables, with its own pre-image.
type Relation struct {
	sys      *System
	rel      bdd.Set
	cur      bdd.Set
	quant    bdd.Set // next state and inputs
	identity bdd.Set
}

// NewRelation builds a relation over the model's variables and extra.
func (s *System) NewRelation(rel bdd.Set, extra []*Var) *Relation {
	cur := append([]int(nil), s.curBits...)
	next := append([]int(nil), s.nextBits...)
	identity := s.identity
	for _, v := range extra {
		cur = append(cur, v.cur...)
		next = append(next, v.next...)
		identity = identity.And(s.Unchanged(v))
	}
	return &Relation{
		sys:      s,
		rel:      rel,
		cur:      s.m.Cube(cur),
		quant:    s.m.Cube(append(next, s.inputBits...)),
		identity: identity,
	}
}

func (r *Relation) restrict(sub bdd.Set) *Relation {
	c := *r
	c.rel = r.rel.And(sub)
	return &c
}

// Set returns the relation itself.
func (r *Relation) Set() bdd.Set { return r.rel }

// Pre returns the states having a successor in states.
func (r *Relation) Pre(states bdd.Set) bdd.Set {
	m := r.sys.m
	xn := m.AndExists(states.Exists(r.sys.inputsCube), r.identity, r.cur)
	return m.AndExists(r.rel, xn, r.quant)
}

func (s *System) String() string {
	return fmt.Sprintf("%s (%d state variables, %d inputs, %d agents)",
		s.Name, len(s.stateVars), len(s.inputVars), len(s.agentOrder))
}
