package atlk

import (
	"iter"
	"sync"

	"github.com/rfielding/kripke-atlk/bdd"
	"github.com/rfielding/kripke-atlk/kripke"
)

// Splitter enumerates the maximal uniform strategies of a coalition drawn
// from a set of moves (state/action pairs).
//
// Sequences stop at the first error, which Err then returns, like
// bufio.Scanner. A Splitter may be shared between goroutines.
type Splitter struct {
	sys       *kripke.System
	agents    []string
	semantics Semantics

	mu  sync.Mutex
	err error
}

// NewSplitter returns a splitter for the coalition agents, a sorted list of
// agent names as returned by System.AgentsOf.
func NewSplitter(sys *kripke.System, agents []string, semantics Semantics) *Splitter {
	return &Splitter{sys: sys, agents: agents, semantics: semantics}
}

// Err returns the first error met by a sequence of the splitter.
func (sp *Splitter) Err() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.err
}

func (sp *Splitter) fail(err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.err == nil {
		sp.err = err
	}
}

// Split yields every maximal uniform strategy included in moves. When
// pustrat, a partial uniform strategy, already fixes the action of an
// equivalence class, only that action is kept for the class. Split of the
// empty set yields the empty strategy once.
func (sp *Splitter) Split(moves, pustrat bdd.Set) iter.Seq[bdd.Set] {
	mask := sp.sys.StatesInputsMask()
	return func(yield func(bdd.Set) bool) {
		sp.split(moves.And(mask), pustrat.And(mask), yield)
	}
}

func (sp *Splitter) split(moves, pustrat bdd.Set, yield func(bdd.Set) bool) bool {
	if moves.IsFalse() {
		return yield(moves)
	}
	common, class, rest, err := sp.splitOne(moves, pustrat)
	if err != nil {
		sp.fail(err)
		return false
	}
	if class.IsFalse() {
		return yield(common)
	}
	for part := range sp.splitConflicting(class, pustrat) {
		ok := sp.split(rest, pustrat, func(s bdd.Set) bool {
			return yield(common.Or(s).Or(part))
		})
		if !ok {
			return false
		}
	}
	return sp.Err() == nil
}

// splitOne moves non-conflicting equivalence classes of moves to common
// until it finds a class to split. It returns that class and the moves not
// examined yet; class is empty when every class went to common.
func (sp *Splitter) splitOne(moves, pustrat bdd.Set) (common, class, rest bdd.Set, err error) {
	common = sp.sys.False()
	for !moves.IsFalse() {
		si, err := sp.sys.PickOneStateInputs(moves)
		if err != nil {
			return common, class, rest, err
		}
		eq, err := sp.equivClass(si)
		if err != nil {
			return common, class, rest, err
		}
		class := moves.And(eq)
		moves = moves.Diff(class)
		conflicting, err := sp.isConflicting(class)
		if err != nil {
			return common, class, rest, err
		}
		if conflicting || eq.Intersects(pustrat) {
			return common, class, moves, nil
		}
		common = common.Or(class)
	}
	return common, sp.sys.False(), sp.sys.False(), nil
}

// equivClass returns the reachable states the coalition cannot distinguish
// from the states of si. Under individual semantics, the closure of the
// members' equivalences.
func (sp *Splitter) equivClass(si bdd.Set) (bdd.Set, error) {
	if sp.semantics == Individual {
		return sp.sys.CommonEquivalentStates(si, sp.agents)
	}
	return sp.agentClass(si, sp.agents)
}

func (sp *Splitter) agentClass(states bdd.Set, agents []string) (bdd.Set, error) {
	eq, err := sp.sys.EquivalentStates(states, agents)
	if err != nil {
		return bdd.Set{}, err
	}
	return eq.And(sp.sys.Reachable()), nil
}

// actionOf returns the action of agents in the move si.
func (sp *Splitter) actionOf(si bdd.Set, agents []string) (bdd.Set, error) {
	others, err := sp.sys.OtherInputsCube(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	return si.Exists(sp.sys.StatesCube().And(others)), nil
}

// isConflicting reports whether class offers several actions where the
// coalition, or under individual semantics one member, cannot tell states
// apart.
func (sp *Splitter) isConflicting(class bdd.Set) (bool, error) {
	if sp.semantics != Individual {
		return sp.conflictsFor(class, sp.agents, class)
	}
	for _, a := range sp.agents {
		agent := []string{a}
		remaining := class
		for !remaining.IsFalse() {
			si, err := sp.sys.PickOneStateInputs(remaining)
			if err != nil {
				return false, err
			}
			eq, err := sp.agentClass(si, agent)
			if err != nil {
				return false, err
			}
			sub := remaining.And(eq)
			remaining = remaining.Diff(sub)
			c, err := sp.conflictsFor(sub, agent, sub)
			if err != nil || c {
				return c, err
			}
		}
	}
	return false, nil
}

// conflictsFor reports whether class holds a move of agents other than the
// one picked from from.
func (sp *Splitter) conflictsFor(class bdd.Set, agents []string, from bdd.Set) (bool, error) {
	si, err := sp.sys.PickOneStateInputs(from)
	if err != nil {
		return false, err
	}
	act, err := sp.actionOf(si, agents)
	if err != nil {
		return false, err
	}
	return !class.Diff(act).IsFalse(), nil
}

// splitConflicting yields the non-conflicting parts of an equivalence
// class compatible with pustrat. It yields the empty set when no part is
// compatible, so that the rest of the moves is still split.
func (sp *Splitter) splitConflicting(class, pustrat bdd.Set) iter.Seq[bdd.Set] {
	if sp.semantics == Individual {
		return sp.splitIndividual(class, pustrat, sp.agents)
	}
	return func(yield func(bdd.Set) bool) {
		compatible := false
		for !class.IsFalse() {
			bucket, ok, err := sp.bucket(&class, pustrat, sp.agents)
			if err != nil {
				sp.fail(err)
				return
			}
			if !ok {
				continue
			}
			compatible = true
			if !yield(bucket) {
				return
			}
		}
		if !compatible {
			yield(sp.sys.False())
		}
	}
}

// bucket removes from class the moves sharing the action of one picked
// move, and reports whether that action agrees with pustrat on the states
// equivalent to the bucket.
func (sp *Splitter) bucket(class *bdd.Set, pustrat bdd.Set, agents []string) (bdd.Set, bool, error) {
	si, err := sp.sys.PickOneStateInputs(*class)
	if err != nil {
		return bdd.Set{}, false, err
	}
	act, err := sp.actionOf(si, agents)
	if err != nil {
		return bdd.Set{}, false, err
	}
	bucket := class.And(act)
	*class = class.Diff(bucket)

	eq, err := sp.agentClass(bucket, agents)
	if err != nil {
		return bdd.Set{}, false, err
	}
	fixed := eq.And(pustrat)
	if fixed.IsFalse() {
		return bucket, true, nil
	}
	actions, err := sp.actionOf(fixed, agents)
	if err != nil {
		return bdd.Set{}, false, err
	}
	return bucket, actions.Intersects(bucket), nil
}

// splitIndividual splits class for each agent in turn.
func (sp *Splitter) splitIndividual(class, pustrat bdd.Set, agents []string) iter.Seq[bdd.Set] {
	return func(yield func(bdd.Set) bool) {
		if len(agents) == 0 {
			yield(class)
			return
		}
		for part := range sp.splitIndividual(class, pustrat, agents[1:]) {
			for s := range sp.splitForOneAgent(part, agents[0], pustrat) {
				if !yield(s) {
					return
				}
			}
		}
	}
}

// splitForOneAgent yields the parts of moves uniform for agent.
func (sp *Splitter) splitForOneAgent(moves bdd.Set, agent string, pustrat bdd.Set) iter.Seq[bdd.Set] {
	return func(yield func(bdd.Set) bool) {
		sp.splitAgent(moves, []string{agent}, pustrat, yield)
	}
}

func (sp *Splitter) splitAgent(moves bdd.Set, agent []string, pustrat bdd.Set, yield func(bdd.Set) bool) bool {
	if moves.IsFalse() {
		return yield(moves)
	}
	s, err := sp.sys.PickOneState(moves)
	if err != nil {
		sp.fail(err)
		return false
	}
	eq, err := sp.agentClass(s, agent)
	if err != nil {
		sp.fail(err)
		return false
	}
	class := moves.And(eq)
	rest := moves.Diff(class)
	compatible := false
	for !class.IsFalse() {
		bucket, ok, err := sp.bucket(&class, pustrat, agent)
		if err != nil {
			sp.fail(err)
			return false
		}
		if !ok {
			continue
		}
		compatible = true
		more := sp.splitAgent(rest, agent, pustrat, func(s bdd.Set) bool {
			return yield(s.Or(bucket))
		})
		if !more {
			return false
		}
	}
	if !compatible {
		return sp.splitAgent(rest, agent, pustrat, yield)
	}
	return true
}

// SplitReach yields the strategies extending pustrat along the states it
// reaches in subsystem, until no new state is reached.
func (sp *Splitter) SplitReach(pustrat, subsystem bdd.Set) iter.Seq[bdd.Set] {
	return func(yield func(bdd.Set) bool) {
		sp.splitReach(pustrat, subsystem, yield)
	}
}

func (sp *Splitter) splitReach(pustrat, subsystem bdd.Set, yield func(bdd.Set) bool) bool {
	sys := sp.sys
	fresh := sys.PostSub(pustrat, subsystem).
		Diff(pustrat.Exists(sys.InputsCube())).
		Exists(sys.InputsCube()).
		And(sys.StatesMask())
	if fresh.IsFalse() {
		return yield(pustrat)
	}
	proto, err := sys.Protocol(sp.agents)
	if err != nil {
		sp.fail(err)
		return false
	}
	newMoves := fresh.And(proto)
	if newMoves.IsFalse() {
		return yield(pustrat)
	}
	for np := range sp.Split(newMoves, pustrat) {
		next := pustrat.Or(np)
		var ok bool
		if next.Equals(pustrat) {
			ok = yield(pustrat)
		} else {
			ok = sp.splitReach(next, subsystem, yield)
		}
		if !ok {
			return false
		}
	}
	return sp.Err() == nil
}

// AllEquivSat returns the states of winning all of whose reachable
// equivalent states are in winning. Under individual semantics, the
// equivalence of every member is checked separately.
func AllEquivSat(sys *kripke.System, winning bdd.Set, agents []string, semantics Semantics) (bdd.Set, error) {
	if semantics == Individual {
		r := winning
		for _, a := range agents {
			s, err := AllEquivSat(sys, winning, []string{a}, Group)
			if err != nil {
				return bdd.Set{}, err
			}
			r = r.And(s)
		}
		return r, nil
	}
	losing := sys.StatesMask().Diff(winning.Exists(sys.InputsCube())).And(sys.Reachable())
	eq, err := sys.EquivalentStates(losing, agents)
	if err != nil {
		return bdd.Set{}, err
	}
	return winning.Diff(eq), nil
}

// AllEquivSat is AllEquivSat for the splitter's coalition.
func (sp *Splitter) AllEquivSat(winning bdd.Set) (bdd.Set, error) {
	return AllEquivSat(sp.sys, winning, sp.agents, sp.semantics)
}
