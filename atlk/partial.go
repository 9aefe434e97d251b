package atlk

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rfielding/kripke-atlk/bdd"
	"github.com/rfielding/kripke-atlk/formula"
)

// partialEntry records, for one formula, the states known to satisfy it
// and the states known not to.
type partialEntry struct {
	sat, unsat bdd.Set
}

// EvalStates returns the states of states satisfying f. Sub-formulas are
// only evaluated where the result depends on them; strategic operators
// enumerate partial strategies from the requested states.
func (e *Evaluator) EvalStates(ctx context.Context, f formula.Formula, states bdd.Set) (bdd.Set, error) {
	sys := e.sys
	states = states.Exists(sys.InputsCube()).And(sys.StatesMask())
	if states.IsFalse() {
		return states, nil
	}
	if e.cache == nil {
		return e.evalStates(ctx, f, states)
	}

	key := f.String()
	entry, ok := e.cache.Get(key)
	if !ok {
		entry = partialEntry{sat: sys.False(), unsat: sys.False()}
	}
	remaining := states.Diff(entry.sat.Or(entry.unsat))
	if remaining.IsFalse() {
		e.countCache(true)
		e.log.Debug("partial search cache hit", "formula", key)
		return entry.sat.And(states), nil
	}
	e.countCache(false)
	sat, err := e.evalStates(ctx, f, remaining)
	if err != nil {
		return bdd.Set{}, err
	}
	entry.sat = entry.sat.Or(sat)
	entry.unsat = entry.unsat.Or(remaining.Diff(sat))
	e.cache.Add(key, entry)
	return entry.sat.And(states), nil
}

func (e *Evaluator) evalStates(ctx context.Context, f formula.Formula, states bdd.Set) (bdd.Set, error) {
	if err := ctx.Err(); err != nil {
		return bdd.Set{}, err
	}
	sys := e.sys
	sub := func(g formula.Formula, on bdd.Set) (bdd.Set, error) { return e.EvalStates(ctx, g, on) }

	switch f := f.(type) {
	case formula.True:
		return states, nil
	case formula.False:
		return sys.False(), nil
	case formula.Init:
		return sys.Init().And(states), nil
	case formula.Reachable:
		return sys.Reachable().And(states), nil
	case formula.Atom:
		a, err := sys.Atom(f.Text)
		if err != nil {
			return bdd.Set{}, err
		}
		return a.And(states), nil
	case formula.Not:
		s, err := sub(f.Formula, states)
		if err != nil {
			return bdd.Set{}, err
		}
		return states.Diff(s), nil
	case formula.And:
		l, err := sub(f.Left, states)
		if err != nil || l.IsFalse() {
			return l, err
		}
		return sub(f.Right, l)
	case formula.Or:
		l, err := sub(f.Left, states)
		if err != nil {
			return bdd.Set{}, err
		}
		r, err := sub(f.Right, states.Diff(l))
		if err != nil {
			return bdd.Set{}, err
		}
		return l.Or(r), nil
	case formula.Iff:
		l, err := sub(f.Left, states)
		if err != nil {
			return bdd.Set{}, err
		}
		r, err := sub(f.Right, states)
		if err != nil {
			return bdd.Set{}, err
		}
		return l.Iff(r).And(states), nil
	case formula.EX:
		s, err := sub(f.Formula, sys.Post(states))
		if err != nil {
			return bdd.Set{}, err
		}
		return e.ex(s).And(states), nil
	case formula.EG:
		s, err := sub(f.Formula, sys.ReachFrom(states))
		if err != nil {
			return bdd.Set{}, err
		}
		return e.eg(s).And(states), nil
	case formula.EU:
		reach := sys.ReachFrom(states)
		l, err := sub(f.Left, reach)
		if err != nil {
			return bdd.Set{}, err
		}
		r, err := sub(f.Right, reach)
		if err != nil {
			return bdd.Set{}, err
		}
		return e.eu(l, r).And(states), nil
	case formula.NK:
		return e.knowledgeStates(ctx, []string{f.Agent}, f.Formula, states, e.nk, e.groupEquiv)
	case formula.NE:
		return e.knowledgeStates(ctx, f.Group, f.Formula, states, e.ne, e.everyEquiv)
	case formula.ND:
		return e.knowledgeStates(ctx, f.Group, f.Formula, states, e.nk, e.groupEquiv)
	case formula.NC:
		return e.knowledgeStates(ctx, f.Group, f.Formula, states, e.nc, e.commonEquiv)
	}
	if s, ok := strategicOf(f); ok {
		return e.strategicStates(ctx, s, states)
	}
	if g, ok := rewrite(f); ok {
		return e.evalStates(ctx, g, states)
	}
	return bdd.Set{}, fmt.Errorf("unsupported formula %T", f)
}

type equivFunc func(states bdd.Set, agents []string) (bdd.Set, error)

func (e *Evaluator) groupEquiv(states bdd.Set, agents []string) (bdd.Set, error) {
	return e.sys.EquivalentStates(states, agents)
}

// everyEquiv returns the states some member cannot distinguish from states.
func (e *Evaluator) everyEquiv(states bdd.Set, agents []string) (bdd.Set, error) {
	r := e.sys.False()
	for _, a := range agents {
		s, err := e.sys.EquivalentStates(states, []string{a})
		if err != nil {
			return bdd.Set{}, err
		}
		r = r.Or(s)
	}
	return r, nil
}

// commonEquiv closes states under the members' equivalences through
// reachable states.
func (e *Evaluator) commonEquiv(states bdd.Set, agents []string) (bdd.Set, error) {
	var err error
	reach := e.sys.Reachable()
	r := e.lfp("common.equiv", func(z bdd.Set) bdd.Set {
		if err != nil {
			return z
		}
		var eq bdd.Set
		eq, err = e.everyEquiv(z, agents)
		if err != nil {
			return z
		}
		return states.Or(eq.And(reach))
	})
	if err != nil {
		return bdd.Set{}, err
	}
	return r, nil
}

func (e *Evaluator) knowledgeStates(ctx context.Context, group []string, f formula.Formula, states bdd.Set,
	op func(bdd.Set, []string) (bdd.Set, error), equiv equivFunc) (bdd.Set, error) {
	agents, err := e.sys.AgentsOf(group)
	if err != nil {
		return bdd.Set{}, err
	}
	on, err := equiv(states, agents)
	if err != nil {
		return bdd.Set{}, err
	}
	s, err := e.EvalStates(ctx, f, on)
	if err != nil {
		return bdd.Set{}, err
	}
	r, err := op(s, agents)
	if err != nil {
		return bdd.Set{}, err
	}
	return r.And(states), nil
}

// strategicStates decides a coalition operator on states.
func (e *Evaluator) strategicStates(ctx context.Context, s strategic, states bdd.Set) (sat bdd.Set, err error) {
	sys := e.sys
	if e.opts.Observability == ObsPartial && !s.exists {
		d, _ := strategicDual(s.node)
		return e.evalStates(ctx, d, states)
	}
	agents, err := sys.AgentsOf(s.group)
	if err != nil {
		return bdd.Set{}, err
	}

	if e.opts.Observability == ObsFull {
		reach := sys.ReachFrom(states)
		g, err := e.goal(ctx, s, agents, func(f formula.Formula) (bdd.Set, error) {
			return e.EvalStates(ctx, f, reach)
		})
		if err != nil {
			return bdd.Set{}, err
		}
		r, err := e.decide(ctx, g)
		if err != nil {
			return bdd.Set{}, err
		}
		return r.And(states), nil
	}

	ctx, span := e.startStrategicSpan(ctx, s, agents)
	start := time.Now()
	defer func() { e.endStrategicSpan(span, start, err) }()

	ps := &partialSearch{e: e, s: s, agents: agents, sp: NewSplitter(sys, agents, e.opts.Semantics)}
	sat, err = ps.run(ctx, states)
	if err != nil {
		return bdd.Set{}, err
	}
	return sat.And(states), nil
}

// partialSearch enumerates partial strategies for one strategic formula.
type partialSearch struct {
	e      *Evaluator
	s      strategic
	agents []string
	sp     *Splitter
}

// closeEquiv returns the reachable states equivalent to states.
func (ps *partialSearch) closeEquiv(states bdd.Set) (bdd.Set, error) {
	sys := ps.e.sys
	if ps.e.opts.Semantics == Individual {
		r := states
		for _, a := range ps.agents {
			eq, err := sys.EquivalentStates(states, []string{a})
			if err != nil {
				return bdd.Set{}, err
			}
			r = r.Or(eq.And(sys.Reachable()))
		}
		return r, nil
	}
	eq, err := sys.EquivalentStates(states, ps.agents)
	if err != nil {
		return bdd.Set{}, err
	}
	return eq.And(sys.Reachable()), nil
}

// winning evaluates the operands where strat can lead, then returns the
// moves of strat winning the goal. When next is set, operands are only
// needed in the successors of from.
func (ps *partialSearch) winning(ctx context.Context, strat, from bdd.Set) (bdd.Set, error) {
	e := ps.e
	on := strat.Exists(e.sys.InputsCube())
	if ps.s.kind == goalNext {
		on = e.sys.Post(from.And(strat))
	}
	g, err := e.goal(ctx, ps.s, ps.agents, func(f formula.Formula) (bdd.Set, error) {
		return e.EvalStates(ctx, f, on)
	})
	if err != nil {
		return bdd.Set{}, err
	}
	return e.winningSI(g, strat)
}

func (ps *partialSearch) run(ctx context.Context, states bdd.Set) (bdd.Set, error) {
	e, sys, opts := ps.e, ps.e.sys, ps.e.opts.Partial
	states, err := ps.closeEquiv(states)
	if err != nil {
		return bdd.Set{}, err
	}

	proto, err := sys.Protocol(ps.agents)
	if err != nil {
		return bdd.Set{}, err
	}
	subsystem := proto
	if opts.Filtering {
		// the search only needs winning moves of the states reachable from
		// states, under the unrestricted protocol
		if subsystem, err = ps.winning(ctx, proto.And(sys.ReachFrom(states)), states); err != nil {
			return bdd.Set{}, err
		}
	}
	possible, err := ps.sp.AllEquivSat(subsystem.Exists(sys.InputsCube()))
	if err != nil {
		return bdd.Set{}, err
	}
	all := states.And(possible)

	sat := sys.False()
	for !all.IsFalse() {
		cur, err := ps.separate(all)
		if err != nil {
			return bdd.Set{}, err
		}
		all = all.Diff(cur)
		orig, remaining := cur, cur

		for !remaining.IsFalse() {
			closed, err := ps.closeEquiv(remaining)
			if err != nil {
				return bdd.Set{}, err
			}
			remSize := sys.CountStates(remaining)
			exhausted := true
		strategies:
			for pu := range ps.sp.Split(closed.And(subsystem), sys.False()) {
				for strat := range ps.sp.SplitReach(pu, subsystem) {
					if err := ctx.Err(); err != nil {
						return bdd.Set{}, err
					}
					e.countStrategy()
					w, err := ps.winning(ctx, strat, closed)
					if err != nil {
						return bdd.Set{}, err
					}
					won, err := ps.sp.AllEquivSat(w.Exists(sys.InputsCube()))
					if err != nil {
						return bdd.Set{}, err
					}
					old := sat
					sat = sat.Or(won.And(orig))

					switch opts.Early {
					case EarlyFull:
						if orig.Entails(sat) {
							ps.stopped("full", remaining)
							remaining = sys.False()
							exhausted = false
							break strategies
						}
					case EarlyPartial:
						if !sat.Equals(old) {
							remaining = remaining.Diff(sat)
							ps.stopped("partial", remaining)
							exhausted = false
							break strategies
						}
					case EarlyThreshold:
						remaining = remaining.Diff(sat)
						if belowThreshold(sys.CountStates(remaining), remSize, opts.Threshold) {
							ps.stopped("threshold", remaining)
							exhausted = false
							break strategies
						}
					}
				}
			}
			if err := ps.sp.Err(); err != nil {
				return bdd.Set{}, err
			}
			if exhausted {
				remaining = sys.False()
			}
		}
		all = all.Diff(sat)
	}
	return sat, nil
}

// separate picks the states handled by the next round.
func (ps *partialSearch) separate(all bdd.Set) (bdd.Set, error) {
	sys := ps.e.sys
	var state bdd.Set
	var err error
	switch ps.e.opts.Partial.Separation {
	case SeparateRandom:
		state, err = sys.PickOneState(all)
	case SeparateReach:
		reached := sys.Init()
		for !reached.Intersects(all) {
			next := reached.Or(sys.Post(reached))
			if next.Equals(reached) {
				reached = all
				break
			}
			reached = next
		}
		state, err = sys.PickOneState(reached.And(all))
	default:
		return all, nil
	}
	if err != nil {
		return bdd.Set{}, err
	}
	class, err := ps.closeEquiv(state)
	if err != nil {
		return bdd.Set{}, err
	}
	return class.And(all), nil
}

func (ps *partialSearch) stopped(kind string, remaining bdd.Set) {
	ps.e.stats.add(StatEarlyStops, 1)
	ps.e.log.Debug("partial search stopped early",
		"early", kind,
		"formula", ps.s.node.String(),
		"remaining", ps.e.sys.CountStates(remaining).String())
}

// belowThreshold reports whether count <= size*threshold.
func belowThreshold(count, size *big.Int, threshold float64) bool {
	limit := new(big.Float).Mul(new(big.Float).SetInt(size), big.NewFloat(threshold))
	return new(big.Float).SetInt(count).Cmp(limit) <= 0
}
