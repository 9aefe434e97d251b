package atlk

import (
	"fmt"
	"strings"

	"github.com/rfielding/kripke-atlk/bdd"
	"github.com/rfielding/kripke-atlk/kripke"
)

// encoding represents every uniform strategy of a coalition with extra
// state variables: one variable per observation holding the index of the
// action played there.
type encoding struct {
	vars      []*kripke.Var
	top       bdd.Set // model states with a valid strategy code
	valid     bdd.Set // strategies only playing enabled actions
	stratCube bdd.Set
	follow    *kripke.Relation
	equiv     *kripke.Relation
	jump      *kripke.Relation

	nfair *bdd.Set
}

// symbolic decides g with the strategies encoded in the BDD.
func (e *Evaluator) symbolic(g goal) (bdd.Set, error) {
	enc, err := e.encodingFor(g)
	if err != nil || enc == nil {
		return e.sys.False(), err
	}
	sys := e.sys
	left := g.left.And(enc.top)
	right := g.right.And(enc.top)
	nf := e.symbolicNonFair(enc)

	var w bdd.Set
	switch g.kind {
	case goalNext:
		w = e.box(enc, right.Or(nf))
	case goalUntil:
		w = e.symbolicEU(enc, left, right, nf)
	default:
		stay := left.Or(right).Or(nf)
		w = e.gfp("cew.sym", enc.top, func(z bdd.Set) bdd.Set {
			return stay.And(right.Or(e.box(enc, z)))
		})
	}

	// some strategy wins from every reachable state the coalition cannot
	// tell apart from the state
	reach := sys.Reachable()
	losing := enc.equiv.Pre(reach.And(enc.top.Diff(w)))
	sat := enc.jump.Pre(enc.top.Diff(losing))
	return sat.Exists(enc.stratCube).And(reach), nil
}

func (e *Evaluator) box(enc *encoding, z bdd.Set) bdd.Set {
	return enc.valid.And(enc.top.Diff(enc.follow.Pre(enc.top.Diff(z))))
}

func (e *Evaluator) dia(enc *encoding, x bdd.Set) bdd.Set {
	return enc.valid.And(enc.follow.Pre(x))
}

func (e *Evaluator) symbolicEU(enc *encoding, left, right, nf bdd.Set) bdd.Set {
	fairness := e.sys.Fairness()
	if len(fairness) == 0 {
		return e.lfp("ceu.sym", func(z bdd.Set) bdd.Set {
			return right.Or(left.And(e.box(enc, z)))
		})
	}
	stay := left.Or(right).Or(nf)
	return e.lfp("ceu.sym", func(z bdd.Set) bdd.Set {
		acc := e.sys.False()
		for _, f := range fairness {
			unfair := enc.top.Diff(f)
			acc = acc.Or(e.box(enc, e.gfp("ceu.sym.fair", enc.top, func(y bdd.Set) bdd.Set {
				return z.Or(unfair).And(stay).And(right.Or(e.box(enc, y)))
			})))
		}
		return stay.And(right.Or(acc))
	})
}

// symbolicNonFair returns the strategy states from which every outcome is
// unfair.
func (e *Evaluator) symbolicNonFair(enc *encoding) bdd.Set {
	fairness := e.sys.Fairness()
	if len(fairness) == 0 {
		return e.sys.False()
	}
	e.mu.Lock()
	cached := enc.nfair
	e.mu.Unlock()
	if cached != nil {
		return *cached
	}
	fair := e.gfp("fair.sym", enc.top, func(z bdd.Set) bdd.Set {
		r := enc.top
		for _, f := range fairness {
			target := z.And(f)
			r = r.And(e.dia(enc, e.lfp("fair.sym.reach", func(y bdd.Set) bdd.Set {
				return target.Or(e.dia(enc, y))
			})))
		}
		return r
	})
	nf := enc.valid.Diff(fair)
	e.mu.Lock()
	enc.nfair = &nf
	e.mu.Unlock()
	return nf
}

// encodingFor returns the strategy encoding of g's coalition, or nil when
// the coalition has no move to play. Under SymbolicFiltered, only the moves
// winning g are encoded.
func (e *Evaluator) encodingFor(g goal) (*encoding, error) {
	k := strings.Join(g.agents, ",")
	if e.opts.Variant == SymbolicFiltered {
		k = g.node.String()
	}
	e.mu.Lock()
	enc, ok := e.encodings[k]
	e.mu.Unlock()
	if ok {
		return enc, nil
	}

	sys := e.sys
	moves, err := sys.Protocol(g.agents)
	if err != nil {
		return nil, err
	}
	if e.opts.Variant == SymbolicFiltered {
		if moves, err = e.winningSI(g, moves); err != nil {
			return nil, err
		}
		if moves.IsFalse() {
			return nil, nil
		}
	}
	enc, err = e.encode(g.agents, moves)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.encodings[k] = enc
	e.mu.Unlock()
	return enc, nil
}

type observation struct {
	states  bdd.Set
	actions []bdd.Set
}

func (e *Evaluator) observations(agents []string, moves bdd.Set) ([]observation, error) {
	sys := e.sys
	others, err := sys.OtherInputsCube(agents)
	if err != nil {
		return nil, err
	}
	avars, err := sys.ActionVars(agents)
	if err != nil {
		return nil, err
	}
	var bits []int
	for _, v := range avars {
		bits = append(bits, v.Bits()...)
	}
	hide := sys.StatesCube().And(others)

	var obs []observation
	for !moves.IsFalse() {
		s, err := sys.PickOneState(moves)
		if err != nil {
			return nil, err
		}
		o, err := sys.EquivalentStates(s, agents)
		if err != nil {
			return nil, err
		}
		acts, err := sys.Manager().PickAll(moves.And(o).Exists(hide), bits)
		if err != nil {
			return nil, err
		}
		obs = append(obs, observation{states: o, actions: acts})
		moves = moves.Diff(o)
	}
	return obs, nil
}

func (e *Evaluator) encode(agents []string, moves bdd.Set) (*encoding, error) {
	sys := e.sys
	obs, err := e.observations(agents, moves)
	if err != nil {
		return nil, err
	}

	var names []string
	var sizes []int
	var choices []observation
	for _, o := range obs {
		if len(o.actions) > 1 {
			names = append(names, fmt.Sprintf("strat.%d", len(names)))
			sizes = append(sizes, len(o.actions))
			choices = append(choices, o)
		}
	}
	vars, err := sys.NewStateVars(names, sizes)
	if err != nil {
		return nil, err
	}

	var bits []int
	mask, nextMask, unchanged := sys.True(), sys.True(), sys.True()
	for _, v := range vars {
		bits = append(bits, v.Bits()...)
		mask = mask.And(sys.Mask(v, false))
		nextMask = nextMask.And(sys.Mask(v, true))
		unchanged = unchanged.And(sys.Unchanged(v))
	}
	enc := &encoding{
		vars:      vars,
		top:       sys.StatesMask().And(mask),
		stratCube: sys.Manager().Cube(bits),
	}

	follow := sys.Trans().And(unchanged)
	valid := mask
	for _, o := range obs {
		if len(o.actions) == 1 {
			a := o.actions[0]
			follow = follow.And(o.states.Imp(a))
			valid = valid.And(o.states.Imp(moves.And(a).Exists(sys.InputsCube())))
		}
	}
	for i, o := range choices {
		for k, a := range o.actions {
			at := o.states.And(sys.Index(vars[i], k, false))
			follow = follow.And(at.Imp(a))
			valid = valid.And(at.Imp(moves.And(a).Exists(sys.InputsCube())))
		}
	}
	enc.valid = valid.And(enc.top)
	enc.follow = sys.NewRelation(follow, vars)

	eqv, err := sys.EquivalenceRelation(agents)
	if err != nil {
		return nil, err
	}
	enc.equiv = sys.NewRelation(eqv.And(unchanged), vars)

	stay := sys.StatesMask().And(nextMask)
	for _, v := range sys.Vars() {
		if v.Kind == kripke.StateVar {
			stay = stay.And(sys.Unchanged(v))
		}
	}
	enc.jump = sys.NewRelation(stay, vars)

	e.stats.add(StatEncodings, 1)
	e.stats.add(StatStrategyBDDVar, float64(len(bits)))
	e.log.Debug("strategies encoded",
		"agents", strings.Join(agents, ","),
		"observations", len(obs),
		"variables", len(vars),
		"bits", len(bits))
	return enc, nil
}
