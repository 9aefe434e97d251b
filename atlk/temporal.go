package atlk

import "github.com/rfielding/kripke-atlk/bdd"

func (e *Evaluator) lfp(kind string, f func(bdd.Set) bdd.Set) bdd.Set {
	return bdd.LFP(e.sys.False(), bdd.Observe(f, e.countFixpoint(kind)))
}

func (e *Evaluator) gfp(kind string, top bdd.Set, f func(bdd.Set) bdd.Set) bdd.Set {
	return bdd.GFP(top, bdd.Observe(f, e.countFixpoint(kind)))
}

// fairStates returns the states starting a fair path, EG True.
func (e *Evaluator) fairStates() bdd.Set {
	e.fairOnce.Do(func() {
		e.fair = e.eg(e.sys.StatesMask())
	})
	return e.fair
}

// ex returns the states with a fair successor in states.
func (e *Evaluator) ex(states bdd.Set) bdd.Set {
	return e.sys.Pre(states.Exists(e.sys.InputsCube()).And(e.sys.StatesMask()).And(e.fairStates()))
}

// eg returns the states starting a fair path staying in states.
func (e *Evaluator) eg(states bdd.Set) bdd.Set {
	sys := e.sys
	fairness := sys.Fairness()
	if len(fairness) == 0 {
		return e.gfp("eg", sys.StatesMask(), func(z bdd.Set) bdd.Set {
			return states.And(sys.Pre(z))
		})
	}
	return e.gfp("eg", sys.StatesMask(), func(z bdd.Set) bdd.Set {
		r := states
		for _, f := range fairness {
			target := z.And(f)
			r = r.And(sys.Pre(e.lfp("eg.reach", func(y bdd.Set) bdd.Set {
				return target.Or(states.And(sys.Pre(y)))
			})))
		}
		return r
	})
}

// eu returns the states starting a fair path through left until right.
func (e *Evaluator) eu(left, right bdd.Set) bdd.Set {
	goal := right.And(e.fairStates()).And(e.sys.Reachable())
	return e.lfp("eu", func(x bdd.Set) bdd.Set {
		return goal.Or(left.And(e.ex(x)))
	})
}
