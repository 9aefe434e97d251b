package atlk

import "github.com/rfielding/kripke-atlk/bdd"

// siGame computes, on state/action pairs, the moves of a strategy that win
// a goal when the coalition only plays that strategy.
type siGame struct {
	e      *Evaluator
	agents []string
	strat  bdd.Set
	top    bdd.Set // the pairs of strat
	err    error
	nfair  *bdd.Set
}

func (e *Evaluator) newSIGame(agents []string, strat bdd.Set) *siGame {
	return &siGame{
		e:      e,
		agents: agents,
		strat:  strat,
		top:    e.sys.StatesInputsMask().And(strat),
	}
}

func (s *siGame) pre(target bdd.Set) bdd.Set {
	if s.err != nil {
		return s.e.sys.False()
	}
	r, err := s.e.sys.PreStratSI(target, s.agents, s.strat)
	if err != nil {
		s.err = err
		return s.e.sys.False()
	}
	return r
}

func (s *siGame) moves(states bdd.Set) bdd.Set { return states.And(s.top) }

// nonFair returns the pairs of strat outside fairness constraint f.
func (s *siGame) nonFair(f bdd.Set) bdd.Set { return s.e.not(f).And(s.top) }

// nfairGamma returns the moves forcing an unfair path.
func (s *siGame) nfairGamma() bdd.Set {
	e, sys := s.e, s.e.sys
	if len(sys.Fairness()) == 0 {
		return sys.False()
	}
	if s.nfair != nil {
		return *s.nfair
	}
	r := e.lfp("nfair.si", func(z bdd.Set) bdd.Set {
		acc := sys.False()
		for _, f := range sys.Fairness() {
			nf := s.nonFair(f)
			acc = acc.Or(s.pre(e.gfp("nfair.si.avoid", s.top, func(y bdd.Set) bdd.Set {
				return z.Or(nf).And(s.pre(y))
			})))
		}
		return acc
	})
	s.nfair = &r
	return r
}

// cex does not restrict phi to strat: the successor may be a state the
// strategy leaves undefined.
func (s *siGame) cex(phi bdd.Set) bdd.Set {
	return s.pre(phi.And(s.e.sys.StatesInputsMask()).Or(s.nfairGamma()))
}

func (s *siGame) ceu(phi, psi bdd.Set) bdd.Set {
	e, sys := s.e, s.e.sys
	phi, psi = s.moves(phi), s.moves(psi)
	if len(sys.Fairness()) == 0 {
		return e.lfp("ceu.si", func(z bdd.Set) bdd.Set {
			return psi.Or(phi.And(s.pre(z)))
		})
	}
	stay := psi.Or(phi).Or(s.nfairGamma())
	return e.lfp("ceu.si", func(z bdd.Set) bdd.Set {
		acc := sys.False()
		for _, f := range sys.Fairness() {
			nf := s.nonFair(f)
			acc = acc.Or(s.pre(e.gfp("ceu.si.fair", s.top, func(y bdd.Set) bdd.Set {
				return stay.And(z.Or(nf)).And(psi.Or(s.pre(y)))
			})))
		}
		return stay.And(psi.Or(acc))
	})
}

func (s *siGame) cew(phi, psi bdd.Set) bdd.Set {
	phi, psi = s.moves(phi), s.moves(psi)
	stay := psi.Or(phi).Or(s.nfairGamma())
	return s.e.gfp("cew.si", s.top, func(y bdd.Set) bdd.Set {
		return stay.And(psi.Or(s.pre(y)))
	})
}

// winningSI returns the moves of strat, within the coalition's protocol,
// that win g when the coalition sticks to strat.
func (e *Evaluator) winningSI(g goal, strat bdd.Set) (bdd.Set, error) {
	s := e.newSIGame(g.agents, strat)
	var r bdd.Set
	switch g.kind {
	case goalNext:
		r = s.cex(g.right)
	case goalUntil:
		r = s.ceu(g.left, g.right)
	default:
		r = s.cew(g.left, g.right)
	}
	if s.err != nil {
		return bdd.Set{}, s.err
	}
	proto, err := e.sys.Protocol(g.agents)
	if err != nil {
		return bdd.Set{}, err
	}
	return r.And(e.sys.StatesInputsMask()).And(proto), nil
}
