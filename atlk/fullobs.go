package atlk

import (
	"strings"

	"github.com/rfielding/kripke-atlk/bdd"
)

// coalition computes strategic pre-images of agents under full
// observability. The first engine error is kept in err; later images are
// empty so that pending fixpoints terminate.
type coalition struct {
	e      *Evaluator
	agents []string
	err    error
}

func (c *coalition) pre(target bdd.Set) bdd.Set {
	if c.err != nil {
		return c.e.sys.False()
	}
	r, err := c.e.sys.PreStrat(target, c.agents, c.e.sys.True())
	if err != nil {
		c.err = err
		return c.e.sys.False()
	}
	return r
}

func (c *coalition) npre(target bdd.Set) bdd.Set {
	if c.err != nil {
		return c.e.sys.False()
	}
	r, err := c.e.sys.PreNStrat(target, c.agents)
	if err != nil {
		c.err = err
		return c.e.sys.False()
	}
	return r
}

func (e *Evaluator) fullObs(g goal) (bdd.Set, error) {
	c := &coalition{e: e, agents: g.agents}
	var r bdd.Set
	switch {
	case g.exists && g.kind == goalNext:
		r = c.cex(g.right)
	case g.exists && g.kind == goalUntil:
		r = c.ceu(g.left, g.right)
	case g.exists:
		r = c.cew(g.left, g.right)
	case g.kind == goalNext:
		r = c.cax(g.right)
	case g.kind == goalUntil:
		r = c.cau(g.left, g.right)
	default:
		r = c.caw(g.left, g.right)
	}
	if c.err != nil {
		return bdd.Set{}, c.err
	}
	return r, nil
}

func (c *coalition) key() string { return strings.Join(c.agents, ",") }

// nfairGamma returns the states where the coalition can force an unfair
// path.
func (c *coalition) nfairGamma() bdd.Set {
	e, sys := c.e, c.e.sys
	if len(sys.Fairness()) == 0 {
		return sys.False()
	}
	e.mu.Lock()
	r, ok := e.nfairGamma[c.key()]
	e.mu.Unlock()
	if ok {
		return r
	}
	r = e.lfp("nfair", func(z bdd.Set) bdd.Set {
		acc := sys.False()
		for _, f := range sys.Fairness() {
			nf := e.not(f)
			acc = acc.Or(c.pre(e.gfp("nfair.avoid", sys.StatesMask(), func(y bdd.Set) bdd.Set {
				return z.Or(nf).And(c.pre(y))
			})))
		}
		return acc
	})
	if c.err == nil {
		e.mu.Lock()
		e.nfairGamma[c.key()] = r
		e.mu.Unlock()
	}
	return r
}

// fairGamma returns the states where the coalition cannot avoid a fair
// path.
func (c *coalition) fairGamma() bdd.Set {
	e := c.e
	e.mu.Lock()
	r, ok := e.fairGamma[c.key()]
	e.mu.Unlock()
	if ok {
		return r
	}
	r = c.cag(e.sys.StatesMask())
	if c.err == nil {
		e.mu.Lock()
		e.fairGamma[c.key()] = r
		e.mu.Unlock()
	}
	return r
}

func (c *coalition) cex(phi bdd.Set) bdd.Set {
	return c.pre(phi.Or(c.nfairGamma()))
}

func (c *coalition) ceu(phi, psi bdd.Set) bdd.Set {
	e, sys := c.e, c.e.sys
	if len(sys.Fairness()) == 0 {
		return e.lfp("ceu", func(z bdd.Set) bdd.Set {
			return psi.Or(phi.And(c.pre(z)))
		})
	}
	nfair := c.nfairGamma()
	stay := psi.Or(phi).Or(nfair)
	return e.lfp("ceu", func(z bdd.Set) bdd.Set {
		acc := sys.False()
		for _, f := range sys.Fairness() {
			nf := e.not(f)
			acc = acc.Or(c.pre(e.gfp("ceu.fair", sys.StatesMask(), func(y bdd.Set) bdd.Set {
				return stay.And(z.Or(nf)).And(psi.Or(c.pre(y)))
			})))
		}
		return stay.And(psi.Or(acc))
	})
}

func (c *coalition) cew(phi, psi bdd.Set) bdd.Set {
	stay := psi.Or(phi).Or(c.nfairGamma())
	return c.e.gfp("cew", c.e.sys.StatesMask(), func(y bdd.Set) bdd.Set {
		return stay.And(psi.Or(c.pre(y)))
	})
}

func (c *coalition) cax(phi bdd.Set) bdd.Set {
	return c.npre(phi.And(c.fairGamma()))
}

func (c *coalition) cau(phi, psi bdd.Set) bdd.Set {
	goal := psi.And(c.fairGamma())
	return c.e.lfp("cau", func(y bdd.Set) bdd.Set {
		return goal.Or(phi.And(c.npre(y)))
	})
}

func (c *coalition) caw(phi, psi bdd.Set) bdd.Set {
	e, sys := c.e, c.e.sys
	if len(sys.Fairness()) == 0 {
		return e.gfp("caw", sys.StatesMask(), func(z bdd.Set) bdd.Set {
			return psi.Or(phi.And(c.npre(z)))
		})
	}
	goal := psi.And(c.fairGamma())
	return e.gfp("caw", sys.StatesMask(), func(z bdd.Set) bdd.Set {
		r := phi
		for _, f := range sys.Fairness() {
			target := z.And(f)
			r = r.And(c.npre(e.lfp("caw.fair", func(y bdd.Set) bdd.Set {
				return goal.Or(target).Or(phi.And(c.npre(y)))
			})))
		}
		return goal.Or(r)
	})
}

func (c *coalition) cag(phi bdd.Set) bdd.Set {
	e, sys := c.e, c.e.sys
	if len(sys.Fairness()) == 0 {
		return e.gfp("cag", sys.StatesMask(), func(z bdd.Set) bdd.Set {
			return phi.And(c.npre(z))
		})
	}
	return e.gfp("cag", sys.StatesMask(), func(z bdd.Set) bdd.Set {
		r := phi
		for _, f := range sys.Fairness() {
			target := z.And(f)
			r = r.And(c.npre(e.lfp("cag.fair", func(y bdd.Set) bdd.Set {
				return target.Or(phi.And(c.npre(y)))
			})))
		}
		return r
	})
}
