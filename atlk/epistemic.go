package atlk

import "github.com/rfielding/kripke-atlk/bdd"

// nk returns the states where the group agents, pooling their
// observations, consider some reachable fair state of states possible.
func (e *Evaluator) nk(states bdd.Set, agents []string) (bdd.Set, error) {
	return e.sys.EquivalentStates(states.And(e.sys.Reachable()).And(e.fairStates()), agents)
}

// ne returns the states where some member considers states possible.
func (e *Evaluator) ne(states bdd.Set, agents []string) (bdd.Set, error) {
	r := e.sys.False()
	for _, a := range agents {
		s, err := e.nk(states, []string{a})
		if err != nil {
			return bdd.Set{}, err
		}
		r = r.Or(s)
	}
	return r, nil
}

// nc returns the states from which a chain of individual possibilities
// reaches states.
func (e *Evaluator) nc(states bdd.Set, agents []string) (bdd.Set, error) {
	var err error
	r := e.lfp("nc", func(z bdd.Set) bdd.Set {
		if err != nil {
			return z
		}
		var next bdd.Set
		next, err = e.ne(z.Or(states), agents)
		if err != nil {
			return z
		}
		return next
	})
	if err != nil {
		return bdd.Set{}, err
	}
	return r, nil
}
