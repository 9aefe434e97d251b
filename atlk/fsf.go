package atlk

import (
	"context"

	"github.com/rfielding/kripke-atlk/bdd"
)

// fsf filters the winning moves of the protocol, splits them into uniform
// strategies and filters each strategy again.
func (e *Evaluator) fsf(ctx context.Context, g goal) (bdd.Set, error) {
	proto, err := e.sys.Protocol(g.agents)
	if err != nil {
		return bdd.Set{}, err
	}
	winning, err := e.winningSI(g, proto)
	if err != nil || winning.IsFalse() {
		return e.sys.False(), err
	}
	sp := NewSplitter(e.sys, g.agents, e.opts.Semantics)
	sat, err := e.union(ctx, sp.Split(winning, e.sys.False()), func(strat bdd.Set) (bdd.Set, error) {
		return e.winningStates(g, sp, strat)
	})
	if err != nil {
		return bdd.Set{}, err
	}
	return sat, sp.Err()
}
