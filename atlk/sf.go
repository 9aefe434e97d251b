package atlk

import (
	"context"
	"iter"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rfielding/kripke-atlk/bdd"
)

// sf splits the protocol into uniform strategies, then keeps the states
// winning under some strategy together with all their equivalent states.
func (e *Evaluator) sf(ctx context.Context, g goal) (bdd.Set, error) {
	proto, err := e.sys.Protocol(g.agents)
	if err != nil {
		return bdd.Set{}, err
	}
	sp := NewSplitter(e.sys, g.agents, e.opts.Semantics)
	sat, err := e.union(ctx, sp.Split(proto, e.sys.False()), func(strat bdd.Set) (bdd.Set, error) {
		return e.winningStates(g, sp, strat)
	})
	if err != nil {
		return bdd.Set{}, err
	}
	return sat, sp.Err()
}

// winningStates returns the states where strat wins g for every state the
// coalition cannot distinguish.
func (e *Evaluator) winningStates(g goal, sp *Splitter, strat bdd.Set) (bdd.Set, error) {
	e.countStrategy()
	w, err := e.winningSI(g, strat)
	if err != nil {
		return bdd.Set{}, err
	}
	return sp.AllEquivSat(w.Exists(e.sys.InputsCube()))
}

// union applies fn to every element of seq on at most Workers goroutines
// and returns the union of the results.
func (e *Evaluator) union(ctx context.Context, seq iter.Seq[bdd.Set], fn func(bdd.Set) (bdd.Set, error)) (bdd.Set, error) {
	var mu sync.Mutex
	sat := e.sys.False()

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.opts.Workers)
	for s := range seq {
		if gctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(s)
			if err != nil {
				return err
			}
			mu.Lock()
			sat = sat.Or(r)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return bdd.Set{}, err
	}
	if err := ctx.Err(); err != nil {
		return bdd.Set{}, err
	}
	return sat, nil
}
