package atlk

import (
	"context"
	"slices"

	"github.com/rfielding/kripke-atlk/bdd"
)

// fs filters the winning moves of the protocol, then splits only the first
// conflicting equivalence class left and recurses on each of its parts.
func (e *Evaluator) fs(ctx context.Context, g goal) (bdd.Set, error) {
	proto, err := e.sys.Protocol(g.agents)
	if err != nil {
		return bdd.Set{}, err
	}
	sp := NewSplitter(e.sys, g.agents, e.opts.Semantics)
	return e.fsFrom(ctx, g, sp, proto, 0)
}

func (e *Evaluator) fsFrom(ctx context.Context, g goal, sp *Splitter, strat bdd.Set, depth int) (bdd.Set, error) {
	if err := ctx.Err(); err != nil {
		return bdd.Set{}, err
	}
	winning, err := e.winningSI(g, strat)
	if err != nil || winning.IsFalse() {
		return winning, err
	}

	class := e.sys.False()
	moves := winning
	for !moves.IsFalse() {
		si, err := e.sys.PickOneStateInputs(moves)
		if err != nil {
			return bdd.Set{}, err
		}
		eq, err := sp.equivClass(si)
		if err != nil {
			return bdd.Set{}, err
		}
		c := moves.And(eq)
		moves = moves.Diff(c)
		conflicting, err := sp.isConflicting(c)
		if err != nil {
			return bdd.Set{}, err
		}
		if conflicting {
			class = c
			break
		}
	}
	if class.IsFalse() {
		e.countStrategy()
		return sp.AllEquivSat(winning.Exists(e.sys.InputsCube()))
	}

	rest := winning.Diff(class)
	parts := slices.Collect(sp.splitConflicting(class, e.sys.False()))
	if err := sp.Err(); err != nil {
		return bdd.Set{}, err
	}
	sub := func(part bdd.Set) (bdd.Set, error) {
		return e.fsFrom(ctx, g, sp, rest.Or(part), depth+1)
	}
	if depth == 0 {
		return e.union(ctx, slices.Values(parts), sub)
	}
	sat := e.sys.False()
	for _, part := range parts {
		s, err := sub(part)
		if err != nil {
			return bdd.Set{}, err
		}
		sat = sat.Or(s)
	}
	return sat, nil
}
