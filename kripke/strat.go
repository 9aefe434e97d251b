package kripke

import "github.com/rfielding/kripke-atlk/bdd"

// winningMoves returns the coalition moves of strat, within the protocol,
// such that every completion by the other agents only leads into target.
func (s *System) winningMoves(target bdd.Set, agents []string, strat bdd.Set) (bdd.Set, error) {
	proto, err := s.Protocol(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	others, err := s.OtherInputsCube(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	escape := target.Exists(s.inputsCube).Not().And(s.statesMask)
	bad := s.PreInputs(escape, s.m.True()).Exists(others)
	return proto.And(strat).Diff(bad), nil
}

// PreStrat returns the states where agents have a move in strat whose every
// completion leads into target.
func (s *System) PreStrat(target bdd.Set, agents []string, strat bdd.Set) (bdd.Set, error) {
	moves, err := s.winningMoves(target, agents, strat)
	if err != nil {
		return bdd.Set{}, err
	}
	return moves.Exists(s.inputsCube), nil
}

// PreStratSI is PreStrat on state/action pairs: the moves of strat that
// force target.
func (s *System) PreStratSI(target bdd.Set, agents []string, strat bdd.Set) (bdd.Set, error) {
	return s.winningMoves(target, agents, strat)
}

// PreNStrat returns the states where every move of agents can be completed
// into a transition reaching target.
func (s *System) PreNStrat(target bdd.Set, agents []string) (bdd.Set, error) {
	avoid, err := s.PreStrat(target.Exists(s.inputsCube).Not().And(s.statesMask), agents, s.m.True())
	if err != nil {
		return bdd.Set{}, err
	}
	return s.statesMask.Diff(avoid), nil
}

// CheckFreeChoice returns the reachable moves where every agent's action is
// allowed by its own protocol but the joint action has no transition. It
// is empty when agents choose their actions independently.
func (s *System) CheckFreeChoice() (bdd.Set, error) {
	joint := s.Reachable().And(s.inputsMask)
	var owned []string
	for _, name := range s.agentOrder {
		p, err := s.Protocol([]string{name})
		if err != nil {
			return bdd.Set{}, err
		}
		joint = joint.And(p)
		owned = append(owned, name)
	}
	env, err := s.OtherInputsCube(owned)
	if err != nil {
		return bdd.Set{}, err
	}
	enabled := s.trans.Exists(s.nextCube).Exists(env)
	return joint.Diff(enabled), nil
}
