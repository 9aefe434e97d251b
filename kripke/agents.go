package kripke

import (
	"slices"
	"strings"

	"github.com/rfielding/kripke-atlk/bdd"
)

// Agent observes some state variables and controls some input variables.
type Agent struct {
	Name     string
	Observed []*Var
	Actions  []*Var

	protocol bdd.Set
}

// Group names a set of agents or other groups.
type Group struct {
	Name    string
	Members []string
}

// Reading selects how a group's knowledge is combined.
type Reading int

const (
	// Distributed: states agreeing on every variable observed by a member.
	Distributed Reading = iota
	// Common: chains of individual equivalences through reachable states.
	Common
)

// Agents returns the agents in declaration order.
func (s *System) Agents() []*Agent {
	out := make([]*Agent, 0, len(s.agentOrder))
	for _, n := range s.agentOrder {
		out = append(out, s.agents[n])
	}
	return out
}

// Groups returns the declared groups sorted by name.
func (s *System) Groups() []*Group {
	out := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *Group) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// AgentsOf resolves agent and group names to a sorted set of agent names.
func (s *System) AgentsOf(names []string) ([]string, error) {
	seen := map[string]bool{}
	var walk func(string) error
	walk = func(n string) error {
		if _, ok := s.agents[n]; ok {
			seen[n] = true
			return nil
		}
		g, ok := s.groups[n]
		if !ok {
			return &UnknownAgentError{Name: n}
		}
		for _, m := range g.Members {
			if err := walk(m); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		if err := walk(n); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

func key(agents []string) string { return strings.Join(agents, ",") }

func (s *System) agent(name string) (*Agent, error) {
	a, ok := s.agents[name]
	if !ok {
		return nil, &UnknownAgentError{Name: name}
	}
	return a, nil
}

func (s *System) actionBits(agents []string) ([]int, error) {
	var out []int
	for _, n := range agents {
		a, err := s.agent(n)
		if err != nil {
			return nil, err
		}
		for _, v := range a.Actions {
			out = append(out, v.cur...)
		}
	}
	return out, nil
}

// ObservedVars returns the union of the variables observed by agents.
func (s *System) ObservedVars(agents []string) ([]*Var, error) {
	var out []*Var
	for _, n := range agents {
		a, err := s.agent(n)
		if err != nil {
			return nil, err
		}
		for _, v := range a.Observed {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	slices.SortFunc(out, func(a, b *Var) int { return a.cur[0] - b.cur[0] })
	return out, nil
}

// ActionVars returns the input variables controlled by agents.
func (s *System) ActionVars(agents []string) ([]*Var, error) {
	var out []*Var
	for _, n := range agents {
		a, err := s.agent(n)
		if err != nil {
			return nil, err
		}
		out = append(out, a.Actions...)
	}
	return out, nil
}

// InputsCubeFor is the quantification cube of the agents' action variables.
func (s *System) InputsCubeFor(agents []string) (bdd.Set, error) {
	b, err := s.actionBits(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	return s.m.Cube(b), nil
}

// OtherInputsCube is the cube of the input variables not controlled by
// agents.
func (s *System) OtherInputsCube(agents []string) (bdd.Set, error) {
	own, err := s.actionBits(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	var out []int
	for _, b := range s.inputBits {
		if !slices.Contains(own, b) {
			out = append(out, b)
		}
	}
	return s.m.Cube(out), nil
}

// ObservedCube is the cube of the state variables observed by agents.
func (s *System) ObservedCube(agents []string) (bdd.Set, error) {
	vars, err := s.ObservedVars(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	var b []int
	for _, v := range vars {
		b = append(b, v.cur...)
	}
	return s.m.Cube(b), nil
}

// unobservedCube quantifies what agents cannot see: the state variables
// they do not observe and every input.
func (s *System) unobservedCube(agents []string) (bdd.Set, error) {
	vars, err := s.ObservedVars(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	var b []int
	for _, v := range s.stateVars {
		if !slices.Contains(vars, v) {
			b = append(b, v.cur...)
		}
	}
	return s.m.Cube(append(b, s.inputBits...)), nil
}

// Protocol returns the state/action pairs of the coalition that can be
// completed into a transition from a reachable state. The result only
// constrains the coalition's action variables.
func (s *System) Protocol(agents []string) (bdd.Set, error) {
	k := key(agents)
	s.mu.Lock()
	p, ok := s.protocols[k]
	s.mu.Unlock()
	if ok {
		return p, nil
	}
	others, err := s.OtherInputsCube(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	p = s.trans.And(s.Reachable()).Exists(s.nextCube.And(others)).And(s.inputsMask)
	s.mu.Lock()
	s.protocols[k] = p
	s.mu.Unlock()
	return p, nil
}

// EquivalentStates returns the states indistinguishable from some state of
// states for the group agents, in the distributed reading.
func (s *System) EquivalentStates(states bdd.Set, agents []string) (bdd.Set, error) {
	cube, err := s.unobservedCube(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	return states.And(s.statesMask).Exists(cube).And(s.statesMask), nil
}

// CommonEquivalentStates closes states under the individual equivalences of
// agents, through reachable states.
func (s *System) CommonEquivalentStates(states bdd.Set, agents []string) (bdd.Set, error) {
	cubes := make([]bdd.Set, 0, len(agents))
	for _, a := range agents {
		c, err := s.unobservedCube([]string{a})
		if err != nil {
			return bdd.Set{}, err
		}
		cubes = append(cubes, c)
	}
	reach := s.Reachable()
	start := states.Exists(s.inputsCube).And(s.statesMask)
	return bdd.LFP(start, func(z bdd.Set) bdd.Set {
		r := z
		for _, c := range cubes {
			r = r.Or(z.Exists(c).And(reach))
		}
		return r
	}), nil
}

// Equivalent dispatches on the reading.
func (s *System) Equivalent(states bdd.Set, agents []string, r Reading) (bdd.Set, error) {
	if r == Common {
		return s.CommonEquivalentStates(states, agents)
	}
	return s.EquivalentStates(states, agents)
}

// EquivalenceRelation relates current and next states that agents cannot
// tell apart in the distributed reading.
func (s *System) EquivalenceRelation(agents []string) (bdd.Set, error) {
	k := key(agents)
	s.mu.Lock()
	r, ok := s.relations[k]
	s.mu.Unlock()
	if ok {
		return r, nil
	}
	vars, err := s.ObservedVars(agents)
	if err != nil {
		return bdd.Set{}, err
	}
	r = s.statesMask.And(s.nextMask)
	for _, v := range vars {
		r = r.And(s.Unchanged(v))
	}
	s.mu.Lock()
	s.relations[k] = r
	s.mu.Unlock()
	return r, nil
}
