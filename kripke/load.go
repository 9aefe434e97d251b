package kripke

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rfielding/kripke-atlk/bdd"
)

// ModelFile is the YAML description of a multi-agent system.
type ModelFile struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Variables   Domains             `yaml:"variables"`
	Inputs      Domains             `yaml:"inputs"`
	Defines     map[string]string   `yaml:"defines"`
	Init        []string            `yaml:"init"`
	Trans       []string            `yaml:"trans"`
	Fairness    []string            `yaml:"fairness"`
	Agents      []AgentFile         `yaml:"agents"`
	Groups      map[string][]string `yaml:"groups"`
	Specs       []string            `yaml:"specs"`
}

type AgentFile struct {
	Name     string   `yaml:"name"`
	Observes []string `yaml:"observes"`
	Actions  []string `yaml:"actions"`
	Protocol []string `yaml:"protocol"`
}

// Domain is a named finite domain, in declaration order.
type Domain struct {
	Name   string
	Values []string
}

// Domains keeps the order of a YAML mapping of variable domains.
type Domains []Domain

// UnmarshalYAML accepts "boolean", an integer range "lo..hi" or a list of
// values for each variable.
func (d *Domains) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: variables must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		values, err := domainValues(val)
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", val.Line, key.Value, err)
		}
		*d = append(*d, Domain{Name: key.Value, Values: values})
	}
	return nil
}

func domainValues(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value == "boolean" {
			return []string{"false", "true"}, nil
		}
		lo, hi, ok := strings.Cut(n.Value, "..")
		if !ok {
			return nil, fmt.Errorf("unknown domain %q", n.Value)
		}
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, err
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, err
		}
		var out []string
		for i := a; i <= b; i++ {
			out = append(out, strconv.Itoa(i))
		}
		return out, nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("domain must be a list, a range or boolean")
}

// LoadFile reads and builds a model from a YAML file.
func LoadFile(path string, opts ...bdd.Option) (*System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	return Parse(data, opts...)
}

// Load reads and builds a model from r.
func Load(r io.Reader, opts ...bdd.Option) (*System, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	return Parse(data, opts...)
}

// Parse builds a model from its YAML text.
func Parse(data []byte, opts ...bdd.Option) (*System, error) {
	var mf ModelFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModel, err)
	}
	return Build(&mf, opts...)
}

// Build encodes a model description into BDDs.
func Build(mf *ModelFile, opts ...bdd.Option) (*System, error) {
	if err := validate(mf); err != nil {
		return nil, err
	}
	nbits := 0
	for _, d := range mf.Variables {
		nbits += 2 * width(len(d.Values))
	}
	for _, d := range mf.Inputs {
		nbits += width(len(d.Values))
	}
	opts = append([]bdd.Option{bdd.Reserve(strategyBits(mf))}, opts...)
	m, err := bdd.New(nbits, opts...)
	if err != nil {
		return nil, err
	}
	s := newSystem(mf.Name, m)
	s.specs = mf.Specs
	s.defines = mf.Defines
	if s.defines == nil {
		s.defines = map[string]string{}
	}

	next := 0
	for _, d := range mf.Variables {
		v := &Var{Name: d.Name, Kind: StateVar, Domain: d.Values}
		for b := 0; b < width(len(d.Values)); b++ {
			v.cur = append(v.cur, next)
			v.next = append(v.next, next+1)
			next += 2
		}
		s.stateVars = append(s.stateVars, v)
		s.byName[v.Name] = v
	}
	for _, d := range mf.Inputs {
		v := &Var{Name: d.Name, Kind: InputVar, Domain: d.Values}
		for b := 0; b < width(len(d.Values)); b++ {
			v.cur = append(v.cur, next)
			next++
		}
		s.inputVars = append(s.inputVars, v)
		s.byName[v.Name] = v
	}
	s.index()

	for name := range s.defines {
		if _, err := s.define(name); err != nil {
			return nil, err
		}
	}

	s.init, err = s.conjoin(mf.Init, stateScope, "init")
	if err != nil {
		return nil, err
	}
	s.init = s.init.And(s.statesMask)

	for _, a := range mf.Agents {
		ag := &Agent{Name: a.Name}
		for _, o := range a.Observes {
			ag.Observed = append(ag.Observed, s.byName[o])
		}
		for _, act := range a.Actions {
			ag.Actions = append(ag.Actions, s.byName[act])
		}
		ag.protocol, err = s.conjoin(a.Protocol, moveScope, "protocol of "+a.Name)
		if err != nil {
			return nil, err
		}
		s.agents[a.Name] = ag
		s.agentOrder = append(s.agentOrder, a.Name)
	}
	for name, members := range mf.Groups {
		s.groups[name] = &Group{Name: name, Members: members}
	}

	trans, err := s.conjoin(mf.Trans, transScope, "trans")
	if err != nil {
		return nil, err
	}
	for _, name := range s.agentOrder {
		trans = trans.And(s.agents[name].protocol)
	}
	s.trans = trans.And(s.statesMask).And(s.inputsMask).And(s.nextMask)
	s.rel = s.NewRelation(s.trans, nil)

	for i, f := range mf.Fairness {
		c, err := s.compile(f, stateScope)
		if err != nil {
			return nil, fmt.Errorf("fairness %d: %w", i+1, err)
		}
		s.fairness = append(s.fairness, c.And(s.statesMask))
	}

	slog.Debug("model loaded",
		"model", s.Name,
		"state_vars", len(s.stateVars),
		"input_vars", len(s.inputVars),
		"bdd_vars", m.Varnum(),
		"agents", len(s.agentOrder))
	return s, nil
}

// maxStrategyBits caps the variables reserved for strategy encodings.
const maxStrategyBits = 1 << 12

// strategyBits bounds the variables of a strategy encoding (NewStateVars):
// one choice variable per observation of the coalition of every agent, wide
// enough for every joint action, on current and next bits.
func strategyBits(mf *ModelFile) int {
	observed := map[string]bool{}
	for _, a := range mf.Agents {
		for _, o := range a.Observes {
			observed[o] = true
		}
	}
	classes := 1
	for _, d := range mf.Variables {
		if observed[d.Name] {
			classes = min(classes*len(d.Values), maxStrategyBits)
		}
	}
	actions := 1
	for _, d := range mf.Inputs {
		actions = min(actions*len(d.Values), maxStrategyBits)
	}
	return min(classes*2*width(actions), maxStrategyBits)
}

func (s *System) conjoin(exprs []string, sc scope, what string) (bdd.Set, error) {
	r := s.m.True()
	for _, e := range exprs {
		c, err := s.compile(e, sc)
		if err != nil {
			return r, fmt.Errorf("%s: %w", what, err)
		}
		r = r.And(c)
	}
	return r, nil
}

func validate(mf *ModelFile) error {
	names := map[string]string{}
	declare := func(name, what string) error {
		if name == "" {
			return modelErrorf("empty %s name", what)
		}
		if prev, ok := names[name]; ok {
			return modelErrorf("%s %q already declared as %s", what, name, prev)
		}
		names[name] = what
		return nil
	}
	for _, d := range append(append(Domains(nil), mf.Variables...), mf.Inputs...) {
		if err := declare(d.Name, "variable"); err != nil {
			return err
		}
		if len(d.Values) == 0 {
			return modelErrorf("variable %q has an empty domain", d.Name)
		}
		if len(d.Values) != len(uniq(d.Values)) {
			return modelErrorf("variable %q has duplicate values", d.Name)
		}
	}
	for name := range mf.Defines {
		if err := declare(name, "define"); err != nil {
			return err
		}
	}
	owner := map[string]string{}
	agents := map[string]bool{}
	for _, a := range mf.Agents {
		if err := declare(a.Name, "agent"); err != nil {
			return err
		}
		agents[a.Name] = true
		for _, o := range a.Observes {
			if !slices.ContainsFunc(mf.Variables, func(d Domain) bool { return d.Name == o }) {
				return modelErrorf("agent %q observes %q which is not a state variable", a.Name, o)
			}
		}
		for _, act := range a.Actions {
			if !slices.ContainsFunc(mf.Inputs, func(d Domain) bool { return d.Name == act }) {
				return modelErrorf("agent %q acts on %q which is not an input variable", a.Name, act)
			}
			if prev, ok := owner[act]; ok {
				return modelErrorf("action %q belongs to both %q and %q", act, prev, a.Name)
			}
			owner[act] = a.Name
		}
	}
	for name := range mf.Groups {
		if err := declare(name, "group"); err != nil {
			return err
		}
	}
	for name, members := range mf.Groups {
		for _, m := range members {
			if _, isGroup := mf.Groups[m]; !agents[m] && !isGroup {
				return fmt.Errorf("group %q: %w", name, &UnknownAgentError{Name: m})
			}
		}
		if groupCycle(mf.Groups, name, map[string]bool{}) {
			return modelErrorf("group %q contains itself", name)
		}
	}
	return nil
}

func groupCycle(groups map[string][]string, name string, seen map[string]bool) bool {
	if seen[name] {
		return true
	}
	seen[name] = true
	defer delete(seen, name)
	for _, m := range groups[name] {
		if _, ok := groups[m]; ok && groupCycle(groups, m, seen) {
			return true
		}
	}
	return false
}

func uniq(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
