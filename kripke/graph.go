package kripke

import (
	"fmt"
	"io"
	"strings"

	"github.com/rfielding/kripke-atlk/bdd"
)

type StateID string

// Graph is the explicit reachable part of a System: states in breadth-first
// order from the initial states, and the successor relation.
type Graph struct {
	States    []StateID
	Initial   []StateID
	Succ      map[StateID][]StateID
	Labels    map[StateID]string
	Truncated bool // the limit was reached before the whole graph was explored
}

// ExplicitGraph enumerates at most limit reachable states (all of them when
// limit <= 0).
func (s *System) ExplicitGraph(limit int) (*Graph, error) {
	g := &Graph{
		Succ:   map[StateID][]StateID{},
		Labels: map[StateID]string{},
	}
	ids := map[string]StateID{}
	var sets []bdd.Set
	visit := func(st bdd.Set) (StateID, bool) {
		label := s.Describe(st)
		if id, ok := ids[label]; ok {
			return id, true
		}
		if limit > 0 && len(g.States) >= limit {
			g.Truncated = true
			return "", false
		}
		id := StateID(fmt.Sprintf("s%d", len(g.States)))
		ids[label] = id
		g.States = append(g.States, id)
		g.Labels[id] = label
		sets = append(sets, st)
		return id, true
	}

	inits, err := s.PickAllStates(s.init)
	if err != nil {
		return nil, err
	}
	for _, st := range inits {
		if id, ok := visit(st); ok {
			g.Initial = append(g.Initial, id)
		}
	}
	for i := 0; i < len(sets); i++ {
		from := g.States[i]
		succs, err := s.PickAllStates(s.Post(sets[i]))
		if err != nil {
			return nil, err
		}
		for _, st := range succs {
			if id, ok := visit(st); ok {
				g.Succ[from] = append(g.Succ[from], id)
			}
		}
	}
	return g, nil
}

// GenerateGraphviz renders the graph in Graphviz DOT.
func (g *Graph) GenerateGraphviz(name string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %q {\n", name)
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box];\n")
	sb.WriteString("\n")

	sb.WriteString("  start [shape=point];\n")
	for _, id := range g.Initial {
		fmt.Fprintf(&sb, "  start -> %q;\n", id)
	}
	sb.WriteString("\n")

	for _, id := range g.States {
		label := strings.ReplaceAll(g.Labels[id], " ", "\\n")
		fmt.Fprintf(&sb, "  %q [label=\"%s\"];\n", id, label)
	}
	sb.WriteString("\n")

	for _, from := range g.States {
		for _, to := range g.Succ[from] {
			fmt.Fprintf(&sb, "  %q -> %q;\n", from, to)
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// WriteMermaidStateDiagram writes a Mermaid stateDiagram-v2 representation
// of the graph to w, with the state valuations as descriptions.
func (g *Graph) WriteMermaidStateDiagram(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "stateDiagram-v2"); err != nil {
		return err
	}
	for _, id := range g.Initial {
		fmt.Fprintf(w, "  [*] --> %s\n", id)
	}
	fmt.Fprintln(w)

	seenEdge := make(map[string]bool)
	for _, from := range g.States {
		for _, to := range g.Succ[from] {
			key := string(from) + "->" + string(to)
			if seenEdge[key] {
				continue
			}
			seenEdge[key] = true
			fmt.Fprintf(w, "  %s --> %s\n", from, to)
		}
	}

	fmt.Fprintln(w)
	for _, id := range g.States {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", id, g.Labels[id]); err != nil {
			return err
		}
	}
	return nil
}
