package atlk

import "github.com/rfielding/kripke-atlk/formula"

// rewrite expresses derived operators with the existential ones the
// evaluators implement. It reports false for formulas evaluated directly.
func rewrite(f formula.Formula) (formula.Formula, bool) {
	switch f := f.(type) {
	case formula.Implies:
		return formula.Or{Left: formula.Not{Formula: f.Left}, Right: f.Right}, true
	case formula.AX:
		return formula.Not{Formula: formula.EX{Formula: formula.Not{Formula: f.Formula}}}, true
	case formula.EF:
		return formula.EU{Left: formula.True{}, Right: f.Formula}, true
	case formula.AF:
		return formula.Not{Formula: formula.EG{Formula: formula.Not{Formula: f.Formula}}}, true
	case formula.AG:
		return formula.Not{Formula: formula.EU{Left: formula.True{}, Right: formula.Not{Formula: f.Formula}}}, true
	case formula.EW:
		return formula.Or{Left: formula.EU{Left: f.Left, Right: f.Right}, Right: formula.EG{Formula: f.Left}}, true
	case formula.AU:
		nq := formula.Not{Formula: f.Right}
		return formula.Not{Formula: formula.Or{
			Left:  formula.EU{Left: nq, Right: formula.And{Left: formula.Not{Formula: f.Left}, Right: nq}},
			Right: formula.EG{Formula: nq},
		}}, true
	case formula.AW:
		nq := formula.Not{Formula: f.Right}
		return formula.Not{Formula: formula.EU{Left: nq, Right: formula.And{Left: formula.Not{Formula: f.Left}, Right: nq}}}, true
	case formula.K:
		return formula.Not{Formula: formula.NK{Agent: f.Agent, Formula: formula.Not{Formula: f.Formula}}}, true
	case formula.E:
		return formula.Not{Formula: formula.NE{Group: f.Group, Formula: formula.Not{Formula: f.Formula}}}, true
	case formula.D:
		return formula.Not{Formula: formula.ND{Group: f.Group, Formula: formula.Not{Formula: f.Formula}}}, true
	case formula.C:
		return formula.Not{Formula: formula.NC{Group: f.Group, Formula: formula.Not{Formula: f.Formula}}}, true
	}
	return nil, false
}

// strategicDual rewrites a "cannot avoid" operator as the negation of a
// "can force" operator.
func strategicDual(f formula.Formula) (formula.Formula, bool) {
	not := func(g formula.Formula) formula.Formula { return formula.Not{Formula: g} }
	switch f := f.(type) {
	case formula.CAX:
		return not(formula.CEX{Group: f.Group, Formula: not(f.Formula)}), true
	case formula.CAF:
		return not(formula.CEG{Group: f.Group, Formula: not(f.Formula)}), true
	case formula.CAG:
		return not(formula.CEF{Group: f.Group, Formula: not(f.Formula)}), true
	case formula.CAU:
		nq := not(f.Right)
		return not(formula.CEW{Group: f.Group, Left: nq, Right: formula.And{Left: not(f.Left), Right: nq}}), true
	case formula.CAW:
		nq := not(f.Right)
		return not(formula.CEU{Group: f.Group, Left: nq, Right: formula.And{Left: not(f.Left), Right: nq}}), true
	}
	return nil, false
}

type goalKind int

const (
	goalNext goalKind = iota
	goalUntil
	goalWeakUntil
)

// strategic is a coalition operator reduced to one of three goals. Left is
// nil for goalNext.
type strategic struct {
	node   formula.Formula
	group  []string
	exists bool
	kind   goalKind
	left   formula.Formula
	right  formula.Formula
}

// strategicOf recognizes the ten coalition operators. F becomes an until
// from True and G a weak until towards False.
func strategicOf(f formula.Formula) (strategic, bool) {
	s := strategic{node: f}
	switch f := f.(type) {
	case formula.CEX:
		s.group, s.exists, s.kind, s.right = f.Group, true, goalNext, f.Formula
	case formula.CEF:
		s.group, s.exists, s.kind, s.left, s.right = f.Group, true, goalUntil, formula.True{}, f.Formula
	case formula.CEG:
		s.group, s.exists, s.kind, s.left, s.right = f.Group, true, goalWeakUntil, f.Formula, formula.False{}
	case formula.CEU:
		s.group, s.exists, s.kind, s.left, s.right = f.Group, true, goalUntil, f.Left, f.Right
	case formula.CEW:
		s.group, s.exists, s.kind, s.left, s.right = f.Group, true, goalWeakUntil, f.Left, f.Right
	case formula.CAX:
		s.group, s.kind, s.right = f.Group, goalNext, f.Formula
	case formula.CAF:
		s.group, s.kind, s.left, s.right = f.Group, goalUntil, formula.True{}, f.Formula
	case formula.CAG:
		s.group, s.kind, s.left, s.right = f.Group, goalWeakUntil, f.Formula, formula.False{}
	case formula.CAU:
		s.group, s.kind, s.left, s.right = f.Group, goalUntil, f.Left, f.Right
	case formula.CAW:
		s.group, s.kind, s.left, s.right = f.Group, goalWeakUntil, f.Left, f.Right
	default:
		return s, false
	}
	return s, true
}
