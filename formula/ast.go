// Package formula defines ATLK formulas: propositional connectives, CTL
// temporal operators, epistemic operators and strategic (ATL) operators,
// together with their text syntax.
package formula

import (
	"fmt"
	"strings"
)

// Formula is an ATLK formula. The set of implementations is closed; String
// returns text that Parse reads back to an equal formula.
type Formula interface {
	String() string
	isFormula()
}

// True holds everywhere.
type True struct{}

// False holds nowhere.
type False struct{}

// Init holds in the initial states.
type Init struct{}

// Reachable holds in the reachable states.
type Reachable struct{}

// Atom is a state expression of the model, such as 'pcard = Ac'.
type Atom struct {
	Text string
}

// Not represents negation
type Not struct {
	Formula Formula
}

// And represents conjunction
type And struct {
	Left, Right Formula
}

// Or represents disjunction
type Or struct {
	Left, Right Formula
}

// Implies represents implication
type Implies struct {
	Left, Right Formula
}

// Iff represents equivalence
type Iff struct {
	Left, Right Formula
}

// EX represents "there exists a next state where"
type EX struct {
	Formula Formula
}

// AX represents "in all next states"
type AX struct {
	Formula Formula
}

// EF represents "there exists a path where eventually"
type EF struct {
	Formula Formula
}

// AF represents "on all paths eventually"
type AF struct {
	Formula Formula
}

// EG represents "there exists a path where always"
type EG struct {
	Formula Formula
}

// AG represents "on all paths always"
type AG struct {
	Formula Formula
}

// EU represents E[Left U Right]
type EU struct {
	Left, Right Formula
}

// AU represents A[Left U Right]
type AU struct {
	Left, Right Formula
}

// EW represents the weak until E[Left W Right]
type EW struct {
	Left, Right Formula
}

// AW represents A[Left W Right]
type AW struct {
	Left, Right Formula
}

// NK: Agent considers Formula possible.
type NK struct {
	Agent   string
	Formula Formula
}

// K: Agent knows Formula.
type K struct {
	Agent   string
	Formula Formula
}

// NE: some member of Group considers Formula possible.
type NE struct {
	Group   []string
	Formula Formula
}

// E: everybody in Group knows Formula.
type E struct {
	Group   []string
	Formula Formula
}

// ND: Formula is possible for the distributed knowledge of Group.
type ND struct {
	Group   []string
	Formula Formula
}

// D: Group has distributed knowledge of Formula.
type D struct {
	Group   []string
	Formula Formula
}

// NC: Formula is not common knowledge of its negation in Group.
type NC struct {
	Group   []string
	Formula Formula
}

// C: Formula is common knowledge in Group.
type C struct {
	Group   []string
	Formula Formula
}

// CEX: Group can force the next state to satisfy Formula.
type CEX struct {
	Group   []string
	Formula Formula
}

// CEF: Group can force Formula eventually.
type CEF struct {
	Group   []string
	Formula Formula
}

// CEG: Group can force Formula forever.
type CEG struct {
	Group   []string
	Formula Formula
}

// CEU: Group can force Left until Right.
type CEU struct {
	Group       []string
	Left, Right Formula
}

// CEW: Group can force Left weak-until Right.
type CEW struct {
	Group       []string
	Left, Right Formula
}

// CAX: Group cannot avoid the next state satisfying Formula.
type CAX struct {
	Group   []string
	Formula Formula
}

// CAF: Group cannot avoid Formula eventually.
type CAF struct {
	Group   []string
	Formula Formula
}

// CAG: Group cannot avoid Formula forever.
type CAG struct {
	Group   []string
	Formula Formula
}

// CAU: Group cannot avoid Left until Right.
type CAU struct {
	Group       []string
	Left, Right Formula
}

// CAW: Group cannot avoid Left weak-until Right.
type CAW struct {
	Group       []string
	Left, Right Formula
}

func (True) isFormula()      {}
func (False) isFormula()     {}
func (Init) isFormula()      {}
func (Reachable) isFormula() {}
func (Atom) isFormula()      {}
func (Not) isFormula()       {}
func (And) isFormula()       {}
func (Or) isFormula()        {}
func (Implies) isFormula()   {}
func (Iff) isFormula()       {}
func (EX) isFormula()        {}
func (AX) isFormula()        {}
func (EF) isFormula()        {}
func (AF) isFormula()        {}
func (EG) isFormula()        {}
func (AG) isFormula()        {}
func (EU) isFormula()        {}
func (AU) isFormula()        {}
func (EW) isFormula()        {}
func (AW) isFormula()        {}
func (NK) isFormula()        {}
func (K) isFormula()         {}
func (NE) isFormula()        {}
func (E) isFormula()         {}
func (ND) isFormula()        {}
func (D) isFormula()         {}
func (NC) isFormula()        {}
func (C) isFormula()         {}
func (CEX) isFormula()       {}
func (CEF) isFormula()       {}
func (CEG) isFormula()       {}
func (CEU) isFormula()       {}
func (CEW) isFormula()       {}
func (CAX) isFormula()       {}
func (CAF) isFormula()       {}
func (CAG) isFormula()       {}
func (CAU) isFormula()       {}
func (CAW) isFormula()       {}

func (True) String() string      { return "True" }
func (False) String() string     { return "False" }
func (Init) String() string      { return "Init" }
func (Reachable) String() string { return "Reachable" }
func (a Atom) String() string    { return "'" + a.Text + "'" }

func (n Not) String() string     { return fmt.Sprintf("~%s", n.Formula) }
func (a And) String() string     { return fmt.Sprintf("(%s & %s)", a.Left, a.Right) }
func (o Or) String() string      { return fmt.Sprintf("(%s | %s)", o.Left, o.Right) }
func (i Implies) String() string { return fmt.Sprintf("(%s -> %s)", i.Left, i.Right) }
func (i Iff) String() string     { return fmt.Sprintf("(%s <-> %s)", i.Left, i.Right) }

func (e EX) String() string { return fmt.Sprintf("EX %s", e.Formula) }
func (a AX) String() string { return fmt.Sprintf("AX %s", a.Formula) }
func (e EF) String() string { return fmt.Sprintf("EF %s", e.Formula) }
func (a AF) String() string { return fmt.Sprintf("AF %s", a.Formula) }
func (e EG) String() string { return fmt.Sprintf("EG %s", e.Formula) }
func (a AG) String() string { return fmt.Sprintf("AG %s", a.Formula) }
func (e EU) String() string { return fmt.Sprintf("E[%s U %s]", e.Left, e.Right) }
func (a AU) String() string { return fmt.Sprintf("A[%s U %s]", a.Left, a.Right) }
func (e EW) String() string { return fmt.Sprintf("E[%s W %s]", e.Left, e.Right) }
func (a AW) String() string { return fmt.Sprintf("A[%s W %s]", a.Left, a.Right) }

func group(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ",")
}

func (n NK) String() string { return fmt.Sprintf("nK<'%s'> %s", n.Agent, n.Formula) }
func (k K) String() string  { return fmt.Sprintf("K<'%s'> %s", k.Agent, k.Formula) }
func (n NE) String() string { return fmt.Sprintf("nE<%s> %s", group(n.Group), n.Formula) }
func (e E) String() string  { return fmt.Sprintf("E<%s> %s", group(e.Group), e.Formula) }
func (n ND) String() string { return fmt.Sprintf("nD<%s> %s", group(n.Group), n.Formula) }
func (d D) String() string  { return fmt.Sprintf("D<%s> %s", group(d.Group), d.Formula) }
func (n NC) String() string { return fmt.Sprintf("nC<%s> %s", group(n.Group), n.Formula) }
func (c C) String() string  { return fmt.Sprintf("C<%s> %s", group(c.Group), c.Formula) }

func (c CEX) String() string { return fmt.Sprintf("<%s> X %s", group(c.Group), c.Formula) }
func (c CEF) String() string { return fmt.Sprintf("<%s> F %s", group(c.Group), c.Formula) }
func (c CEG) String() string { return fmt.Sprintf("<%s> G %s", group(c.Group), c.Formula) }
func (c CEU) String() string {
	return fmt.Sprintf("<%s>[%s U %s]", group(c.Group), c.Left, c.Right)
}
func (c CEW) String() string {
	return fmt.Sprintf("<%s>[%s W %s]", group(c.Group), c.Left, c.Right)
}
func (c CAX) String() string { return fmt.Sprintf("[%s] X %s", group(c.Group), c.Formula) }
func (c CAF) String() string { return fmt.Sprintf("[%s] F %s", group(c.Group), c.Formula) }
func (c CAG) String() string { return fmt.Sprintf("[%s] G %s", group(c.Group), c.Formula) }
func (c CAU) String() string {
	return fmt.Sprintf("[%s][%s U %s]", group(c.Group), c.Left, c.Right)
}
func (c CAW) String() string {
	return fmt.Sprintf("[%s][%s W %s]", group(c.Group), c.Left, c.Right)
}
