package kripke

import (
	"fmt"
	"slices"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/rfielding/kripke-atlk/bdd"
)

// scope tells which variables an expression may mention.
type scope struct {
	next   bool // next(v) on state variables
	inputs bool // input variables
}

var (
	stateScope = scope{}
	transScope = scope{next: true, inputs: true}
	moveScope  = scope{inputs: true}
)

// exprParser compiles model expressions straight to sets.
//
// Operators from lowest to highest priority: "<->", "->", "|", "&", then the
// unary "~" or "!". Atoms are comparisons (v = c, v != w, next(v) = c,
// v in {a, b}), constants, Boolean variables and defines.
type exprParser struct {
	sys   *System
	sc    scope
	src   string
	s     scanner.Scanner
	eof   bool
	token string
	err   error
}

type term struct {
	v    *Var
	next bool
	call bool // written as next(...)
	text string
}

func (s *System) compile(src string, sc scope) (bdd.Set, error) {
	p := &exprParser{sys: s, sc: sc, src: src}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings
	p.s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || unicode.IsLetter(ch) || (i > 0 && (unicode.IsDigit(ch) || ch == '.'))
	}
	p.s.Error = func(_ *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = p.errorf("%s", msg)
		}
	}
	p.scan()
	if p.eof {
		return bdd.Set{}, p.errorf("empty expression")
	}
	r, err := p.parseIff()
	if err != nil {
		return bdd.Set{}, err
	}
	if p.err != nil {
		return bdd.Set{}, p.err
	}
	if !p.eof {
		return bdd.Set{}, p.errorf("unexpected token %q at %s", p.token, p.s.Position)
	}
	return r, nil
}

func (p *exprParser) errorf(format string, args ...any) error {
	return &TypeError{Expr: p.src, Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) scan() {
	if p.eof {
		return
	}
	p.eof = p.s.Scan() == scanner.EOF
	p.token = p.s.TokenText()
	if p.s.Peek() == '>' && p.token == "-" {
		p.s.Next()
		p.token = "->"
	}
}

func (p *exprParser) expect(tok string) error {
	if p.eof {
		return p.errorf("expected %q, found end of expression", tok)
	}
	if p.token != tok {
		return p.errorf("expected %q, found %q at %s", tok, p.token, p.s.Position)
	}
	p.scan()
	return nil
}

func (p *exprParser) parseIff() (bdd.Set, error) {
	l, err := p.parseImplies()
	if err != nil {
		return l, err
	}
	if !p.eof && p.token == "<" {
		p.scan()
		if err := p.expect("->"); err != nil {
			return l, err
		}
		r, err := p.parseIff()
		if err != nil {
			return r, err
		}
		return l.Iff(r), nil
	}
	return l, nil
}

func (p *exprParser) parseImplies() (bdd.Set, error) {
	l, err := p.parseOr()
	if err != nil {
		return l, err
	}
	if !p.eof && p.token == "->" {
		p.scan()
		r, err := p.parseImplies()
		if err != nil {
			return r, err
		}
		return l.Imp(r), nil
	}
	return l, nil
}

func (p *exprParser) parseOr() (bdd.Set, error) {
	l, err := p.parseAnd()
	if err != nil {
		return l, err
	}
	for !p.eof && p.token == "|" {
		p.scan()
		r, err := p.parseAnd()
		if err != nil {
			return r, err
		}
		l = l.Or(r)
	}
	return l, nil
}

func (p *exprParser) parseAnd() (bdd.Set, error) {
	l, err := p.parseNot()
	if err != nil {
		return l, err
	}
	for !p.eof && p.token == "&" {
		p.scan()
		r, err := p.parseNot()
		if err != nil {
			return r, err
		}
		l = l.And(r)
	}
	return l, nil
}

func (p *exprParser) parseNot() (bdd.Set, error) {
	if !p.eof && (p.token == "~" || p.token == "!") {
		p.scan()
		f, err := p.parseNot()
		if err != nil {
			return f, err
		}
		return f.Not(), nil
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (bdd.Set, error) {
	if p.eof {
		return bdd.Set{}, p.errorf("unexpected end of expression")
	}
	if p.token == "(" {
		p.scan()
		f, err := p.parseIff()
		if err != nil {
			return f, err
		}
		return f, p.expect(")")
	}
	t, err := p.parseTerm()
	if err != nil {
		return bdd.Set{}, err
	}
	if p.eof {
		return p.bare(t)
	}
	switch p.token {
	case "=":
		p.scan()
		u, err := p.parseTerm()
		if err != nil {
			return bdd.Set{}, err
		}
		return p.equal(t, u)
	case "!":
		p.scan()
		if err := p.expect("="); err != nil {
			return bdd.Set{}, err
		}
		u, err := p.parseTerm()
		if err != nil {
			return bdd.Set{}, err
		}
		eq, err := p.equal(t, u)
		if err != nil {
			return eq, err
		}
		return eq.Not(), nil
	case "in":
		p.scan()
		return p.parseIn(t)
	}
	return p.bare(t)
}

func (p *exprParser) parseTerm() (term, error) {
	if p.eof {
		return term{}, p.errorf("expected a variable or value, found end of expression")
	}
	switch p.token {
	case "(", ")", "&", "|", "->", "~", "!", "=", "<", "{", "}", ",":
		return term{}, p.errorf("expected a variable or value, found %q at %s", p.token, p.s.Position)
	}
	if p.token == "next" && p.s.Peek() == '(' {
		p.scan()
		p.scan()
		if p.eof {
			return term{}, p.errorf("expected a variable in next()")
		}
		name := p.token
		p.scan()
		if err := p.expect(")"); err != nil {
			return term{}, err
		}
		if !p.sc.next {
			return term{}, p.errorf("next(%s) is not allowed here", name)
		}
		v, ok := p.sys.byName[name]
		if !ok {
			return term{}, p.errorf("unknown variable %q", name)
		}
		if v.Kind != StateVar {
			return term{}, p.errorf("next(%s) of an input variable", name)
		}
		return term{v: v, next: true, call: true, text: name}, nil
	}
	text := strings.Trim(p.token, `"`)
	p.scan()
	t := term{text: text}
	if v, ok := p.sys.byName[text]; ok {
		if v.Kind == InputVar && !p.sc.inputs {
			return term{}, p.errorf("input variable %q is not allowed here", text)
		}
		t.v = v
	}
	return t, nil
}

func (p *exprParser) equal(t, u term) (bdd.Set, error) {
	if t.v == nil && u.v == nil {
		for _, c := range []term{t, u} {
			if !p.isValue(c.text) {
				return bdd.Set{}, p.errorf("unknown variable %q", c.text)
			}
		}
		return bdd.Set{}, p.errorf("comparison of two constants %q and %q", t.text, u.text)
	}
	if t.v == nil {
		t, u = u, t
	}
	if !u.call && t.v.index(u.text) >= 0 {
		return p.sys.Value(t.v, u.text, t.next)
	}
	if u.v == nil {
		return bdd.Set{}, p.errorf("%q is not in the domain of %s %v", u.text, t.v.Name, t.v.Domain)
	}
	if !slices.Equal(t.v.Domain, u.v.Domain) {
		return bdd.Set{}, p.errorf("%s and %s have different domains", t.v.Name, u.v.Name)
	}
	r := p.sys.m.False()
	for i := range t.v.Domain {
		r = r.Or(p.sys.valueSet(t.v, t.next, i).And(p.sys.valueSet(u.v, u.next, i)))
	}
	return r, nil
}

// isValue reports whether text is in the domain of some variable.
func (p *exprParser) isValue(text string) bool {
	for _, v := range p.sys.byName {
		if v.index(text) >= 0 {
			return true
		}
	}
	return false
}

func (p *exprParser) parseIn(t term) (bdd.Set, error) {
	if t.v == nil {
		return bdd.Set{}, p.errorf("unknown variable %q", t.text)
	}
	if err := p.expect("{"); err != nil {
		return bdd.Set{}, err
	}
	r := p.sys.m.False()
	for {
		if p.eof {
			return r, p.errorf("unterminated set")
		}
		v, err := p.sys.Value(t.v, strings.Trim(p.token, `"`), t.next)
		if err != nil {
			return r, err
		}
		r = r.Or(v)
		p.scan()
		if !p.eof && p.token == "," {
			p.scan()
			continue
		}
		return r, p.expect("}")
	}
}

// bare interprets a lone term as a Boolean.
func (p *exprParser) bare(t term) (bdd.Set, error) {
	if t.v != nil {
		if !t.v.Boolean() {
			return bdd.Set{}, p.errorf("%s is not a Boolean variable", t.v.Name)
		}
		return p.sys.Value(t.v, "true", t.next)
	}
	switch t.text {
	case "true", "TRUE":
		return p.sys.m.True(), nil
	case "false", "FALSE":
		return p.sys.m.False(), nil
	}
	if _, ok := p.sys.defines[t.text]; ok {
		return p.sys.define(t.text)
	}
	return bdd.Set{}, p.errorf("%q is not a Boolean expression", t.text)
}

// define compiles a named expression once.
func (s *System) define(name string) (bdd.Set, error) {
	s.defMu.Lock()
	if r, ok := s.defineSets[name]; ok {
		s.defMu.Unlock()
		return r, nil
	}
	if s.resolving[name] {
		s.defMu.Unlock()
		return bdd.Set{}, &TypeError{Expr: name, Msg: "define refers to itself"}
	}
	s.resolving[name] = true
	s.defMu.Unlock()

	r, err := s.compile(s.defines[name], stateScope)

	s.defMu.Lock()
	defer s.defMu.Unlock()
	delete(s.resolving, name)
	if err != nil {
		return bdd.Set{}, fmt.Errorf("define %s: %w", name, err)
	}
	s.defineSets[name] = r
	return r, nil
}
