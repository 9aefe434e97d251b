package formula

import (
	"errors"
	"fmt"
	"strings"
	"text/scanner"
	"unicode"
)

// ErrParse is the sentinel of every ParseError.
var ErrParse = errors.New("parse error")

// ParseError locates a syntax error in formula text.
type ParseError struct {
	Line, Column int
	Token        string
	Msg          string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("line %d, column %d: %s (at %q)", e.Line, e.Column, e.Msg, e.Token)
}

func (e *ParseError) Unwrap() error { return ErrParse }

type parser struct {
	s     scanner.Scanner
	line  int
	eof   bool   // Have we reached eof yet?
	token string // Last token read
	quote bool   // Last token was a quoted name
	err   error
}

// Parse reads one formula.
//
// Operators, from lowest to highest priority:
//
//   - "<->" equivalence and "->" implication (right associative),
//   - "|" disjunction,
//   - "&" conjunction,
//   - unary operators: "~" negation; EX AX EF AF EG AG; nK<'a'> K<'a'>;
//     nE E nD D nC C followed by a group <'a','b'>; strategic <group> and
//     [group] followed by X, F or G.
//
// Binary temporal operators are written E[p U q], A[p W q], <'a'>[p U q]
// and ['a'][p W q]. Atoms are quoted model expressions such as 'x = 1',
// or bare names. True, False, Init and Reachable are constants.
func Parse(text string) (Formula, error) {
	return ParseLine(text, 1)
}

// ParseLine is Parse for text read at the given line of some input, so
// errors report that line.
func ParseLine(text string, line int) (Formula, error) {
	p := &parser{line: line}
	p.s.Init(strings.NewReader(text))
	p.s.Mode = scanner.ScanIdents | scanner.ScanStrings
	p.s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch) || (i > 0 && ch == '.')
	}
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = p.errorf("%s", msg)
		}
	}
	p.scan()
	if p.err != nil {
		return nil, p.err
	}
	if p.eof {
		return nil, p.errorf("empty formula")
	}
	f, err := p.parseIff()
	if err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	if !p.eof {
		return nil, p.errorf("unexpected token")
	}
	return f, nil
}

func (p *parser) errorf(format string, args ...any) error {
	pos := p.s.Position
	if !pos.IsValid() {
		pos = p.s.Pos()
	}
	tok := p.token
	if p.eof {
		tok = ""
	}
	return &ParseError{Line: p.line + pos.Line - 1, Column: pos.Column, Token: tok, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) scan() {
	if p.eof {
		return
	}
	p.quote = false
	tok := p.s.Scan()
	p.eof = tok == scanner.EOF
	p.token = p.s.TokenText()
	switch {
	case tok == '\'':
		p.quoted()
	case tok == scanner.String:
		p.token = strings.Trim(p.token, `"`)
		p.quote = true
	case tok == '-' && p.s.Peek() == '>':
		p.s.Next()
		p.token = "->"
	case tok == '<' && p.s.Peek() == '-':
		p.s.Next()
		if p.s.Peek() != '>' {
			p.err = p.errorf("expected \"<->\"")
			return
		}
		p.s.Next()
		p.token = "<->"
	}
}

// quoted reads the raw text up to the closing quote.
func (p *parser) quoted() {
	var sb strings.Builder
	for {
		ch := p.s.Next()
		if ch == scanner.EOF {
			if p.err == nil {
				p.err = p.errorf("unterminated quoted name")
			}
			p.eof = true
			return
		}
		if ch == '\'' {
			break
		}
		sb.WriteRune(ch)
	}
	p.token = sb.String()
	p.quote = true
}

func (p *parser) expect(tok string) error {
	if p.eof {
		return p.errorf("expected %q, found end of formula", tok)
	}
	if p.token != tok || p.quote {
		return p.errorf("expected %q", tok)
	}
	p.scan()
	return nil
}

func (p *parser) is(tok string) bool {
	return !p.eof && !p.quote && p.token == tok
}

func (p *parser) parseIff() (Formula, error) {
	l, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	if p.is("<->") {
		p.scan()
		r, err := p.parseIff()
		if err != nil {
			return nil, err
		}
		return Iff{l, r}, nil
	}
	return l, nil
}

func (p *parser) parseImplies() (Formula, error) {
	l, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.is("->") {
		p.scan()
		r, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		return Implies{l, r}, nil
	}
	return l, nil
}

func (p *parser) parseOr() (Formula, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.is("|") {
		p.scan()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = Or{l, r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Formula, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.is("&") {
		p.scan()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = And{l, r}
	}
	return l, nil
}

var unaryPath = map[string]func(Formula) Formula{
	"EX": func(f Formula) Formula { return EX{f} },
	"AX": func(f Formula) Formula { return AX{f} },
	"EF": func(f Formula) Formula { return EF{f} },
	"AF": func(f Formula) Formula { return AF{f} },
	"EG": func(f Formula) Formula { return EG{f} },
	"AG": func(f Formula) Formula { return AG{f} },
}

var epistemic = map[string]func([]string, Formula) Formula{
	"nE": func(g []string, f Formula) Formula { return NE{g, f} },
	"E":  func(g []string, f Formula) Formula { return E{g, f} },
	"nD": func(g []string, f Formula) Formula { return ND{g, f} },
	"D":  func(g []string, f Formula) Formula { return D{g, f} },
	"nC": func(g []string, f Formula) Formula { return NC{g, f} },
	"C":  func(g []string, f Formula) Formula { return C{g, f} },
}

func (p *parser) parseUnary() (Formula, error) {
	if p.eof {
		return nil, p.errorf("expected a formula, found end of formula")
	}
	if p.quote {
		a := Atom{Text: p.token}
		p.scan()
		return a, nil
	}
	switch p.token {
	case "~", "!":
		p.scan()
		f, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{f}, nil
	case "(":
		p.scan()
		f, err := p.parseIff()
		if err != nil {
			return nil, err
		}
		return f, p.expect(")")
	case "<":
		p.scan()
		g, err := p.parseGroup(">")
		if err != nil {
			return nil, err
		}
		return p.parseStrategic(g, true)
	case "[":
		p.scan()
		g, err := p.parseGroup("]")
		if err != nil {
			return nil, err
		}
		return p.parseStrategic(g, false)
	case "True", "TRUE":
		p.scan()
		return True{}, nil
	case "False", "FALSE":
		p.scan()
		return False{}, nil
	case "Init":
		p.scan()
		return Init{}, nil
	case "Reachable":
		p.scan()
		return Reachable{}, nil
	case "nK", "K":
		op := p.token
		p.scan()
		if err := p.expect("<"); err != nil {
			return nil, err
		}
		g, err := p.parseGroup(">")
		if err != nil {
			return nil, err
		}
		if len(g) != 1 {
			return nil, p.errorf("%s takes a single agent", op)
		}
		f, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == "K" {
			return K{g[0], f}, nil
		}
		return NK{g[0], f}, nil
	case "E", "A":
		op := p.token
		p.scan()
		if p.is("[") {
			p.scan()
			return p.parsePath(op)
		}
		if op == "E" && p.is("<") {
			p.scan()
			g, err := p.parseGroup(">")
			if err != nil {
				return nil, err
			}
			f, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return E{g, f}, nil
		}
		return nil, p.errorf("expected \"[\" after %s", op)
	}
	if mk, ok := unaryPath[p.token]; ok {
		p.scan()
		f, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return mk(f), nil
	}
	if mk, ok := epistemic[p.token]; ok {
		p.scan()
		if err := p.expect("<"); err != nil {
			return nil, err
		}
		g, err := p.parseGroup(">")
		if err != nil {
			return nil, err
		}
		f, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return mk(g, f), nil
	}
	if isName(p.token) && !reserved[p.token] {
		a := Atom{Text: p.token}
		p.scan()
		return a, nil
	}
	return nil, p.errorf("unexpected token")
}

var reserved = map[string]bool{
	"X": true, "F": true, "G": true, "U": true, "W": true,
}

func isName(tok string) bool {
	for i, ch := range tok {
		if !(ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch) || (i > 0 && ch == '.')) {
			return false
		}
	}
	return tok != ""
}

// parsePath reads "p U q]" or "p W q]" after E[ or A[.
func (p *parser) parsePath(op string) (Formula, error) {
	l, kind, r, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	switch {
	case op == "E" && kind == "U":
		return EU{l, r}, nil
	case op == "E":
		return EW{l, r}, nil
	case kind == "U":
		return AU{l, r}, nil
	}
	return AW{l, r}, nil
}

func (p *parser) parseUntil() (Formula, string, Formula, error) {
	l, err := p.parseIff()
	if err != nil {
		return nil, "", nil, err
	}
	if !p.is("U") && !p.is("W") {
		return nil, "", nil, p.errorf("expected U or W")
	}
	kind := p.token
	p.scan()
	r, err := p.parseIff()
	if err != nil {
		return nil, "", nil, err
	}
	return l, kind, r, p.expect("]")
}

// parseGroup reads quoted or bare names separated by commas, up to closing.
func (p *parser) parseGroup(closing string) ([]string, error) {
	var g []string
	for {
		if p.eof {
			return nil, p.errorf("expected an agent name, found end of formula")
		}
		if !p.quote && !isName(p.token) {
			return nil, p.errorf("expected an agent name")
		}
		g = append(g, p.token)
		p.scan()
		if p.is(",") {
			p.scan()
			continue
		}
		return g, p.expect(closing)
	}
}

func (p *parser) parseStrategic(g []string, exists bool) (Formula, error) {
	if p.is("[") {
		p.scan()
		l, kind, r, err := p.parseUntil()
		if err != nil {
			return nil, err
		}
		switch {
		case exists && kind == "U":
			return CEU{g, l, r}, nil
		case exists:
			return CEW{g, l, r}, nil
		case kind == "U":
			return CAU{g, l, r}, nil
		}
		return CAW{g, l, r}, nil
	}
	if !p.is("X") && !p.is("F") && !p.is("G") {
		return nil, p.errorf("expected X, F, G or [ after a strategic group")
	}
	op := p.token
	p.scan()
	f, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	switch {
	case exists && op == "X":
		return CEX{g, f}, nil
	case exists && op == "F":
		return CEF{g, f}, nil
	case exists:
		return CEG{g, f}, nil
	case op == "X":
		return CAX{g, f}, nil
	case op == "F":
		return CAF{g, f}, nil
	}
	return CAG{g, f}, nil
}
