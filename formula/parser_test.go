package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, q := Atom{"p"}, Atom{"q"}
	tests := []struct {
		text string
		want Formula
	}{
		{"'p'", p},
		{"p", p},
		{`"x = 1"`, Atom{"x = 1"}},
		{"'pcard = Ac'", Atom{"pcard = Ac"}},
		{"True", True{}},
		{"FALSE", False{}},
		{"Init & Reachable", And{Init{}, Reachable{}}},
		{"~'p'", Not{p}},
		{"!p & q", And{Not{p}, q}},
		{"p & q | p", Or{And{p, q}, p}},
		{"p | q & p", Or{p, And{q, p}}},
		{"p -> q -> p", Implies{p, Implies{q, p}}},
		{"p <-> q", Iff{p, q}},
		{"p -> q <-> q", Iff{Implies{p, q}, q}},
		{"EX p", EX{p}},
		{"AG EF p", AG{EF{p}}},
		{"AF ~p & q", And{AF{Not{p}}, q}},
		{"EG (p & q)", EG{And{p, q}}},
		{"E[p U q]", EU{p, q}},
		{"A[p W q]", AW{p, q}},
		{"E[p W q]", EW{p, q}},
		{"A[p U q | p]", AU{p, Or{q, p}}},
		{"nK<'a'> p", NK{"a", p}},
		{"K<'player'> 'pcard=none'", K{"player", Atom{"pcard=none"}}},
		{"E<'a','b'> p", E{[]string{"a", "b"}, p}},
		{"nE<'a'> p", NE{[]string{"a"}, p}},
		{"D<'a', 'b'> p", D{[]string{"a", "b"}, p}},
		{"nD<'a'> p", ND{[]string{"a"}, p}},
		{"C<'g'> p", C{[]string{"g"}, p}},
		{"nC<'g'> p", NC{[]string{"g"}, p}},
		{"<'a'> X p", CEX{[]string{"a"}, p}},
		{"<'a','b'> F p", CEF{[]string{"a", "b"}, p}},
		{"<'a'> G ~p", CEG{[]string{"a"}, Not{p}}},
		{"<'a'>[p U q]", CEU{[]string{"a"}, p, q}},
		{"<'a'>[p W q]", CEW{[]string{"a"}, p, q}},
		{"['a'] X p", CAX{[]string{"a"}, p}},
		{"['a'] F p", CAF{[]string{"a"}, p}},
		{"['a'] G p", CAG{[]string{"a"}, p}},
		{"['a'][p U q]", CAU{[]string{"a"}, p, q}},
		{"['a'][p W q]", CAW{[]string{"a"}, p, q}},
		{"<'player'> G <'player'> F 'win'", CEG{[]string{"player"}, CEF{[]string{"player"}, Atom{"win"}}}},
		{"AG('step=1' -> ~<'player'> X 'win')", AG{Implies{Atom{"step=1"}, Not{CEX{[]string{"player"}, Atom{"win"}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Parse(got.String())
			require.NoError(t, err, "Expected %q to parse back", got.String())
			assert.Equal(t, got, again)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		text   string
		column int
	}{
		{"", 1},
		{"p &", 4},
		{"(p", 3},
		{"p q", 3},
		{"E[p q]", 5},
		{"<'a'> Y p", 7},
		{"K<'a','b'> p", 12},
		{"'unterminated", 14},
		{"EX", 3},
		{"A p", 3},
		{"<> X p", 2},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := ParseLine(tt.text, 7)
			require.ErrorIs(t, err, ErrParse)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, 7, pe.Line)
			assert.Equal(t, tt.column, pe.Column, "Expected error column in %q: %v", tt.text, err)
		})
	}
}
