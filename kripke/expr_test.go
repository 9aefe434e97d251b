package kripke

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exprModel = `
name: colours
variables:
  x: boolean
  c: [red, green, blue]
  d: [red, green, blue]
inputs:
  go: boolean
defines:
  warm: "c = red"
  hot: "warm & x"
init:
  - "~x"
trans:
  - "next(x) <-> go"
  - "next(c) = d"
`

func loadString(t *testing.T, src string) *System {
	t.Helper()
	sys, err := Parse([]byte(src))
	require.NoError(t, err)
	return sys
}

func TestAtoms(t *testing.T) {
	sys := loadString(t, exprModel)

	tests := []struct {
		expr  string
		count int64
	}{
		{"TRUE", 18},
		{"false", 0},
		{"x", 9},
		{"~x & c = green", 3},
		{"c = red", 6},
		{"red = c", 6},
		{"c != red", 12},
		{"c in {red, blue}", 12},
		{"c = d", 6},
		{"warm", 6},
		{"hot", 3},
		{"x -> c = red", 12},
		{"x <-> c = red", 9},
		{"!(x | c = blue)", 6},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			set, err := sys.Atom(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.count, sys.CountStates(set).Int64(), "Expected %q to hold in %d states", tt.expr, tt.count)
		})
	}
}

func TestAtomTypeErrors(t *testing.T) {
	sys := loadString(t, exprModel)

	for _, expr := range []string{
		"c",
		"c = purple",
		"next(x)",
		"go",
		"c = ",
		"(x",
		"nosuch",
		"red = green",
		"c = x",
		"x &",
		"",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := sys.Atom(expr)
			assert.ErrorIs(t, err, ErrType, "Expected %q to be rejected", expr)
		})
	}
}

func TestUnknownVariable(t *testing.T) {
	sys := loadString(t, exprModel)

	tests := []struct {
		expr, msg string
	}{
		{"nosuch = 1", `unknown variable "nosuch"`},
		{"red = nosuch", `unknown variable "nosuch"`},
		{"nosuch in {red}", `unknown variable "nosuch"`},
		{"red = green", "comparison of two constants"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := sys.Atom(tt.expr)
			require.ErrorIs(t, err, ErrType)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestTransitionExpressions(t *testing.T) {
	sys := loadString(t, exprModel)

	red, err := sys.Atom("c = red & d = blue")
	require.NoError(t, err)
	next := sys.Post(red)
	blue, err := sys.Atom("c = blue")
	require.NoError(t, err)
	assert.True(t, next.Entails(blue), "Expected next(c) = d to carry d into c")
	assert.Equal(t, int64(6), sys.CountStates(next).Int64())
}

func TestDefineCycle(t *testing.T) {
	_, err := Parse([]byte(`
name: loop
variables:
  x: boolean
defines:
  a: "b"
  b: "a & x"
init: ["x"]
trans: ["next(x) <-> x"]
`))
	assert.ErrorIs(t, err, ErrType)
}
