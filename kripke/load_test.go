package kripke

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCardGame(t *testing.T) {
	sys, err := LoadFile("../models/cardgame.yaml")
	require.NoError(t, err)

	assert.Equal(t, "cardgame", sys.Name)
	assert.Len(t, sys.Vars(), 5)
	step, ok := sys.Var("step")
	require.True(t, ok)
	assert.Equal(t, []string{"0", "1", "2"}, step.Domain)
	assert.Len(t, step.Bits(), 2)

	names := []string{}
	for _, a := range sys.Agents() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"dealer", "player"}, names)
	assert.Equal(t, int64(1), sys.CountStates(sys.Init()).Int64())
	assert.Equal(t, int64(13), sys.CountStates(sys.Reachable()).Int64())
	assert.Empty(t, sys.Fairness())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"duplicate name", `
name: dup
variables: {x: boolean}
inputs: {a.act: boolean}
agents:
  - {name: x, actions: [a.act]}
`, ErrModel},
		{"shared action", `
name: shared
variables: {x: boolean}
inputs: {act: boolean}
agents:
  - {name: a, actions: [act]}
  - {name: b, actions: [act]}
`, ErrModel},
		{"observes an input", `
name: obs
variables: {x: boolean}
inputs: {act: boolean}
agents:
  - {name: a, observes: [act]}
`, ErrModel},
		{"unknown group member", `
name: group
variables: {x: boolean}
agents:
  - {name: a}
groups:
  g: [a, ghost]
`, ErrUnknownAgent},
		{"group cycle", `
name: cycle
variables: {x: boolean}
agents:
  - {name: a}
groups:
  g: [a, h]
  h: [g]
`, ErrModel},
		{"empty domain", `
name: empty
variables: {x: []}
`, ErrModel},
		{"unknown field", `
name: field
variables: {x: boolean}
transitions: []
`, ErrModel},
		{"bad range", `
name: range
variables: {x: "a..b"}
`, ErrModel},
		{"bad trans", `
name: trans
variables: {x: boolean}
trans: ["next(x) = maybe"]
`, ErrType},
		{"next in init", `
name: init
variables: {x: boolean}
init: ["next(x)"]
`, ErrType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIntegerRange(t *testing.T) {
	sys := loadString(t, `
name: counter
variables:
  n: 0..4
init: ["n = 0"]
trans:
  - "n = 0 -> next(n) = 1"
  - "n = 1 -> next(n) = 2"
  - "n = 2 -> next(n) = 3"
  - "n = 3 -> next(n) = 4"
  - "n = 4 -> next(n) = 0"
`)
	n, _ := sys.Var("n")
	assert.Len(t, n.Bits(), 3)
	assert.Equal(t, int64(5), sys.CountStates(sys.StatesMask()).Int64())
	assert.Equal(t, int64(5), sys.CountStates(sys.Reachable()).Int64())
}
