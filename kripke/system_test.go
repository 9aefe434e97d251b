package kripke

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-atlk/bdd"
)

func cardGame(t *testing.T) *System {
	t.Helper()
	sys, err := LoadFile("../models/cardgame.yaml")
	require.NoError(t, err)
	return sys
}

func atom(t *testing.T, sys *System, expr string) bdd.Set {
	t.Helper()
	set, err := sys.Atom(expr)
	require.NoError(t, err)
	return set
}

func input(t *testing.T, sys *System, name, value string) bdd.Set {
	t.Helper()
	v, ok := sys.Var(name)
	require.True(t, ok, "Expected input %s", name)
	set, err := sys.Value(v, value, false)
	require.NoError(t, err)
	return set
}

func TestPrePost(t *testing.T) {
	sys := cardGame(t)

	dealt := sys.Post(sys.Init())
	assert.Equal(t, int64(6), sys.CountStates(dealt).Int64())
	assert.True(t, dealt.Entails(atom(t, sys, "step = 1")))

	assert.True(t, sys.Init().Entails(sys.Pre(dealt)), "Expected the initial state to precede the deals")

	ak := atom(t, sys, "step = 1 & pcard = Ac & dcard = K")
	viaKeep := sys.PostSub(ak, input(t, sys, "player.action", "keep"))
	assert.True(t, viaKeep.Equals(atom(t, sys, "step = 2 & pcard = Ac & dcard = K")))

	preKeep := sys.PreSub(atom(t, sys, "win"), input(t, sys, "player.action", "keep"))
	assert.True(t, ak.Entails(preKeep))
	assert.False(t, atom(t, sys, "step = 1 & pcard = Ac & dcard = Q").Intersects(preKeep))

	reach := sys.ReachFrom(ak)
	assert.Equal(t, int64(13), sys.CountStates(reach).Int64())
}

func TestProtocol(t *testing.T) {
	sys := cardGame(t)

	proto, err := sys.Protocol([]string{"player"})
	require.NoError(t, err)
	ak := atom(t, sys, "step = 1 & pcard = Ac & dcard = K")
	assert.True(t, proto.Intersects(ak.And(input(t, sys, "player.action", "keep"))))
	assert.True(t, proto.Intersects(ak.And(input(t, sys, "player.action", "swap"))))
	assert.False(t, proto.Intersects(ak.And(input(t, sys, "player.action", "none"))))
	assert.False(t, proto.Intersects(atom(t, sys, "step = 1 & pcard = none")), "Expected no moves in unreachable states")

	_, err = sys.Protocol([]string{"nobody"})
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestAgentsOf(t *testing.T) {
	sys := cardGame(t)

	agents, err := sys.AgentsOf([]string{"players"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dealer", "player"}, agents)

	agents, err = sys.AgentsOf([]string{"player", "player"})
	require.NoError(t, err)
	assert.Equal(t, []string{"player"}, agents)

	_, err = sys.AgentsOf([]string{"ghost"})
	var unknown *UnknownAgentError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Name)
}

func TestEquivalence(t *testing.T) {
	sys := cardGame(t)
	reach := sys.Reachable()
	ak := atom(t, sys, "step = 1 & pcard = Ac & dcard = K")

	tests := []struct {
		agents []string
		count  int64
	}{
		{[]string{"player"}, 2},
		{[]string{"dealer"}, 1},
		{[]string{"dealer", "player"}, 1},
	}
	for _, tt := range tests {
		eq, err := sys.EquivalentStates(ak, tt.agents)
		require.NoError(t, err)
		assert.Equal(t, tt.count, sys.CountStates(eq.And(reach)).Int64(), "Expected %d states equivalent for %v", tt.count, tt.agents)
	}

	common, err := sys.CommonEquivalentStates(ak, []string{"dealer", "player"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), sys.CountStates(common).Int64())

	_, err = sys.EquivalentStates(ak, []string{"ghost"})
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestEquivalenceIsReflexiveAndSymmetric(t *testing.T) {
	sys := cardGame(t)
	states, err := sys.PickAllStates(sys.Reachable())
	require.NoError(t, err)
	require.Len(t, states, 13)

	for _, agents := range [][]string{{"player"}, {"dealer"}, {"dealer", "player"}} {
		for _, s := range states {
			eqS, err := sys.EquivalentStates(s, agents)
			require.NoError(t, err)
			assert.True(t, s.Entails(eqS), "Expected %s to be equivalent to itself", sys.Describe(s))
			for _, u := range states {
				if !u.Entails(eqS) {
					continue
				}
				eqU, err := sys.EquivalentStates(u, agents)
				require.NoError(t, err)
				assert.True(t, s.Entails(eqU), "Expected equivalence to be symmetric for %v", agents)
			}
		}
	}

	rel, err := sys.EquivalenceRelation([]string{"player"})
	require.NoError(t, err)
	again, err := sys.EquivalenceRelation([]string{"player"})
	require.NoError(t, err)
	assert.True(t, rel.Equals(again))
}

func TestPreStrat(t *testing.T) {
	sys := cardGame(t)
	init := sys.Init()
	pAc := atom(t, sys, "pcard = Ac")
	all := sys.True()

	dealer, err := sys.PreStrat(pAc, []string{"dealer"}, all)
	require.NoError(t, err)
	assert.True(t, init.Entails(dealer), "Expected the dealer to force pcard = Ac")

	player, err := sys.PreStrat(pAc, []string{"player"}, all)
	require.NoError(t, err)
	assert.False(t, init.Intersects(player), "Expected the player not to force pcard = Ac")

	n, err := sys.PreNStrat(pAc, []string{"player"})
	require.NoError(t, err)
	assert.True(t, init.Entails(n))
	n, err = sys.PreNStrat(pAc, []string{"dealer"})
	require.NoError(t, err)
	assert.False(t, init.Intersects(n))

	// restricting the dealer to dealKA loses the move
	onlyKA := input(t, sys, "dealer.action", "dealKA")
	restricted, err := sys.PreStrat(pAc, []string{"dealer"}, onlyKA)
	require.NoError(t, err)
	assert.False(t, init.Intersects(restricted))

	moves, err := sys.PreStratSI(pAc, []string{"dealer"}, all)
	require.NoError(t, err)
	assert.True(t, moves.Intersects(init.And(input(t, sys, "dealer.action", "dealAK"))))
	assert.False(t, moves.Intersects(input(t, sys, "dealer.action", "dealKA")))
}

func TestCheckFreeChoice(t *testing.T) {
	violations, err := cardGame(t).CheckFreeChoice()
	require.NoError(t, err)
	assert.True(t, violations.IsFalse(), "Expected the card game to be free-choice")

	clash := loadString(t, `
name: clash
variables:
  x: boolean
inputs:
  a.act: [left, right]
  b.act: [left, right]
init: ["~x"]
trans:
  - "~(a.act = right & b.act = right)"
  - "next(x) <-> a.act = left"
agents:
  - {name: a, actions: [a.act]}
  - {name: b, actions: [b.act]}
`)
	violations, err = clash.CheckFreeChoice()
	require.NoError(t, err)
	assert.False(t, violations.IsFalse())
	moves, err := clash.PickAllStatesInputs(violations)
	require.NoError(t, err)
	assert.Len(t, moves, 2, "Expected right/right to clash in both states")
	assert.Equal(t, "a.act=right b.act=right", clash.DescribeInputs(moves[0]))
}

func TestExplicitGraph(t *testing.T) {
	sys := cardGame(t)
	g, err := sys.ExplicitGraph(0)
	require.NoError(t, err)
	assert.Len(t, g.States, 13)
	assert.Equal(t, []StateID{"s0"}, g.Initial)
	assert.Len(t, g.Succ["s0"], 6)
	assert.Equal(t, "step=0 pcard=none dcard=none", g.Labels["s0"])
	assert.False(t, g.Truncated)

	dot := g.GenerateGraphviz("cardgame")
	if !strings.Contains(dot, `digraph "cardgame"`) {
		t.Error("Expected digraph declaration")
	}
	if !strings.Contains(dot, `start -> "s0"`) {
		t.Error("Expected start arrow to s0")
	}
	if !strings.Contains(dot, `step=0\npcard=none\ndcard=none`) {
		t.Error("Expected state valuation as label")
	}

	var buf bytes.Buffer
	require.NoError(t, g.WriteMermaidStateDiagram(&buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "stateDiagram-v2\n"))
	assert.Contains(t, out, "[*] --> s0")
	assert.Contains(t, out, "s0 --> s1")

	small, err := sys.ExplicitGraph(3)
	require.NoError(t, err)
	assert.Len(t, small.States, 3)
	assert.True(t, small.Truncated)
}

func TestGrandCoalition(t *testing.T) {
	sys := cardGame(t)
	both := []string{"dealer", "player"}

	others, err := sys.OtherInputsCube(both)
	require.NoError(t, err)
	assert.True(t, others.IsTrue(), "Expected no input outside the grand coalition")

	win := atom(t, sys, "win")
	pre, err := sys.PreStrat(win, both, sys.True())
	require.NoError(t, err)
	dealt := sys.Reachable().And(atom(t, sys, "step = 1"))
	assert.True(t, pre.Equals(dealt), "Expected the players to win from every deal together")

	// keep and swap never both win
	n, err := sys.PreNStrat(win, both)
	require.NoError(t, err)
	assert.True(t, n.And(sys.Reachable()).IsFalse())
}

func TestNewStateVars(t *testing.T) {
	sys := cardGame(t)

	vars, err := sys.NewStateVars([]string{"s0", "s1"}, []int{3, 2})
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Len(t, vars[0].Bits(), 2)
	assert.Len(t, vars[1].Bits(), 1)
	assert.Equal(t, []string{"0", "1", "2"}, vars[0].Domain)

	again, err := sys.NewStateVars([]string{"t0"}, []int{3})
	require.NoError(t, err)
	assert.Equal(t, vars[0].Bits(), again[0].Bits(), "Expected the reserved variables to be reused")

	for _, b := range vars[0].Bits() {
		assert.NotContains(t, sys.StateBits(), b)
	}
	assert.True(t, sys.Index(vars[0], 2, false).Entails(sys.Mask(vars[0], false)))

	names := make([]string, 1000)
	sizes := make([]int, 1000)
	for i := range names {
		names[i], sizes[i] = "x", 2
	}
	_, err = sys.NewStateVars(names, sizes)
	assert.ErrorIs(t, err, bdd.ErrReserve)
}
