package atlk

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfielding/kripke-atlk/bdd"
	"github.com/rfielding/kripke-atlk/formula"
	"github.com/rfielding/kripke-atlk/kripke"
	"github.com/rfielding/kripke-atlk/models"
)

func load(t *testing.T, name string) *kripke.System {
	t.Helper()
	sys, err := models.Load(name)
	require.NoError(t, err)
	return sys
}

func parse(t *testing.T, text string) formula.Formula {
	t.Helper()
	f, err := formula.Parse(text)
	require.NoError(t, err, "parsing %s", text)
	return f
}

func evaluator(t *testing.T, sys *kripke.System, mutate func(*Options)) *Evaluator {
	t.Helper()
	opts := DefaultOptions()
	opts.Workers = 2
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(sys, opts)
	require.NoError(t, err)
	return e
}

func withVariant(v Variant) func(*Options) {
	return func(o *Options) { o.Variant = v }
}

var allVariants = []Variant{SF, FS, FSF, Partial, Symbolic, SymbolicFiltered}

// modelResults gives, per embedded model, the truth of its listed specs in
// the initial states under partial observability and group semantics.
var modelResults = map[string]map[int]bool{
	"cardgame": {
		0: true, 1: true, 2: true, 3: false, 4: true, 5: true,
		6: true, 7: false, 8: true, 9: true, 10: false,
	},
	"transmission": {
		0: false, 1: true, 2: false, 3: true, 4: false, 5: true, 6: true, 7: false,
	},
	"transmission-knowledge": {
		0: true, 1: true, 2: false, 3: false, 4: false, 5: true, 6: true,
	},
	"transmission-fair": {
		0: true, 1: true, 2: true, 3: false, 4: false, 5: true,
	},
	"freechoice": {
		0: true, 1: true, 2: true,
	},
}

func TestModelSpecs(t *testing.T) {
	ctx := context.Background()
	for name, expected := range modelResults {
		sys := load(t, name)
		specs := sys.Specs()
		for _, v := range allVariants {
			e := evaluator(t, sys, withVariant(v))
			for i, want := range expected {
				require.Less(t, i, len(specs))
				t.Run(fmt.Sprintf("%s/%s/%d", name, v, i), func(t *testing.T) {
					ok, err := e.Check(ctx, parse(t, specs[i]))
					require.NoError(t, err)
					assert.Equal(t, want, ok, "%s", specs[i])
				})
			}
		}
	}
}

func TestGrandCoalition(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		model, spec string
		want        bool
	}{
		{"cardgame", "<'players'> F 'win'", true},
		{"cardgame", "<'players'> G ~'win'", true},
		{"cardgame", "['players'] F 'win'", false},
		{"cardgame", "<'dealer', 'player'> X 'pcard=Ac'", true},
		{"transmission-knowledge", "<'both'> F 'received'", true},
		{"transmission-knowledge", "<'both'> X 'received'", true},
		{"transmission-knowledge", "['both'] G ~'received'", false},
	}
	for _, tt := range tests {
		sys := load(t, tt.model)
		for _, v := range allVariants {
			t.Run(tt.model+"/"+v.String()+"/"+tt.spec, func(t *testing.T) {
				ok, err := evaluator(t, sys, withVariant(v)).Check(ctx, parse(t, tt.spec))
				require.NoError(t, err)
				assert.Equal(t, tt.want, ok)
			})
		}
	}
}

func TestFullObservability(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "cardgame")

	tests := []struct {
		spec          string
		partial, full bool
	}{
		{"<'player'> F 'win'", false, true},
		{"<'players'> F 'win'", true, true},
		{"<'dealer'> G ~'win'", false, false},
		{"<'dealer'> X 'pcard=Ac'", true, true},
		{"['dealer'] F 'win'", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			f := parse(t, tt.spec)

			ok, err := evaluator(t, sys, nil).Check(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, tt.partial, ok, "partial observability")

			full := evaluator(t, sys, func(o *Options) { o.Observability = ObsFull })
			ok, err = full.Check(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, tt.full, ok, "full observability")
		})
	}
}

func TestIndividualSemantics(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "cardgame")
	f := parse(t, "<'players'> F 'win'")

	for _, v := range []Variant{SF, FS, FSF, Partial} {
		t.Run(v.String(), func(t *testing.T) {
			e := evaluator(t, sys, func(o *Options) {
				o.Variant = v
				o.Semantics = Individual
			})
			ok, err := e.Check(ctx, f)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestSymbolicRejectsIndividualSemantics(t *testing.T) {
	sys := load(t, "cardgame")
	for _, v := range []Variant{Symbolic, SymbolicFiltered} {
		opts := DefaultOptions()
		opts.Variant = v
		opts.Semantics = Individual
		_, err := New(sys, opts)
		assert.ErrorIs(t, err, ErrUnsupportedSemantics)

		// full observability does not use the encoding
		opts.Observability = ObsFull
		_, err = New(sys, opts)
		assert.NoError(t, err)
	}
}

func TestUnknownAgent(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "cardgame")
	for _, spec := range []string{"<'nobody'> X 'win'", "K<'nobody'> 'win'", "['nobody'] G 'win'"} {
		for _, v := range allVariants {
			t.Run(fmt.Sprintf("%s/%s", spec, v), func(t *testing.T) {
				_, err := evaluator(t, sys, withVariant(v)).Check(ctx, parse(t, spec))
				require.Error(t, err)
				assert.True(t, errors.Is(err, kripke.ErrUnknownAgent), "got %v", err)

				var unknown *kripke.UnknownAgentError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "nobody", unknown.Name)
			})
		}
	}
}

func TestVariantsAgreeOnReachableStates(t *testing.T) {
	ctx := context.Background()
	specs := map[string][]string{
		"cardgame": {
			"<'player'> X 'win'",
			"<'dealer'> F 'lose'",
			"<'player'> G ~'lose'",
			"<'dealer'>['step != 2' U 'win']",
			"['player'] F 'win'",
			"<'player'>[~'win' W 'step = 2']",
		},
		"transmission": {
			"<'transmitter'> F 'received'",
			"<'sender'> X 'sent'",
			"['transmitter'] G ~'received'",
		},
		"transmission-fair": {
			"<'sender'> F 'received'",
			"<'sender'> X 'received'",
		},
	}
	for name, list := range specs {
		sys := load(t, name)
		reach := sys.Reachable()
		for _, spec := range list {
			t.Run(name+"/"+spec, func(t *testing.T) {
				f := parse(t, spec)
				want, err := evaluator(t, sys, nil).Eval(ctx, f)
				require.NoError(t, err)
				for _, v := range allVariants[1:] {
					got, err := evaluator(t, sys, withVariant(v)).Eval(ctx, f)
					require.NoError(t, err)
					assert.True(t, got.And(reach).Equals(want.And(reach)), "variant %s", v)
				}
			})
		}
	}
}

func TestStrategicDualities(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "cardgame")
	pairs := [][2]string{
		{"['player'] X 'win'", "~<'player'> X ~'win'"},
		{"['dealer'] F 'win'", "~<'dealer'> G ~'win'"},
		{"['player'] G ~'win'", "~<'player'> F 'win'"},
		{"['player']['step != 2' U 'win']", "~<'player'>[~'win' W (~'step != 2' & ~'win')]"},
		{"['dealer']['step != 2' W 'win']", "~<'dealer'>[~'win' U (~'step != 2' & ~'win')]"},
	}
	for _, v := range []Variant{SF, Partial, Symbolic} {
		e := evaluator(t, sys, withVariant(v))
		for _, p := range pairs {
			t.Run(v.String()+"/"+p[0], func(t *testing.T) {
				l, err := e.Eval(ctx, parse(t, p[0]))
				require.NoError(t, err)
				r, err := e.Eval(ctx, parse(t, p[1]))
				require.NoError(t, err)
				assert.True(t, l.Equals(r))
			})
		}
	}
}

func TestTemporalDualities(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"cardgame", "transmission-fair"} {
		sys := load(t, name)
		e := evaluator(t, sys, nil)
		pairs := [][2]string{
			{"AX 'step = 1'", "~EX ~'step = 1'"},
			{"AG ~'win'", "~EF 'win'"},
			{"AF 'win'", "~EG ~'win'"},
			{"EF 'win'", "E[True U 'win']"},
		}
		if name != "cardgame" {
			pairs = [][2]string{
				{"AX 'received'", "~EX ~'received'"},
				{"AF 'received'", "~EG ~'received'"},
				{"EF 'received'", "E[True U 'received']"},
			}
		}
		for _, p := range pairs {
			t.Run(name+"/"+p[0], func(t *testing.T) {
				l, err := e.Eval(ctx, parse(t, p[0]))
				require.NoError(t, err)
				r, err := e.Eval(ctx, parse(t, p[1]))
				require.NoError(t, err)
				assert.True(t, l.Equals(r))
			})
		}
	}
}

func TestEGTrueIsFairStates(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "cardgame")
	e := evaluator(t, sys, nil)

	eg, err := e.Eval(ctx, parse(t, "EG True"))
	require.NoError(t, err)
	assert.True(t, sys.Reachable().Entails(eg), "every reachable state of the game lies on an infinite path")
}

func TestCommonKnowledgeIdempotent(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "transmission")
	e := evaluator(t, sys, nil)
	reach := sys.Reachable()

	for _, inner := range []string{"'sent'", "'received'", "~'received'"} {
		t.Run(inner, func(t *testing.T) {
			once, err := e.Eval(ctx, parse(t, "C<'sender','transmitter'> "+inner))
			require.NoError(t, err)
			twice, err := e.Eval(ctx, parse(t, "C<'sender','transmitter'> C<'sender','transmitter'> "+inner))
			require.NoError(t, err)
			assert.True(t, once.And(reach).Equals(twice.And(reach)))
		})
	}
}

func TestKnowledge(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "transmission")
	e := evaluator(t, sys, nil)

	received, err := sys.Atom("received")
	require.NoError(t, err)
	reach := sys.Reachable()

	kt, err := e.Eval(ctx, parse(t, "K<'transmitter'> 'received'"))
	require.NoError(t, err)
	assert.True(t, kt.And(reach).Equals(received.And(reach)))

	ks, err := e.Eval(ctx, parse(t, "K<'sender'> 'received'"))
	require.NoError(t, err)
	assert.True(t, ks.And(reach).IsFalse())

	// distributed knowledge of both is the transmitter's
	d, err := e.Eval(ctx, parse(t, "D<'sender','transmitter'> 'received'"))
	require.NoError(t, err)
	assert.True(t, d.And(reach).Equals(received.And(reach)))

	// everybody knows only what the sender knows
	ek, err := e.Eval(ctx, parse(t, "E<'sender','transmitter'> 'received'"))
	require.NoError(t, err)
	assert.True(t, ek.And(reach).IsFalse())
}

func TestPartialOptions(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "cardgame")
	specs := sys.Specs()

	tests := []struct {
		name   string
		mutate func(*PartialOptions)
	}{
		{"default", func(*PartialOptions) {}},
		{"no filtering", func(p *PartialOptions) { p.Filtering = false }},
		{"random", func(p *PartialOptions) { p.Separation = SeparateRandom }},
		{"reach", func(p *PartialOptions) { p.Separation = SeparateReach }},
		{"early full", func(p *PartialOptions) { p.Early = EarlyFull }},
		{"early partial", func(p *PartialOptions) { p.Early = EarlyPartial }},
		{"early threshold", func(p *PartialOptions) { p.Early, p.Threshold = EarlyThreshold, 0.3 }},
		{"caching", func(p *PartialOptions) { p.Caching = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := evaluator(t, sys, func(o *Options) {
				o.Variant = Partial
				tt.mutate(&o.Partial)
			})
			for i, want := range modelResults["cardgame"] {
				ok, err := e.Check(ctx, parse(t, specs[i]))
				require.NoError(t, err)
				assert.Equal(t, want, ok, "%s", specs[i])
			}
		})
	}
}

func TestPartialCache(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "cardgame")
	e := evaluator(t, sys, func(o *Options) {
		o.Variant = Partial
		o.Partial.Caching = true
	})
	f := parse(t, "<'dealer'> X 'pcard=Ac'")

	first, err := e.EvalStates(ctx, f, sys.Init())
	require.NoError(t, err)
	hits := e.Stats().Value(StatCacheHits)

	second, err := e.EvalStates(ctx, f, sys.Init())
	require.NoError(t, err)
	assert.True(t, first.Equals(second))
	assert.Equal(t, hits+1, e.Stats().Value(StatCacheHits))
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "cardgame")

	e := evaluator(t, sys, nil)
	_, err := e.Check(ctx, parse(t, "<'player'> F 'win'"))
	require.NoError(t, err)
	assert.Positive(t, e.Stats().Value(StatStrategies))
	assert.Equal(t, float64(1), e.Stats().Value(StatStrategic))
	assert.Positive(t, e.Stats().Value(StatFixpoints))

	table := e.Stats().Table()
	assert.Contains(t, table, "| Metric | Value | Unit | Description |")
	assert.Contains(t, table, "| strategies |")
	assert.NotContains(t, table, StatEncodings)

	s := evaluator(t, sys, withVariant(Symbolic))
	_, err = s.Check(ctx, parse(t, "<'player'> F 'win'"))
	require.NoError(t, err)
	assert.Equal(t, float64(1), s.Stats().Value(StatEncodings))
	assert.Positive(t, s.Stats().Value(StatStrategyBDDVar))

	// the encoding of a coalition is shared between formulas
	_, err = s.Check(ctx, parse(t, "<'player'> X 'win'"))
	require.NoError(t, err)
	assert.Equal(t, float64(1), s.Stats().Value(StatEncodings))
}

func TestCanceledContext(t *testing.T) {
	sys := load(t, "cardgame")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, v := range allVariants {
		_, err := evaluator(t, sys, withVariant(v)).Check(ctx, parse(t, "<'player'> F 'win'"))
		assert.ErrorIs(t, err, context.Canceled, "variant %s", v)
	}
}

func TestBooleanConnectives(t *testing.T) {
	ctx := context.Background()
	sys := load(t, "freechoice")
	mask := sys.StatesMask()
	tests := []struct {
		spec string
		want func(a, b bdd.Set) bdd.Set
	}{
		{"'a' & 'b'", func(a, b bdd.Set) bdd.Set { return a.And(b) }},
		{"'a' | 'b'", func(a, b bdd.Set) bdd.Set { return a.Or(b) }},
		{"'a' -> 'b'", func(a, b bdd.Set) bdd.Set { return mask.Diff(a).Or(b) }},
		{"'a' <-> 'b'", func(a, b bdd.Set) bdd.Set { return a.Iff(b).And(mask) }},
		{"~'a'", func(a, b bdd.Set) bdd.Set { return mask.Diff(a) }},
	}
	a, err := sys.Atom("a")
	require.NoError(t, err)
	b, err := sys.Atom("b")
	require.NoError(t, err)
	for _, v := range []Variant{SF, Partial} {
		e := evaluator(t, sys, withVariant(v))
		for _, tt := range tests {
			t.Run(v.String()+"/"+tt.spec, func(t *testing.T) {
				got, err := e.Eval(ctx, parse(t, tt.spec))
				require.NoError(t, err)
				assert.True(t, got.Equals(tt.want(a, b)))
			})
		}
	}
}
