// Package atlk decides ATLK formulas over the symbolic multi-agent systems
// of the kripke package: CTL temporal operators under fairness, epistemic
// operators and strategic operators, the latter under full observability
// or, with one of several algorithms, under partial observability.
package atlk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rfielding/kripke-atlk/bdd"
	"github.com/rfielding/kripke-atlk/formula"
	"github.com/rfielding/kripke-atlk/kripke"
)

// Evaluator computes the states of a System satisfying formulas. Its caches
// are owned by the evaluator; it may be used from several goroutines.
type Evaluator struct {
	sys   *kripke.System
	opts  Options
	log   *slog.Logger
	stats *Stats

	fairOnce sync.Once
	fair     bdd.Set

	mu         sync.Mutex
	fairGamma  map[string]bdd.Set
	nfairGamma map[string]bdd.Set
	encodings  map[string]*encoding

	cache *lru.Cache[string, partialEntry]
}

// New returns an evaluator of sys. The symbolic variants only support group
// semantics under partial observability.
func New(sys *kripke.System, opts Options) (*Evaluator, error) {
	opts = opts.normalize()
	if opts.Observability == ObsPartial && opts.Semantics == Individual &&
		(opts.Variant == Symbolic || opts.Variant == SymbolicFiltered) {
		return nil, fmt.Errorf("%s variant: %w: %s", opts.Variant, ErrUnsupportedSemantics, opts.Semantics)
	}
	e := &Evaluator{
		sys:        sys,
		opts:       opts,
		log:        opts.Logger,
		stats:      newStats(),
		fairGamma:  map[string]bdd.Set{},
		nfairGamma: map[string]bdd.Set{},
		encodings:  map[string]*encoding{},
	}
	if opts.Variant == Partial && opts.Partial.Caching {
		c, err := lru.New[string, partialEntry](opts.Partial.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("partial search cache: %w", err)
		}
		e.cache = c
	}
	return e, nil
}

func (e *Evaluator) System() *kripke.System { return e.sys }
func (e *Evaluator) Options() Options        { return e.opts }
func (e *Evaluator) Stats() *Stats           { return e.stats }

// Eval returns the states satisfying f.
func (e *Evaluator) Eval(ctx context.Context, f formula.Formula) (bdd.Set, error) {
	if e.opts.Variant == Partial {
		return e.EvalStates(ctx, f, e.sys.StatesMask())
	}
	return e.eval(ctx, f)
}

// Check reports whether every initial state satisfies f.
func (e *Evaluator) Check(ctx context.Context, f formula.Formula) (bool, error) {
	init := e.sys.Init()
	var sat bdd.Set
	var err error
	if e.opts.Variant == Partial {
		sat, err = e.EvalStates(ctx, f, init)
	} else {
		sat, err = e.eval(ctx, f)
	}
	if err != nil {
		return false, err
	}
	return init.Entails(sat), nil
}

func (e *Evaluator) not(s bdd.Set) bdd.Set {
	return e.sys.StatesMask().Diff(s)
}

func (e *Evaluator) eval(ctx context.Context, f formula.Formula) (bdd.Set, error) {
	if err := ctx.Err(); err != nil {
		return bdd.Set{}, err
	}
	sys := e.sys
	switch f := f.(type) {
	case formula.True:
		return sys.StatesMask(), nil
	case formula.False:
		return sys.False(), nil
	case formula.Init:
		return sys.Init(), nil
	case formula.Reachable:
		return sys.Reachable(), nil
	case formula.Atom:
		return sys.Atom(f.Text)
	case formula.Not:
		s, err := e.eval(ctx, f.Formula)
		if err != nil {
			return bdd.Set{}, err
		}
		return e.not(s), nil
	case formula.And:
		l, r, err := e.eval2(ctx, f.Left, f.Right)
		if err != nil {
			return bdd.Set{}, err
		}
		return l.And(r), nil
	case formula.Or:
		l, r, err := e.eval2(ctx, f.Left, f.Right)
		if err != nil {
			return bdd.Set{}, err
		}
		return l.Or(r), nil
	case formula.Iff:
		l, r, err := e.eval2(ctx, f.Left, f.Right)
		if err != nil {
			return bdd.Set{}, err
		}
		return l.Iff(r).And(sys.StatesMask()), nil
	case formula.EX:
		s, err := e.eval(ctx, f.Formula)
		if err != nil {
			return bdd.Set{}, err
		}
		return e.ex(s), nil
	case formula.EG:
		s, err := e.eval(ctx, f.Formula)
		if err != nil {
			return bdd.Set{}, err
		}
		return e.eg(s), nil
	case formula.EU:
		l, r, err := e.eval2(ctx, f.Left, f.Right)
		if err != nil {
			return bdd.Set{}, err
		}
		return e.eu(l, r), nil
	case formula.NK:
		return e.evalKnowledge(ctx, []string{f.Agent}, f.Formula, e.nk)
	case formula.NE:
		return e.evalKnowledge(ctx, f.Group, f.Formula, e.ne)
	case formula.ND:
		return e.evalKnowledge(ctx, f.Group, f.Formula, e.nk)
	case formula.NC:
		return e.evalKnowledge(ctx, f.Group, f.Formula, e.nc)
	}
	if s, ok := strategicOf(f); ok {
		return e.evalStrategic(ctx, s)
	}
	if g, ok := rewrite(f); ok {
		return e.eval(ctx, g)
	}
	return bdd.Set{}, fmt.Errorf("unsupported formula %T", f)
}

func (e *Evaluator) eval2(ctx context.Context, l, r formula.Formula) (bdd.Set, bdd.Set, error) {
	ls, err := e.eval(ctx, l)
	if err != nil {
		return bdd.Set{}, bdd.Set{}, err
	}
	rs, err := e.eval(ctx, r)
	if err != nil {
		return bdd.Set{}, bdd.Set{}, err
	}
	return ls, rs, nil
}

func (e *Evaluator) evalKnowledge(ctx context.Context, group []string, f formula.Formula,
	op func(bdd.Set, []string) (bdd.Set, error)) (bdd.Set, error) {
	agents, err := e.sys.AgentsOf(group)
	if err != nil {
		return bdd.Set{}, err
	}
	s, err := e.eval(ctx, f)
	if err != nil {
		return bdd.Set{}, err
	}
	return op(s, agents)
}

// evalStrategic decides a coalition operator on every state.
func (e *Evaluator) evalStrategic(ctx context.Context, s strategic) (bdd.Set, error) {
	if e.opts.Observability == ObsPartial && !s.exists {
		d, _ := strategicDual(s.node)
		return e.eval(ctx, d)
	}
	agents, err := e.sys.AgentsOf(s.group)
	if err != nil {
		return bdd.Set{}, err
	}
	g, err := e.goal(ctx, s, agents, func(f formula.Formula) (bdd.Set, error) { return e.eval(ctx, f) })
	if err != nil {
		return bdd.Set{}, err
	}
	return e.decide(ctx, g)
}

// decide runs the configured algorithm on g, with tracing and metrics.
func (e *Evaluator) decide(ctx context.Context, g goal) (sat bdd.Set, err error) {
	ctx, span := e.startStrategicSpan(ctx, g.strategic, g.agents)
	start := time.Now()
	defer func() { e.endStrategicSpan(span, start, err) }()

	if e.opts.Observability == ObsFull {
		return e.fullObs(g)
	}
	switch e.opts.Variant {
	case FS:
		sat, err = e.fs(ctx, g)
	case FSF:
		sat, err = e.fsf(ctx, g)
	case Symbolic, SymbolicFiltered:
		sat, err = e.symbolic(g)
	default:
		sat, err = e.sf(ctx, g)
	}
	if err != nil {
		return bdd.Set{}, err
	}
	e.log.Debug("strategic formula decided",
		"variant", e.opts.Variant.String(),
		"formula", g.node.String(),
		"states", e.sys.CountStates(sat).String(),
		"duration", time.Since(start))
	return sat, nil
}

// goal is a strategic operator whose operands are evaluated.
type goal struct {
	strategic
	agents      []string
	left, right bdd.Set
}

// goal evaluates the operands of s with evalf.
func (e *Evaluator) goal(ctx context.Context, s strategic, agents []string,
	evalf func(formula.Formula) (bdd.Set, error)) (goal, error) {
	g := goal{strategic: s, agents: agents, left: e.sys.False()}
	var err error
	if s.left != nil {
		if g.left, err = evalf(s.left); err != nil {
			return goal{}, err
		}
	}
	if g.right, err = evalf(s.right); err != nil {
		return goal{}, err
	}
	return g, ctx.Err()
}
