// Package bdd is a small symbolic-set algebra over the rudd BDD library.
//
// A Set is an immutable handle on a BDD node owned by a Manager. All engine
// calls go through the manager's mutex, so sets can be shared freely between
// goroutines.
package bdd

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/dalzilio/rudd"
)

var (
	// ErrEmptyPick is returned when picking an element of the empty set.
	ErrEmptyPick = errors.New("bdd: pick on empty set")
	// ErrReserve is returned when more scratch variables are requested than
	// the manager reserved.
	ErrReserve = errors.New("bdd: not enough reserved variables")
)

// Option configures the underlying rudd engine.
type Option func(*config)

type config struct {
	nodes   int
	cache   int
	reserve int
}

// Nodesize sets the initial size of the node table.
func Nodesize(n int) Option { return func(c *config) { c.nodes = n } }

// Cachesize sets the size of the operation caches.
func Cachesize(n int) Option { return func(c *config) { c.cache = n } }

// Reserve adds n scratch variables after the declared ones (see Scratch).
func Reserve(n int) Option { return func(c *config) { c.reserve = n } }

// Manager owns the BDD variables and node table.
type Manager struct {
	mu       sync.Mutex
	b        *rudd.BDD
	declared int
	reserved int
}

// New creates a manager with varnum declared variables.
func New(varnum int, opts ...Option) (*Manager, error) {
	cfg := config{nodes: 10000, cache: 5000}
	for _, o := range opts {
		o(&cfg)
	}
	if varnum < 1 {
		varnum = 1
	}
	if cfg.reserve < 0 {
		cfg.reserve = 0
	}
	b, err := rudd.New(varnum+cfg.reserve, rudd.Nodesize(cfg.nodes), rudd.Cachesize(cfg.cache))
	if err != nil {
		return nil, fmt.Errorf("bdd: init: %w", err)
	}
	return &Manager{b: b, declared: varnum, reserved: cfg.reserve}, nil
}

// Varnum returns the number of variables, reserved ones included.
func (m *Manager) Varnum() int { return m.declared + m.reserved }

// Scratch returns the index of the first of n reserved variables. Every call
// returns the same block: sets built over the variables of one caller must
// not be combined with those of another.
func (m *Manager) Scratch(n int) (int, error) {
	if n > m.reserved {
		return 0, fmt.Errorf("%w: %d requested, %d reserved", ErrReserve, n, m.reserved)
	}
	return m.declared, nil
}

// Stats returns the engine statistics.
func (m *Manager) Stats() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.b.Stats()
}

// wrap must be called with m.mu held.
func (m *Manager) wrap(n rudd.Node) Set {
	if n == nil {
		panic("bdd: " + m.b.Error())
	}
	return Set{m: m, n: n}
}

func (m *Manager) True() Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.b.True())
}

func (m *Manager) False() Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.b.False())
}

// Var is the set where variable i is true.
func (m *Manager) Var(i int) Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.b.Ithvar(i))
}

// NVar is the set where variable i is false.
func (m *Manager) NVar(i int) Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.b.NIthvar(i))
}

// Cube is the conjunction of the given variables, used as a quantification
// set. The empty cube is True and quantifies nothing.
func (m *Manager) Cube(vars []int) Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(vars) == 0 {
		return m.wrap(m.b.True())
	}
	return m.wrap(m.b.Makeset(vars))
}

// Literal is the set where every variable of vars has the bit of value at
// the same position (least significant first).
func (m *Manager) Literal(vars []int, value int) Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.b.True()
	for i, v := range vars {
		if value&(1<<i) != 0 {
			n = m.b.Apply(n, m.b.Ithvar(v), rudd.OPand)
		} else {
			n = m.b.Apply(n, m.b.NIthvar(v), rudd.OPand)
		}
	}
	return m.wrap(n)
}

// AndExists computes the relational product Exists cube . a & b.
func (m *Manager) AndExists(a, b, cube Set) Set {
	if cube.IsTrue() {
		return a.And(b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.b.AppEx(a.n, b.n, rudd.OPand, cube.n))
}

func (m *Manager) apply(a, b rudd.Node, op rudd.Operator) Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrap(m.b.Apply(a, b, op))
}

// Count returns the number of assignments of vars satisfying s once every
// other variable is projected away.
func (m *Manager) Count(s Set, vars []int) *big.Int {
	p := s.Exists(m.Cube(m.complement(vars)))
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.b.Satcount(p.n)
	free := m.Varnum() - len(vars)
	if free > 0 {
		c = new(big.Int).Rsh(c, uint(free))
	}
	return c
}

func (m *Manager) complement(vars []int) []int {
	n := m.Varnum()
	keep := make(map[int]bool, len(vars))
	for _, v := range vars {
		keep[v] = true
	}
	var out []int
	for i := 0; i < n; i++ {
		if !keep[i] {
			out = append(out, i)
		}
	}
	return out
}
