package bdd

import (
	"errors"
	"fmt"
)

// PickOne returns one full assignment over vars contained in s, as a cube.
// It follows low branches first, so variables of vars left unconstrained by
// s are fixed to false.
func (m *Manager) PickOne(s Set, vars []int) (Set, error) {
	if s.IsFalse() {
		return Set{}, ErrEmptyPick
	}
	a := make([]int, m.Varnum())
	m.mu.Lock()
	zero, one := m.b.False(), m.b.True()
	for n := s.n; !m.b.Equal(n, one); {
		v := m.b.Label(n)
		if low := m.b.Low(n); !m.b.Equal(low, zero) {
			n = low
		} else {
			a[v] = 1
			n = m.b.High(n)
		}
		if n == nil {
			err := errors.New(m.b.Error())
			m.mu.Unlock()
			return Set{}, fmt.Errorf("bdd: pick: %w", err)
		}
	}
	m.mu.Unlock()
	return m.assignment(a, vars), nil
}

// PickAll enumerates every full assignment over vars of the projection of s
// on vars.
func (m *Manager) PickAll(s Set, vars []int) ([]Set, error) {
	p := s.Exists(m.Cube(m.complement(vars)))
	var cubes [][]int
	m.mu.Lock()
	err := m.b.Allsat(func(a []int) error {
		cubes = append(cubes, append([]int(nil), a...))
		return nil
	}, p.n)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("bdd: pick all: %w", err)
	}
	var out []Set
	for _, c := range cubes {
		out = append(out, m.expand(c, vars)...)
	}
	return out, nil
}

// expand turns a partial assignment into every full assignment over vars.
func (m *Manager) expand(a []int, vars []int) []Set {
	var free []int
	for _, v := range vars {
		if a[v] < 0 {
			free = append(free, v)
		}
	}
	out := make([]Set, 0, 1<<len(free))
	for k := 0; k < 1<<len(free); k++ {
		b := append([]int(nil), a...)
		for i, v := range free {
			b[v] = (k >> i) & 1
		}
		out = append(out, m.assignment(b, vars))
	}
	return out
}

func (m *Manager) assignment(a []int, vars []int) Set {
	r := m.True()
	for _, v := range vars {
		if v < len(a) && a[v] == 1 {
			r = r.And(m.Var(v))
		} else {
			r = r.And(m.NVar(v))
		}
	}
	return r
}
