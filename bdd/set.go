package bdd

import "github.com/dalzilio/rudd"

// Set is a symbolic set of assignments. The zero value is not usable; sets
// are obtained from a Manager.
type Set struct {
	m *Manager
	n rudd.Node
}

// Manager returns the owner of s.
func (s Set) Manager() *Manager { return s.m }

func (s Set) And(o Set) Set  { return s.m.apply(s.n, o.n, rudd.OPand) }
func (s Set) Or(o Set) Set   { return s.m.apply(s.n, o.n, rudd.OPor) }
func (s Set) Xor(o Set) Set  { return s.m.apply(s.n, o.n, rudd.OPxor) }
func (s Set) Imp(o Set) Set  { return s.m.apply(s.n, o.n, rudd.OPimp) }
func (s Set) Iff(o Set) Set  { return s.m.apply(s.n, o.n, rudd.OPbiimp) }

func (s Set) Not() Set {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.wrap(s.m.b.Not(s.n))
}

// Diff is s & ~o.
func (s Set) Diff(o Set) Set { return s.And(o.Not()) }

// Exists quantifies the variables of cube (see Manager.Cube).
func (s Set) Exists(cube Set) Set {
	if cube.IsTrue() {
		return s
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.wrap(s.m.b.Exist(s.n, cube.n))
}

// Forall is the universal quantification over the variables of cube.
func (s Set) Forall(cube Set) Set {
	return s.Not().Exists(cube).Not()
}

// Equals reports semantic equality, which for reduced ordered BDDs is node
// identity.
func (s Set) Equals(o Set) bool {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.b.Equal(s.n, o.n)
}

func (s Set) IsFalse() bool { return s.Equals(s.m.False()) }
func (s Set) IsTrue() bool  { return s.Equals(s.m.True()) }

// Entails reports whether s is included in o.
func (s Set) Entails(o Set) bool { return s.Diff(o).IsFalse() }

// Intersects reports whether s and o share an assignment.
func (s Set) Intersects(o Set) bool { return !s.And(o).IsFalse() }
