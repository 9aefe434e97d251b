package bdd

// LFP iterates f from bottom until f(x) equals x.
func LFP(bottom Set, f func(Set) Set) Set {
	x := bottom
	for {
		next := f(x)
		if next.Equals(x) {
			return x
		}
		x = next
	}
}

// GFP iterates f from top until f(x) equals x.
func GFP(top Set, f func(Set) Set) Set {
	return LFP(top, f)
}

// Observe wraps f so that every application is reported to count.
func Observe(f func(Set) Set, count func()) func(Set) Set {
	return func(x Set) Set {
		count()
		return f(x)
	}
}
