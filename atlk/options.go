package atlk

import (
	"log/slog"
	"runtime"
	"slices"
	"strings"
)

// Variant selects the algorithm deciding strategic operators under partial
// observability.
type Variant int

const (
	// SF splits the protocol into uniform strategies, then filters each one.
	SF Variant = iota
	// FS filters winning moves first and splits only conflicting classes.
	FS
	// FSF filters, splits the filtered moves, then filters every strategy.
	FSF
	// Partial evaluates only the requested states, with partial strategies.
	Partial
	// Symbolic encodes strategies with extra BDD variables, one encoding per
	// coalition.
	Symbolic
	// SymbolicFiltered is Symbolic over the moves filtered for each formula.
	SymbolicFiltered
)

var variantNames = []string{"sf", "fs", "fsf", "partial", "symbolic", "symbolic-filtered"}

func (v Variant) String() string { return enumName(variantNames, int(v)) }

// ParseVariant reads one of sf, fs, fsf, partial, symbolic and
// symbolic-filtered.
func ParseVariant(s string) (Variant, error) {
	i, err := parseEnum("variant", variantNames, s)
	return Variant(i), err
}

// Observability selects what agents see when they choose their actions.
type Observability int

const (
	// ObsPartial: agents only see their observed variables.
	ObsPartial Observability = iota
	// ObsFull: agents see the whole state.
	ObsFull
)

var observabilityNames = []string{"partial", "full"}

func (o Observability) String() string { return enumName(observabilityNames, int(o)) }

func ParseObservability(s string) (Observability, error) {
	i, err := parseEnum("observability", observabilityNames, s)
	return Observability(i), err
}

// Semantics selects how a coalition's strategies must be uniform.
type Semantics int

const (
	// Group strategies are uniform w.r.t. the distributed knowledge of the
	// coalition.
	Group Semantics = iota
	// Individual strategies are uniform w.r.t. every member's own
	// observations.
	Individual
)

var semanticsNames = []string{"group", "individual"}

func (s Semantics) String() string { return enumName(semanticsNames, int(s)) }

func ParseSemantics(s string) (Semantics, error) {
	i, err := parseEnum("semantics", semanticsNames, s)
	return Semantics(i), err
}

// Separation selects how the partial search splits the requested states
// before enumerating strategies.
type Separation int

const (
	SeparateNone Separation = iota
	// SeparateRandom handles one equivalence class at a time.
	SeparateRandom
	// SeparateReach handles first the class closest to the initial states.
	SeparateReach
)

var separationNames = []string{"none", "random", "reach"}

func (s Separation) String() string { return enumName(separationNames, int(s)) }

func ParseSeparation(s string) (Separation, error) {
	i, err := parseEnum("separation", separationNames, s)
	return Separation(i), err
}

// Early selects when the partial search stops enumerating strategies for
// the current states.
type Early int

const (
	EarlyNone Early = iota
	// EarlyFull stops once every state is known to be winning.
	EarlyFull
	// EarlyPartial restarts on the remaining states as soon as a strategy
	// wins somewhere new.
	EarlyPartial
	// EarlyThreshold restarts once the remaining states shrink to
	// Threshold times their size.
	EarlyThreshold
)

var earlyNames = []string{"none", "full", "partial", "threshold"}

func (e Early) String() string { return enumName(earlyNames, int(e)) }

func ParseEarly(s string) (Early, error) {
	i, err := parseEnum("early termination", earlyNames, s)
	return Early(i), err
}

// PartialOptions tunes the Partial variant.
type PartialOptions struct {
	Filtering  bool
	Separation Separation
	Early      Early
	Threshold  float64
	Caching    bool
	CacheSize  int
}

// Options configures an Evaluator.
type Options struct {
	Variant       Variant
	Observability Observability
	Semantics     Semantics
	// Workers bounds the strategies evaluated concurrently.
	Workers int
	Partial PartialOptions
	Logger  *slog.Logger
}

// DefaultOptions returns SF under partial observability and group
// semantics.
func DefaultOptions() Options {
	return Options{
		Variant:       SF,
		Observability: ObsPartial,
		Semantics:     Group,
		Workers:       runtime.NumCPU(),
		Partial: PartialOptions{
			Filtering:  true,
			Separation: SeparateNone,
			Early:      EarlyNone,
			Threshold:  0.5,
			CacheSize:  1024,
		},
	}
}

func (o Options) normalize() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Partial.Threshold < 0 {
		o.Partial.Threshold = 0
	}
	if o.Partial.Threshold >= 1 {
		o.Partial.Threshold = 0.99
	}
	if o.Partial.CacheSize <= 0 {
		o.Partial.CacheSize = 1024
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return "unknown"
	}
	return names[i]
}

func parseEnum(kind string, names []string, s string) (int, error) {
	i := slices.Index(names, strings.ToLower(strings.TrimSpace(s)))
	if i < 0 {
		return 0, optionErrorf("%s %q (expected one of %s)", kind, s, strings.Join(names, ", "))
	}
	return i, nil
}
