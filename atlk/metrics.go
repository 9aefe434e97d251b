package atlk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kripke-atlk.atlk")

var (
	fixpointIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlk_fixpoint_iterations_total",
		Help: "Applications of fixpoint functions, by fixpoint kind.",
	}, []string{"kind"})

	strategiesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlk_strategies_evaluated_total",
		Help: "Uniform strategies whose winning states were computed.",
	}, []string{"variant"})

	strategicEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlk_strategic_evaluations_total",
		Help: "Strategic sub-formulas evaluated.",
	}, []string{"variant"})

	strategicDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlk_strategic_duration_seconds",
		Help:    "Time spent deciding one strategic sub-formula.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"variant"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlk_partial_cache_lookups_total",
		Help: "Sub-formula cache lookups of the partial search.",
	}, []string{"result"})
)

// Stat names reported by Stats.
const (
	StatStrategies     = "strategies"
	StatFixpoints      = "fixpoint_iterations"
	StatStrategic      = "strategic_evaluations"
	StatStrategicTime  = "strategic_time"
	StatCacheHits      = "cache_hits"
	StatCacheMisses    = "cache_misses"
	StatEncodings      = "symbolic_encodings"
	StatEarlyStops     = "early_stops"
	StatStrategyBDDVar = "strategy_variables"
)

var statInfo = map[string][2]string{
	StatStrategies:     {"count", "strategies evaluated"},
	StatFixpoints:      {"count", "fixpoint function applications"},
	StatStrategic:      {"count", "strategic sub-formulas decided"},
	StatStrategicTime:  {"s", "time deciding strategic sub-formulas"},
	StatCacheHits:      {"count", "partial search cache hits"},
	StatCacheMisses:    {"count", "partial search cache misses"},
	StatEncodings:      {"count", "symbolic strategy encodings built"},
	StatEarlyStops:     {"count", "early terminations of the partial search"},
	StatStrategyBDDVar: {"count", "strategy variables added to the model"},
}

// Metric is one counter of an evaluator.
type Metric struct {
	Name        string
	Unit        string
	Description string
	Value       float64
}

// Stats collects the counters of one Evaluator, next to the process-wide
// Prometheus metrics. It is safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	metrics map[string]*Metric
}

func newStats() *Stats {
	return &Stats{metrics: map[string]*Metric{}}
}

func (s *Stats) add(name string, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metrics[name]
	if !ok {
		info := statInfo[name]
		m = &Metric{Name: name, Unit: info[0], Description: info[1]}
		s.metrics[name] = m
	}
	m.Value += delta
}

// Value returns the current value of the named counter, zero if unused.
func (s *Stats) Value(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.metrics[name]; ok {
		return m.Value
	}
	return 0
}

// Table renders the counters as a markdown table sorted by name.
func (s *Stats) Table() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sb strings.Builder
	sb.WriteString("| Metric | Value | Unit | Description |\n")
	sb.WriteString("|--------|-------|------|-------------|\n")

	names := make([]string, 0, len(s.metrics))
	for name := range s.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := s.metrics[name]
		value := fmt.Sprintf("%.0f", m.Value)
		if m.Unit == "s" {
			value = fmt.Sprintf("%.4f", m.Value)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", m.Name, value, m.Unit, m.Description)
	}
	return sb.String()
}

func (e *Evaluator) countFixpoint(kind string) func() {
	c := fixpointIterations.WithLabelValues(kind)
	return func() {
		c.Inc()
		e.stats.add(StatFixpoints, 1)
	}
}

func (e *Evaluator) countStrategy() {
	strategiesEvaluated.WithLabelValues(e.variantLabel()).Inc()
	e.stats.add(StatStrategies, 1)
}

func (e *Evaluator) countCache(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		e.stats.add(StatCacheHits, 1)
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
	e.stats.add(StatCacheMisses, 1)
}

// variantLabel names the algorithm actually deciding strategic operators.
func (e *Evaluator) variantLabel() string {
	if e.opts.Observability == ObsFull {
		return "full"
	}
	return e.opts.Variant.String()
}

// startStrategicSpan opens the span of one strategic sub-formula.
func (e *Evaluator) startStrategicSpan(ctx context.Context, s strategic, agents []string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "atlk.Strategic",
		trace.WithAttributes(
			attribute.String("atlk.variant", e.variantLabel()),
			attribute.String("atlk.group", strings.Join(agents, ",")),
			attribute.String("atlk.formula", s.node.String()),
		),
	)
}

// endStrategicSpan records the outcome of one strategic sub-formula.
func (e *Evaluator) endStrategicSpan(span trace.Span, start time.Time, err error) {
	d := time.Since(start)
	label := e.variantLabel()
	strategicEvaluations.WithLabelValues(label).Inc()
	strategicDuration.WithLabelValues(label).Observe(d.Seconds())
	e.stats.add(StatStrategic, 1)
	e.stats.add(StatStrategicTime, d.Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
