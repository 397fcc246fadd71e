package filter

import (
	"fmt"
	"math"
)

type metricKind int

const (
	metricCount metricKind = iota
	metricCountWhere
	metricTotal
	metricMean
)

// Metric is a named aggregate evaluated by Summarize.
type Metric[T any] struct {
	Name  string
	kind  metricKind
	pred  func(T) bool
	field string
	value string
}

// Count counts records satisfying pred.
func Count[T any](name string, pred func(T) bool) Metric[T] {
	return Metric[T]{Name: name, kind: metricCount, pred: pred}
}

// CountWhere counts records whose field matches value, using the same rules as Filter.
func CountWhere[T any](name, field, value string) Metric[T] {
	return Metric[T]{Name: name, kind: metricCountWhere, field: field, value: value}
}

// Total counts all records.
func Total[T any](name string) Metric[T] {
	return Metric[T]{Name: name, kind: metricTotal}
}

// Mean averages a numeric field, rounded to the nearest integer. An empty collection yields 0.
func Mean[T any](name, field string) Metric[T] {
	return Metric[T]{Name: name, kind: metricMean, field: field}
}

type resolvedMetric[T any] struct {
	name   string
	kind   metricKind
	pred   func(T) bool
	number func(T) int
}

func resolveMetrics[T any](schema *Schema[T], metrics []Metric[T]) ([]resolvedMetric[T], error) {
	seen := make(map[string]struct{}, len(metrics))
	out := make([]resolvedMetric[T], 0, len(metrics))
	for _, m := range metrics {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: metric name is empty", ErrInvalidSchema)
		}
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate metric %q", ErrInvalidSchema, m.Name)
		}
		seen[m.Name] = struct{}{}

		r := resolvedMetric[T]{name: m.Name, kind: m.kind}
		switch m.kind {
		case metricCount:
			if m.pred == nil {
				return nil, fmt.Errorf("%w: metric %q has no predicate", ErrInvalidSchema, m.Name)
			}
			r.pred = m.pred
		case metricCountWhere:
			f, ok := schema.field(m.field)
			if !ok {
				return nil, fmt.Errorf("metric %q: %w %q", m.Name, ErrUnknownField, m.field)
			}
			value := m.value
			r.pred = func(record T) bool { return f.matches(record, value) }
		case metricMean:
			f, ok := schema.field(m.field)
			if !ok {
				return nil, fmt.Errorf("metric %q: %w %q", m.Name, ErrUnknownField, m.field)
			}
			if f.Number == nil {
				return nil, fmt.Errorf("metric %q: %w: %q", m.Name, ErrNotNumeric, m.field)
			}
			r.number = f.Number
		}
		out = append(out, r)
	}
	return out, nil
}

// Summary maps metric names to their values.
type Summary map[string]int

// Summarize evaluates every metric over records. Callers pass the full master collection so
// summaries stay independent of the active criteria.
func (e *Engine[T]) Summarize(records []T) Summary {
	summary := make(Summary, len(e.metrics))
	for _, m := range e.metrics {
		summary[m.name] = m.evaluate(records)
	}
	return summary
}

// MetricNames lists configured metric names in declaration order.
func (e *Engine[T]) MetricNames() []string {
	names := make([]string, 0, len(e.metrics))
	for _, m := range e.metrics {
		names = append(names, m.name)
	}
	return names
}

func (m resolvedMetric[T]) evaluate(records []T) int {
	switch m.kind {
	case metricTotal:
		return len(records)
	case metricMean:
		if len(records) == 0 {
			return 0
		}
		sum := 0
		for _, r := range records {
			sum += m.number(r)
		}
		return int(math.Round(float64(sum) / float64(len(records))))
	default:
		n := 0
		for _, r := range records {
			if m.pred(r) {
				n++
			}
		}
		return n
	}
}
