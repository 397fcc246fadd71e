// Package filter evaluates filter criteria and summary metrics over in-memory record collections.
package filter

import (
	"fmt"
	"sort"
)

// Criteria maps filter keys to selected values. An empty value places no constraint on its key.
type Criteria map[string]string

// Active returns a copy holding only the non-empty criteria.
func (c Criteria) Active() Criteria {
	out := Criteria{}
	for k, v := range c {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// With returns a copy of c with key set to value.
func (c Criteria) With(key, value string) Criteria {
	out := make(Criteria, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[key] = value
	return out
}

// KeyPolicy decides how criteria keys missing from the schema are treated.
type KeyPolicy int

const (
	// IgnoreUnknownKeys treats unknown keys as non-constraining.
	IgnoreUnknownKeys KeyPolicy = iota
	// RejectUnknownKeys makes Validate fail on unknown keys.
	RejectUnknownKeys
)

// Engine filters, summarizes and orders collections of T.
// It holds no per-query state and is safe for concurrent use.
type Engine[T any] struct {
	schema  *Schema[T]
	metrics []resolvedMetric[T]
	policy  KeyPolicy
}

// New binds metrics to schema. Metrics referencing absent or non-numeric fields fail here.
func New[T any](schema *Schema[T], metrics ...Metric[T]) (*Engine[T], error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is nil", ErrInvalidSchema)
	}
	resolved, err := resolveMetrics(schema, metrics)
	if err != nil {
		return nil, err
	}
	return &Engine[T]{schema: schema, metrics: resolved}, nil
}

// Must panics when err is non-nil. Intended for package-level engine definitions.
func Must[T any](e *Engine[T], err error) *Engine[T] {
	if err != nil {
		panic(err)
	}
	return e
}

// WithPolicy returns a copy of the engine using policy for unknown keys.
func (e *Engine[T]) WithPolicy(policy KeyPolicy) *Engine[T] {
	clone := *e
	clone.policy = policy
	return &clone
}

// Schema exposes the engine's schema.
func (e *Engine[T]) Schema() *Schema[T] {
	return e.schema
}

// Validate reports unknown criteria keys under RejectUnknownKeys. Empty values are not checked.
func (e *Engine[T]) Validate(criteria Criteria) error {
	if e.policy != RejectUnknownKeys {
		return nil
	}
	var unknown []string
	for key, value := range criteria {
		if value == "" {
			continue
		}
		if !e.schema.Has(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: %v", ErrUnknownKey, unknown)
}

// Matches reports whether record satisfies every active, known criterion.
func (e *Engine[T]) Matches(record T, criteria Criteria) bool {
	for key, value := range criteria {
		f, ok := e.schema.field(key)
		if !ok || f.passThrough(value) {
			continue
		}
		if !f.matches(record, value) {
			return false
		}
	}
	return true
}

// Filter returns the records matching criteria in their original order.
// The input slice is never modified; an empty result is a non-nil empty slice.
func (e *Engine[T]) Filter(records []T, criteria Criteria) []T {
	visible := make([]T, 0, len(records))
	for _, record := range records {
		if e.Matches(record, criteria) {
			visible = append(visible, record)
		}
	}
	return visible
}
