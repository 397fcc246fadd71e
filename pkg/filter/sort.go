package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Order selects the sort field and direction.
type Order struct {
	Key  string
	Desc bool
}

// ParseOrder reads "field" or "-field" (descending) and an optional explicit direction.
func ParseOrder(key, direction string) Order {
	key = strings.TrimSpace(key)
	desc := strings.EqualFold(strings.TrimSpace(direction), "desc")
	if strings.HasPrefix(key, "-") {
		key = strings.TrimPrefix(key, "-")
		desc = true
	}
	return Order{Key: key, Desc: desc}
}

// Sort returns a stably sorted copy of records. Fields with a numeric accessor sort numerically,
// others lexically. Equal keys keep their original relative order in both directions.
func (e *Engine[T]) Sort(records []T, order Order) ([]T, error) {
	out := append(make([]T, 0, len(records)), records...)
	if order.Key == "" {
		return out, nil
	}
	f, ok := e.schema.field(order.Key)
	if !ok {
		return nil, fmt.Errorf("sort: %w %q", ErrUnknownField, order.Key)
	}
	if f.Number == nil && f.Value == nil {
		return nil, fmt.Errorf("sort: field %q has no orderable accessor: %w", order.Key, ErrInvalidSchema)
	}

	var less func(a, b T) bool
	if f.Number != nil {
		less = func(a, b T) bool { return f.Number(a) < f.Number(b) }
	} else {
		less = func(a, b T) bool { return f.Value(a) < f.Value(b) }
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order.Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out, nil
}

// Facet is the number of records carrying one value of a field.
type Facet struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets counts records per distinct value of key, ordered by count descending then value.
func (e *Engine[T]) Facets(records []T, key string) ([]Facet, error) {
	f, ok := e.schema.field(key)
	if !ok {
		return nil, fmt.Errorf("facets: %w %q", ErrUnknownField, key)
	}
	if f.Value == nil && f.Number == nil {
		return nil, fmt.Errorf("facets: field %q is a predicate: %w", key, ErrInvalidSchema)
	}
	counts := map[string]int{}
	for _, r := range records {
		counts[f.resolve(r)]++
	}
	facets := make([]Facet, 0, len(counts))
	for value, count := range counts {
		facets = append(facets, Facet{Value: value, Count: count})
	}
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].Count == facets[j].Count {
			return facets[i].Value < facets[j].Value
		}
		return facets[i].Count > facets[j].Count
	})
	return facets, nil
}
