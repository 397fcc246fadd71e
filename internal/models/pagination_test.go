package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageParamsBounds(t *testing.T) {
	cases := []struct {
		name       string
		params     PageParams
		total      int
		start, end int
	}{
		{"defaults", PageParams{}, 6, 0, 6},
		{"second page", PageParams{Page: 2, PageSize: 4}, 6, 4, 6},
		{"exact end", PageParams{Page: 2, PageSize: 3}, 6, 3, 6},
		{"past the end", PageParams{Page: 3, PageSize: 3}, 6, 6, 6},
		{"size clamped", PageParams{Page: 1, PageSize: 500}, 250, 0, MaxPageSize},
		{"huge page", PageParams{Page: math.MaxInt/DefaultPageSize + 2, PageSize: DefaultPageSize}, 6, 6, 6},
		{"max page", PageParams{Page: math.MaxInt, PageSize: MaxPageSize}, 6, 6, 6},
		{"empty collection", PageParams{Page: 4}, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := tc.params.Bounds(tc.total)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}
