package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrder(t *testing.T) {
	assert.Equal(t, Order{Key: "title"}, ParseOrder("title", ""))
	assert.Equal(t, Order{Key: "title", Desc: true}, ParseOrder("-title", ""))
	assert.Equal(t, Order{Key: "progress", Desc: true}, ParseOrder(" progress ", "DESC"))
	assert.Equal(t, Order{Key: "progress"}, ParseOrder("progress", "asc"))
}

func TestSortNumericStable(t *testing.T) {
	engine := itemEngine(t)
	records := []item{
		{ID: 1, Progress: 40},
		{ID: 2, Progress: 100},
		{ID: 3, Progress: 40},
		{ID: 4, Progress: 0},
	}

	asc, err := engine.Sort(records, Order{Key: "progress"})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 3, 2}, ids(asc))

	desc, err := engine.Sort(records, Order{Key: "progress", Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 3, 4}, ids(desc))

	assert.Equal(t, []int{1, 2, 3, 4}, ids(records), "input must not be reordered")
}

func TestSortLexical(t *testing.T) {
	engine := itemEngine(t)

	sorted, err := engine.Sort(threeRecords(), ParseOrder("name", ""))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, ids(sorted))
}

func TestSortWithoutKeyReturnsCopy(t *testing.T) {
	engine := itemEngine(t)
	records := threeRecords()

	out, err := engine.Sort(records, Order{})
	require.NoError(t, err)
	assert.Equal(t, ids(records), ids(out))
	out[0].ID = 99
	assert.Equal(t, 1, records[0].ID)
}

func TestSortErrors(t *testing.T) {
	engine := itemEngine(t)

	_, err := engine.Sort(threeRecords(), Order{Key: "missing"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = engine.Sort(threeRecords(), Order{Key: "search"})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestFacets(t *testing.T) {
	engine := itemEngine(t)

	facets, err := engine.Facets(threeRecords(), "college")
	require.NoError(t, err)
	assert.Equal(t, []Facet{{Value: "Leadership", Count: 2}, {Value: "Technology", Count: 1}}, facets)

	facets, err = engine.Facets(threeRecords(), "status")
	require.NoError(t, err)
	assert.Equal(t, []Facet{
		{Value: "completed", Count: 1},
		{Value: "in_progress", Count: 1},
		{Value: "not_started", Count: 1},
	}, facets)

	facets, err = engine.Facets(nil, "status")
	require.NoError(t, err)
	assert.Empty(t, facets)

	_, err = engine.Facets(threeRecords(), "state")
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = engine.Facets(threeRecords(), "nope")
	assert.ErrorIs(t, err, ErrUnknownField)
}
