package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeMetrics(t *testing.T) {
	engine := itemEngine(t)

	summary := engine.Summarize(threeRecords())
	assert.Equal(t, Summary{
		"total":            3,
		"completed_count":  1,
		"enrolled_count":   2,
		"average_progress": 47,
	}, summary)
	assert.Equal(t, []string{"total", "completed_count", "enrolled_count", "average_progress"}, engine.MetricNames())
}

func TestSummarizeMeanRoundsToNearest(t *testing.T) {
	engine := itemEngine(t)

	// 100+65+0+85+100+30 = 380 / 6 = 63.33
	records := []item{{Progress: 100}, {Progress: 65}, {Progress: 0}, {Progress: 85}, {Progress: 100}, {Progress: 30}}
	assert.Equal(t, 63, engine.Summarize(records)["average_progress"])

	// 50.5 rounds up
	assert.Equal(t, 51, engine.Summarize([]item{{Progress: 50}, {Progress: 51}})["average_progress"])
}

func TestNewFailsFastOnMisconfiguredMetrics(t *testing.T) {
	schema, err := NewSchema(
		Categorical("status", func(i item) string { return i.Status }),
		Numeric("progress", func(i item) int { return i.Progress }),
	)
	require.NoError(t, err)

	_, err = New(schema, CountWhere[item]("x", "missing", "v"))
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = New(schema, Mean[item]("x", "missing"))
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = New(schema, Mean[item]("x", "status"))
	assert.ErrorIs(t, err, ErrNotNumeric)

	_, err = New(schema, Count[item]("x", nil))
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = New(schema, Total[item]("x"), Total[item]("x"))
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = New(schema, Total[item](""))
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = New[item](nil)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestMustPanicsOnError(t *testing.T) {
	schema, err := NewSchema(Categorical("status", func(i item) string { return i.Status }))
	require.NoError(t, err)

	assert.Panics(t, func() { Must(New(schema, Mean[item]("x", "status"))) })
	assert.NotPanics(t, func() { Must(New(schema, Total[item]("total"))) })
}
