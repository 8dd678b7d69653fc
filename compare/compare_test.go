package compare

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govanalytics/model"
	"govanalytics/store"
)

func TestAlignJoinsOnNearestEarlierWithinSkew(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seriesA := []store.Point{
		{Timestamp: t0, Value: 0.1, Provenance: model.ProvenanceLive},
		{Timestamp: t0.Add(time.Hour), Value: 0.2, Provenance: model.ProvenanceLive},
	}
	seriesB := []store.Point{
		{Timestamp: t0.Add(-5 * time.Minute), Value: 10, Provenance: model.ProvenanceCached},
		{Timestamp: t0.Add(55 * time.Minute), Value: 20, Provenance: model.ProvenanceCached},
	}

	table := Align(map[string][]store.Point{"a": seriesA, "b": seriesB}, []string{"a", "b"}, 10*time.Minute)
	require.Len(t, table.Rows, 2)

	assert.True(t, table.Rows[0].Values["b"].Present)
	assert.Equal(t, 10.0, table.Rows[0].Values["b"].Value)
	assert.Equal(t, "cached", table.Rows[0].Values["b"].Provenance)

	assert.True(t, table.Rows[1].Values["b"].Present)
	assert.Equal(t, 20.0, table.Rows[1].Values["b"].Value)
}

func TestAlignSkipsBeyondSkew(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seriesA := []store.Point{{Timestamp: t0, Value: 0.1}}
	seriesB := []store.Point{{Timestamp: t0.Add(-time.Hour), Value: 10}}

	table := Align(map[string][]store.Point{"a": seriesA, "b": seriesB}, []string{"a", "b"}, time.Minute)
	require.Len(t, table.Rows, 1)
	assert.False(t, table.Rows[0].Values["b"].Present)
}

func TestRankOrdersByWeightedNormalizedScore(t *testing.T) {
	latest := map[string]map[string]float64{
		"a": {"turnout": 0.9, "gini": 0.2},
		"b": {"turnout": 0.1, "gini": 0.8},
	}
	weights := []Weight{{Metric: "turnout", Weight: 1.0}, {Metric: "gini", Weight: -0.5}}
	ranked := Rank(latest, weights, []string{"a", "b"})
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Protocol)
}

func TestRankHandlesMissingMetric(t *testing.T) {
	latest := map[string]map[string]float64{
		"a": {"turnout": 0.9},
		"b": {},
	}
	weights := []Weight{{Metric: "turnout", Weight: 1.0}}
	ranked := Rank(latest, weights, []string{"a", "b"})
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Protocol)
}
