package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govanalytics/model"
)

func snapshotAt(protocolID string, ts time.Time, value float64) model.Snapshot {
	return model.Snapshot{
		Protocol:   model.Protocol{ID: protocolID},
		Timestamp:  ts,
		Metrics:    model.MetricSet{"gini": value},
		Provenance: model.ProvenanceLive,
	}
}

// TestSeriesReturnsExactRangeBoundaries reproduces spec.md §8 scenario 5:
// three snapshots at t0, t1, t2; series(t0, t2) returns all three in
// ascending order; series(t0+ε, t2−ε) returns only t1.
func testSeriesReturnsExactRangeBoundaries(t *testing.T, s Store) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	require.NoError(t, s.Put(ctx, snapshotAt("proto", t0, 0.1)))
	require.NoError(t, s.Put(ctx, snapshotAt("proto", t1, 0.2)))
	require.NoError(t, s.Put(ctx, snapshotAt("proto", t2, 0.3)))

	full, err := s.Series(ctx, "proto", "gini", t0, t2)
	require.NoError(t, err)
	require.Len(t, full, 3)
	assert.True(t, full[0].Timestamp.Equal(t0))
	assert.True(t, full[1].Timestamp.Equal(t1))
	assert.True(t, full[2].Timestamp.Equal(t2))

	narrow, err := s.Series(ctx, "proto", "gini", t0.Add(time.Minute), t2.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, narrow, 1)
	assert.True(t, narrow[0].Timestamp.Equal(t1))
}

func TestMemStoreSeriesReturnsExactRangeBoundaries(t *testing.T) {
	testSeriesReturnsExactRangeBoundaries(t, NewMemStore())
}

func TestMemStoreGetMissingIsNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.Get(context.Background(), "proto", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreNearestBreaksTiesEarlier(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, snapshotAt("proto", base, 0.1)))
	require.NoError(t, s.Put(ctx, snapshotAt("proto", base.Add(10*time.Minute), 0.2)))

	nearest, err := s.Nearest(ctx, "proto", base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, nearest.Timestamp.Equal(base))
}

func TestDiskStoreSeriesReturnsExactRangeBoundaries(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	require.NoError(t, err)
	defer s.Close()
	testSeriesReturnsExactRangeBoundaries(t, s)
}

func TestDiskStoreRebuildsIndexFromDirectory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := NewDiskStore(dir)
	require.NoError(t, err)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, snapshotAt("proto", ts, 0.5)))
	require.NoError(t, s.Close())

	require.NoError(t, os.Remove(dir+"/proto/index.json"))

	reopened, err := NewDiskStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Get(ctx, "proto", ts)
	require.NoError(t, err)
	assert.Equal(t, 0.5, snap.Metrics["gini"])
}
