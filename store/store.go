// Package store persists time-stamped analytical snapshots and answers
// time-series queries over them, per spec.md §4.8. Grounded on
// storage.MemDB and storage.LevelDB's Put/Get/Close shape, generalized
// from a flat byte-keyed store to a (protocol, timestamp)-keyed,
// provenance-aware snapshot store.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"govanalytics/model"
)

// ErrNotFound is returned when a requested key has no snapshot.
var ErrNotFound = errors.New("store: snapshot not found")

// Store is the write-once, append-only Snapshot Store interface (spec.md
// §4.8). Writes are atomic: a snapshot is visible in full or not at all.
// Writes are serialized per protocol; reads never block on writes to other
// protocols.
type Store interface {
	Put(ctx context.Context, snap model.Snapshot) error
	Get(ctx context.Context, protocolID string, ts time.Time) (model.Snapshot, error)
	Nearest(ctx context.Context, protocolID string, ts time.Time) (model.Snapshot, error)
	Range(ctx context.Context, protocolID string, from, to time.Time) ([]model.Snapshot, error)
	Series(ctx context.Context, protocolID, metric string, from, to time.Time) ([]Point, error)
	Close() error
}

// Point is one (timestamp, value) sample of a named metric series. Missing
// snapshots produce a gap — the point is simply absent, never interpolated
// (spec.md §4.8).
type Point struct {
	Timestamp  time.Time
	Value      float64
	Provenance model.Provenance
}

func keyTime(ts time.Time) time.Time { return ts.UTC() }

func sortedByTimestamp(snaps []model.Snapshot) []model.Snapshot {
	out := make([]model.Snapshot, len(snaps))
	copy(out, snaps)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
