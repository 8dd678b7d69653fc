package store

import (
	"context"
	"sync"
	"time"

	"govanalytics/model"
)

// MemStore is the in-memory Store implementation (spec.md §4.8: "for
// tests"), grounded on storage.MemDB's map-plus-mutex shape but keyed by
// (protocol, timestamp) rather than a flat byte key, with a per-protocol
// lock so writes to one protocol never block reads or writes to another.
type MemStore struct {
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
	data  map[string]map[time.Time]model.Snapshot
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		locks: make(map[string]*sync.Mutex),
		data:  make(map[string]map[time.Time]model.Snapshot),
	}
}

func (s *MemStore) protocolLock(protocolID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[protocolID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[protocolID] = l
	}
	return l
}

// Put stores a snapshot. Puts to the same protocol are serialized; puts to
// different protocols may proceed concurrently.
func (s *MemStore) Put(ctx context.Context, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.protocolLock(snap.Protocol.ID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	byTime, ok := s.data[snap.Protocol.ID]
	if !ok {
		byTime = make(map[time.Time]model.Snapshot)
		s.data[snap.Protocol.ID] = byTime
	}
	byTime[keyTime(snap.Timestamp)] = snap
	s.mu.Unlock()
	return nil
}

func (s *MemStore) snapshotsFor(protocolID string) []model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byTime, ok := s.data[protocolID]
	if !ok {
		return nil
	}
	out := make([]model.Snapshot, 0, len(byTime))
	for _, snap := range byTime {
		out = append(out, snap)
	}
	return sortedByTimestamp(out)
}

// Get returns the snapshot at exactly ts, or ErrNotFound.
func (s *MemStore) Get(ctx context.Context, protocolID string, ts time.Time) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	s.mu.RLock()
	byTime, ok := s.data[protocolID]
	if ok {
		snap, ok := byTime[keyTime(ts)]
		s.mu.RUnlock()
		if ok {
			return snap, nil
		}
		return model.Snapshot{}, ErrNotFound
	}
	s.mu.RUnlock()
	return model.Snapshot{}, ErrNotFound
}

// Nearest returns the snapshot with the timestamp closest to ts, breaking
// ties toward the earlier snapshot.
func (s *MemStore) Nearest(ctx context.Context, protocolID string, ts time.Time) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	snaps := s.snapshotsFor(protocolID)
	if len(snaps) == 0 {
		return model.Snapshot{}, ErrNotFound
	}
	best := snaps[0]
	bestDelta := absDuration(ts.Sub(best.Timestamp))
	for _, snap := range snaps[1:] {
		delta := absDuration(ts.Sub(snap.Timestamp))
		if delta < bestDelta {
			best, bestDelta = snap, delta
		}
	}
	return best, nil
}

// Range returns all snapshots with timestamp in [from, to], ascending.
func (s *MemStore) Range(ctx context.Context, protocolID string, from, to time.Time) ([]model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snaps := s.snapshotsFor(protocolID)
	var out []model.Snapshot
	for _, snap := range snaps {
		if snap.Timestamp.Before(from) || snap.Timestamp.After(to) {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Series projects metric across the snapshots in [from, to]; snapshots that
// lack the metric are skipped (a gap), never interpolated.
func (s *MemStore) Series(ctx context.Context, protocolID, metric string, from, to time.Time) ([]Point, error) {
	snaps, err := s.Range(ctx, protocolID, from, to)
	if err != nil {
		return nil, err
	}
	var points []Point
	for _, snap := range snaps {
		value, ok := snap.Metrics[metric]
		if !ok {
			continue
		}
		points = append(points, Point{Timestamp: snap.Timestamp, Value: value, Provenance: snap.Provenance})
	}
	return points, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
