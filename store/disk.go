package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"govanalytics/errs"
	"govanalytics/model"
)

const snapshotFileLayout = "20060102T150405Z"

// indexEntry is one row of a protocol's index.json, also mirrored into the
// leveldb secondary index on every index write.
type indexEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Provenance string    `json:"provenance"`
	Checksum   string    `json:"checksum"`
	File       string    `json:"file"`
}

// DiskStore is the on-disk Store implementation (spec.md §4.8): one
// directory per protocol, one file per snapshot named
// YYYYMMDDTHHMMSSZ.snap, an index.json recoverable from a directory scan,
// and a small leveldb-backed secondary index (grounded on storage.LevelDB)
// that writeIndex keeps in step with index.json. Reads (Get, Nearest,
// Range, Series) list keys from index.json; the leveldb index is not read.
type DiskStore struct {
	root  string
	index *leveldb.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDiskStore opens (or creates) a disk-backed store rooted at dir, with
// its secondary index at dir/.index.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := withStorageRetry("create root", func() error { return os.MkdirAll(dir, 0o755) }); err != nil {
		return nil, err
	}
	var idx *leveldb.DB
	if err := withStorageRetry("open index", func() error {
		opened, err := leveldb.OpenFile(filepath.Join(dir, ".index"), nil)
		if err != nil {
			return err
		}
		idx = opened
		return nil
	}); err != nil {
		return nil, err
	}
	ds := &DiskStore{root: dir, index: idx, locks: make(map[string]*sync.Mutex)}
	if err := ds.rebuildFromDirectoryIfNeeded(); err != nil {
		idx.Close()
		return nil, err
	}
	return ds, nil
}

// withStorageRetry runs fn, retrying exactly once on failure before
// surfacing a KindStorageIO error, matching the StorageIO row's "retried
// once; surfaced on second failure" propagation rule (spec.md §7).
func withStorageRetry(op string, fn func() error) error {
	if err := fn(); err == nil {
		return nil
	}
	if err := fn(); err != nil {
		return errs.New(errs.KindStorageIO, op, "disk", err)
	}
	return nil
}

func (s *DiskStore) protocolDir(protocolID string) string {
	return filepath.Join(s.root, protocolID)
}

func (s *DiskStore) protocolLock(protocolID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[protocolID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[protocolID] = l
	}
	return l
}

func snapshotFileName(ts time.Time) string {
	return ts.UTC().Format(snapshotFileLayout) + ".snap"
}

// rebuildFromDirectoryIfNeeded scans every protocol directory missing an
// index.json and regenerates one from the .snap files present, per spec.md
// §4.8's durability clause ("an index file ... is rebuilt from directory
// contents on startup if missing").
func (s *DiskStore) rebuildFromDirectoryIfNeeded() error {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		protocolID := e.Name()
		indexPath := filepath.Join(s.protocolDir(protocolID), "index.json")
		if _, err := os.Stat(indexPath); err == nil {
			continue
		}
		if err := s.rebuildProtocolIndex(protocolID); err != nil {
			return err
		}
	}
	return nil
}

func (s *DiskStore) rebuildProtocolIndex(protocolID string) error {
	dir := s.protocolDir(protocolID)
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var entries []indexEntry
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".snap" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return err
		}
		var snap model.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			continue
		}
		entries = append(entries, indexEntry{
			Timestamp:  snap.Timestamp.UTC(),
			Provenance: string(snap.Provenance),
			Checksum:   checksum(raw),
			File:       f.Name(),
		})
	}
	return s.writeIndex(protocolID, entries)
}

func (s *DiskStore) writeIndex(protocolID string, entries []indexEntry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	dir := s.protocolDir(protocolID)
	if err := withStorageRetry("create protocol dir", func() error { return os.MkdirAll(dir, 0o755) }); err != nil {
		return err
	}
	indexPath := filepath.Join(dir, "index.json")
	if err := withStorageRetry("write index", func() error { return os.WriteFile(indexPath, raw, 0o644) }); err != nil {
		return err
	}
	for _, e := range entries {
		key := indexKey(protocolID, e.Timestamp)
		if err := withStorageRetry("write secondary index", func() error { return s.index.Put(key, raw, nil) }); err != nil {
			return err
		}
	}
	return nil
}

func (s *DiskStore) readIndex(protocolID string) ([]indexEntry, error) {
	path := filepath.Join(s.protocolDir(protocolID), "index.json")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []indexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("store: decode index: %w", err)
	}
	return entries, nil
}

func indexKey(protocolID string, ts time.Time) []byte {
	return []byte(protocolID + "|" + ts.UTC().Format(snapshotFileLayout))
}

func checksum(raw []byte) string {
	var sum uint32
	for _, b := range raw {
		sum = sum*31 + uint32(b)
	}
	return fmt.Sprintf("%08x", sum)
}

// Put writes the snapshot file and appends to the index atomically from the
// caller's perspective: the file is written to a temp path and renamed into
// place before the index is updated, so a crash mid-write never leaves a
// visible-but-truncated snapshot (spec.md §4.8: "either the snapshot is
// visible in full or not at all").
func (s *DiskStore) Put(ctx context.Context, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.protocolLock(snap.Protocol.ID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.protocolDir(snap.Protocol.ID)
	if err := withStorageRetry("create protocol dir", func() error { return os.MkdirAll(dir, 0o755) }); err != nil {
		return err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}
	fileName := snapshotFileName(snap.Timestamp)
	finalPath := filepath.Join(dir, fileName)
	tmpPath := finalPath + ".tmp"
	if err := withStorageRetry("write snapshot", func() error { return os.WriteFile(tmpPath, raw, 0o644) }); err != nil {
		return err
	}
	if err := withStorageRetry("commit snapshot", func() error { return os.Rename(tmpPath, finalPath) }); err != nil {
		return err
	}

	entries, err := s.readIndex(snap.Protocol.ID)
	if err != nil {
		return err
	}
	entries = append(entries, indexEntry{
		Timestamp:  snap.Timestamp.UTC(),
		Provenance: string(snap.Provenance),
		Checksum:   checksum(raw),
		File:       fileName,
	})
	return s.writeIndex(snap.Protocol.ID, entries)
}

func (s *DiskStore) readSnapshotFile(protocolID, fileName string) (model.Snapshot, error) {
	raw, err := os.ReadFile(filepath.Join(s.protocolDir(protocolID), fileName))
	if err != nil {
		return model.Snapshot{}, ErrNotFound
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return snap, nil
}

// Get returns the snapshot at exactly ts, or ErrNotFound.
func (s *DiskStore) Get(ctx context.Context, protocolID string, ts time.Time) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	entries, err := s.readIndex(protocolID)
	if err != nil {
		return model.Snapshot{}, err
	}
	for _, e := range entries {
		if e.Timestamp.Equal(keyTime(ts)) {
			return s.readSnapshotFile(protocolID, e.File)
		}
	}
	return model.Snapshot{}, ErrNotFound
}

// Nearest returns the snapshot closest to ts, breaking ties toward the
// earlier snapshot.
func (s *DiskStore) Nearest(ctx context.Context, protocolID string, ts time.Time) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	entries, err := s.readIndex(protocolID)
	if err != nil {
		return model.Snapshot{}, err
	}
	if len(entries) == 0 {
		return model.Snapshot{}, ErrNotFound
	}
	best := entries[0]
	bestDelta := absDuration(ts.Sub(best.Timestamp))
	for _, e := range entries[1:] {
		delta := absDuration(ts.Sub(e.Timestamp))
		if delta < bestDelta || (delta == bestDelta && e.Timestamp.Before(best.Timestamp)) {
			best, bestDelta = e, delta
		}
	}
	return s.readSnapshotFile(protocolID, best.File)
}

// Range returns all snapshots with timestamp in [from, to], ascending.
func (s *DiskStore) Range(ctx context.Context, protocolID string, from, to time.Time) ([]model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.readIndex(protocolID)
	if err != nil {
		return nil, err
	}
	var matched []indexEntry
	for _, e := range entries {
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		matched = append(matched, e)
	}
	out := make([]model.Snapshot, 0, len(matched))
	for _, e := range matched {
		snap, err := s.readSnapshotFile(protocolID, e.File)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return sortedByTimestamp(out), nil
}

// Series projects metric across the snapshots in [from, to]; snapshots
// lacking the metric are skipped (a gap).
func (s *DiskStore) Series(ctx context.Context, protocolID, metric string, from, to time.Time) ([]Point, error) {
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

// Close releases the secondary index's file handles.
func (s *DiskStore) Close() error {
	return s.index.Close()
}
