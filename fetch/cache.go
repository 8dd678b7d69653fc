package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheKey identifies one memoized response by source, call kind, and
// argument fingerprint (spec.md §4.2: "memoized by (source, call, arguments)").
type CacheKey struct {
	Source string
	Kind   string
	Args   string
}

func (k CacheKey) fingerprint() string {
	sum := sha256.Sum256([]byte(k.Source + "|" + k.Kind + "|" + k.Args))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// ResponseCache memoizes adapter responses with a per-kind TTL and an
// overall LRU bound on entry count, per spec.md §4.2. Cache hits bypass the
// fallback chain entirely.
type ResponseCache struct {
	mu    sync.Mutex
	store *lru.Cache[string, cacheEntry]
	now   func() time.Time
}

// NewResponseCache builds a cache bounded to maxEntries. maxEntries <= 0
// disables caching (every Get misses, every Put is a no-op).
func NewResponseCache(maxEntries int) (*ResponseCache, error) {
	if maxEntries <= 0 {
		return &ResponseCache{now: time.Now}, nil
	}
	c, err := lru.New[string, cacheEntry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("build response cache: %w", err)
	}
	return &ResponseCache{store: c, now: time.Now}, nil
}

// Get returns the cached value for key if present and not expired.
func (c *ResponseCache) Get(key CacheKey) (any, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.store.Get(key.fingerprint())
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.store.Remove(key.fingerprint())
		return nil, false
	}
	return entry.value, true
}

// Put stores value under key with the given TTL. A non-positive TTL stores
// nothing.
func (c *ResponseCache) Put(key CacheKey, value any, ttl time.Duration) {
	if c == nil || c.store == nil || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Add(key.fingerprint(), cacheEntry{value: value, expiresAt: c.now().Add(ttl)})
}

// Len reports the number of stored entries, including expired ones that no
// Get has removed yet.
func (c *ResponseCache) Len() int {
	if c == nil || c.store == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}
