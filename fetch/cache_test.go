package fetch

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCachePutGet(t *testing.T) {
	c, err := NewResponseCache(8)
	require.NoError(t, err)

	key := CacheKey{Source: "primary", Kind: "holders", Args: "proto"}
	c.Put(key, 42, time.Minute)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestResponseCacheExpires(t *testing.T) {
	c, err := NewResponseCache(8)
	require.NoError(t, err)
	now := time.Now()
	c.now = func() time.Time { return now }

	key := CacheKey{Source: "primary", Kind: "holders", Args: "proto"}
	c.Put(key, "value", time.Second)

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestResponseCacheDisabledWhenMaxEntriesNonPositive(t *testing.T) {
	c, err := NewResponseCache(0)
	require.NoError(t, err)

	key := CacheKey{Source: "primary", Kind: "holders", Args: "proto"}
	c.Put(key, "value", time.Minute)
	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestBackoffDelayGrowsWithAttempt(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d0 := backoffDelay(rng, 100*time.Millisecond, 10*time.Second, 0)
	d5 := backoffDelay(rng, 100*time.Millisecond, 10*time.Second, 5)
	assert.Greater(t, d5, d0/2)
}
