// Package embed defines the bi-encoder/cross-encoder capability
// interfaces (spec §6), the query embedding cache (C8), and deterministic
// test-double implementations of both capabilities.
package embed

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded LRU mapping SHA-256(query_text) to a normalised
// embedding vector, with hit/miss counters. Safe for concurrent use.
// hashicorp/golang-lru/v2 doesn't expose hit/miss counters itself, so
// this wraps it the way internal/embed/cached.go (teacher) wraps the same
// library for its own embedding cache.
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, []float32]
	hits   int64
	misses int64
}

// NewCache creates a cache with the given capacity (minimum 1).
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	inner, _ := lru.New[string, []float32](capacity)
	return &Cache{lru: inner}
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Get looks up query's embedding, marking the entry most-recently-used on
// a hit and incrementing the appropriate counter.
func (c *Cache) Get(query string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, ok := c.lru.Get(cacheKey(query))
	if ok {
		atomic.AddInt64(&c.hits, 1)
	} else {
		atomic.AddInt64(&c.misses, 1)
	}
	return vec, ok
}

// Put inserts (or promotes) query's embedding, evicting the
// least-recently-used entry if the cache is over capacity.
func (c *Cache) Put(query string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(cacheKey(query), vec)
}

// Hits returns the cumulative hit count.
func (c *Cache) Hits() int64 { return atomic.LoadInt64(&c.hits) }

// Misses returns the cumulative miss count.
func (c *Cache) Misses() int64 { return atomic.LoadInt64(&c.misses) }

// HitRate returns hits/(hits+misses), or 0 when no lookups have occurred.
func (c *Cache) HitRate() float64 {
	hits := c.Hits()
	misses := c.Misses()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Clear empties the cache and resets both counters, used by
// pipeline.Reload.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}
