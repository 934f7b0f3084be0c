// Package cache memoizes idempotent root-page fetches for one scan.
//
// The cache is an accelerator only: a miss costs one extra request and
// never changes a finding.
package cache

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// Key returns the cache key for a request.
func Key(method, url string) string {
	return method + "::" + url
}

// Cacheable reports whether a GET with these properties may be served from
// or stored in the cache. Only the bare root is eligible.
func Cacheable(path string, hasParams, hasHeaders, bypass bool) bool {
	if hasParams || hasHeaders || bypass {
		return false
	}
	return path == "" || path == "/"
}

type entry[V any] struct {
	key   string
	value V
}

// Cache maps keys to values. Keys are bucketed by their 64-bit murmur3
// hash and compared in full on lookup.
type Cache[V any] struct {
	mu      sync.RWMutex
	buckets map[uint64][]entry[V]
	size    int
	hits    uint64
	misses  uint64
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{buckets: make(map[uint64][]entry[V])}
}

func hash(key string) uint64 {
	return murmur3.Sum64([]byte(key))
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	h := hash(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.buckets[h] {
		if e.key == key {
			c.hits++
			return e.value, true
		}
	}
	c.misses++
	var zero V
	return zero, false
}

// Put stores value under key, replacing any previous value.
func (c *Cache[V]) Put(key string, value V) {
	h := hash(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	bucket := c.buckets[h]
	for i := range bucket {
		if bucket[i].key == key {
			bucket[i].value = value
			return
		}
	}
	c.buckets[h] = append(bucket, entry[V]{key: key, value: value})
	c.size++
}

// Len returns the number of stored entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Stats returns lookup hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
