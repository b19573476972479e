// Package cache provides thread-safe in-memory caching with TTL and
// LRU eviction for search results.
//
// Example usage:
//
//	c := cache.New[[]search.Result](time.Hour, 100)
//	c.Set(cache.Key(doc.URL, query), results)
//	entry, ok := c.Get(cache.Key(doc.URL, query))
package cache

import (
	"strings"
	"sync"
	"time"
)

// Key builds a cache key from a canonical URL and a query. The query is
// trimmed so incidental whitespace does not fragment the cache. The NUL
// separator cannot appear in either part.
func Key(canonicalURL, query string) string {
	return canonicalURL + "\x00" + strings.TrimSpace(query)
}

// Entry is a cached value with its lifecycle timestamps.
type Entry[V any] struct {
	// Value is the cached payload.
	Value V

	// CreatedAt is when this entry was created.
	CreatedAt time.Time

	// ExpiresAt is when this entry should be evicted.
	ExpiresAt time.Time

	// lastAccessed tracks LRU eviction (internal use only)
	lastAccessed time.Time
}

// Cache provides thread-safe in-memory caching with TTL and LRU eviction.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]*Entry[V]
	ttl        time.Duration
	maxEntries int
}

// New creates a cache with the specified TTL and maximum entry count.
// When the cache is full, the least recently used entry is evicted.
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]*Entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Set stores a value under the key, replacing any existing entry.
// If the cache is at capacity, the least recently used entry is evicted.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictLRU()
		}
	}

	c.entries[key] = &Entry[V]{
		Value:        value,
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.ttl),
		lastAccessed: now,
	}
}

// Get retrieves a value by key. Expired entries are removed lazily and
// reported as misses.
func (c *Cache[V]) Get(key string) (*Entry[V], bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.removeIfSame(key, entry)
		return nil, false
	}

	c.mu.Lock()
	entry.lastAccessed = time.Now()
	c.mu.Unlock()

	return entry, true
}

// removeIfSame deletes the key only while it still maps to the observed
// entry. A concurrent Set between the read lock and this write lock
// installs a fresh entry that must survive.
func (c *Cache[V]) removeIfSame(key string, entry *Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.entries[key]; ok && current == entry {
		delete(c.entries, key)
	}
}

// Delete removes an entry. No-op if the key is absent.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry[V])
}

// Len returns the current entry count, including not-yet-swept expired
// entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLRU removes the least recently used entry.
// Caller must hold the write lock.
func (c *Cache[V]) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	first := true
	for key, entry := range c.entries {
		if first || entry.lastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessed
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
