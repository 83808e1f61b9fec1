// Package memory provides the bounded in-process answer tier.
package memory

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the capacity used when New is given a non-positive size.
const DefaultSize = 100

// Cache is a least-recently-used map from query to answer. All state sits
// behind the single lock of the underlying LRU, so recency bookkeeping and
// the map never diverge under concurrent use.
type Cache struct {
	lru       *lru.Cache[string, string]
	evictions atomic.Int64
}

// New creates a Cache holding at most size entries.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c := &Cache{}
	l, err := lru.NewWithEvict[string, string](size, func(string, string) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.lru = l
	return c, nil
}

// Get returns the answer for key and marks it most recently used.
func (c *Cache) Get(key string) (string, bool) {
	return c.lru.Get(key)
}

// Put inserts or updates key, evicting the least recently used entry when full.
func (c *Cache) Put(key, value string) {
	c.lru.Add(key, value)
}

// Contains reports whether key is resident without touching its recency.
func (c *Cache) Contains(key string) bool {
	return c.lru.Contains(key)
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Evictions returns how many entries were dropped, for capacity or by Purge.
func (c *Cache) Evictions() int64 {
	return c.evictions.Load()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}
