// Package cache provides the bounded in-memory maps that sit in front of the
// entity store.
//
// Every Cache has a fixed capacity and evicts the least recently used entry
// when full. Eviction never writes anything back: the store is authoritative,
// so a dropped entry only costs a future miss.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a non-positive capacity is requested
const DefaultCapacity = 1024

// Observer receives cache events. Implementations must be safe for concurrent use.
type Observer interface {
	Hit(kind string)
	Miss(kind string)
	Evict(kind string)
}

type nopObserver struct{}

func (nopObserver) Hit(string)   {}
func (nopObserver) Miss(string)  {}
func (nopObserver) Evict(string) {}

// Cache is a concurrency-safe LRU map from K to V
type Cache[K comparable, V any] struct {
	kind     string
	lru      *lru.Cache[K, V]
	observer Observer
}

// New creates a cache named kind holding at most capacity entries
func New[K comparable, V any](kind string, capacity int, observer Observer) (*Cache[K, V], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if observer == nil {
		observer = nopObserver{}
	}
	l, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", kind, err)
	}
	return &Cache[K, V]{kind: kind, lru: l, observer: observer}, nil
}

// Kind returns the entity kind this cache holds
func (c *Cache[K, V]) Kind() string {
	return c.kind
}

// Get returns the cached value for key
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.observer.Hit(c.kind)
	} else {
		c.observer.Miss(c.kind)
	}
	return v, ok
}

// Contains reports whether key is cached without touching recency
func (c *Cache[K, V]) Contains(key K) bool {
	return c.lru.Contains(key)
}

// Put stores value under key, overwriting any previous entry
func (c *Cache[K, V]) Put(key K, value V) {
	if evicted := c.lru.Add(key, value); evicted {
		c.observer.Evict(c.kind)
	}
}

// Remove drops key if present
func (c *Cache[K, V]) Remove(key K) {
	c.lru.Remove(key)
}

// Purge drops every entry
func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached entries
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}
