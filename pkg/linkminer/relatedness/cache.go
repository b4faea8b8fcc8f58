package relatedness

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes relatedness scores by PairKey.
type Cache interface {
	Get(key int64) (float64, bool)
	Add(key int64, value float64)
	Len() int
}

// MapCache is an unbounded cache for a single goroutine.
type MapCache struct {
	m map[int64]float64
}

// NewMapCache creates an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{m: make(map[int64]float64)}
}

// Get implements Cache.
func (c *MapCache) Get(key int64) (float64, bool) {
	v, ok := c.m[key]
	return v, ok
}

// Add implements Cache.
func (c *MapCache) Add(key int64, value float64) {
	c.m[key] = value
}

// Len implements Cache.
func (c *MapCache) Len() int { return len(c.m) }

// LRUCache is a bounded cache that may be shared between goroutines.
type LRUCache struct {
	c *lru.Cache[int64, float64]
}

// NewLRUCache creates a cache holding at most size pairs.
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[int64, float64](size)
	if err != nil {
		return nil, fmt.Errorf("relatedness cache: %w", err)
	}
	return &LRUCache{c: c}, nil
}

// Get implements Cache.
func (c *LRUCache) Get(key int64) (float64, bool) {
	return c.c.Get(key)
}

// Add implements Cache.
func (c *LRUCache) Add(key int64, value float64) {
	c.c.Add(key, value)
}

// Len implements Cache.
func (c *LRUCache) Len() int { return c.c.Len() }

// NewCache returns an LRUCache when size is positive and a MapCache
// otherwise.
func NewCache(size int) (Cache, error) {
	if size <= 0 {
		return NewMapCache(), nil
	}
	return NewLRUCache(size)
}
