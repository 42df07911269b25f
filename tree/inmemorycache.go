package tree

import (
	"sync"
	"time"
)

// InMemoryCache is a simple in-memory implementation of Cache.
// Thread-safe for concurrent access.
type InMemoryCache struct {
	trees    []*Tree
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	isValid  bool
}

// NewInMemoryCache creates a new in-memory tree cache.
func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{
		config: config,
	}
}

// Get retrieves cached trees. Returns nil if the cache is invalid or
// expired.
func (c *InMemoryCache) Get() []*Tree {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return nil
	}

	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return nil
	}

	// Return copy to prevent external modifications
	treesCopy := make([]*Tree, len(c.trees))
	copy(treesCopy, c.trees)
	return treesCopy
}

// Set stores trees in cache.
func (c *InMemoryCache) Set(trees []*Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trees = make([]*Tree, len(trees))
	copy(c.trees, trees)
	c.cachedAt = time.Now()
	c.isValid = true
}

// Invalidate clears the cache.
func (c *InMemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.trees = nil
}

// IsValid returns true if cache contains valid data.
func (c *InMemoryCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return false
	}

	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}

	return true
}
