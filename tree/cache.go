package tree

import "time"

// Cache provides an abstraction for caching the tree list, so the list
// endpoint does not hit the database on every request. Implementations
// can be swapped (in-memory, Redis, ...).
type Cache interface {
	// Get retrieves cached trees, returns nil if cache miss or expired
	Get() []*Tree

	// Set stores trees in cache
	Set(trees []*Tree)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Set to 0 for no expiration (manual invalidation only).
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for tree caching.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 0, // invalidate on mutations only
	}
}
