// Package cache provides time-boxed memoization for source adapter results.
package cache

import (
	"sync"
	"time"

	"github.com/yourorg/token-research-api/internal/model"
)

// Cache is a TTL-bound map of adapter results. Entries are evicted lazily
// on read; there is no background sweeper and no capacity bound. The zero
// value is not usable, construct with New.
type Cache struct {
	mu            sync.Mutex
	ttl           time.Duration
	storeFailures bool
	entries       map[string]entry

	// now is swappable for tests
	now func() time.Time
}

type entry struct {
	value    model.SourceResult
	storedAt time.Time
}

// New creates a cache with the given TTL. Failed lookups are stored under
// the same TTL as successes, matching the observed upstream behavior.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:           ttl,
		storeFailures: true,
		entries:       make(map[string]entry),
		now:           time.Now,
	}
}

// WithFailureCaching controls whether Found=false results are memoized.
// Disabling it lets transient provider outages retry before TTL expiry.
func (c *Cache) WithFailureCaching(enabled bool) *Cache {
	c.storeFailures = enabled
	return c
}

// WithClock replaces the time source, for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the stored result for key while it is still fresh. An
// expired entry is deleted and reported as absent.
func (c *Cache) Get(key string) (model.SourceResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return model.SourceResult{}, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return model.SourceResult{}, false
	}
	return e.value, true
}

// Set stores a result under key, overwriting any previous entry. Failure
// results are dropped when failure caching is disabled.
func (c *Cache) Set(key string, value model.SourceResult) {
	if !value.OK() && !c.storeFailures {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
}

// Len returns the number of stored entries, including any that have
// expired but not yet been read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
