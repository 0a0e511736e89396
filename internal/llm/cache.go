package llm

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// cacheEntry represents a cached classification result.
type cacheEntry struct {
	expiry time.Time
	result model.ClassificationResult
}

// resultCache keeps recent results per fingerprint so re-delivered documents
// do not call the model again.
type resultCache struct {
	entries map[model.Fingerprint]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newResultCache creates a new cache with the specified TTL.
func newResultCache(ttl time.Duration) *resultCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &resultCache{
		entries: make(map[model.Fingerprint]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go cache.cleanup()
	return cache
}

// get returns a copy of a live entry.
func (c *resultCache) get(key model.Fingerprint) (*model.ClassificationResult, bool) {
	if key == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return nil, false
	}
	return cloneResult(&entry.result), true
}

// cloneResult copies r deeply enough that callers never share its slices or
// entity map with the cache or with each other.
func cloneResult(r *model.ClassificationResult) *model.ClassificationResult {
	out := *r
	out.Categories = slices.Clone(r.Categories)
	if r.Entities != nil {
		out.Entities = maps.Clone(r.Entities)
		for c, values := range out.Entities {
			out.Entities[c] = slices.Clone(values)
		}
	}
	return &out
}

// set stores a result in the cache.
func (c *resultCache) set(key model.Fingerprint, result *model.ClassificationResult) {
	if key == "" || result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{result: *cloneResult(result), expiry: time.Now().Add(c.ttl)}
}

// size returns the number of entries, expired ones included.
func (c *resultCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanup periodically removes expired entries.
func (c *resultCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *resultCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
		}
	}
}

// close stops the cleanup goroutine.
func (c *resultCache) close() {
	c.once.Do(func() { close(c.stopCh) })
}
