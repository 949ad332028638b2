// Package cache keeps recent scrape outcomes so repeated lookups of the same
// substance can skip the browser.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/use-agent/sigillum/models"
)

// entry holds a cached outcome with its creation timestamp.
type entry struct {
	outcome   *models.ScrapeOutcome
	createdAt time.Time
}

// Cache is a simple in-memory cache for scrape outcomes keyed by CAS code.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict entries older than
// ttl (1 hour when ttl <= 0). Call Close to stop it.
func New(maxEntries int, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		stop:       make(chan struct{}),
	}

	go c.cleanupLoop(5 * time.Minute)
	return c
}

// Key normalizes a CAS code into a cache key.
func Key(casCode string) string {
	return strings.ToLower(models.NormalizeCAS(casCode))
}

// Cacheable reports whether an outcome may be reused. Errors are transient
// and always retried.
func Cacheable(o *models.ScrapeOutcome) bool {
	return o != nil && (o.Status == models.StatusSuccess || o.Status == models.StatusNoResults)
}

// Get retrieves a cached outcome if it exists and is younger than maxAge.
// maxAge is in milliseconds. If maxAge <= 0, no cache lookup is performed.
// Returns the outcome and whether it was a cache hit.
func (c *Cache) Get(key string, maxAgeMs int) (*models.ScrapeOutcome, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	return e.outcome, true
}

// Set stores an outcome if it is cacheable. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, o *models.ScrapeOutcome) bool {
	if !Cacheable(o) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		outcome:   o,
		createdAt: time.Now(),
	}
	return true
}

// Len returns the number of stored outcomes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupLoop evicts expired entries every interval.
func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictBefore(time.Now().Add(-c.ttl))
		}
	}
}

func (c *Cache) evictBefore(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
