// Package cache holds recently fetched history so repeated requests do not
// hit the providers again.
package cache

import (
	"sync"
	"time"

	"github.com/newthinker/stonks/internal/core"
)

// Cache stores series by key. Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (*core.Series, bool)
	Set(key string, series *core.Series)
	// Purge drops expired entries and reports how many were removed.
	Purge() int
	Len() int
}

type entry struct {
	series    *core.Series
	expiresAt time.Time
}

// TTL is a bounded cache whose entries expire by age. When full, the
// oldest entry is evicted.
type TTL struct {
	mu      sync.Mutex
	entries map[string]entry
	order   []string // Track insertion order for eviction
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewTTL creates a cache holding at most maxSize entries for ttl each.
func NewTTL(maxSize int, ttl time.Duration) *TTL {
	if maxSize < 1 {
		maxSize = 1
	}
	return &TTL{
		entries: make(map[string]entry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the clock, for tests.
func (c *TTL) WithClock(now func() time.Time) *TTL {
	c.now = now
	return c
}

// Get returns a live entry. Expired entries are dropped on access.
func (c *TTL) Get(key string) (*core.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.remove(key)
		return nil, false
	}
	return e.series, true
}

// Set stores series under key, replacing any previous entry.
func (c *TTL) Set(key string, series *core.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.remove(key)
	}

	// Evict oldest if at capacity
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		c.remove(c.order[0])
	}

	c.entries[key] = entry{series: series, expiresAt: c.now().Add(c.ttl)}
	c.order = append(c.order, key)
}

func (c *TTL) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	kept := c.order[:0]
	for _, key := range c.order {
		if !now.Before(c.entries[key].expiresAt) {
			delete(c.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
	return removed
}

func (c *TTL) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(string) (*core.Series, bool) { return nil, false }
func (Nop) Set(string, *core.Series)        {}
func (Nop) Purge() int                      { return 0 }
func (Nop) Len() int                        { return 0 }
