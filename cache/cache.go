package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// Config holds the sizing knobs for the response cache.
type Config struct {
	MaxEntries int
	TTL        time.Duration
}

type entry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// Cache is a bounded in-memory store mapping derived lookup keys to response payloads.
//
// Entries carry an absolute expiry and become invisible once it passes; the read which
// discovers an expired entry purges it. When an insert pushes the cache over its entry
// cap, the oldest-inserted surviving entry is evicted (insertion order, not LRU).
// Overwriting a key keeps its original insertion slot.
//
// All state is process-lifetime only and guarded by a mutex, since lookups for sibling
// batch items run on their own goroutines.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	queue   []string
	max     int
	now     func() time.Time

	hits      uint64
	misses    uint64
	expiries  uint64
	evictions uint64
}

// Stats is a point-in-time snapshot of cache counters, served by the admin endpoint.
type Stats struct {
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"maxEntries"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Expiries   uint64 `json:"expiries"`
	Evictions  uint64 `json:"evictions"`
}

// New builds an empty cache honoring cfg.MaxEntries. A non-positive cap falls back to
// DefaultMaxEntries so a zero-value config can never grow without bound.
func New(cfg Config) *Cache {
	max := cfg.MaxEntries
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Cache{
		entries: make(map[string]entry, max),
		queue:   make([]string, 0, max),
		max:     max,
		now:     time.Now,
	}
}

// DefaultMaxEntries bounds the cache when no explicit cap is configured.
const DefaultMaxEntries = 1000

// Get returns the stored payload for key if present and unexpired. An entry whose TTL
// has elapsed is deleted and reported as absent. The only side effect of a read is that
// deletion-on-expiry.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.dequeue(key)
		c.expiries++
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Put stores value under key with an absolute expiry of now+ttl, unconditionally
// overwriting any existing entry, then evicts oldest-inserted entries while the cache
// exceeds its cap.
func (c *Cache) Put(key string, value json.RawMessage, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.queue = append(c.queue, key)
	}
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}

	for len(c.entries) > c.max {
		oldest := c.queue[0]
		c.queue = c.queue[1:]
		delete(c.entries, oldest)
		c.evictions++
	}
}

// Len reports the number of stored entries. Entries past their TTL still count until a
// read purges them, matching what the health envelope has always reported.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns current counter values for the admin cache status endpoint.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:    len(c.entries),
		MaxEntries: c.max,
		Hits:       c.hits,
		Misses:     c.misses,
		Expiries:   c.expiries,
		Evictions:  c.evictions,
	}
}

func (c *Cache) dequeue(key string) {
	for i, k := range c.queue {
		if k == key {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}
