package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sync"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
)

// CacheConfig holds configuration for the expansion cache.
type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

var DefaultCacheConfig = CacheConfig{
	TTL:        15 * time.Minute,
	MaxEntries: 1000,
}

type cacheEntry struct {
	dates      []calendar.Date
	expiresAt  time.Time
	accessedAt time.Time
}

// Cache memoizes expansions keyed by the canonical rule text and window.
// Expired entries are dropped lazily; when full, the least recently used
// entries are evicted.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	hits, misses int
}

func NewCache(cfg CacheConfig) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig.TTL
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
	}
}

func cacheKey(canonical string, window calendar.Range) string {
	h := sha256.New()
	h.Write([]byte(canonical))
	h.Write([]byte{0})
	h.Write([]byte(window.Start.Compact()))
	h.Write([]byte(window.End.Compact()))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) Get(key string) ([]calendar.Date, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	now := c.now()
	if !ok || now.After(e.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}
	e.accessedAt = now
	c.hits++
	return e.dates, true
}

func (c *Cache) Set(key string, dates []calendar.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &cacheEntry{dates: dates, expiresAt: now.Add(c.ttl), accessedAt: now}
	if len(c.entries) > c.maxEntries {
		c.evict(now)
	}
}

// evict removes expired entries, then the least recently accessed ones
// until the cache is back at capacity. Callers hold c.mu.
func (c *Cache) evict(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return c.entries[a].accessedAt.Compare(c.entries[b].accessedAt)
	})
	for _, k := range keys[:len(keys)-c.maxEntries] {
		delete(c.entries, k)
	}
}

// CacheStats reports cache occupancy and effectiveness.
type CacheStats struct {
	Entries int
	Hits    int
	Misses  int
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
