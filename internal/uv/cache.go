package uv

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache stores aggregated forecasts between requests.
type Cache interface {
	Get(ctx context.Context, key string) (*Forecast, bool, error)
	Set(ctx context.Context, key string, forecast *Forecast) error
}

// CacheKey builds the cache key for a resolved request.
func CacheKey(lat, lon float64, date, tz string) string {
	return fmt.Sprintf("%.4f,%.4f,%s,%s", lat, lon, date, tz)
}

// MemoryCacheConfig holds configuration for the in-process cache.
type MemoryCacheConfig struct {
	// TTL is how long a forecast stays fresh (default: 10 minutes).
	TTL time.Duration

	// MaxEntries bounds the cache size (default: 1024). The oldest entry
	// is evicted when full.
	MaxEntries int
}

// MemoryCache is a bounded TTL cache kept in process memory.
type MemoryCache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu              sync.RWMutex
	entries         map[string]*cachedForecast
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type cachedForecast struct {
	forecast  *Forecast
	fetchedAt time.Time
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory forecast cache.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	return &MemoryCache{
		ttl:             ttl,
		maxEntries:      maxEntries,
		now:             time.Now,
		entries:         make(map[string]*cachedForecast),
		cleanupInterval: time.Minute,
	}
}

// Get returns a fresh forecast for key.
func (c *MemoryCache) Get(_ context.Context, key string) (*Forecast, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.entries[key]
	if !ok || !c.now().Before(cached.expiresAt) {
		return nil, false, nil
	}
	return cached.forecast, true, nil
}

// Set stores forecast under key, evicting the oldest entry when full.
func (c *MemoryCache) Set(_ context.Context, key string, forecast *Forecast) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupIfNeeded()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = &cachedForecast{
		forecast:  forecast,
		fetchedAt: now,
		expiresAt: now.Add(c.ttl),
	}
	return nil
}

// cleanupIfNeeded drops expired entries once per cleanup interval.
func (c *MemoryCache) cleanupIfNeeded() {
	now := c.now()
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now

	for key, cached := range c.entries {
		if !now.Before(cached.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, cached := range c.entries {
		if oldestKey == "" || cached.fetchedAt.Before(oldest) {
			oldestKey = key
			oldest = cached.fetchedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Invalidate clears all cached forecasts.
func (c *MemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cachedForecast)
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	fresh := 0
	for _, cached := range c.entries {
		if now.Before(cached.expiresAt) {
			fresh++
		}
	}

	return CacheStats{
		Backend:      "memory",
		Entries:      len(c.entries),
		FreshEntries: fresh,
		MaxEntries:   c.maxEntries,
		TTL:          c.ttl,
	}
}

// CacheStats contains cache statistics. Counts are zero for backends that
// cannot report them.
type CacheStats struct {
	Backend      string
	Entries      int
	FreshEntries int
	MaxEntries   int
	TTL          time.Duration
}

// SetClock overrides the cache clock. Intended for tests.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
