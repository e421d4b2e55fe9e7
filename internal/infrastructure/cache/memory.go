package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/firmscout/backend/internal/domain"
	"go.uber.org/zap"
)

// snapshot is one immutable cache entry
type snapshot struct {
	companies  []domain.Company
	capturedAt time.Time
}

// MemoryCache is a single-slot, in-memory cache of the latest extraction.
// Readers load the current snapshot atomically; writers replace it under a mutex.
type MemoryCache struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewMemoryCache creates an empty cache with the given TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:    ttl,
		now:    time.Now,
		logger: zap.L().With(zap.String("component", "cache")),
	}
}

// Get returns the cached companies and whether they are still fresh.
// An empty cache returns nil and false.
func (c *MemoryCache) Get() ([]domain.Company, bool) {
	s := c.current.Load()
	if s == nil {
		return nil, false
	}
	return s.companies, c.now().Sub(s.capturedAt) < c.ttl
}

// Store replaces the whole cached set and stamps it with the current time.
// capturedAt never moves backwards, even if the clock does.
func (c *MemoryCache) Store(companies []domain.Company) {
	stored := make([]domain.Company, len(companies))
	copy(stored, companies)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	capturedAt := c.now()
	if prev := c.current.Load(); prev != nil && capturedAt.Before(prev.capturedAt) {
		capturedAt = prev.capturedAt
	}
	c.current.Store(&snapshot{companies: stored, capturedAt: capturedAt})

	c.logger.Info("directory cached", zap.Int("companies", len(stored)))
}

// Invalidate clears the cache so the next Get reports stale
func (c *MemoryCache) Invalidate() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.current.Store(nil)
	c.logger.Info("cache invalidated")
}

// Status reports freshness and age without touching the origin
func (c *MemoryCache) Status() domain.CacheStatus {
	s := c.current.Load()
	if s == nil {
		return domain.CacheStatus{}
	}
	age := c.now().Sub(s.capturedAt)
	return domain.CacheStatus{
		Populated:  true,
		Fresh:      age < c.ttl,
		CapturedAt: s.capturedAt,
		Age:        age,
		Records:    len(s.companies),
	}
}

// TTL returns the configured freshness window
func (c *MemoryCache) TTL() time.Duration {
	return c.ttl
}
