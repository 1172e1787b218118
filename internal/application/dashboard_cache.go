package application

import (
	"sync"
	"time"

	"github.com/example/trainingcenter/internal/stats"
)

// dashboardCache keeps recently computed dashboards until they expire or a write
// invalidates them. Derived session status is never part of a cached value.
type dashboardCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]dashboardCacheEntry
}

type dashboardCacheEntry struct {
	dashboard stats.Dashboard
	expiresAt time.Time
}

func newDashboardCache(ttl time.Duration, maxEntries int, now func() time.Time) *dashboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 16
	}
	if now == nil {
		now = time.Now
	}
	return &dashboardCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]dashboardCacheEntry),
	}
}

func (c *dashboardCache) Get(key string) (stats.Dashboard, bool) {
	if c == nil {
		return stats.Dashboard{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return stats.Dashboard{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return stats.Dashboard{}, false
	}
	return cloneDashboard(entry.dashboard), true
}

func (c *dashboardCache) Store(key string, dashboard stats.Dashboard) {
	if c == nil {
		return
	}
	cloned := cloneDashboard(dashboard)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = dashboardCacheEntry{dashboard: cloned, expiresAt: expiry}
}

func (c *dashboardCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]dashboardCacheEntry)
	c.mu.Unlock()
}

func (c *dashboardCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *dashboardCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneDashboard(d stats.Dashboard) stats.Dashboard {
	return stats.Dashboard{
		Trainers: append([]stats.TrainerScore(nil), d.Trainers...),
		Courses:  append([]stats.CourseStats(nil), d.Courses...),
		Alerts:   append([]stats.Alert(nil), d.Alerts...),
	}
}
