package services

import (
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// SummaryCache keeps computed dashboards per owner and month. Each committed
// mutation bumps the owner's generation, and a summary computed under an
// older generation is dropped instead of stored.
type SummaryCache struct {
	entries cache.Cache[core.Summary]

	mu          sync.Mutex
	generations map[string]uint64
}

func NewSummaryCache(c cache.Cache[core.Summary]) *SummaryCache {
	return &SummaryCache{entries: c, generations: make(map[string]uint64)}
}

func (c *SummaryCache) generation(owner string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[owner]
}

func (c *SummaryCache) get(owner string, now time.Time) (core.Summary, bool) {
	return c.entries.Get(summaryKey(owner, now))
}

// put stores s only if no mutation for owner committed since gen was read.
func (c *SummaryCache) put(owner string, now time.Time, gen uint64, s core.Summary) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[owner] != gen {
		return false
	}
	c.entries.Set(summaryKey(owner, now), s)
	return true
}

func (c *SummaryCache) invalidate(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[owner]++
	c.entries.DeletePrefix(summaryKeyPrefix(owner))
}

func summaryKeyPrefix(owner string) string {
	return owner + "|"
}

func summaryKey(owner string, now time.Time) string {
	return summaryKeyPrefix(owner) + core.MonthKey(now.Year(), now.Month())
}
