// Package cache holds the in-process caches used to avoid recomputing
// per-user dashboard summaries.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the subset of LRUCache the services depend on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	// DeletePrefix drops every entry whose key starts with prefix and
	// returns how many were removed.
	DeletePrefix(prefix string) int
}

type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically evicts expired entries from registered caches.
type Janitor struct {
	caches []Cleaner
	done   chan struct{}
}

func NewJanitor(caches ...Cleaner) *Janitor {
	return &Janitor{caches: caches, done: make(chan struct{})}
}

// Run blocks, sweeping every interval until ctx is canceled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := j.Sweep()
			if cleaned > 0 {
				slog.DebugContext(ctx, "Evicted expired cache entries", "count", cleaned)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Done is closed once Run returns.
func (j *Janitor) Done() <-chan struct{} {
	return j.done
}
