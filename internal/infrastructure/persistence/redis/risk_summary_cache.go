package redis

import (
	"context"
	"errors"
	"time"

	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/internal/domain/student"
)

// RiskSummaryCache implements student.SummaryCache using the generic Cache.
// Entries are refreshed on every recompute and carry a TTL wide enough to
// bridge the daily cycle.
type RiskSummaryCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewRiskSummaryCache creates a new RiskSummaryCache. A non-positive ttl
// falls back to TTLRiskSummary.
func NewRiskSummaryCache(cache *Cache, ttl time.Duration) *RiskSummaryCache {
	if ttl <= 0 {
		ttl = TTLRiskSummary
	}
	return &RiskSummaryCache{cache: cache, ttl: ttl}
}

// Get returns the cached summary for a student.
func (c *RiskSummaryCache) Get(ctx context.Context, id shared.StudentID) (*student.RiskSummary, error) {
	var summary student.RiskSummary
	err := c.cache.Get(ctx, RiskSummaryKey(id.String()), &summary)
	if errors.Is(err, ErrCacheMiss) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Set stores a summary.
func (c *RiskSummaryCache) Set(ctx context.Context, summary student.RiskSummary) error {
	return c.cache.Set(ctx, RiskSummaryKey(summary.StudentID.String()), summary, c.ttl)
}

// Invalidate removes a student's cached summary.
func (c *RiskSummaryCache) Invalidate(ctx context.Context, id shared.StudentID) error {
	return c.cache.Delete(ctx, RiskSummaryKey(id.String()))
}
