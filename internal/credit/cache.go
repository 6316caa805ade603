package credit

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

const summaryVersionKey = "credit:summaries:ver"

// summaryPage is what gets cached: one page of the report plus its pagination.
type summaryPage struct {
	Data       []ClientCreditSummary `json:"data"`
	Pagination shared.Pagination     `json:"pagination"`
}

// SummaryCache stores credit summary pages in Redis. Invalidation bumps a
// version counter baked into every key, so stale pages simply stop being
// addressed and expire on their own TTL.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache builds the cache. A nil client disables caching.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if client == nil {
		return nil
	}
	return &SummaryCache{client: client, ttl: ttl}
}

func (c *SummaryCache) key(ctx context.Context, filter SummaryFilter) (string, error) {
	version, err := c.client.Get(ctx, summaryVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("credit:summaries:v%d:%x", version, sha256.Sum256(raw)), nil
}

func (c *SummaryCache) get(ctx context.Context, filter SummaryFilter) (summaryPage, bool) {
	if c == nil {
		return summaryPage{}, false
	}
	key, err := c.key(ctx, filter)
	if err != nil {
		return summaryPage{}, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return summaryPage{}, false
	}
	var page summaryPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return summaryPage{}, false
	}
	return page, true
}

func (c *SummaryCache) set(ctx context.Context, filter SummaryFilter, page summaryPage) {
	if c == nil {
		return
	}
	key, err := c.key(ctx, filter)
	if err != nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}

// Invalidate makes every cached summary page unreachable.
func (c *SummaryCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	c.client.Incr(ctx, summaryVersionKey)
}
