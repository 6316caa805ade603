package credit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

func testCache(t *testing.T) *SummaryCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSummaryCache(client, time.Minute)
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()
	filter := SummaryFilter{Page: 1, PerPage: 20}
	page := summaryPage{
		Data:       []ClientCreditSummary{{ClientID: 1, ClientName: "Hédi Trabelsi", TotalDue: 500}},
		Pagination: shared.NewPagination(1, 20, 1),
	}

	_, ok := cache.get(ctx, filter)
	require.False(t, ok)

	cache.set(ctx, filter, page)
	got, ok := cache.get(ctx, filter)
	require.True(t, ok)
	require.Equal(t, page.Data, got.Data)
	require.Equal(t, page.Pagination, got.Pagination)
}

func TestInvalidateMakesPagesUnreachable(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()
	filter := SummaryFilter{Page: 1, PerPage: 20}
	cache.set(ctx, filter, summaryPage{Pagination: shared.NewPagination(1, 20, 0)})

	cache.Invalidate(ctx)
	_, ok := cache.get(ctx, filter)
	require.False(t, ok)
}

func TestDifferentFiltersUseDifferentKeys(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()
	cache.set(ctx, SummaryFilter{Page: 1}, summaryPage{Pagination: shared.NewPagination(1, 20, 7)})

	_, ok := cache.get(ctx, SummaryFilter{Page: 2})
	require.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *SummaryCache
	ctx := context.Background()
	_, ok := cache.get(ctx, SummaryFilter{})
	require.False(t, ok)
	cache.set(ctx, SummaryFilter{}, summaryPage{})
	cache.Invalidate(ctx)
}
