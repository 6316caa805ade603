package fx

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	currencies map[string]Currency
	rates      []Rate
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{currencies: make(map[string]Currency)}
}

func (r *memoryRepo) ListCurrencies(ctx context.Context) ([]Currency, error) {
	out := make([]Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepo) CreateCurrency(ctx context.Context, currency Currency) error {
	r.currencies[currency.Code] = currency
	return nil
}

func (r *memoryRepo) UpsertRate(ctx context.Context, rate Rate) error {
	r.rates = append(r.rates, rate)
	return nil
}

func (r *memoryRepo) LatestRates(ctx context.Context, asOf time.Time) ([]Rate, error) {
	latest := map[string]Rate{}
	for _, rate := range r.rates {
		if rate.RateDate.After(asOf) {
			continue
		}
		if cur, ok := latest[rate.Code]; !ok || rate.RateDate.After(cur.RateDate) {
			latest[rate.Code] = rate
		}
	}
	out := make([]Rate, 0, len(latest))
	for _, rate := range latest {
		out = append(out, rate)
	}
	return out, nil
}

func (r *memoryRepo) LatestRateDate(ctx context.Context) (time.Time, error) {
	var latest time.Time
	for _, rate := range r.rates {
		if rate.RateDate.After(latest) {
			latest = rate.RateDate
		}
	}
	return latest, nil
}

func TestConvertUsesLatestRateBeforeDate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, "TND")
	ctx := context.Background()

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	lastWeek := time.Now().UTC().Add(-7 * 24 * time.Hour)
	_, err := svc.RecordRate(ctx, UpsertRateRequest{Code: "EUR", RateToBase: 3.2, RateDate: lastWeek})
	require.NoError(t, err)
	_, err = svc.RecordRate(ctx, UpsertRateRequest{Code: "EUR", RateToBase: 3.4, RateDate: yesterday})
	require.NoError(t, err)

	set, err := svc.Snapshot(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.InDelta(t, 3.4, set.Rates["EUR"], 0.0001)
	require.InDelta(t, 34.0, svc.Convert(10, "EUR", "TND", set), 0.0001)
}

func TestConvertRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, "TND")
	ctx := context.Background()

	_, err := svc.RecordRate(ctx, UpsertRateRequest{Code: "EUR", RateToBase: 3.35})
	require.NoError(t, err)
	_, err = svc.RecordRate(ctx, UpsertRateRequest{Code: "USD", RateToBase: 3.1})
	require.NoError(t, err)

	set, err := svc.Snapshot(ctx, time.Now().UTC())
	require.NoError(t, err)

	x := 123.45
	there := svc.Convert(x, "EUR", "USD", set)
	back := svc.Convert(there, "USD", "EUR", set)
	require.InDelta(t, x, back, 1e-9)
}

func TestUnknownCodeFallsBackToBase(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, "TND")
	set, err := svc.Snapshot(context.Background(), time.Now().UTC())
	require.NoError(t, err)

	// Unknown code treated as already in base currency, not an error.
	require.InDelta(t, 42.0, svc.Convert(42, "XXX", "TND", set), 0.0001)
	require.InDelta(t, 42.0, svc.Convert(42, "TND", "XXX", set), 0.0001)
}

func TestStaleAfterNoRatesRecorded(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, "TND")

	// A fresh install has no rates at all; that must read as stale, not as
	// an error, so the nightly check can warn about it.
	stale, latest, err := svc.StaleAfter(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	require.True(t, stale)
	require.True(t, latest.IsZero())
}

func TestStaleAfterRespectsMaxAge(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, "TND")
	ctx := context.Background()

	recorded := time.Now().UTC().Add(-48 * time.Hour)
	_, err := svc.RecordRate(ctx, UpsertRateRequest{Code: "EUR", RateToBase: 3.35, RateDate: recorded})
	require.NoError(t, err)

	stale, _, err := svc.StaleAfter(ctx, 72*time.Hour)
	require.NoError(t, err)
	require.False(t, stale)

	stale, _, err = svc.StaleAfter(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.True(t, stale)
}

func TestBaseRateIsFixed(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, "TND")
	_, err := svc.RecordRate(context.Background(), UpsertRateRequest{Code: "TND", RateToBase: 2})
	require.Error(t, err)
}
