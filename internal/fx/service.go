package fx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// RepositoryPort abstracts rate storage for the service.
type RepositoryPort interface {
	ListCurrencies(ctx context.Context) ([]Currency, error)
	CreateCurrency(ctx context.Context, currency Currency) error
	UpsertRate(ctx context.Context, rate Rate) error
	LatestRates(ctx context.Context, asOf time.Time) ([]Rate, error)
	LatestRateDate(ctx context.Context) (time.Time, error)
}

// Service resolves rate snapshots and performs conversions.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	base   string
}

// NewService builds Service. base is the deployment base currency code.
func NewService(repo RepositoryPort, logger *slog.Logger, base string) *Service {
	return &Service{repo: repo, logger: logger, base: strings.ToUpper(base)}
}

// Base returns the base currency code.
func (s *Service) Base() string {
	return s.base
}

// Snapshot loads the latest rates with date <= asOf into a RateSet.
func (s *Service) Snapshot(ctx context.Context, asOf time.Time) (RateSet, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	rates, err := s.repo.LatestRates(ctx, asOf)
	if err != nil {
		return RateSet{}, fmt.Errorf("fx: load rates: %w", err)
	}
	set := RateSet{Base: s.base, Rates: make(map[string]float64, len(rates)+1)}
	for _, rate := range rates {
		set.Rates[strings.ToUpper(rate.Code)] = rate.RateToBase
	}
	set.Rates[s.base] = 1
	return set, nil
}

// Convert converts amount between two currency codes using the snapshot.
// Unknown codes fall back to rate 1 (treated as already in base currency); the
// fallback is intentional and logged so operators can spot missing rates.
func (s *Service) Convert(amount float64, from, to string, set RateSet) float64 {
	return Convert(amount, from, to, set, s.logger)
}

// Convert is the pure conversion: amount * rateFrom / rateTo.
func Convert(amount float64, from, to string, set RateSet, logger *slog.Logger) float64 {
	rateFrom := lookup(set, from, logger)
	rateTo := lookup(set, to, logger)
	return amount * rateFrom / rateTo
}

func lookup(set RateSet, code string, logger *slog.Logger) float64 {
	code = strings.ToUpper(code)
	if code == set.Base || code == "" {
		return 1
	}
	if rate, ok := set.Rates[code]; ok && rate > 0 {
		return rate
	}
	if logger != nil {
		logger.Warn("fx: unknown currency code, assuming base currency", slog.String("code", code))
	}
	return 1
}

// RegisterCurrency stores a new currency.
func (s *Service) RegisterCurrency(ctx context.Context, req CreateCurrencyRequest) (Currency, error) {
	currency := Currency{
		Code:     strings.ToUpper(req.Code),
		Name:     req.Name,
		Symbol:   req.Symbol,
		IsActive: true,
	}
	if err := s.repo.CreateCurrency(ctx, currency); err != nil {
		return Currency{}, fmt.Errorf("fx: create currency: %w", err)
	}
	return currency, nil
}

// RecordRate stores a daily rate snapshot.
func (s *Service) RecordRate(ctx context.Context, req UpsertRateRequest) (Rate, error) {
	if req.RateToBase <= 0 {
		return Rate{}, fmt.Errorf("%w: rate must be > 0", shared.ErrValidation)
	}
	date := req.RateDate
	if date.IsZero() {
		date = time.Now().UTC()
	}
	rate := Rate{
		Code:       strings.ToUpper(req.Code),
		RateToBase: req.RateToBase,
		RateDate:   date.Truncate(24 * time.Hour),
	}
	if rate.Code == s.base && rate.RateToBase != 1 {
		return Rate{}, fmt.Errorf("%w: base currency rate is fixed at 1", shared.ErrValidation)
	}
	if err := s.repo.UpsertRate(ctx, rate); err != nil {
		return Rate{}, fmt.Errorf("fx: upsert rate: %w", err)
	}
	return rate, nil
}

// Currencies lists registered currencies.
func (s *Service) Currencies(ctx context.Context) ([]Currency, error) {
	return s.repo.ListCurrencies(ctx)
}

// StaleAfter reports whether the newest stored rate is older than maxAge.
func (s *Service) StaleAfter(ctx context.Context, maxAge time.Duration) (bool, time.Time, error) {
	latest, err := s.repo.LatestRateDate(ctx)
	if err != nil {
		return false, time.Time{}, err
	}
	if latest.IsZero() {
		return true, latest, nil
	}
	return time.Since(latest) > maxAge, latest, nil
}
