package fx

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists currencies and rates in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListCurrencies(ctx context.Context) ([]Currency, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name, symbol, is_active FROM currencies ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	currencies := []Currency{}
	for rows.Next() {
		var c Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol, &c.IsActive); err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

func (r *Repository) CreateCurrency(ctx context.Context, currency Currency) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO currencies (code, name, symbol, is_active) VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, symbol = EXCLUDED.symbol, is_active = TRUE`,
		currency.Code, currency.Name, currency.Symbol, currency.IsActive)
	return err
}

func (r *Repository) UpsertRate(ctx context.Context, rate Rate) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO exchange_rates (code, rate_to_base, rate_date) VALUES ($1, $2, $3)
ON CONFLICT (code, rate_date) DO UPDATE SET rate_to_base = EXCLUDED.rate_to_base`,
		rate.Code, rate.RateToBase, rate.RateDate)
	return err
}

// LatestRates returns, per currency, the most recent rate with rate_date <= asOf.
func (r *Repository) LatestRates(ctx context.Context, asOf time.Time) ([]Rate, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (code) code, rate_to_base, rate_date
FROM exchange_rates
WHERE rate_date <= $1
ORDER BY code, rate_date DESC`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rates := []Rate{}
	for rows.Next() {
		var rate Rate
		if err := rows.Scan(&rate.Code, &rate.RateToBase, &rate.RateDate); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

// LatestRateDate returns the newest rate_date on record, or the zero time when
// no rates exist. MAX over an empty table yields a single NULL row, so the
// scan goes through a pointer.
func (r *Repository) LatestRateDate(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MAX(rate_date) FROM exchange_rates`).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}
