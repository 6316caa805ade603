package credit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-pos/comptoir/internal/platform/db"
	"github.com/comptoir-pos/comptoir/internal/sales"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

// Repository persists payments and aggregates credit data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaleBalance is the slice of a sale the payment flow needs, read under a row
// lock so concurrent payments serialize on the sale.
type SaleBalance struct {
	ID         int64
	Number     string
	Status     sales.Status
	Total      float64
	AmountPaid float64
	ClientID   *int64
}

// TxRepository exposes the transactional payment operations.
type TxRepository interface {
	GetSaleBalanceForUpdate(ctx context.Context, saleID int64) (SaleBalance, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	AddAmountPaid(ctx context.Context, saleID int64, amount float64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) GetSaleBalanceForUpdate(ctx context.Context, saleID int64) (SaleBalance, error) {
	var b SaleBalance
	err := r.tx.QueryRow(ctx, `SELECT id, number, status, total, amount_paid, client_id FROM sales WHERE id=$1 FOR UPDATE`, saleID).
		Scan(&b.ID, &b.Number, &b.Status, &b.Total, &b.AmountPaid, &b.ClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaleBalance{}, fmt.Errorf("%w: sale %d", shared.ErrNotFound, saleID)
		}
		return SaleBalance{}, fmt.Errorf("credit: lock sale: %w", err)
	}
	return b, nil
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_payments (sale_id, amount, method, created_by)
VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		p.SaleID, p.Amount, p.Method, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Payment{}, fmt.Errorf("credit: insert payment: %w", err)
	}
	return p, nil
}

func (r *txRepository) AddAmountPaid(ctx context.Context, saleID int64, amount float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET amount_paid = amount_paid + $1, updated_at = NOW() WHERE id=$2`, amount, saleID)
	if err != nil {
		return fmt.Errorf("credit: add amount paid: %w", err)
	}
	return nil
}

// ListPayments returns payments recorded against a sale, oldest first.
func (r *Repository) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, amount, method, created_by, created_at
FROM sale_payments WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.Method, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// unpaidCondition scopes aggregation to completed sales that still owe money
// and are attached to a client. Walk-in tickets without a client never show up
// in the credit report.
const unpaidCondition = `s.status = 'COMPLETED' AND s.amount_paid < s.total AND s.client_id IS NOT NULL`

// Summaries aggregates outstanding balances per client, ordered by total due
// descending. The aggregation runs in SQL so the report stays one round-trip
// regardless of client count.
func (r *Repository) Summaries(ctx context.Context, filter SummaryFilter) ([]ClientCreditSummary, int, error) {
	conds := []string{"1=1"}
	having := []string{"1=1"}
	args := []any{}
	if filter.Search != nil && *filter.Search != "" {
		args = append(args, "%"+strings.ToLower(*filter.Search)+"%")
		conds = append(conds, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.email) LIKE $%d OR c.phone LIKE $%d)", len(args), len(args), len(args)))
	}
	if filter.MinDue != nil {
		args = append(args, *filter.MinDue)
		having = append(having, fmt.Sprintf("SUM(s.total - s.amount_paid) >= $%d", len(args)))
	}
	if filter.MaxDue != nil {
		args = append(args, *filter.MaxDue)
		having = append(having, fmt.Sprintf("SUM(s.total - s.amount_paid) <= $%d", len(args)))
	}
	if filter.MinOverdueDays != nil {
		args = append(args, *filter.MinOverdueDays)
		having = append(having, fmt.Sprintf("MIN(COALESCE(s.due_date, s.created_at)) <= NOW() - make_interval(days => $%d)", len(args)))
	}
	where := strings.Join(conds, " AND ")
	havingClause := strings.Join(having, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM (
SELECT s.client_id FROM sales s JOIN clients c ON c.id = s.client_id
WHERE %s AND %s GROUP BY s.client_id HAVING %s) grouped`, unpaidCondition, where, havingClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT s.client_id, c.name, c.email, c.phone,
SUM(s.total - s.amount_paid) AS total_due,
COUNT(*) AS unpaid_count,
MIN(COALESCE(s.due_date, s.created_at)) AS oldest_ref
FROM sales s JOIN clients c ON c.id = s.client_id
WHERE %s AND %s
GROUP BY s.client_id, c.name, c.email, c.phone
HAVING %s
ORDER BY total_due DESC, s.client_id
LIMIT $%d OFFSET $%d`, unpaidCondition, where, havingClause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []ClientCreditSummary{}
	for rows.Next() {
		var s ClientCreditSummary
		if err := rows.Scan(&s.ClientID, &s.ClientName, &s.Email, &s.Phone, &s.TotalDue, &s.UnpaidCount, &s.OldestRef); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// OverdueCount counts unpaid sales whose reference date is at least
// thresholdDays in the past.
func (r *Repository) OverdueCount(ctx context.Context, thresholdDays int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM sales s
WHERE %s AND COALESCE(s.due_date, s.created_at) <= NOW() - make_interval(days => $1)`, unpaidCondition), thresholdDays).Scan(&count)
	return count, err
}
