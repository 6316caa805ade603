package register

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-pos/comptoir/internal/platform/db"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

// Repository persists register sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, user_id, status, initial_amount, expected_amount, actual_amount, difference, opened_at, closed_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.Status, &s.InitialAmount, &s.ExpectedAmount, &s.ActualAmount, &s.Difference, &s.OpenedAt, &s.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// Open inserts a new OPEN session. A partial unique index on (user_id) WHERE
// status='OPEN' enforces one open session per user; the unique violation maps
// to ErrAlreadyOpen, so concurrent opens race safely at the database.
func (r *Repository) Open(ctx context.Context, userID int64, initialAmount float64) (Session, error) {
	session := Session{UserID: userID, Status: StatusOpen, InitialAmount: initialAmount}
	err := r.pool.QueryRow(ctx, `INSERT INTO register_sessions (user_id, status, initial_amount)
VALUES ($1, 'OPEN', $2) RETURNING id, opened_at`, userID, initialAmount).
		Scan(&session.ID, &session.OpenedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Session{}, fmt.Errorf("%w: user %d has an open session", shared.ErrAlreadyOpen, userID)
		}
		return Session{}, fmt.Errorf("register: open session: %w", err)
	}
	return session, nil
}

// TxRepository exposes the transactional close operations.
type TxRepository interface {
	GetSessionForUpdate(ctx context.Context, id int64) (Session, error)
	CashTakings(ctx context.Context, userID int64, since time.Time) (float64, error)
	CloseSession(ctx context.Context, id int64, expected, actual, difference float64) (Session, error)
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

func (r *txRepository) GetSessionForUpdate(ctx context.Context, id int64) (Session, error) {
	return scanSession(r.tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM register_sessions WHERE id=$1 FOR UPDATE`, id))
}

// CashTakings sums the cash that entered the drawer since the session opened:
// the cash portion of checkouts (capped at the document total, change goes
// back to the client) plus cash payments recorded on credit sales.
func (r *txRepository) CashTakings(ctx context.Context, userID int64, since time.Time) (float64, error) {
	var fromSales, fromPayments float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(LEAST(cash_amount, total)), 0) FROM sales
WHERE created_by=$1 AND created_at >= $2 AND status <> 'CANCELLED'`, userID, since).Scan(&fromSales)
	if err != nil {
		return 0, fmt.Errorf("register: sum sale cash: %w", err)
	}
	err = r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM sale_payments
WHERE created_by=$1 AND created_at >= $2 AND method='CASH'`, userID, since).Scan(&fromPayments)
	if err != nil {
		return 0, fmt.Errorf("register: sum payment cash: %w", err)
	}
	return fromSales + fromPayments, nil
}

func (r *txRepository) CloseSession(ctx context.Context, id int64, expected, actual, difference float64) (Session, error) {
	return scanSession(r.tx.QueryRow(ctx, `UPDATE register_sessions
SET status='CLOSED', expected_amount=$1, actual_amount=$2, difference=$3, closed_at=NOW()
WHERE id=$4
RETURNING `+sessionColumns, expected, actual, difference, id))
}

// Get loads one session.
func (r *Repository) Get(ctx context.Context, id int64) (Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM register_sessions WHERE id=$1`, id))
}

// GetOpen loads the user's open session, if any.
func (r *Repository) GetOpen(ctx context.Context, userID int64) (Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM register_sessions WHERE user_id=$1 AND status='OPEN'`, userID))
}

// ListSessions returns the user's sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context, userID int64, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM register_sessions
WHERE user_id=$1 ORDER BY opened_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Status, &s.InitialAmount, &s.ExpectedAmount, &s.ActualAmount, &s.Difference, &s.OpenedAt, &s.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
