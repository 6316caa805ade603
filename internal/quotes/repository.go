package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// Repository persists quotes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProductSnapshot is the catalog data quoted lines are built from.
type ProductSnapshot struct {
	ID        int64
	Name      string
	SalePrice float64
	IsActive  bool
}

// GetProductSnapshots resolves catalog data for the quoted products. No lock
// is taken: quoting does not reserve stock.
func (r *Repository) GetProductSnapshots(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, sale_price, is_active FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]ProductSnapshot, len(ids))
	for rows.Next() {
		var p ProductSnapshot
		if err := rows.Scan(&p.ID, &p.Name, &p.SalePrice, &p.IsActive); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// Create inserts the quote and its items in one transaction.
func (r *Repository) Create(ctx context.Context, quote Quote) (Quote, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Quote{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	quote.Number, err = shared.NextDocNumber(ctx, tx, "DEV")
	if err != nil {
		return Quote{}, err
	}
	err = tx.QueryRow(ctx, `INSERT INTO quotes (number, type, status, client_id, subtotal, discount, tax, total, valid_until, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at, updated_at`,
		quote.Number, quote.Type, quote.Status, quote.ClientID, quote.Subtotal, quote.Discount,
		quote.Tax, quote.Total, quote.ValidUntil, quote.Notes, quote.CreatedBy).
		Scan(&quote.ID, &quote.CreatedAt, &quote.UpdatedAt)
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: insert quote: %w", err)
	}
	for i := range quote.Items {
		item := &quote.Items[i]
		item.QuoteID = quote.ID
		err = tx.QueryRow(ctx, `INSERT INTO quote_items (quote_id, product_id, product_name, quantity, unit_price, discount, total_price)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			item.QuoteID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Discount, item.TotalPrice).
			Scan(&item.ID)
		if err != nil {
			return Quote{}, fmt.Errorf("quotes: insert item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

const quoteColumns = `id, number, type, status, client_id, subtotal, discount, tax, total, valid_until, converted_sale_id, notes, created_by, created_at, updated_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.Number, &q.Type, &q.Status, &q.ClientID, &q.Subtotal, &q.Discount, &q.Tax,
		&q.Total, &q.ValidUntil, &q.ConvertedSaleID, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, shared.ErrNotFound
		}
		return Quote{}, err
	}
	return q, nil
}

// Get loads a quote with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Quote, error) {
	quote, err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id=$1`, id))
	if err != nil {
		return Quote{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, quote_id, product_id, product_name, quantity, unit_price, discount, total_price
FROM quote_items WHERE quote_id=$1 ORDER BY id`, id)
	if err != nil {
		return Quote{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it QuoteItem
		if err := rows.Scan(&it.ID, &it.QuoteID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Discount, &it.TotalPrice); err != nil {
			return Quote{}, err
		}
		quote.Items = append(quote.Items, it)
	}
	return quote, rows.Err()
}

// List returns a filtered page of quotes (without items) plus the total count.
func (r *Repository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if req.Status != nil {
		args = append(args, *req.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.ClientID != nil {
		args = append(args, *req.ClientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM quotes WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Quote{}
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.ID, &q.Number, &q.Type, &q.Status, &q.ClientID, &q.Subtotal, &q.Discount, &q.Tax,
			&q.Total, &q.ValidUntil, &q.ConvertedSaleID, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

// UpdateStatus moves the quote to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE quotes SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return fmt.Errorf("quotes: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClaimConversion atomically flips an open quote to CONVERTED. The status
// check and the null converted_sale_id guard sit in the same UPDATE, so two
// concurrent conversions cannot both win.
func (r *Repository) ClaimConversion(ctx context.Context, id int64) (Status, error) {
	var previous Status
	err := r.pool.QueryRow(ctx, `UPDATE quotes q SET status='CONVERTED', updated_at=NOW()
FROM (SELECT id, status FROM quotes WHERE id=$1) prev
WHERE q.id = prev.id AND q.status IN ('DRAFT', 'SENT', 'ACCEPTED') AND q.converted_sale_id IS NULL
RETURNING prev.status`, id).Scan(&previous)
	if err == nil {
		return previous, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("quotes: claim conversion: %w", err)
	}

	// Nothing claimed: report why.
	quote, getErr := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id=$1`, id))
	if getErr != nil {
		return "", getErr
	}
	if quote.Status == StatusConverted || quote.ConvertedSaleID != nil {
		return "", fmt.Errorf("%w: quote %s", shared.ErrAlreadyConverted, quote.Number)
	}
	return "", fmt.Errorf("%w: quote %s is %s", shared.ErrValidation, quote.Number, quote.Status)
}

// SetConvertedSale links the produced sale to the converted quote.
func (r *Repository) SetConvertedSale(ctx context.Context, id int64, saleID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE quotes SET converted_sale_id=$1, updated_at=NOW() WHERE id=$2`, saleID, id)
	return err
}

// RevertConversion restores the pre-claim status after a failed conversion.
func (r *Repository) RevertConversion(ctx context.Context, id int64, previous Status) error {
	_, err := r.pool.Exec(ctx, `UPDATE quotes SET status=$1, updated_at=NOW() WHERE id=$2 AND converted_sale_id IS NULL`, previous, id)
	return err
}
