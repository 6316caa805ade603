package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-pos/comptoir/internal/platform/db"
	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

// Repository persists sales data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations the service runs inside one transaction.
// Checkout, cancellation and refund are each a single atomic unit: document
// rows, item rows and stock movements commit or roll back together.
type TxRepository interface {
	LockProducts(ctx context.Context, ids []int64) (map[int64]ProductRef, error)
	NextDocNumber(ctx context.Context, prefix string) (string, error)
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	InsertSaleItem(ctx context.Context, item SaleItem) (SaleItem, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	UpdateSaleStatus(ctx context.Context, id int64, status Status) error
	AddRefundedQty(ctx context.Context, saleItemID int64, qty int) error
	InsertRefund(ctx context.Context, refund Refund) (Refund, error)
	InsertRefundItem(ctx context.Context, item RefundItem) (RefundItem, error)
	ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error)
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

// LockProducts row-locks the products in ascending id order and returns their
// current snapshots. Ordering the lock acquisition avoids deadlocks between
// concurrent checkouts touching overlapping products.
func (r *txRepository) LockProducts(ctx context.Context, ids []int64) (map[int64]ProductRef, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make(map[int64]ProductRef, len(sorted))
	for _, id := range sorted {
		if _, ok := out[id]; ok {
			continue
		}
		var p ProductRef
		err := r.tx.QueryRow(ctx, `SELECT id, name, sale_price, purchase_price, stock_on_hand, is_active
FROM products WHERE id=$1 FOR UPDATE`, id).
			Scan(&p.ID, &p.Name, &p.SalePrice, &p.PurchasePrice, &p.StockOnHand, &p.IsActive)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
			}
			return nil, fmt.Errorf("sales: lock product %d: %w", id, err)
		}
		out[id] = p
	}
	return out, nil
}

func (r *txRepository) NextDocNumber(ctx context.Context, prefix string) (string, error) {
	return shared.NextDocNumber(ctx, r.tx, prefix)
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sales
(number, type, status, client_id, subtotal, discount, tax, total, margin, amount_paid, due_date, payment_method, cash_amount, card_amount, currency_code, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id, created_at, updated_at`,
		sale.Number, sale.Type, sale.Status, sale.ClientID, sale.Subtotal, sale.Discount, sale.Tax,
		sale.Total, sale.Margin, sale.AmountPaid, sale.DueDate, sale.PaymentMethod,
		sale.CashAmount, sale.CardAmount, sale.CurrencyCode, sale.CreatedBy).
		Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: insert sale: %w", err)
	}
	return sale, nil
}

func (r *txRepository) InsertSaleItem(ctx context.Context, item SaleItem) (SaleItem, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_items
(sale_id, product_id, product_name, quantity, unit_price, discount, total_price, purchase_price, margin, refunded_qty)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
RETURNING id`,
		item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
		item.Discount, item.TotalPrice, item.PurchasePrice, item.Margin).
		Scan(&item.ID)
	if err != nil {
		return SaleItem{}, fmt.Errorf("sales: insert item: %w", err)
	}
	return item, nil
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = loadItems(ctx, r.tx, id)
	return sale, err
}

func (r *txRepository) UpdateSaleStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return fmt.Errorf("sales: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) AddRefundedQty(ctx context.Context, saleItemID int64, qty int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sale_items SET refunded_qty = refunded_qty + $1 WHERE id=$2`, qty, saleItemID)
	if err != nil {
		return fmt.Errorf("sales: bump refunded qty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertRefund(ctx context.Context, refund Refund) (Refund, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_refunds (sale_id, avoir_number, refund_amount, reason, created_by)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		refund.SaleID, refund.AvoirNumber, refund.RefundAmount, refund.Reason, refund.CreatedBy).
		Scan(&refund.ID, &refund.CreatedAt)
	if err != nil {
		return Refund{}, fmt.Errorf("sales: insert refund: %w", err)
	}
	return refund, nil
}

func (r *txRepository) InsertRefundItem(ctx context.Context, item RefundItem) (RefundItem, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_refund_items (refund_id, product_id, product_name, quantity, unit_price, total_price)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		item.RefundID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice).
		Scan(&item.ID)
	if err != nil {
		return RefundItem{}, fmt.Errorf("sales: insert refund item: %w", err)
	}
	return item, nil
}

func (r *txRepository) ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error) {
	return stock.Apply(ctx, r.tx, input)
}

const saleColumns = `id, number, type, status, client_id, subtotal, discount, tax, total, margin, amount_paid, due_date, payment_method, cash_amount, card_amount, currency_code, created_by, created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Number, &s.Type, &s.Status, &s.ClientID, &s.Subtotal, &s.Discount, &s.Tax,
		&s.Total, &s.Margin, &s.AmountPaid, &s.DueDate, &s.PaymentMethod, &s.CashAmount, &s.CardAmount,
		&s.CurrencyCode, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, shared.ErrNotFound
		}
		return Sale{}, err
	}
	return s, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, saleID int64) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, product_id, product_name, quantity, unit_price, discount, total_price, purchase_price, margin, refunded_qty
FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SaleItem{}
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice,
			&it.Discount, &it.TotalPrice, &it.PurchasePrice, &it.Margin, &it.RefundedQty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get loads a sale with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = loadItems(ctx, r.pool, id)
	return sale, err
}

// List returns a filtered page of sales (without items) plus the total count.
func (r *Repository) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if req.Status != nil {
		args = append(args, *req.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.Type != nil {
		args = append(args, *req.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if req.ClientID != nil {
		args = append(args, *req.ClientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if req.DateFrom != nil {
		args = append(args, *req.DateFrom)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if req.DateTo != nil {
		args = append(args, *req.DateTo)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE `+where, args...).Scan(&total); err != nil {
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
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM sales WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		saleColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Sale{}
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.Number, &s.Type, &s.Status, &s.ClientID, &s.Subtotal, &s.Discount, &s.Tax,
			&s.Total, &s.Margin, &s.AmountPaid, &s.DueDate, &s.PaymentMethod, &s.CashAmount, &s.CardAmount,
			&s.CurrencyCode, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// ListRefunds returns the avoirs recorded against one sale, oldest first.
func (r *Repository) ListRefunds(ctx context.Context, saleID int64) ([]Refund, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, avoir_number, refund_amount, reason, created_by, created_at
FROM sale_refunds WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refunds := []Refund{}
	for rows.Next() {
		var rf Refund
		if err := rows.Scan(&rf.ID, &rf.SaleID, &rf.AvoirNumber, &rf.RefundAmount, &rf.Reason, &rf.CreatedBy, &rf.CreatedAt); err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range refunds {
		itemRows, err := r.pool.Query(ctx, `SELECT id, refund_id, product_id, product_name, quantity, unit_price, total_price
FROM sale_refund_items WHERE refund_id=$1 ORDER BY id`, refunds[i].ID)
		if err != nil {
			return nil, err
		}
		for itemRows.Next() {
			var it RefundItem
			if err := itemRows.Scan(&it.ID, &it.RefundID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
				itemRows.Close()
				return nil, err
			}
			refunds[i].Items = append(refunds[i].Items, it)
		}
		itemRows.Close()
		if err := itemRows.Err(); err != nil {
			return nil, err
		}
	}
	return refunds, nil
}
