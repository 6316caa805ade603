package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-pos/comptoir/internal/platform/db"
	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

// Repository persists procurement data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations the service runs inside one transaction.
type TxRepository interface {
	SupplierExists(ctx context.Context, id int64) (bool, error)
	GetProductNames(ctx context.Context, ids []int64) (map[int64]string, error)
	NextDocNumber(ctx context.Context, prefix string) (string, error)
	InsertPurchase(ctx context.Context, p Purchase) (Purchase, error)
	InsertPurchaseItem(ctx context.Context, item PurchaseItem) (PurchaseItem, error)
	GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error)
	SetReceivedQty(ctx context.Context, itemID int64, qty int) error
	UpdatePurchaseStatus(ctx context.Context, id int64, status PurchaseStatus) error
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

func (r *txRepository) SupplierExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id=$1 AND is_active)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetProductNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (r *txRepository) NextDocNumber(ctx context.Context, prefix string) (string, error) {
	return shared.NextDocNumber(ctx, r.tx, prefix)
}

func (r *txRepository) InsertPurchase(ctx context.Context, p Purchase) (Purchase, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchases (number, supplier_id, status, total, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		p.Number, p.SupplierID, p.Status, p.Total, p.Notes, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Purchase{}, fmt.Errorf("procurement: insert purchase: %w", err)
	}
	return p, nil
}

func (r *txRepository) InsertPurchaseItem(ctx context.Context, item PurchaseItem) (PurchaseItem, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_items (purchase_id, product_id, product_name, quantity, unit_price, total_price, received_qty)
VALUES ($1, $2, $3, $4, $5, $6, 0) RETURNING id`,
		item.PurchaseID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice).
		Scan(&item.ID)
	if err != nil {
		return PurchaseItem{}, fmt.Errorf("procurement: insert item: %w", err)
	}
	return item, nil
}

func (r *txRepository) GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error) {
	purchase, err := scanPurchase(r.tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Purchase{}, err
	}
	purchase.Items, err = loadItems(ctx, r.tx, id)
	return purchase, err
}

func (r *txRepository) SetReceivedQty(ctx context.Context, itemID int64, qty int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_items SET received_qty=$1 WHERE id=$2`, qty, itemID)
	if err != nil {
		return fmt.Errorf("procurement: set received qty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdatePurchaseStatus(ctx context.Context, id int64, status PurchaseStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchases SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return fmt.Errorf("procurement: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error) {
	return stock.Apply(ctx, r.tx, input)
}

const purchaseColumns = `id, number, supplier_id, status, total, notes, created_by, created_at, updated_at`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.Number, &p.SupplierID, &p.Status, &p.Total, &p.Notes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, shared.ErrNotFound
		}
		return Purchase{}, err
	}
	return p, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, purchaseID int64) ([]PurchaseItem, error) {
	rows, err := q.Query(ctx, `SELECT id, purchase_id, product_id, product_name, quantity, unit_price, total_price, received_qty
FROM purchase_items WHERE purchase_id=$1 ORDER BY id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PurchaseItem{}
	for rows.Next() {
		var it PurchaseItem
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.ReceivedQty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get loads a purchase with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	purchase, err := scanPurchase(r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, id))
	if err != nil {
		return Purchase{}, err
	}
	purchase.Items, err = loadItems(ctx, r.pool, id)
	return purchase, err
}

// List returns a filtered page of purchases (without items) plus the total count.
func (r *Repository) List(ctx context.Context, req ListPurchasesRequest) ([]Purchase, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if req.Status != nil {
		args = append(args, *req.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.SupplierID != nil {
		args = append(args, *req.SupplierID)
		conds = append(conds, fmt.Sprintf("supplier_id = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases WHERE `+where, args...).Scan(&total); err != nil {
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
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchases WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		purchaseColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Purchase{}
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.Number, &p.SupplierID, &p.Status, &p.Total, &p.Notes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

const supplierColumns = `id, name, email, phone, address, is_active, created_at, updated_at`

// GetSupplier loads one supplier.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrNotFound
		}
		return Supplier{}, err
	}
	return s, nil
}

// CreateSupplier inserts a supplier and returns its id.
func (r *Repository) CreateSupplier(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, email, phone, address, is_active)
VALUES ($1, $2, $3, $4, TRUE) RETURNING id`, s.Name, s.Email, s.Phone, s.Address).Scan(&id)
	return id, err
}

// UpdateSupplier patches supplier columns.
func (r *Repository) UpdateSupplier(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	for column, value := range updates {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	args = append(args, id)
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE suppliers SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListSuppliers returns all suppliers, active first, alphabetical.
func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY is_active DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Supplier{}
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
