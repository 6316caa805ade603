package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-pos/comptoir/internal/platform/db"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertProduct(ctx context.Context, product Product) (int64, error)
	UpdateProduct(ctx context.Context, id int64, updates map[string]any) error
	InsertPriceHistory(ctx context.Context, entry PriceHistoryEntry) error
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

const productColumns = `id, sku, barcode, name, purchase_price, sale_price, stock_on_hand, stock_min, unit, category_id, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.PurchasePrice, &p.SalePrice,
		&p.StockOnHand, &p.StockMin, &p.Unit, &p.CategoryID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetProduct loads one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// GetProductBySKU loads one product by sku.
func (r *Repository) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku=$1`, sku))
}

// ListProducts returns a filtered page of products plus the total count.
func (r *Repository) ListProducts(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if req.Search != nil && *req.Search != "" {
		args = append(args, "%"+strings.ToLower(*req.Search)+"%")
		conds = append(conds, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(sku) LIKE $%d OR barcode LIKE $%d)", len(args), len(args), len(args)))
	}
	if req.CategoryID != nil {
		args = append(args, *req.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if req.LowStock {
		conds = append(conds, "stock_on_hand <= stock_min")
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.PurchasePrice, &p.SalePrice,
			&p.StockOnHand, &p.StockMin, &p.Unit, &p.CategoryID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// ListPriceHistory returns the price change log for a product, newest first.
func (r *Repository) ListPriceHistory(ctx context.Context, productID int64) ([]PriceHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, old_purchase_price, new_purchase_price, old_sale_price, new_sale_price, changed_by, changed_at
FROM price_history WHERE product_id=$1 ORDER BY changed_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []PriceHistoryEntry{}
	for rows.Next() {
		var e PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.OldPurchasePrice, &e.NewPurchasePrice,
			&e.OldSalePrice, &e.NewSalePrice, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListCategories returns all categories.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory inserts a category and returns its id.
func (r *Repository) CreateCategory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err
}

func (r *txRepository) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO products (sku, barcode, name, purchase_price, sale_price, stock_on_hand, stock_min, unit, category_id, is_active)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, TRUE) RETURNING id`,
		p.SKU, p.Barcode, p.Name, p.PurchasePrice, p.SalePrice, p.StockMin, p.Unit, p.CategoryID).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateProduct(ctx context.Context, id int64, updates map[string]any) error {
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
	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertPriceHistory(ctx context.Context, e PriceHistoryEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO price_history (product_id, old_purchase_price, new_purchase_price, old_sale_price, new_sale_price, changed_by, changed_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		e.ProductID, e.OldPurchasePrice, e.NewPurchasePrice, e.OldSalePrice, e.NewSalePrice, e.ChangedBy)
	return err
}
