package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

type memoryRepo struct {
	products map[int64]Product
	history  []PriceHistoryEntry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return Product{}, shared.ErrNotFound
}

func (r *memoryRepo) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	for _, p := range r.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, shared.ErrNotFound
}

func (r *memoryRepo) ListProducts(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	out := []Product{}
	for _, p := range r.products {
		if req.LowStock && p.StockOnHand > p.StockMin {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListPriceHistory(ctx context.Context, productID int64) ([]PriceHistoryEntry, error) {
	out := []PriceHistoryEntry{}
	for _, e := range r.history {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListCategories(ctx context.Context) ([]Category, error) { return nil, nil }

func (r *memoryRepo) CreateCategory(ctx context.Context, name string) (int64, error) {
	r.nextID++
	return r.nextID, nil
}

func (tx *memoryTx) InsertProduct(ctx context.Context, p Product) (int64, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.products[p.ID] = p
	return p.ID, nil
}

func (tx *memoryTx) UpdateProduct(ctx context.Context, id int64, updates map[string]any) error {
	p, ok := tx.repo.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	if v, ok := updates["purchase_price"]; ok {
		p.PurchasePrice = v.(float64)
	}
	if v, ok := updates["sale_price"]; ok {
		p.SalePrice = v.(float64)
	}
	if v, ok := updates["name"]; ok {
		p.Name = v.(string)
	}
	tx.repo.products[id] = p
	return nil
}

func (tx *memoryTx) InsertPriceHistory(ctx context.Context, e PriceHistoryEntry) error {
	tx.repo.history = append(tx.repo.history, e)
	return nil
}

func TestPriceChangeAppendsHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductRequest{SKU: "cafe-250", Name: "Café moulu 250g", PurchasePrice: 8, SalePrice: 12.5, Unit: "pcs"}, 1)
	require.NoError(t, err)
	require.Equal(t, "CAFE-250", product.SKU)

	newSale := 13.9
	_, err = svc.UpdateProduct(ctx, product.ID, UpdateProductRequest{SalePrice: &newSale}, 1)
	require.NoError(t, err)

	entries, err := svc.PriceHistory(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.InDelta(t, 12.5, entries[0].OldSalePrice, 0.0001)
	require.InDelta(t, 13.9, entries[0].NewSalePrice, 0.0001)
	require.InDelta(t, 8.0, entries[0].NewPurchasePrice, 0.0001)
}

func TestNoHistoryWhenPriceUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductRequest{SKU: "THE-VERT", Name: "Thé vert", PurchasePrice: 3, SalePrice: 5, Unit: "pcs"}, 1)
	require.NoError(t, err)

	name := "Thé vert nature"
	_, err = svc.UpdateProduct(ctx, product.ID, UpdateProductRequest{Name: &name}, 1)
	require.NoError(t, err)

	entries, err := svc.PriceHistory(ctx, product.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateProductRejectsSaleBelowCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	_, err := svc.CreateProduct(context.Background(), CreateProductRequest{SKU: "X", Name: "X", PurchasePrice: 10, SalePrice: 8, Unit: "pcs"}, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}
