package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductBySKU(ctx context.Context, sku string) (Product, error)
	ListProducts(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	ListPriceHistory(ctx context.Context, productID int64) ([]PriceHistoryEntry, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateProduct registers a product with zero opening stock. Opening stock, if
// any, is posted through the stock package so the movement ledger stays complete.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest, userID int64) (Product, error) {
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" {
		return Product{}, fmt.Errorf("%w: sku required", shared.ErrValidation)
	}
	if req.SalePrice < req.PurchasePrice {
		return Product{}, fmt.Errorf("%w: sale price below purchase price", shared.ErrValidation)
	}

	product := Product{
		SKU:           sku,
		Barcode:       req.Barcode,
		Name:          strings.TrimSpace(req.Name),
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		StockMin:      req.StockMin,
		Unit:          req.Unit,
		CategoryID:    req.CategoryID,
		IsActive:      true,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertProduct(ctx, product)
		if err != nil {
			return err
		}
		product.ID = id
		return nil
	})
	if err != nil {
		return Product{}, fmt.Errorf("catalog: create product: %w", err)
	}
	s.recordAudit(ctx, userID, "product:create", product.ID, map[string]any{"sku": product.SKU})
	return product, nil
}

// UpdateProduct patches a product. A purchase or sale price change appends a
// price history entry within the same transaction.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest, userID int64) (Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}

	updates := make(map[string]any)
	if req.Barcode != nil {
		updates["barcode"] = *req.Barcode
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.StockMin != nil {
		updates["stock_min"] = *req.StockMin
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	priceChanged := false
	newPurchase, newSale := existing.PurchasePrice, existing.SalePrice
	if req.PurchasePrice != nil && *req.PurchasePrice != existing.PurchasePrice {
		newPurchase = *req.PurchasePrice
		updates["purchase_price"] = newPurchase
		priceChanged = true
	}
	if req.SalePrice != nil && *req.SalePrice != existing.SalePrice {
		newSale = *req.SalePrice
		updates["sale_price"] = newSale
		priceChanged = true
	}

	if len(updates) == 0 {
		return existing, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateProduct(ctx, id, updates); err != nil {
			return err
		}
		if priceChanged {
			return tx.InsertPriceHistory(ctx, PriceHistoryEntry{
				ProductID:        id,
				OldPurchasePrice: existing.PurchasePrice,
				NewPurchasePrice: newPurchase,
				OldSalePrice:     existing.SalePrice,
				NewSalePrice:     newSale,
				ChangedBy:        userID,
			})
		}
		return nil
	})
	if err != nil {
		return Product{}, fmt.Errorf("catalog: update product: %w", err)
	}
	s.recordAudit(ctx, userID, "product:update", id, map[string]any{"price_changed": priceChanged})
	return s.repo.GetProduct(ctx, id)
}

// GetProduct loads a product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns a filtered page of products.
func (s *Service) ListProducts(ctx context.Context, req ListProductsRequest) ([]Product, shared.Pagination, error) {
	products, total, err := s.repo.ListProducts(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// PriceHistory lists price changes for a product.
func (s *Service) PriceHistory(ctx context.Context, productID int64) ([]PriceHistoryEntry, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListPriceHistory(ctx, productID)
}

// Categories lists categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name required", shared.ErrValidation)
	}
	id, err := s.repo.CreateCategory(ctx, name)
	if err != nil {
		return Category{}, err
	}
	return Category{ID: id, Name: name}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
