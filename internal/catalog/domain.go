// Package catalog manages products, categories and price history.
package catalog

import "time"

// Product is a sellable item. StockOnHand is a cached quantity maintained
// exclusively by the stock package; catalog never mutates it directly.
type Product struct {
	ID            int64     `json:"id" db:"id"`
	SKU           string    `json:"sku" db:"sku"`
	Barcode       *string   `json:"barcode,omitempty" db:"barcode"`
	Name          string    `json:"name" db:"name"`
	PurchasePrice float64   `json:"purchase_price" db:"purchase_price"`
	SalePrice     float64   `json:"sale_price" db:"sale_price"`
	StockOnHand   int       `json:"stock_on_hand" db:"stock_on_hand"`
	StockMin      int       `json:"stock_min" db:"stock_min"`
	Unit          string    `json:"unit" db:"unit"`
	CategoryID    *int64    `json:"category_id,omitempty" db:"category_id"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Category groups products.
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// PriceHistoryEntry records every purchase/sale price change.
type PriceHistoryEntry struct {
	ID               int64     `json:"id" db:"id"`
	ProductID        int64     `json:"product_id" db:"product_id"`
	OldPurchasePrice float64   `json:"old_purchase_price" db:"old_purchase_price"`
	NewPurchasePrice float64   `json:"new_purchase_price" db:"new_purchase_price"`
	OldSalePrice     float64   `json:"old_sale_price" db:"old_sale_price"`
	NewSalePrice     float64   `json:"new_sale_price" db:"new_sale_price"`
	ChangedBy        int64     `json:"changed_by" db:"changed_by"`
	ChangedAt        time.Time `json:"changed_at" db:"changed_at"`
}

// CreateProductRequest registers a product.
type CreateProductRequest struct {
	SKU           string  `json:"sku" validate:"required,max=50"`
	Barcode       *string `json:"barcode,omitempty" validate:"omitempty,max=50"`
	Name          string  `json:"name" validate:"required,max=200"`
	PurchasePrice float64 `json:"purchase_price" validate:"gte=0"`
	SalePrice     float64 `json:"sale_price" validate:"gte=0"`
	StockMin      int     `json:"stock_min" validate:"gte=0"`
	Unit          string  `json:"unit" validate:"required,max=20"`
	CategoryID    *int64  `json:"category_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateProductRequest patches a product. Price changes append to price history.
type UpdateProductRequest struct {
	Barcode       *string  `json:"barcode,omitempty"`
	Name          *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	PurchasePrice *float64 `json:"purchase_price,omitempty" validate:"omitempty,gte=0"`
	SalePrice     *float64 `json:"sale_price,omitempty" validate:"omitempty,gte=0"`
	StockMin      *int     `json:"stock_min,omitempty" validate:"omitempty,gte=0"`
	Unit          *string  `json:"unit,omitempty" validate:"omitempty,max=20"`
	CategoryID    *int64   `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	IsActive      *bool    `json:"is_active,omitempty"`
}

// ListProductsRequest filters product listings.
type ListProductsRequest struct {
	Search     *string `json:"search,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
	LowStock   bool    `json:"low_stock"`
	Page       int     `json:"page" validate:"gte=0"`
	PerPage    int     `json:"per_page" validate:"gte=0,lte=500"`
}
