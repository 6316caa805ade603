// Package procurement manages suppliers, purchase orders and receipt
// reconciliation against ordered quantities.
package procurement

import "time"

// PurchaseStatus enumerates the purchase order lifecycle.
type PurchaseStatus string

const (
	StatusPending   PurchaseStatus = "PENDING"
	StatusPartial   PurchaseStatus = "PARTIAL"
	StatusReceived  PurchaseStatus = "RECEIVED"
	StatusCancelled PurchaseStatus = "CANCELLED"
	StatusReturned  PurchaseStatus = "RETURNED"
)

// Supplier is a vendor purchase orders are placed with.
type Supplier struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Address   *string   `json:"address,omitempty" db:"address"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Purchase is a purchase order. Its status is derived from how much of each
// line has been received.
type Purchase struct {
	ID         int64          `json:"id" db:"id"`
	Number     string         `json:"number" db:"number"`
	SupplierID int64          `json:"supplier_id" db:"supplier_id"`
	Status     PurchaseStatus `json:"status" db:"status"`
	Total      float64        `json:"total" db:"total"`
	Notes      *string        `json:"notes,omitempty" db:"notes"`
	CreatedBy  int64          `json:"created_by" db:"created_by"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
	Items      []PurchaseItem `json:"items,omitempty" db:"-"`
}

// PurchaseItem is one ordered line. ReceivedQty holds the recorded figure and
// may be corrected downward without reversing stock.
type PurchaseItem struct {
	ID          int64   `json:"id" db:"id"`
	PurchaseID  int64   `json:"purchase_id" db:"purchase_id"`
	ProductID   int64   `json:"product_id" db:"product_id"`
	ProductName string  `json:"product_name" db:"product_name"`
	Quantity    int     `json:"quantity" db:"quantity"`
	UnitPrice   float64 `json:"unit_price" db:"unit_price"`
	TotalPrice  float64 `json:"total_price" db:"total_price"`
	ReceivedQty int     `json:"received_qty" db:"received_qty"`
}

// PurchaseLineRequest is one ordered line in a new purchase.
type PurchaseLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gte=1"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// CreatePurchaseRequest places a purchase order.
type CreatePurchaseRequest struct {
	SupplierID int64                 `json:"supplier_id" validate:"required,gt=0"`
	Items      []PurchaseLineRequest `json:"items" validate:"required,min=1,dive"`
	Notes      *string               `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ReceiveLineRequest records the received quantity for one line. The value
// overwrites the previous figure; only a positive delta moves stock.
type ReceiveLineRequest struct {
	PurchaseItemID int64 `json:"purchase_item_id" validate:"required,gt=0"`
	ReceivedQty    int   `json:"received_qty" validate:"gte=0"`
}

// ReceivePurchaseRequest reconciles a delivery against the order.
type ReceivePurchaseRequest struct {
	Items []ReceiveLineRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateSupplierRequest registers a supplier.
type CreateSupplierRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

// UpdateSupplierRequest patches a supplier.
type UpdateSupplierRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// ListPurchasesRequest filters purchase listings.
type ListPurchasesRequest struct {
	Status     *PurchaseStatus `json:"status,omitempty"`
	SupplierID *int64          `json:"supplier_id,omitempty"`
	Page       int             `json:"page" validate:"gte=0"`
	PerPage    int             `json:"per_page" validate:"gte=0,lte=500"`
}
