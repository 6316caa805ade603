package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, req ListPurchasesRequest) ([]Purchase, int, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CreateSupplier(ctx context.Context, s Supplier) (int64, error)
	UpdateSupplier(ctx context.Context, id int64, updates map[string]any) error
	ListSuppliers(ctx context.Context) ([]Supplier, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates purchase orders and receipt reconciliation.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, audit: audit}
}

const prefixPurchase = "ACH"

// CreatePurchase places a purchase order. No stock moves until a delivery is
// received.
func (s *Service) CreatePurchase(ctx context.Context, req CreatePurchaseRequest, userID int64) (Purchase, error) {
	if len(req.Items) == 0 {
		return Purchase{}, fmt.Errorf("%w: at least one item required", shared.ErrValidation)
	}
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return Purchase{}, fmt.Errorf("%w: quantity must be >= 1 for product %d", shared.ErrValidation, line.ProductID)
		}
		if line.UnitPrice < 0 {
			return Purchase{}, fmt.Errorf("%w: negative unit price for product %d", shared.ErrValidation, line.ProductID)
		}
	}

	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.SupplierExists(ctx, req.SupplierID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: supplier %d", shared.ErrNotFound, req.SupplierID)
		}

		ids := make([]int64, 0, len(req.Items))
		for _, line := range req.Items {
			ids = append(ids, line.ProductID)
		}
		names, err := tx.GetProductNames(ctx, ids)
		if err != nil {
			return err
		}

		var total float64
		for _, line := range req.Items {
			if _, ok := names[line.ProductID]; !ok {
				return fmt.Errorf("%w: product %d", shared.ErrNotFound, line.ProductID)
			}
			total += line.UnitPrice * float64(line.Quantity)
		}

		number, err := tx.NextDocNumber(ctx, prefixPurchase)
		if err != nil {
			return err
		}
		purchase, err = tx.InsertPurchase(ctx, Purchase{
			Number:     number,
			SupplierID: req.SupplierID,
			Status:     StatusPending,
			Total:      total,
			Notes:      req.Notes,
			CreatedBy:  userID,
		})
		if err != nil {
			return err
		}
		for _, line := range req.Items {
			item, err := tx.InsertPurchaseItem(ctx, PurchaseItem{
				PurchaseID:  purchase.ID,
				ProductID:   line.ProductID,
				ProductName: names[line.ProductID],
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				TotalPrice:  line.UnitPrice * float64(line.Quantity),
			})
			if err != nil {
				return err
			}
			purchase.Items = append(purchase.Items, item)
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "procurement:create",
			Entity:   "purchase",
			EntityID: fmt.Sprintf("%d", purchase.ID),
			Meta:     map[string]any{"number": purchase.Number, "total": purchase.Total},
		})
	}
	s.logger.Info("purchase created", slog.String("number", purchase.Number), slog.Float64("total", purchase.Total))
	return purchase, nil
}

// ReceivePurchase reconciles a delivery. Each submitted figure overwrites the
// line's received quantity; only the positive delta enters stock, so recording
// corrections downward fixes the paperwork without reversing goods already on
// the shelf. The order status is recomputed from all lines.
func (s *Service) ReceivePurchase(ctx context.Context, id int64, req ReceivePurchaseRequest, userID int64) (Purchase, error) {
	if len(req.Items) == 0 {
		return Purchase{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}

	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		purchase, err = tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch purchase.Status {
		case StatusCancelled:
			return fmt.Errorf("%w: purchase %s", shared.ErrCancelled, purchase.Number)
		case StatusReturned:
			return fmt.Errorf("%w: purchase %s is returned", shared.ErrValidation, purchase.Number)
		}

		itemsByID := make(map[int64]*PurchaseItem, len(purchase.Items))
		for i := range purchase.Items {
			itemsByID[purchase.Items[i].ID] = &purchase.Items[i]
		}

		// Validate all lines before the first write.
		for _, line := range req.Items {
			item, ok := itemsByID[line.PurchaseItemID]
			if !ok {
				return fmt.Errorf("%w: purchase item %d", shared.ErrNotFound, line.PurchaseItemID)
			}
			if line.ReceivedQty < 0 || line.ReceivedQty > item.Quantity {
				return fmt.Errorf("%w: %s (ordered %d, received %d)",
					shared.ErrInvalidQuantity, item.ProductName, item.Quantity, line.ReceivedQty)
			}
		}

		for _, line := range req.Items {
			item := itemsByID[line.PurchaseItemID]
			delta := line.ReceivedQty - item.ReceivedQty
			if delta > 0 {
				if _, err := tx.ApplyMovement(ctx, stock.MovementInput{
					ProductID:   item.ProductID,
					Type:        stock.MovementEntry,
					Quantity:    delta,
					UnitPrice:   item.UnitPrice,
					ReferenceID: purchase.Number,
					UserID:      userID,
					Reason:      "Réception commande",
				}); err != nil {
					return err
				}
			}
			if err := tx.SetReceivedQty(ctx, item.ID, line.ReceivedQty); err != nil {
				return err
			}
			item.ReceivedQty = line.ReceivedQty
		}

		status := deriveStatus(purchase.Items)
		if status != purchase.Status {
			if err := tx.UpdatePurchaseStatus(ctx, id, status); err != nil {
				return err
			}
			purchase.Status = status
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "procurement:receive",
			Entity:   "purchase",
			EntityID: fmt.Sprintf("%d", purchase.ID),
			Meta:     map[string]any{"number": purchase.Number, "status": purchase.Status},
		})
	}
	s.logger.Info("purchase received",
		slog.String("number", purchase.Number),
		slog.String("status", string(purchase.Status)))
	return purchase, nil
}

// CancelPurchase voids an order before any delivery was received.
func (s *Service) CancelPurchase(ctx context.Context, id int64, userID int64) (Purchase, error) {
	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		purchase, err = tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if purchase.Status == StatusCancelled {
			return fmt.Errorf("%w: purchase %s", shared.ErrAlreadyCancelled, purchase.Number)
		}
		if purchase.Status != StatusPending {
			return fmt.Errorf("%w: purchase %s is %s, only pending orders can be cancelled",
				shared.ErrValidation, purchase.Number, purchase.Status)
		}
		if err := tx.UpdatePurchaseStatus(ctx, id, StatusCancelled); err != nil {
			return err
		}
		purchase.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	s.logger.Info("purchase cancelled", slog.String("number", purchase.Number))
	return purchase, nil
}

// deriveStatus recomputes the order status from its lines.
func deriveStatus(items []PurchaseItem) PurchaseStatus {
	allFull := true
	anyReceived := false
	for _, item := range items {
		if item.ReceivedQty < item.Quantity {
			allFull = false
		}
		if item.ReceivedQty > 0 {
			anyReceived = true
		}
	}
	switch {
	case allFull:
		return StatusReceived
	case anyReceived:
		return StatusPartial
	default:
		return StatusPending
	}
}

// GetPurchase loads one purchase with items.
func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

// ListPurchases returns a filtered page of purchases.
func (s *Service) ListPurchases(ctx context.Context, req ListPurchasesRequest) ([]Purchase, shared.Pagination, error) {
	out, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// CreateSupplier registers a supplier.
func (s *Service) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (Supplier, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Supplier{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	id, err := s.repo.CreateSupplier(ctx, Supplier{
		Name:    name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		return Supplier{}, fmt.Errorf("procurement: create supplier: %w", err)
	}
	return s.repo.GetSupplier(ctx, id)
}

// UpdateSupplier patches a supplier.
func (s *Service) UpdateSupplier(ctx context.Context, id int64, req UpdateSupplierRequest) (Supplier, error) {
	if _, err := s.repo.GetSupplier(ctx, id); err != nil {
		return Supplier{}, err
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if err := s.repo.UpdateSupplier(ctx, id, updates); err != nil {
		return Supplier{}, err
	}
	return s.repo.GetSupplier(ctx, id)
}

// GetSupplier loads one supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers returns all suppliers.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}
