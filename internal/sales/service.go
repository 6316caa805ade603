package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/comptoir-pos/comptoir/internal/pricing"
	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error)
	ListRefunds(ctx context.Context, saleID int64) ([]Refund, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates checkout, cancellation and refunds.
type Service struct {
	logger       *slog.Logger
	repo         RepositoryPort
	audit        AuditPort
	baseCurrency string
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, baseCurrency string) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, baseCurrency: baseCurrency}
}

const (
	prefixTicket  = "TKT"
	prefixInvoice = "INV"
)

// CreateSale runs the whole checkout in one transaction: products are
// row-locked, availability is checked before any write, totals are computed,
// the document and its lines are inserted and one SALE movement is appended
// per line. Any failure rolls everything back.
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest, userID int64) (Sale, error) {
	if len(req.Items) == 0 {
		return Sale{}, fmt.Errorf("%w: at least one item required", shared.ErrValidation)
	}
	if req.PaymentMethod == PaymentCredit && req.ClientID == nil {
		return Sale{}, fmt.Errorf("%w: credit sales require a client", shared.ErrValidation)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.CurrencyCode))
	if currency == "" {
		currency = s.baseCurrency
	}

	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids := make([]int64, 0, len(req.Items))
		for _, line := range req.Items {
			ids = append(ids, line.ProductID)
		}
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}

		// Validate every line before the first write so a rejected checkout
		// leaves no partial state behind.
		lines := make([]pricing.Line, 0, len(req.Items))
		requested := make(map[int64]int, len(req.Items))
		for _, line := range req.Items {
			product := products[line.ProductID]
			if !product.IsActive {
				return fmt.Errorf("%w: product %q is inactive", shared.ErrValidation, product.Name)
			}
			requested[line.ProductID] += line.Quantity
			if requested[line.ProductID] > product.StockOnHand {
				return fmt.Errorf("%w: %s (available %d, requested %d)",
					shared.ErrInsufficientStock, product.Name, product.StockOnHand, requested[line.ProductID])
			}
			unitPrice := product.SalePrice
			if line.UnitPrice != nil {
				unitPrice = *line.UnitPrice
			}
			lines = append(lines, pricing.Line{
				ProductID:     line.ProductID,
				Quantity:      line.Quantity,
				UnitPrice:     unitPrice,
				PurchasePrice: product.PurchasePrice,
				Discount:      line.Discount,
			})
		}

		totals, err := pricing.Calculate(req.Type, lines, req.Discount)
		if err != nil {
			return err
		}

		prefix := prefixTicket
		if req.Type == pricing.DocTypeInvoice {
			prefix = prefixInvoice
		}
		number, err := tx.NextDocNumber(ctx, prefix)
		if err != nil {
			return err
		}

		// Cash overpayment is change handed back at the counter, so the
		// recorded amount paid is capped at the document total.
		paid := req.CashAmount + req.CardAmount
		if paid > totals.Total {
			paid = totals.Total
		}

		sale, err = tx.InsertSale(ctx, Sale{
			Number:        number,
			Type:          req.Type,
			Status:        StatusCompleted,
			ClientID:      req.ClientID,
			Subtotal:      totals.Subtotal,
			Discount:      totals.Discount,
			Tax:           totals.Tax,
			Total:         totals.Total,
			Margin:        totals.Margin,
			AmountPaid:    paid,
			DueDate:       req.DueDate,
			PaymentMethod: req.PaymentMethod,
			CashAmount:    req.CashAmount,
			CardAmount:    req.CardAmount,
			CurrencyCode:  currency,
			CreatedBy:     userID,
		})
		if err != nil {
			return err
		}

		for _, line := range totals.Lines {
			product := products[line.ProductID]
			item, err := tx.InsertSaleItem(ctx, SaleItem{
				SaleID:        sale.ID,
				ProductID:     line.ProductID,
				ProductName:   product.Name,
				Quantity:      line.Quantity,
				UnitPrice:     line.UnitPrice,
				Discount:      line.Discount,
				TotalPrice:    line.Total,
				PurchasePrice: line.PurchasePrice,
				Margin:        line.Margin,
			})
			if err != nil {
				return err
			}
			sale.Items = append(sale.Items, item)

			if _, err := tx.ApplyMovement(ctx, stock.MovementInput{
				ProductID:   line.ProductID,
				Type:        stock.MovementSale,
				Quantity:    -line.Quantity,
				UnitPrice:   line.UnitPrice,
				ReferenceID: number,
				UserID:      userID,
				Reason:      "Vente",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "sales:create",
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", sale.ID),
			Meta:     map[string]any{"number": sale.Number, "total": sale.Total, "type": sale.Type},
		})
	}
	s.logger.Info("sale completed",
		slog.String("number", sale.Number),
		slog.String("type", string(sale.Type)),
		slog.Float64("total", sale.Total))
	return sale, nil
}

// CancelSale voids a sale and restores stock. Quantities already returned
// through an avoir are not restored again. Cancelling twice fails.
func (s *Service) CancelSale(ctx context.Context, id int64, userID int64) (Sale, error) {
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusCancelled:
			return fmt.Errorf("%w: sale %s", shared.ErrAlreadyCancelled, sale.Number)
		case StatusCompleted, StatusRefunded:
			// cancellable
		default:
			return fmt.Errorf("%w: sale %s is %s", shared.ErrValidation, sale.Number, sale.Status)
		}

		for _, item := range sale.Items {
			remaining := item.Quantity - item.RefundedQty
			if remaining <= 0 {
				continue
			}
			if _, err := tx.ApplyMovement(ctx, stock.MovementInput{
				ProductID:   item.ProductID,
				Type:        stock.MovementAdjustment,
				Quantity:    remaining,
				UnitPrice:   item.UnitPrice,
				ReferenceID: sale.Number,
				UserID:      userID,
				Reason:      "Annulation de vente",
			}); err != nil {
				return err
			}
		}
		if err := tx.UpdateSaleStatus(ctx, id, StatusCancelled); err != nil {
			return err
		}
		sale.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "sales:cancel",
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", sale.ID),
			Meta:     map[string]any{"number": sale.Number},
		})
	}
	s.logger.Info("sale cancelled", slog.String("number", sale.Number))
	return sale, nil
}

// GetSale loads one sale with items.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// ListSales returns a filtered page of sales.
func (s *Service) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, shared.Pagination, error) {
	out, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// ListRefunds returns the avoirs recorded against a sale.
func (s *Service) ListRefunds(ctx context.Context, saleID int64) ([]Refund, error) {
	if _, err := s.repo.Get(ctx, saleID); err != nil {
		return nil, err
	}
	return s.repo.ListRefunds(ctx, saleID)
}
