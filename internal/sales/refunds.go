package sales

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

const prefixAvoir = "AVR"

// CreateRefund issues an avoir against a completed sale. The cap is
// cumulative: across all avoirs, no line can be returned beyond its sold
// quantity. The original sale's totals and amount paid are never touched; the
// avoir is its own ledger entry and each returned line appends a RETURN
// movement. When every line is fully returned the sale flips to REFUNDED and
// further refunds are rejected.
func (s *Service) CreateRefund(ctx context.Context, saleID int64, req CreateRefundRequest, userID int64) (Refund, error) {
	if len(req.Items) == 0 {
		return Refund{}, fmt.Errorf("%w: at least one item required", shared.ErrValidation)
	}

	var refund Refund
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusCancelled:
			return fmt.Errorf("%w: sale %s", shared.ErrAlreadyCancelled, sale.Number)
		case StatusRefunded:
			return fmt.Errorf("%w: sale %s is fully refunded", shared.ErrInvalidQuantity, sale.Number)
		case StatusCompleted:
			// refundable
		default:
			return fmt.Errorf("%w: sale %s is %s", shared.ErrValidation, sale.Number, sale.Status)
		}

		itemsByID := make(map[int64]SaleItem, len(sale.Items))
		for _, item := range sale.Items {
			itemsByID[item.ID] = item
		}

		// Validate every requested line against the cumulative cap before the
		// first write.
		requested := make(map[int64]int, len(req.Items))
		for _, line := range req.Items {
			item, ok := itemsByID[line.SaleItemID]
			if !ok {
				return fmt.Errorf("%w: sale item %d", shared.ErrNotFound, line.SaleItemID)
			}
			if line.Quantity < 1 {
				return fmt.Errorf("%w: quantity must be >= 1 for %s", shared.ErrInvalidQuantity, item.ProductName)
			}
			requested[line.SaleItemID] += line.Quantity
			if requested[line.SaleItemID] > item.Quantity-item.RefundedQty {
				return fmt.Errorf("%w: %s (sold %d, already refunded %d, requested %d)",
					shared.ErrInvalidQuantity, item.ProductName, item.Quantity, item.RefundedQty, requested[line.SaleItemID])
			}
		}

		avoirNumber, err := tx.NextDocNumber(ctx, prefixAvoir)
		if err != nil {
			return err
		}

		var amount float64
		for itemID, qty := range requested {
			amount += itemsByID[itemID].UnitPrice * float64(qty)
		}

		refund, err = tx.InsertRefund(ctx, Refund{
			SaleID:       saleID,
			AvoirNumber:  avoirNumber,
			RefundAmount: amount,
			Reason:       req.Reason,
			CreatedBy:    userID,
		})
		if err != nil {
			return err
		}

		for _, item := range sale.Items {
			qty := requested[item.ID]
			if qty == 0 {
				continue
			}
			refundItem, err := tx.InsertRefundItem(ctx, RefundItem{
				RefundID:    refund.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    qty,
				UnitPrice:   item.UnitPrice,
				TotalPrice:  item.UnitPrice * float64(qty),
			})
			if err != nil {
				return err
			}
			refund.Items = append(refund.Items, refundItem)

			if err := tx.AddRefundedQty(ctx, item.ID, qty); err != nil {
				return err
			}
			if _, err := tx.ApplyMovement(ctx, stock.MovementInput{
				ProductID:   item.ProductID,
				Type:        stock.MovementReturn,
				Quantity:    qty,
				UnitPrice:   item.UnitPrice,
				ReferenceID: avoirNumber,
				UserID:      userID,
				Reason:      "Avoir",
			}); err != nil {
				return err
			}
		}

		fullyRefunded := true
		for _, item := range sale.Items {
			if item.RefundedQty+requested[item.ID] < item.Quantity {
				fullyRefunded = false
				break
			}
		}
		if fullyRefunded {
			return tx.UpdateSaleStatus(ctx, saleID, StatusRefunded)
		}
		return nil
	})
	if err != nil {
		return Refund{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "sales:refund",
			Entity:   "sale_refund",
			EntityID: fmt.Sprintf("%d", refund.ID),
			Meta:     map[string]any{"avoir_number": refund.AvoirNumber, "sale_id": saleID, "amount": refund.RefundAmount},
		})
	}
	s.logger.Info("avoir issued",
		slog.String("avoir_number", refund.AvoirNumber),
		slog.Int64("sale_id", saleID),
		slog.Float64("amount", refund.RefundAmount))
	return refund, nil
}
