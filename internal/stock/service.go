package stock

import (
	"context"
	"fmt"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter ListFilter) ([]Movement, error)
	LedgerSum(ctx context.Context, productID int64) (int, error)
	CachedOnHand(ctx context.Context, productID int64) (int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates manual stock operations: adjustments, damage and loss
// write-offs. Sales and purchase flows append to the same ledger through
// Apply within their own transactions.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// PostAdjustment records a manual correction; quantity may be positive or negative.
func (s *Service) PostAdjustment(ctx context.Context, req AdjustmentRequest, userID int64) (Movement, error) {
	if req.Quantity == 0 {
		return Movement{}, fmt.Errorf("%w: quantity must be non-zero", shared.ErrValidation)
	}
	return s.post(ctx, MovementInput{
		ProductID: req.ProductID,
		Type:      MovementAdjustment,
		Quantity:  req.Quantity,
		UserID:    userID,
		Reason:    req.Reason,
	})
}

// PostDamage writes off damaged goods.
func (s *Service) PostDamage(ctx context.Context, req WriteOffRequest, userID int64) (Movement, error) {
	return s.post(ctx, MovementInput{
		ProductID: req.ProductID,
		Type:      MovementDamage,
		Quantity:  -req.Quantity,
		UserID:    userID,
		Reason:    req.Reason,
	})
}

// PostLoss writes off lost goods.
func (s *Service) PostLoss(ctx context.Context, req WriteOffRequest, userID int64) (Movement, error) {
	return s.post(ctx, MovementInput{
		ProductID: req.ProductID,
		Type:      MovementLoss,
		Quantity:  -req.Quantity,
		UserID:    userID,
		Reason:    req.Reason,
	})
}

func (s *Service) post(ctx context.Context, input MovementInput) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = tx.ApplyMovement(ctx, input)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.UserID,
			Action:   fmt.Sprintf("stock:%s", input.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"quantity":   input.Quantity,
				"reason":     input.Reason,
			},
		})
	}
	return movement, nil
}

// ListMovements lists ledger entries for a product.
func (s *Service) ListMovements(ctx context.Context, filter ListFilter) ([]Movement, error) {
	if filter.ProductID == 0 {
		return nil, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	return s.repo.ListMovements(ctx, filter)
}

// ConsistencyReport compares the ledger replay against the cached on-hand quantity.
type ConsistencyReport struct {
	ProductID  int64 `json:"product_id"`
	LedgerSum  int   `json:"ledger_sum"`
	CachedQty  int   `json:"cached_qty"`
	Consistent bool  `json:"consistent"`
}

// CheckConsistency replays the ledger and compares it with the cache.
func (s *Service) CheckConsistency(ctx context.Context, productID int64) (ConsistencyReport, error) {
	sum, err := s.repo.LedgerSum(ctx, productID)
	if err != nil {
		return ConsistencyReport{}, err
	}
	cached, err := s.repo.CachedOnHand(ctx, productID)
	if err != nil {
		return ConsistencyReport{}, err
	}
	return ConsistencyReport{
		ProductID:  productID,
		LedgerSum:  sum,
		CachedQty:  cached,
		Consistent: sum == cached,
	}, nil
}
