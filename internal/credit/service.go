package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/comptoir-pos/comptoir/internal/sales"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPayments(ctx context.Context, saleID int64) ([]Payment, error)
	Summaries(ctx context.Context, filter SummaryFilter) ([]ClientCreditSummary, int, error)
	OverdueCount(ctx context.Context, thresholdDays int) (int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SettingsPort reads stored application settings.
type SettingsPort interface {
	GetInt(ctx context.Context, key string, fallback int) (int, error)
}

// Service tracks payments and reports outstanding client credit.
type Service struct {
	logger           *slog.Logger
	repo             RepositoryPort
	audit            AuditPort
	settings         SettingsPort
	cache            *SummaryCache
	group            singleflight.Group
	defaultThreshold int
	now              func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, settings SettingsPort, cache *SummaryCache, defaultThreshold int) *Service {
	return &Service{
		logger:           logger,
		repo:             repo,
		audit:            audit,
		settings:         settings,
		cache:            cache,
		defaultThreshold: defaultThreshold,
		now:              time.Now,
	}
}

// RecordPayment settles part of a sale's balance. Over-payment is rejected,
// never clamped: the caller must split change handling at the counter. The
// sale's amount paid only ever increases.
func (s *Service) RecordPayment(ctx context.Context, saleID int64, req RecordPaymentRequest, userID int64) (Payment, error) {
	if req.Amount <= 0 {
		return Payment{}, fmt.Errorf("%w: amount must be > 0", shared.ErrValidation)
	}

	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleBalanceForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == sales.StatusCancelled {
			return fmt.Errorf("%w: sale %s", shared.ErrAlreadyCancelled, sale.Number)
		}
		remaining := sale.Total - sale.AmountPaid
		if req.Amount > remaining {
			return fmt.Errorf("%w: sale %s (remaining %.3f, offered %.3f)",
				shared.ErrOverpayment, sale.Number, remaining, req.Amount)
		}
		payment, err = tx.InsertPayment(ctx, Payment{
			SaleID:    saleID,
			Amount:    req.Amount,
			Method:    req.Method,
			CreatedBy: userID,
		})
		if err != nil {
			return err
		}
		return tx.AddAmountPaid(ctx, saleID, req.Amount)
	})
	if err != nil {
		return Payment{}, err
	}

	s.cache.Invalidate(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "credit:payment",
			Entity:   "sale_payment",
			EntityID: fmt.Sprintf("%d", payment.ID),
			Meta:     map[string]any{"sale_id": saleID, "amount": req.Amount, "method": req.Method},
		})
	}
	s.logger.Info("payment recorded",
		slog.Int64("sale_id", saleID),
		slog.Float64("amount", req.Amount))
	return payment, nil
}

// ListPayments returns the payments recorded against a sale.
func (s *Service) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, saleID)
}

// ClientCreditsSummary returns the per-client outstanding balance report,
// heaviest debtors first. Pages are served from Redis when fresh; concurrent
// misses for the same filter collapse into one database query.
func (s *Service) ClientCreditsSummary(ctx context.Context, filter SummaryFilter) ([]ClientCreditSummary, shared.Pagination, error) {
	if page, ok := s.cache.get(ctx, filter); ok {
		return page.Data, page.Pagination, nil
	}

	raw, _ := json.Marshal(filter)
	result, err, _ := s.group.Do(string(raw), func() (any, error) {
		rows, total, err := s.repo.Summaries(ctx, filter)
		if err != nil {
			return nil, err
		}
		now := s.now()
		for i := range rows {
			rows[i].DaysOverdue = daysSince(now, rows[i].OldestRef)
		}
		page := summaryPage{Data: rows, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}
		s.cache.set(ctx, filter, page)
		return page, nil
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page := result.(summaryPage)
	return page.Data, page.Pagination, nil
}

// OverdueCount counts unpaid sales overdue by at least the given threshold.
// A nil threshold falls back to the stored setting.
func (s *Service) OverdueCount(ctx context.Context, threshold *int) (int, error) {
	days := s.defaultThreshold
	if threshold != nil {
		if *threshold < 0 {
			return 0, fmt.Errorf("%w: threshold must be >= 0", shared.ErrValidation)
		}
		days = *threshold
	} else if s.settings != nil {
		stored, err := s.settings.GetInt(ctx, shared.SettingOverdueThresholdDays, s.defaultThreshold)
		if err != nil {
			return 0, err
		}
		days = stored
	}
	return s.repo.OverdueCount(ctx, days)
}

func daysSince(now, ref time.Time) int {
	if ref.IsZero() || ref.After(now) {
		return 0
	}
	return int(now.Sub(ref).Hours() / 24)
}
