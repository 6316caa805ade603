package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/comptoir-pos/comptoir/internal/credit"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

// CreditPort is the slice of the credit service the scan needs.
type CreditPort interface {
	ClientCreditsSummary(ctx context.Context, filter credit.SummaryFilter) ([]credit.ClientCreditSummary, shared.Pagination, error)
	OverdueCount(ctx context.Context, threshold *int) (int, error)
}

// OverdueScanJob logs clients whose credit has been outstanding beyond the
// threshold, giving the morning shift a collection list.
type OverdueScanJob struct {
	Credit CreditPort
	Logger *slog.Logger
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(creditSvc CreditPort, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{Credit: creditSvc, Logger: logger}
}

// Handle executes the scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Credit == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 100
	}

	logger := j.logger()
	start := time.Now()

	var threshold *int
	if payload.ThresholdDays > 0 {
		threshold = &payload.ThresholdDays
	}
	count, err := j.Credit.OverdueCount(ctx, threshold)
	if err != nil {
		logger.Error("overdue count failed", slog.Any("error", err))
		return err
	}

	filter := credit.SummaryFilter{PerPage: payload.Limit}
	if threshold != nil {
		filter.MinOverdueDays = threshold
	}
	rows, _, err := j.Credit.ClientCreditsSummary(ctx, filter)
	if err != nil {
		logger.Error("summary failed", slog.Any("error", err))
		return err
	}

	for _, row := range rows {
		logger.Warn("client credit overdue",
			slog.Int64("client_id", row.ClientID),
			slog.String("client_name", row.ClientName),
			slog.Float64("total_due", row.TotalDue),
			slog.Int("unpaid_count", row.UnpaidCount),
			slog.Int("days_overdue", row.DaysOverdue),
		)
	}

	logger.Info("completed overdue scan",
		slog.Int("overdue_sales", count),
		slog.Int("clients_flagged", len(rows)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCreditOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskCreditOverdueScan))
}
