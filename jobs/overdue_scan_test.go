package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/comptoir-pos/comptoir/internal/credit"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

type stubCredit struct {
	lastThreshold *int
	lastFilter    credit.SummaryFilter
	rows          []credit.ClientCreditSummary
}

func (s *stubCredit) ClientCreditsSummary(ctx context.Context, filter credit.SummaryFilter) ([]credit.ClientCreditSummary, shared.Pagination, error) {
	s.lastFilter = filter
	return s.rows, shared.NewPagination(1, filter.PerPage, len(s.rows)), nil
}

func (s *stubCredit) OverdueCount(ctx context.Context, threshold *int) (int, error) {
	s.lastThreshold = threshold
	return len(s.rows), nil
}

func TestOverdueScanUsesPayloadThreshold(t *testing.T) {
	stub := &stubCredit{rows: []credit.ClientCreditSummary{
		{ClientID: 1, ClientName: "Hédi Trabelsi", TotalDue: 500, DaysOverdue: 40},
	}}
	job := NewOverdueScanJob(stub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	task, err := NewOverdueScanTask(OverdueScanPayload{ThresholdDays: 45, Limit: 10})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.NotNil(t, stub.lastThreshold)
	require.Equal(t, 45, *stub.lastThreshold)
	require.NotNil(t, stub.lastFilter.MinOverdueDays)
	require.Equal(t, 45, *stub.lastFilter.MinOverdueDays)
	require.Equal(t, 10, stub.lastFilter.PerPage)
}

func TestOverdueScanDefaultsToStoredSetting(t *testing.T) {
	stub := &stubCredit{}
	job := NewOverdueScanJob(stub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	// No override: the credit service resolves the stored threshold.
	require.Nil(t, stub.lastThreshold)
	require.Equal(t, 100, stub.lastFilter.PerPage)
}

func TestOverdueScanBadPayloadSkipsRetry(t *testing.T) {
	job := NewOverdueScanJob(&stubCredit{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := job.Handle(context.Background(), asynq.NewTask(TaskCreditOverdueScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
