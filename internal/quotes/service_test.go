package quotes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comptoir-pos/comptoir/internal/pricing"
	"github.com/comptoir-pos/comptoir/internal/sales"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

type memoryRepo struct {
	products map[int64]ProductSnapshot
	quotes   map[int64]Quote
	seq      int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[int64]ProductSnapshot{}, quotes: map[int64]Quote{}}
}

func (r *memoryRepo) GetProductSnapshots(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error) {
	out := map[int64]ProductSnapshot{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *memoryRepo) Create(ctx context.Context, quote Quote) (Quote, error) {
	r.seq++
	quote.Number = fmt.Sprintf("DEV-%06d", r.seq)
	r.nextID++
	quote.ID = r.nextID
	quote.CreatedAt = time.Now()
	for i := range quote.Items {
		r.nextID++
		quote.Items[i].ID = r.nextID
		quote.Items[i].QuoteID = quote.ID
	}
	r.quotes[quote.ID] = quote
	return quote, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Quote, error) {
	quote, ok := r.quotes[id]
	if !ok {
		return Quote{}, shared.ErrNotFound
	}
	return quote, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	out := []Quote{}
	for _, q := range r.quotes {
		out = append(out, q)
	}
	return out, len(out), nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	quote, ok := r.quotes[id]
	if !ok {
		return shared.ErrNotFound
	}
	quote.Status = status
	r.quotes[id] = quote
	return nil
}

func (r *memoryRepo) ClaimConversion(ctx context.Context, id int64) (Status, error) {
	quote, ok := r.quotes[id]
	if !ok {
		return "", shared.ErrNotFound
	}
	if quote.Status == StatusConverted || quote.ConvertedSaleID != nil {
		return "", fmt.Errorf("%w: quote %s", shared.ErrAlreadyConverted, quote.Number)
	}
	switch quote.Status {
	case StatusDraft, StatusSent, StatusAccepted:
	default:
		return "", fmt.Errorf("%w: quote %s is %s", shared.ErrValidation, quote.Number, quote.Status)
	}
	previous := quote.Status
	quote.Status = StatusConverted
	r.quotes[id] = quote
	return previous, nil
}

func (r *memoryRepo) SetConvertedSale(ctx context.Context, id int64, saleID int64) error {
	quote := r.quotes[id]
	quote.ConvertedSaleID = &saleID
	r.quotes[id] = quote
	return nil
}

func (r *memoryRepo) RevertConversion(ctx context.Context, id int64, previous Status) error {
	quote := r.quotes[id]
	if quote.ConvertedSaleID == nil {
		quote.Status = previous
		r.quotes[id] = quote
	}
	return nil
}

type stubSales struct {
	lastReq sales.CreateSaleRequest
	nextID  int64
	fail    error
}

func (s *stubSales) CreateSale(ctx context.Context, req sales.CreateSaleRequest, userID int64) (sales.Sale, error) {
	if s.fail != nil {
		return sales.Sale{}, s.fail
	}
	s.lastReq = req
	s.nextID++
	return sales.Sale{ID: s.nextID, Number: fmt.Sprintf("TKT-%06d", s.nextID), Type: req.Type, Status: sales.StatusCompleted}, nil
}

func testService(repo *memoryRepo, salesSvc SalesPort) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, salesSvc, nil)
}

func seedQuote(t *testing.T, repo *memoryRepo, svc *Service) Quote {
	t.Helper()
	repo.products[1] = ProductSnapshot{ID: 1, Name: "Sucre 1kg", SalePrice: 25, IsActive: true}
	quote, err := svc.CreateQuote(context.Background(), CreateQuoteRequest{
		Type:  pricing.DocTypeTicket,
		Items: []QuoteLineRequest{{ProductID: 1, Quantity: 4}},
	}, 7)
	require.NoError(t, err)
	return quote
}

func TestCreateQuoteFreezesPrices(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, &stubSales{})
	quote := seedQuote(t, repo, svc)

	require.Equal(t, "DEV-000001", quote.Number)
	require.Equal(t, StatusDraft, quote.Status)
	require.Equal(t, 100.0, quote.Total)
	require.Equal(t, 25.0, quote.Items[0].UnitPrice)
}

func TestConvertProducesSaleOnce(t *testing.T) {
	repo := newMemoryRepo()
	salesSvc := &stubSales{}
	svc := testService(repo, salesSvc)
	quote := seedQuote(t, repo, svc)
	ctx := context.Background()

	converted, sale, err := svc.ConvertToSale(ctx, quote.ID, ConvertQuoteRequest{
		PaymentMethod: sales.PaymentCash,
		CashAmount:    100,
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, converted.Status)
	require.Equal(t, sale.ID, *converted.ConvertedSaleID)
	// The sale request carries the frozen quote price, not the live one.
	require.Equal(t, 25.0, *salesSvc.lastReq.Items[0].UnitPrice)

	_, _, err = svc.ConvertToSale(ctx, quote.ID, ConvertQuoteRequest{
		PaymentMethod: sales.PaymentCash,
		CashAmount:    100,
	}, 7)
	require.ErrorIs(t, err, shared.ErrAlreadyConverted)
}

func TestFailedConversionReleasesClaim(t *testing.T) {
	repo := newMemoryRepo()
	salesSvc := &stubSales{fail: fmt.Errorf("%w: Sucre 1kg", shared.ErrInsufficientStock)}
	svc := testService(repo, salesSvc)
	quote := seedQuote(t, repo, svc)
	ctx := context.Background()

	_, _, err := svc.ConvertToSale(ctx, quote.ID, ConvertQuoteRequest{
		PaymentMethod: sales.PaymentCash,
		CashAmount:    100,
	}, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// Claim released: a retry with stock available succeeds.
	salesSvc.fail = nil
	converted, _, err := svc.ConvertToSale(ctx, quote.ID, ConvertQuoteRequest{
		PaymentMethod: sales.PaymentCash,
		CashAmount:    100,
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, converted.Status)
}

func TestExpiredQuoteCannotConvert(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, &stubSales{})
	repo.products[1] = ProductSnapshot{ID: 1, Name: "Sucre 1kg", SalePrice: 25, IsActive: true}
	past := time.Now().AddDate(0, 0, -1)
	quote, err := svc.CreateQuote(context.Background(), CreateQuoteRequest{
		Type:       pricing.DocTypeTicket,
		Items:      []QuoteLineRequest{{ProductID: 1, Quantity: 1}},
		ValidUntil: &past,
	}, 7)
	require.NoError(t, err)

	_, _, err = svc.ConvertToSale(context.Background(), quote.ID, ConvertQuoteRequest{
		PaymentMethod: sales.PaymentCash,
	}, 7)
	require.ErrorIs(t, err, shared.ErrValidation)
	after, err := svc.GetQuote(context.Background(), quote.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, after.Status)
}

func TestStatusTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo, &stubSales{})
	quote := seedQuote(t, repo, svc)
	ctx := context.Background()

	sent, err := svc.UpdateStatus(ctx, quote.ID, StatusSent)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)

	accepted, err := svc.UpdateStatus(ctx, quote.ID, StatusAccepted)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, accepted.Status)

	_, err = svc.UpdateStatus(ctx, quote.ID, StatusSent)
	require.ErrorIs(t, err, shared.ErrValidation)
}
