package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/comptoir-pos/comptoir/internal/pricing"
	"github.com/comptoir-pos/comptoir/internal/sales"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	GetProductSnapshots(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error)
	Create(ctx context.Context, quote Quote) (Quote, error)
	Get(ctx context.Context, id int64) (Quote, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ClaimConversion(ctx context.Context, id int64) (Status, error)
	SetConvertedSale(ctx context.Context, id int64, saleID int64) error
	RevertConversion(ctx context.Context, id int64, previous Status) error
}

// SalesPort is the slice of the sales service conversion needs.
type SalesPort interface {
	CreateSale(ctx context.Context, req sales.CreateSaleRequest, userID int64) (sales.Sale, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates quotes and their conversion into sales.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	sales  SalesPort
	audit  AuditPort
	now    func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, salesSvc SalesPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, sales: salesSvc, audit: audit, now: time.Now}
}

// CreateQuote registers a quote. Prices are frozen at quote time; stock is
// neither checked nor reserved until conversion.
func (s *Service) CreateQuote(ctx context.Context, req CreateQuoteRequest, userID int64) (Quote, error) {
	if len(req.Items) == 0 {
		return Quote{}, fmt.Errorf("%w: at least one item required", shared.ErrValidation)
	}

	ids := make([]int64, 0, len(req.Items))
	for _, line := range req.Items {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductSnapshots(ctx, ids)
	if err != nil {
		return Quote{}, err
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	for _, line := range req.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return Quote{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, line.ProductID)
		}
		if !product.IsActive {
			return Quote{}, fmt.Errorf("%w: product %q is inactive", shared.ErrValidation, product.Name)
		}
		unitPrice := product.SalePrice
		if line.UnitPrice != nil {
			unitPrice = *line.UnitPrice
		}
		lines = append(lines, pricing.Line{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			Discount:  line.Discount,
		})
	}
	totals, err := pricing.Calculate(req.Type, lines, req.Discount)
	if err != nil {
		return Quote{}, err
	}

	quote := Quote{
		Type:       req.Type,
		Status:     StatusDraft,
		ClientID:   req.ClientID,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		Tax:        totals.Tax,
		Total:      totals.Total,
		ValidUntil: req.ValidUntil,
		Notes:      req.Notes,
		CreatedBy:  userID,
	}
	for _, line := range totals.Lines {
		quote.Items = append(quote.Items, QuoteItem{
			ProductID:   line.ProductID,
			ProductName: products[line.ProductID].Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
			TotalPrice:  line.Total,
		})
	}
	quote, err = s.repo.Create(ctx, quote)
	if err != nil {
		return Quote{}, err
	}
	s.logger.Info("quote created", slog.String("number", quote.Number), slog.Float64("total", quote.Total))
	return quote, nil
}

// transitions lists the manual status moves. CONVERTED is never set manually.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusSent, StatusRefused, StatusExpired},
	StatusSent:     {StatusAccepted, StatusRefused, StatusExpired},
	StatusAccepted: {StatusRefused, StatusExpired},
}

// UpdateStatus applies a manual lifecycle move.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	allowed := false
	for _, next := range transitions[quote.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		if quote.Status == StatusConverted {
			return Quote{}, fmt.Errorf("%w: quote %s", shared.ErrAlreadyConverted, quote.Number)
		}
		return Quote{}, fmt.Errorf("%w: cannot move quote %s from %s to %s", shared.ErrValidation, quote.Number, quote.Status, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return Quote{}, err
	}
	quote.Status = status
	return quote, nil
}

// ConvertToSale turns an open quote into a real sale exactly once. The claim
// is a guarded UPDATE, so a concurrent conversion loses cleanly; the checkout
// itself goes through the sales service and its stock checks. A failed
// checkout releases the claim.
func (s *Service) ConvertToSale(ctx context.Context, id int64, req ConvertQuoteRequest, userID int64) (Quote, sales.Sale, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, sales.Sale{}, err
	}
	if quote.ValidUntil != nil && quote.ValidUntil.Before(s.now()) && quote.Status != StatusConverted {
		_ = s.repo.UpdateStatus(ctx, id, StatusExpired)
		return Quote{}, sales.Sale{}, fmt.Errorf("%w: quote %s expired on %s",
			shared.ErrValidation, quote.Number, quote.ValidUntil.Format("2006-01-02"))
	}

	previous, err := s.repo.ClaimConversion(ctx, id)
	if err != nil {
		return Quote{}, sales.Sale{}, err
	}

	saleReq := sales.CreateSaleRequest{
		Type:          quote.Type,
		ClientID:      quote.ClientID,
		Discount:      quote.Discount,
		PaymentMethod: req.PaymentMethod,
		CashAmount:    req.CashAmount,
		CardAmount:    req.CardAmount,
		DueDate:       req.DueDate,
	}
	for _, item := range quote.Items {
		unitPrice := item.UnitPrice
		saleReq.Items = append(saleReq.Items, sales.SaleLineRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: &unitPrice,
			Discount:  item.Discount,
		})
	}
	sale, err := s.sales.CreateSale(ctx, saleReq, userID)
	if err != nil {
		if revertErr := s.repo.RevertConversion(ctx, id, previous); revertErr != nil {
			s.logger.Error("revert quote conversion", slog.Any("error", revertErr), slog.Int64("quote_id", id))
		}
		return Quote{}, sales.Sale{}, err
	}
	if err := s.repo.SetConvertedSale(ctx, id, sale.ID); err != nil {
		return Quote{}, sales.Sale{}, err
	}

	quote.Status = StatusConverted
	quote.ConvertedSaleID = &sale.ID
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "quotes:convert",
			Entity:   "quote",
			EntityID: fmt.Sprintf("%d", quote.ID),
			Meta:     map[string]any{"number": quote.Number, "sale_id": sale.ID, "sale_number": sale.Number},
		})
	}
	s.logger.Info("quote converted",
		slog.String("quote_number", quote.Number),
		slog.String("sale_number", sale.Number))
	return quote, sale, nil
}

// GetQuote loads one quote with items.
func (s *Service) GetQuote(ctx context.Context, id int64) (Quote, error) {
	return s.repo.Get(ctx, id)
}

// ListQuotes returns a filtered page of quotes.
func (s *Service) ListQuotes(ctx context.Context, req ListQuotesRequest) ([]Quote, shared.Pagination, error) {
	out, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(req.Page, req.PerPage, total), nil
}
