package sales

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comptoir-pos/comptoir/internal/pricing"
	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

// memoryRepo mimics the transactional repository: WithTx works on a deep copy
// and publishes it only on success, so a failed operation leaves no trace.
type memoryRepo struct {
	state memoryState
}

type memoryState struct {
	products  map[int64]ProductRef
	sales     map[int64]Sale
	refunds   []Refund
	movements []stock.Movement
	sequences map[string]int64
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memoryState{
		products:  map[int64]ProductRef{},
		sales:     map[int64]Sale{},
		sequences: map[string]int64{},
	}}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		products:  make(map[int64]ProductRef, len(s.products)),
		sales:     make(map[int64]Sale, len(s.sales)),
		refunds:   append([]Refund(nil), s.refunds...),
		movements: append([]stock.Movement(nil), s.movements...),
		sequences: make(map[string]int64, len(s.sequences)),
		nextID:    s.nextID,
	}
	for id, p := range s.products {
		out.products[id] = p
	}
	for id, sale := range s.sales {
		sale.Items = append([]SaleItem(nil), sale.Items...)
		out.sales[id] = sale
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	return out
}

func (r *memoryRepo) seed(p ProductRef) {
	r.state.products[p.ID] = p
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{state: r.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Sale, error) {
	sale, ok := r.state.sales[id]
	if !ok {
		return Sale{}, shared.ErrNotFound
	}
	return sale, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	out := []Sale{}
	for _, sale := range r.state.sales {
		out = append(out, sale)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListRefunds(ctx context.Context, saleID int64) ([]Refund, error) {
	out := []Refund{}
	for _, rf := range r.state.refunds {
		if rf.SaleID == saleID {
			out = append(out, rf)
		}
	}
	return out, nil
}

type memoryTx struct {
	state memoryState
}

func (tx *memoryTx) LockProducts(ctx context.Context, ids []int64) (map[int64]ProductRef, error) {
	out := make(map[int64]ProductRef, len(ids))
	for _, id := range ids {
		p, ok := tx.state.products[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		out[id] = p
	}
	return out, nil
}

func (tx *memoryTx) NextDocNumber(ctx context.Context, prefix string) (string, error) {
	tx.state.sequences[prefix]++
	return fmt.Sprintf("%s-%06d", prefix, tx.state.sequences[prefix]), nil
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	tx.state.nextID++
	sale.ID = tx.state.nextID
	sale.CreatedAt = time.Now()
	sale.UpdatedAt = sale.CreatedAt
	tx.state.sales[sale.ID] = sale
	return sale, nil
}

func (tx *memoryTx) InsertSaleItem(ctx context.Context, item SaleItem) (SaleItem, error) {
	tx.state.nextID++
	item.ID = tx.state.nextID
	sale := tx.state.sales[item.SaleID]
	sale.Items = append(sale.Items, item)
	tx.state.sales[item.SaleID] = sale
	return item, nil
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	sale, ok := tx.state.sales[id]
	if !ok {
		return Sale{}, shared.ErrNotFound
	}
	sale.Items = append([]SaleItem(nil), sale.Items...)
	return sale, nil
}

func (tx *memoryTx) UpdateSaleStatus(ctx context.Context, id int64, status Status) error {
	sale, ok := tx.state.sales[id]
	if !ok {
		return shared.ErrNotFound
	}
	sale.Status = status
	tx.state.sales[id] = sale
	return nil
}

func (tx *memoryTx) AddRefundedQty(ctx context.Context, saleItemID int64, qty int) error {
	for saleID, sale := range tx.state.sales {
		for i := range sale.Items {
			if sale.Items[i].ID == saleItemID {
				sale.Items[i].RefundedQty += qty
				tx.state.sales[saleID] = sale
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (tx *memoryTx) InsertRefund(ctx context.Context, refund Refund) (Refund, error) {
	tx.state.nextID++
	refund.ID = tx.state.nextID
	refund.CreatedAt = time.Now()
	tx.state.refunds = append(tx.state.refunds, refund)
	return refund, nil
}

func (tx *memoryTx) InsertRefundItem(ctx context.Context, item RefundItem) (RefundItem, error) {
	tx.state.nextID++
	item.ID = tx.state.nextID
	for i := range tx.state.refunds {
		if tx.state.refunds[i].ID == item.RefundID {
			tx.state.refunds[i].Items = append(tx.state.refunds[i].Items, item)
		}
	}
	return item, nil
}

func (tx *memoryTx) ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error) {
	p, ok := tx.state.products[input.ProductID]
	if !ok {
		return stock.Movement{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, input.ProductID)
	}
	after := p.StockOnHand + input.Quantity
	if after < 0 {
		return stock.Movement{}, fmt.Errorf("%w: %s", shared.ErrInsufficientStock, p.Name)
	}
	tx.state.nextID++
	movement := stock.Movement{
		ID: tx.state.nextID, ProductID: input.ProductID, Type: input.Type,
		Quantity: input.Quantity, UnitPrice: input.UnitPrice,
		UserID: input.UserID, Reason: input.Reason,
		StockBefore: p.StockOnHand, StockAfter: after, CreatedAt: time.Now(),
	}
	p.StockOnHand = after
	tx.state.products[input.ProductID] = p
	tx.state.movements = append(tx.state.movements, movement)
	return movement, nil
}

func testService(repo *memoryRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, nil, "TND")
}

func TestCheckoutDecrementsStockAtomically(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(ProductRef{ID: 1, Name: "Sucre 1kg", SalePrice: 25, PurchasePrice: 10, StockOnHand: 10, IsActive: true})
	svc := testService(repo)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Type:          pricing.DocTypeTicket,
		Items:         []SaleLineRequest{{ProductID: 1, Quantity: 4}},
		PaymentMethod: PaymentCash,
		CashAmount:    100,
	}, 7)
	require.NoError(t, err)
	require.Equal(t, "TKT-000001", sale.Number)
	require.Equal(t, StatusCompleted, sale.Status)
	require.Equal(t, 100.0, sale.Total)
	require.Equal(t, 0.0, sale.Tax)
	require.Equal(t, 60.0, sale.Margin)
	require.Equal(t, "TND", sale.CurrencyCode)
	require.Equal(t, 6, repo.state.products[1].StockOnHand)
	require.Len(t, repo.state.movements, 1)
	require.Equal(t, stock.MovementSale, repo.state.movements[0].Type)
	require.Equal(t, -4, repo.state.movements[0].Quantity)
}

func TestInvoiceCarriesTax(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(ProductRef{ID: 1, Name: "Huile 1L", SalePrice: 25, PurchasePrice: 18, StockOnHand: 50, IsActive: true})
	svc := testService(repo)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Type:          pricing.DocTypeInvoice,
		Items:         []SaleLineRequest{{ProductID: 1, Quantity: 3}},
		PaymentMethod: PaymentCard,
		CardAmount:    90,
	}, 7)
	require.NoError(t, err)
	require.Equal(t, "INV-000001", sale.Number)
	require.InDelta(t, 15.0, sale.Tax, 1e-9)
	require.InDelta(t, 90.0, sale.Total, 1e-9)
}

func TestInsufficientStockRejectsWholeCheckout(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(ProductRef{ID: 1, Name: "Farine", SalePrice: 5, PurchasePrice: 3, StockOnHand: 100, IsActive: true})
	repo.seed(ProductRef{ID: 2, Name: "Levure", SalePrice: 2, PurchasePrice: 1, StockOnHand: 1, IsActive: true})
	svc := testService(repo)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Type: pricing.DocTypeTicket,
		Items: []SaleLineRequest{
			{ProductID: 1, Quantity: 10},
			{ProductID: 2, Quantity: 5},
		},
		PaymentMethod: PaymentCash,
		CashAmount:    100,
	}, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	// Nothing committed: first line's stock untouched, no sale, no movement.
	require.Equal(t, 100, repo.state.products[1].StockOnHand)
	require.Empty(t, repo.state.sales)
	require.Empty(t, repo.state.movements)
}

func TestCashOverpaymentRecordsTotalOnly(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(ProductRef{ID: 1, Name: "Sucre 1kg", SalePrice: 25, PurchasePrice: 10, StockOnHand: 10, IsActive: true})
	svc := testService(repo)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Type:          pricing.DocTypeTicket,
		Items:         []SaleLineRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: PaymentCash,
		CashAmount:    50,
	}, 7)
	require.NoError(t, err)
	require.Equal(t, 25.0, sale.Total)
	require.Equal(t, 25.0, sale.AmountPaid)
	require.Equal(t, 50.0, sale.CashAmount)
}

func TestCreditSaleRequiresClient(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(ProductRef{ID: 1, Name: "Sucre 1kg", SalePrice: 25, PurchasePrice: 10, StockOnHand: 10, IsActive: true})
	svc := testService(repo)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Type:          pricing.DocTypeTicket,
		Items:         []SaleLineRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: PaymentCredit,
	}, 7)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestInactiveProductRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(ProductRef{ID: 1, Name: "Ancien produit", SalePrice: 25, PurchasePrice: 10, StockOnHand: 10, IsActive: false})
	svc := testService(repo)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		Type:          pricing.DocTypeTicket,
		Items:         []SaleLineRequest{{ProductID: 1, Quantity: 1}},
		PaymentMethod: PaymentCash,
		CashAmount:    25,
	}, 7)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCancelRestoresStockOnce(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(ProductRef{ID: 1, Name: "Sucre 1kg", SalePrice: 25, PurchasePrice: 10, StockOnHand: 10, IsActive: true})
	svc := testService(repo)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Type:          pricing.DocTypeTicket,
		Items:         []SaleLineRequest{{ProductID: 1, Quantity: 4}},
		PaymentMethod: PaymentCash,
		CashAmount:    100,
	}, 7)
	require.NoError(t, err)
	require.Equal(t, 6, repo.state.products[1].StockOnHand)

	cancelled, err := svc.CancelSale(ctx, sale.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, 10, repo.state.products[1].StockOnHand)

	last := repo.state.movements[len(repo.state.movements)-1]
	require.Equal(t, stock.MovementAdjustment, last.Type)
	require.Equal(t, "Annulation de vente", last.Reason)

	_, err = svc.CancelSale(ctx, sale.ID, 7)
	require.ErrorIs(t, err, shared.ErrAlreadyCancelled)
	require.Equal(t, 10, repo.state.products[1].StockOnHand)
}
