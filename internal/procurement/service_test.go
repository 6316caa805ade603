package procurement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

type memoryRepo struct {
	suppliers map[int64]Supplier
	products  map[int64]string
	stock     map[int64]int
	purchases map[int64]Purchase
	movements []stock.Movement
	sequences map[string]int64
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		suppliers: map[int64]Supplier{},
		products:  map[int64]string{},
		stock:     map[int64]int{},
		purchases: map[int64]Purchase{},
		sequences: map[string]int64{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Purchase, error) {
	p, ok := r.purchases[id]
	if !ok {
		return Purchase{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListPurchasesRequest) ([]Purchase, int, error) {
	out := []Purchase{}
	for _, p := range r.purchases {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) CreateSupplier(ctx context.Context, s Supplier) (int64, error) {
	r.nextID++
	s.ID = r.nextID
	r.suppliers[s.ID] = s
	return s.ID, nil
}

func (r *memoryRepo) UpdateSupplier(ctx context.Context, id int64, updates map[string]any) error {
	if _, ok := r.suppliers[id]; !ok {
		return shared.ErrNotFound
	}
	return nil
}

func (r *memoryRepo) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	out := []Supplier{}
	for _, s := range r.suppliers {
		out = append(out, s)
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) SupplierExists(ctx context.Context, id int64) (bool, error) {
	s, ok := tx.repo.suppliers[id]
	return ok && s.IsActive, nil
}

func (tx *memoryTx) GetProductNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		if name, ok := tx.repo.products[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (tx *memoryTx) NextDocNumber(ctx context.Context, prefix string) (string, error) {
	tx.repo.sequences[prefix]++
	return fmt.Sprintf("%s-%06d", prefix, tx.repo.sequences[prefix]), nil
}

func (tx *memoryTx) InsertPurchase(ctx context.Context, p Purchase) (Purchase, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	tx.repo.purchases[p.ID] = p
	return p, nil
}

func (tx *memoryTx) InsertPurchaseItem(ctx context.Context, item PurchaseItem) (PurchaseItem, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	p := tx.repo.purchases[item.PurchaseID]
	p.Items = append(p.Items, item)
	tx.repo.purchases[item.PurchaseID] = p
	return item, nil
}

func (tx *memoryTx) GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error) {
	p, ok := tx.repo.purchases[id]
	if !ok {
		return Purchase{}, shared.ErrNotFound
	}
	p.Items = append([]PurchaseItem(nil), p.Items...)
	return p, nil
}

func (tx *memoryTx) SetReceivedQty(ctx context.Context, itemID int64, qty int) error {
	for id, p := range tx.repo.purchases {
		for i := range p.Items {
			if p.Items[i].ID == itemID {
				p.Items[i].ReceivedQty = qty
				tx.repo.purchases[id] = p
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (tx *memoryTx) UpdatePurchaseStatus(ctx context.Context, id int64, status PurchaseStatus) error {
	p, ok := tx.repo.purchases[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	tx.repo.purchases[id] = p
	return nil
}

func (tx *memoryTx) ApplyMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error) {
	if _, ok := tx.repo.products[input.ProductID]; !ok {
		return stock.Movement{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, input.ProductID)
	}
	before := tx.repo.stock[input.ProductID]
	after := before + input.Quantity
	if after < 0 {
		return stock.Movement{}, shared.ErrInsufficientStock
	}
	tx.repo.stock[input.ProductID] = after
	tx.repo.nextID++
	movement := stock.Movement{
		ID: tx.repo.nextID, ProductID: input.ProductID, Type: input.Type,
		Quantity: input.Quantity, UnitPrice: input.UnitPrice,
		StockBefore: before, StockAfter: after, CreatedAt: time.Now(),
	}
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement, nil
}

func testService(repo *memoryRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, nil)
}

func seedOrder(t *testing.T, repo *memoryRepo, svc *Service, qty int) Purchase {
	t.Helper()
	repo.suppliers[1] = Supplier{ID: 1, Name: "Grossiste Sud", IsActive: true}
	repo.products[10] = "Sucre 1kg"
	purchase, err := svc.CreatePurchase(context.Background(), CreatePurchaseRequest{
		SupplierID: 1,
		Items:      []PurchaseLineRequest{{ProductID: 10, Quantity: qty, UnitPrice: 8}},
	}, 7)
	require.NoError(t, err)
	return purchase
}

func TestCreatePurchaseComputesTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	purchase := seedOrder(t, repo, svc, 10)

	require.Equal(t, "ACH-000001", purchase.Number)
	require.Equal(t, StatusPending, purchase.Status)
	require.Equal(t, 80.0, purchase.Total)
	require.Empty(t, repo.movements)
}

func TestCreatePurchaseUnknownSupplier(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[10] = "Sucre 1kg"
	svc := testService(repo)

	_, err := svc.CreatePurchase(context.Background(), CreatePurchaseRequest{
		SupplierID: 99,
		Items:      []PurchaseLineRequest{{ProductID: 10, Quantity: 1, UnitPrice: 8}},
	}, 7)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReceiveFullDelivery(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	purchase := seedOrder(t, repo, svc, 10)

	received, err := svc.ReceivePurchase(context.Background(), purchase.ID, ReceivePurchaseRequest{
		Items: []ReceiveLineRequest{{PurchaseItemID: purchase.Items[0].ID, ReceivedQty: 10}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, received.Status)
	require.Equal(t, 10, repo.stock[10])
	require.Len(t, repo.movements, 1)
	require.Equal(t, stock.MovementEntry, repo.movements[0].Type)
	require.Equal(t, 8.0, repo.movements[0].UnitPrice)
}

func TestPartialThenFullReceiveMovesDeltaOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	purchase := seedOrder(t, repo, svc, 10)
	ctx := context.Background()
	itemID := purchase.Items[0].ID

	partial, err := svc.ReceivePurchase(ctx, purchase.ID, ReceivePurchaseRequest{
		Items: []ReceiveLineRequest{{PurchaseItemID: itemID, ReceivedQty: 3}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, partial.Status)
	require.Equal(t, 3, repo.stock[10])

	full, err := svc.ReceivePurchase(ctx, purchase.ID, ReceivePurchaseRequest{
		Items: []ReceiveLineRequest{{PurchaseItemID: itemID, ReceivedQty: 10}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, full.Status)
	require.Equal(t, 10, repo.stock[10])
	// Second receipt moved only the 7 missing units.
	require.Equal(t, 7, repo.movements[len(repo.movements)-1].Quantity)
}

func TestDownwardCorrectionMovesNoStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	purchase := seedOrder(t, repo, svc, 10)
	ctx := context.Background()
	itemID := purchase.Items[0].ID

	_, err := svc.ReceivePurchase(ctx, purchase.ID, ReceivePurchaseRequest{
		Items: []ReceiveLineRequest{{PurchaseItemID: itemID, ReceivedQty: 5}},
	}, 7)
	require.NoError(t, err)
	movementsBefore := len(repo.movements)

	corrected, err := svc.ReceivePurchase(ctx, purchase.ID, ReceivePurchaseRequest{
		Items: []ReceiveLineRequest{{PurchaseItemID: itemID, ReceivedQty: 3}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, corrected.Status)
	require.Equal(t, 3, corrected.Items[0].ReceivedQty)
	// The recorded figure changed; the shelf did not.
	require.Equal(t, 5, repo.stock[10])
	require.Len(t, repo.movements, movementsBefore)
}

func TestReceiveBeyondOrderedRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	purchase := seedOrder(t, repo, svc, 10)

	_, err := svc.ReceivePurchase(context.Background(), purchase.ID, ReceivePurchaseRequest{
		Items: []ReceiveLineRequest{{PurchaseItemID: purchase.Items[0].ID, ReceivedQty: 11}},
	}, 7)
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	require.Equal(t, 0, repo.stock[10])
}

func TestReceiveCancelledRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	purchase := seedOrder(t, repo, svc, 10)
	ctx := context.Background()

	_, err := svc.CancelPurchase(ctx, purchase.ID, 7)
	require.NoError(t, err)

	_, err = svc.ReceivePurchase(ctx, purchase.ID, ReceivePurchaseRequest{
		Items: []ReceiveLineRequest{{PurchaseItemID: purchase.Items[0].ID, ReceivedQty: 1}},
	}, 7)
	require.ErrorIs(t, err, shared.ErrCancelled)
}

func TestCancelOnlyPendingOrders(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	purchase := seedOrder(t, repo, svc, 10)
	ctx := context.Background()

	_, err := svc.ReceivePurchase(ctx, purchase.ID, ReceivePurchaseRequest{
		Items: []ReceiveLineRequest{{PurchaseItemID: purchase.Items[0].ID, ReceivedQty: 2}},
	}, 7)
	require.NoError(t, err)

	_, err = svc.CancelPurchase(ctx, purchase.ID, 7)
	require.ErrorIs(t, err, shared.ErrValidation)
}
