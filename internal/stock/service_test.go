package stock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

type memoryRepo struct {
	onHand    map[int64]int
	names     map[int64]string
	movements []Movement
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{onHand: map[int64]int{}, names: map[int64]string{}}
}

func (r *memoryRepo) seed(productID int64, name string, qty int) {
	r.onHand[productID] = qty
	r.names[productID] = name
	if qty != 0 {
		r.nextID++
		r.movements = append(r.movements, Movement{
			ID: r.nextID, ProductID: productID, Type: MovementEntry, Quantity: qty,
			StockBefore: 0, StockAfter: qty, CreatedAt: time.Now(),
		})
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter ListFilter) ([]Movement, error) {
	out := []Movement{}
	for _, m := range r.movements {
		if m.ProductID == filter.ProductID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) LedgerSum(ctx context.Context, productID int64) (int, error) {
	sum := 0
	for _, m := range r.movements {
		if m.ProductID == productID {
			sum += m.Quantity
		}
	}
	return sum, nil
}

func (r *memoryRepo) CachedOnHand(ctx context.Context, productID int64) (int, error) {
	return r.onHand[productID], nil
}

func (tx *memoryTx) ApplyMovement(ctx context.Context, input MovementInput) (Movement, error) {
	name, ok := tx.repo.names[input.ProductID]
	if !ok {
		return Movement{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, input.ProductID)
	}
	current := tx.repo.onHand[input.ProductID]
	after := current + input.Quantity
	if after < 0 {
		return Movement{}, fmt.Errorf("%w: %s", shared.ErrInsufficientStock, name)
	}
	tx.repo.onHand[input.ProductID] = after
	tx.repo.nextID++
	movement := Movement{
		ID: tx.repo.nextID, ProductID: input.ProductID, Type: input.Type,
		Quantity: input.Quantity, UnitPrice: input.UnitPrice,
		TotalValue: input.UnitPrice * float64(input.Quantity),
		UserID:     input.UserID, Reason: input.Reason,
		StockBefore: current, StockAfter: after, CreatedAt: time.Now(),
	}
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement, nil
}

func TestAdjustmentUpdatesCacheAndLedger(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, "Sucre 1kg", 10)
	svc := NewService(repo, nil)
	ctx := context.Background()

	movement, err := svc.PostAdjustment(ctx, AdjustmentRequest{ProductID: 1, Quantity: -3, Reason: "Inventaire"}, 7)
	require.NoError(t, err)
	require.Equal(t, 10, movement.StockBefore)
	require.Equal(t, 7, movement.StockAfter)

	report, err := svc.CheckConsistency(ctx, 1)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.Equal(t, 7, report.CachedQty)
}

func TestWriteOffsAreNegative(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, "Huile 1L", 5)
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.PostDamage(ctx, WriteOffRequest{ProductID: 1, Quantity: 2, Reason: "Casse"}, 7)
	require.NoError(t, err)
	_, err = svc.PostLoss(ctx, WriteOffRequest{ProductID: 1, Quantity: 1, Reason: "Perte"}, 7)
	require.NoError(t, err)

	sum, err := repo.LedgerSum(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, sum)
	require.Equal(t, 2, repo.onHand[1])
}

func TestNegativeStockRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, "Farine", 1)
	svc := NewService(repo, nil)

	_, err := svc.PostDamage(context.Background(), WriteOffRequest{ProductID: 1, Quantity: 5, Reason: "Casse"}, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	// Failed write-off leaves the cache untouched.
	require.Equal(t, 1, repo.onHand[1])
}

func TestZeroQuantityRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, "Farine", 1)
	svc := NewService(repo, nil)

	_, err := svc.PostAdjustment(context.Background(), AdjustmentRequest{ProductID: 1, Quantity: 0, Reason: "x"}, 7)
	require.ErrorIs(t, err, shared.ErrValidation)
}
