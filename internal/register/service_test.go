package register

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

type memoryRepo struct {
	sessions map[int64]Session
	takings  float64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: map[int64]Session{}}
}

func (r *memoryRepo) Open(ctx context.Context, userID int64, initialAmount float64) (Session, error) {
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == StatusOpen {
			return Session{}, fmt.Errorf("%w: user %d has an open session", shared.ErrAlreadyOpen, userID)
		}
	}
	r.nextID++
	session := Session{ID: r.nextID, UserID: userID, Status: StatusOpen, InitialAmount: initialAmount, OpenedAt: time.Now()}
	r.sessions[session.ID] = session
	return session, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) GetOpen(ctx context.Context, userID int64) (Session, error) {
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == StatusOpen {
			return s, nil
		}
	}
	return Session{}, shared.ErrNotFound
}

func (r *memoryRepo) ListSessions(ctx context.Context, userID int64, limit int) ([]Session, error) {
	out := []Session{}
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) GetSessionForUpdate(ctx context.Context, id int64) (Session, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) CashTakings(ctx context.Context, userID int64, since time.Time) (float64, error) {
	return tx.repo.takings, nil
}

func (tx *memoryTx) CloseSession(ctx context.Context, id int64, expected, actual, difference float64) (Session, error) {
	s := tx.repo.sessions[id]
	now := time.Now()
	s.Status = StatusClosed
	s.ExpectedAmount = &expected
	s.ActualAmount = &actual
	s.Difference = &difference
	s.ClosedAt = &now
	tx.repo.sessions[id] = s
	return s, nil
}

func testService(repo *memoryRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, nil)
}

func TestSecondOpenRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	ctx := context.Background()

	_, err := svc.Open(ctx, 7, OpenRequest{InitialAmount: 100})
	require.NoError(t, err)

	_, err = svc.Open(ctx, 7, OpenRequest{InitialAmount: 50})
	require.ErrorIs(t, err, shared.ErrAlreadyOpen)

	// A different cashier opens fine.
	_, err = svc.Open(ctx, 8, OpenRequest{InitialAmount: 100})
	require.NoError(t, err)
}

func TestCloseComputesExpectedAndDifference(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	ctx := context.Background()

	session, err := svc.Open(ctx, 7, OpenRequest{InitialAmount: 100})
	require.NoError(t, err)
	repo.takings = 250

	closed, err := svc.Close(ctx, session.ID, CloseRequest{ActualAmount: 345}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.Equal(t, 350.0, *closed.ExpectedAmount)
	require.Equal(t, -5.0, *closed.Difference)

	// The drawer is free again.
	_, err = svc.Open(ctx, 7, OpenRequest{InitialAmount: 345})
	require.NoError(t, err)
}

func TestDoubleCloseRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	ctx := context.Background()

	session, err := svc.Open(ctx, 7, OpenRequest{InitialAmount: 100})
	require.NoError(t, err)

	_, err = svc.Close(ctx, session.ID, CloseRequest{ActualAmount: 100}, 7)
	require.NoError(t, err)

	_, err = svc.Close(ctx, session.ID, CloseRequest{ActualAmount: 100}, 7)
	require.ErrorIs(t, err, shared.ErrAlreadyClosed)
}
