package register

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Open(ctx context.Context, userID int64, initialAmount float64) (Session, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Session, error)
	GetOpen(ctx context.Context, userID int64) (Session, error)
	ListSessions(ctx context.Context, userID int64, limit int) ([]Session, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates register sessions.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, audit: audit}
}

// Open starts a session with the counted float. The database enforces one
// open session per user.
func (s *Service) Open(ctx context.Context, userID int64, req OpenRequest) (Session, error) {
	if req.InitialAmount < 0 {
		return Session{}, fmt.Errorf("%w: initial amount must be >= 0", shared.ErrValidation)
	}
	session, err := s.repo.Open(ctx, userID, req.InitialAmount)
	if err != nil {
		return Session{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "register:open",
			Entity:   "register_session",
			EntityID: fmt.Sprintf("%d", session.ID),
			Meta:     map[string]any{"initial_amount": req.InitialAmount},
		})
	}
	s.logger.Info("register opened", slog.Int64("session_id", session.ID), slog.Int64("user_id", userID))
	return session, nil
}

// Close ends a session. Expected cash is the float plus cash takings since
// opening; the difference against the counted drawer is recorded as-is,
// positive or negative.
func (s *Service) Close(ctx context.Context, id int64, req CloseRequest, userID int64) (Session, error) {
	if req.ActualAmount < 0 {
		return Session{}, fmt.Errorf("%w: actual amount must be >= 0", shared.ErrValidation)
	}

	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		session, err = tx.GetSessionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if session.Status == StatusClosed {
			return fmt.Errorf("%w: session %d", shared.ErrAlreadyClosed, id)
		}
		takings, err := tx.CashTakings(ctx, session.UserID, session.OpenedAt)
		if err != nil {
			return err
		}
		expected := session.InitialAmount + takings
		difference := req.ActualAmount - expected
		session, err = tx.CloseSession(ctx, id, expected, req.ActualAmount, difference)
		return err
	})
	if err != nil {
		return Session{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "register:close",
			Entity:   "register_session",
			EntityID: fmt.Sprintf("%d", session.ID),
			Meta: map[string]any{
				"expected": session.ExpectedAmount,
				"actual":   session.ActualAmount,
			},
		})
	}
	if session.Difference != nil && *session.Difference != 0 {
		s.logger.Warn("register closed with difference",
			slog.Int64("session_id", session.ID),
			slog.Float64("difference", *session.Difference))
	} else {
		s.logger.Info("register closed", slog.Int64("session_id", session.ID))
	}
	return session, nil
}

// Get loads one session.
func (s *Service) Get(ctx context.Context, id int64) (Session, error) {
	return s.repo.Get(ctx, id)
}

// Current returns the caller's open session.
func (s *Service) Current(ctx context.Context, userID int64) (Session, error) {
	return s.repo.GetOpen(ctx, userID)
}

// History lists the user's past sessions.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]Session, error) {
	return s.repo.ListSessions(ctx, userID, limit)
}
