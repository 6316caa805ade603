package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// FXPort is the slice of the fx service the check needs.
type FXPort interface {
	StaleAfter(ctx context.Context, maxAge time.Duration) (bool, time.Time, error)
}

// FXStalenessJob warns when nobody has recorded a fresh exchange rate; stale
// rates silently misprice foreign-currency documents.
type FXStalenessJob struct {
	FX     FXPort
	MaxAge time.Duration
	Logger *slog.Logger
}

// NewFXStalenessJob initialises the staleness check handler.
func NewFXStalenessJob(fxSvc FXPort, maxAge time.Duration, logger *slog.Logger) *FXStalenessJob {
	return &FXStalenessJob{FX: fxSvc, MaxAge: maxAge, Logger: logger}
}

// Handle executes the check.
func (j *FXStalenessJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.FX == nil {
		return errors.New("fx staleness: handler not configured")
	}
	var payload FXStalenessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	maxAge := j.MaxAge
	if payload.MaxAgeHours > 0 {
		maxAge = time.Duration(payload.MaxAgeHours) * time.Hour
	}

	logger := j.logger()
	stale, latest, err := j.FX.StaleAfter(ctx, maxAge)
	if err != nil {
		logger.Error("staleness check failed", slog.Any("error", err))
		return err
	}
	if stale {
		logger.Warn("exchange rates are stale",
			slog.Time("latest_rate_date", latest),
			slog.Duration("max_age", maxAge),
		)
	} else {
		logger.Info("exchange rates fresh", slog.Time("latest_rate_date", latest))
	}
	return nil
}

func (j *FXStalenessJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFXStalenessCheck))
	}
	return slog.Default().With(slog.String("job", TaskFXStalenessCheck))
}
