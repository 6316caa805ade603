package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/comptoir-pos/comptoir/internal/app"
	"github.com/comptoir-pos/comptoir/internal/credit"
	"github.com/comptoir-pos/comptoir/internal/fx"
	"github.com/comptoir-pos/comptoir/internal/platform/db"
	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	settings := shared.NewSettingsStore(pool)

	// The worker only reads, so it skips the Redis summary cache on purpose:
	// a nightly scan warming pages nobody requested would just churn keys.
	creditService := credit.NewService(logger, credit.NewRepository(pool), auditLogger, settings, nil, cfg.OverdueThresholdDays)
	fxService := fx.NewService(fx.NewRepository(pool), logger, cfg.BaseCurrency)

	overdueJob := jobs.NewOverdueScanJob(creditService, logger)
	fxJob := jobs.NewFXStalenessJob(fxService, cfg.FXStaleAfter, logger)

	overdueTask, err := jobs.NewOverdueScanTask(jobs.OverdueScanPayload{Limit: 100})
	if err != nil {
		logger.Error("build overdue scan task", slog.Any("error", err))
		os.Exit(1)
	}
	fxTask, err := jobs.NewFXStalenessTask(jobs.FXStalenessPayload{})
	if err != nil {
		logger.Error("build fx staleness task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCreditOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskFXStalenessCheck, Handler: fxJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: overdueTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: fxTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
