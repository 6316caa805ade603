package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comptoir-pos/comptoir/internal/app"
	"github.com/comptoir-pos/comptoir/internal/catalog"
	"github.com/comptoir-pos/comptoir/internal/clients"
	"github.com/comptoir-pos/comptoir/internal/credit"
	"github.com/comptoir-pos/comptoir/internal/fx"
	"github.com/comptoir-pos/comptoir/internal/platform/cache"
	"github.com/comptoir-pos/comptoir/internal/platform/db"
	"github.com/comptoir-pos/comptoir/internal/procurement"
	"github.com/comptoir-pos/comptoir/internal/quotes"
	"github.com/comptoir-pos/comptoir/internal/register"
	"github.com/comptoir-pos/comptoir/internal/sales"
	"github.com/comptoir-pos/comptoir/internal/shared"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, credit summary cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	settings := shared.NewSettingsStore(pool)

	fxService := fx.NewService(fx.NewRepository(pool), logger, cfg.BaseCurrency)
	catalogService := catalog.NewService(catalog.NewRepository(pool), auditLogger)
	stockService := stock.NewService(stock.NewRepository(pool), auditLogger)
	clientsService := clients.NewService(clients.NewRepository(pool))
	salesService := sales.NewService(logger, sales.NewRepository(pool), auditLogger, cfg.BaseCurrency)
	creditCache := credit.NewSummaryCache(redisClient, cfg.CreditCacheTTL)
	creditService := credit.NewService(logger, credit.NewRepository(pool), auditLogger, settings, creditCache, cfg.OverdueThresholdDays)
	procurementService := procurement.NewService(logger, procurement.NewRepository(pool), auditLogger)
	quotesService := quotes.NewService(logger, quotes.NewRepository(pool), salesService, auditLogger)
	registerService := register.NewService(logger, register.NewRepository(pool), auditLogger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CatalogHandler:     catalog.NewHandler(logger, catalogService),
		StockHandler:       stock.NewHandler(logger, stockService),
		FXHandler:          fx.NewHandler(logger, fxService),
		ClientsHandler:     clients.NewHandler(logger, clientsService),
		SalesHandler:       sales.NewHandler(logger, salesService),
		CreditHandler:      credit.NewHandler(logger, creditService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		QuotesHandler:      quotes.NewHandler(logger, quotesService),
		RegisterHandler:    register.NewHandler(logger, registerService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
