package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/comptoir-pos/comptoir/internal/catalog"
	"github.com/comptoir-pos/comptoir/internal/clients"
	"github.com/comptoir-pos/comptoir/internal/credit"
	"github.com/comptoir-pos/comptoir/internal/fx"
	"github.com/comptoir-pos/comptoir/internal/procurement"
	"github.com/comptoir-pos/comptoir/internal/quotes"
	"github.com/comptoir-pos/comptoir/internal/register"
	"github.com/comptoir-pos/comptoir/internal/sales"
	"github.com/comptoir-pos/comptoir/internal/stock"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	CatalogHandler     *catalog.Handler
	StockHandler       *stock.Handler
	FXHandler          *fx.Handler
	ClientsHandler     *clients.Handler
	SalesHandler       *sales.Handler
	CreditHandler      *credit.Handler
	ProcurementHandler *procurement.Handler
	QuotesHandler      *quotes.Handler
	RegisterHandler    *register.Handler
}

// NewRouter constructs the chi.Router with Comptoir defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/currencies", params.FXHandler.MountRoutes)
		r.Route("/clients", params.ClientsHandler.MountRoutes)
		r.Route("/sales", params.SalesHandler.MountRoutes)
		r.Route("/credits", params.CreditHandler.MountRoutes)
		r.Route("/purchases", params.ProcurementHandler.MountRoutes)
		r.Route("/quotes", params.QuotesHandler.MountRoutes)
		r.Route("/registers", params.RegisterHandler.MountRoutes)
	})

	return r
}
