package fx

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/comptoir-pos/comptoir/internal/platform/httpx"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

// Handler manages currency endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers currency routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCurrencies)
	r.Post("/", h.createCurrency)
	r.Post("/rates", h.recordRate)
	r.Get("/convert", h.convert)
}

func (h *Handler) listCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.service.Currencies(r.Context())
	if err != nil {
		h.logger.Error("list currencies", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, currencies)
}

func (h *Handler) createCurrency(w http.ResponseWriter, r *http.Request) {
	var req CreateCurrencyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	currency, err := h.service.RegisterCurrency(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, currency)
}

func (h *Handler) recordRate(w http.ResponseWriter, r *http.Request) {
	var req UpsertRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rate, err := h.service.RecordRate(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rate)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	set, err := h.service.Snapshot(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("rate snapshot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"amount": amount,
		"from":   from,
		"to":     to,
		"result": h.service.Convert(amount, from, to, set),
	})
}
