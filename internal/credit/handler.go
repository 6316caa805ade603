package credit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/comptoir-pos/comptoir/internal/platform/httpx"
	"github.com/comptoir-pos/comptoir/internal/shared"
)

// Handler manages credit endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/overdue-count", h.overdueCount)
	r.Get("/sales/{saleID}/payments", h.listPayments)
	r.Post("/sales/{saleID}/payments", h.recordPayment)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), saleID, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err), slog.Int64("sale_id", saleID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), saleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": payments})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	filter := SummaryFilter{}
	q := r.URL.Query()
	if s := q.Get("min_overdue_days"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			filter.MinOverdueDays = &v
		}
	}
	if s := q.Get("min_due"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			filter.MinDue = &v
		}
	}
	if s := q.Get("max_due"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			filter.MaxDue = &v
		}
	}
	if s := q.Get("search"); s != "" {
		filter.Search = &s
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	out, pagination, err := h.service.ClientCreditsSummary(r.Context(), filter)
	if err != nil {
		h.logger.Error("credit summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out, "pagination": pagination})
}

func (h *Handler) overdueCount(w http.ResponseWriter, r *http.Request) {
	var threshold *int
	if s := r.URL.Query().Get("threshold"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		threshold = &v
	}
	count, err := h.service.OverdueCount(r.Context(), threshold)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"count": count})
}
