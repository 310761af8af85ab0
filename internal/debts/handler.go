package debts

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/duka-erp/duka-erp/internal/platform/httpx"
	"github.com/duka-erp/duka-erp/internal/sales"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// Handler exposes the debts HTTP API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers debt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/overdue", h.overdue)
	r.Get("/{id}", h.get)
	r.Get("/{id}/payments", h.payments)
	r.Post("/{id}/payments", h.addPayment)
}

type createDebtRequest struct {
	CustomerID int64   `json:"customer_id" validate:"required,gt=0"`
	ItemID     int64   `json:"item_id" validate:"required,gt=0"`
	Quantity   int     `json:"quantity" validate:"required,gte=1"`
	Amount     float64 `json:"amount" validate:"gte=0"`
	DueDate    string  `json:"due_date" validate:"required"`
	Notes      string  `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createDebtRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
		return
	}
	debt, err := h.service.CreateDebt(r.Context(), CreateInput{
		ActorID:    shared.ActorFromContext(r.Context()),
		CustomerID: req.CustomerID,
		ItemID:     req.ItemID,
		Quantity:   req.Quantity,
		Amount:     req.Amount,
		DueDate:    dueDate,
		Notes:      req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, debt)
}

type paymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"payment_method" validate:"required,oneof=cash card bank_transfer credit"`
	Notes  string  `json:"notes"`
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	debt, err := h.service.RecordPayment(r.Context(), shared.ActorFromContext(r.Context()), id, PaymentInput{
		Amount:         req.Amount,
		Method:         sales.PaymentMethod(req.Method),
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, debt)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	debt, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, debt)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	payments, err := h.service.Payments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"debt_id": id, "payments": payments})
}

func (h *Handler) overdue(w http.ResponseWriter, r *http.Request) {
	debts, err := h.service.Overdue(r.Context())
	if err != nil {
		h.logger.Error("list overdue debts failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"debts": debts, "count": len(debts)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		CustomerID:  parseQueryInt64(q.Get("customer_id")),
		Status:      Status(q.Get("status")),
		OverdueOnly: q.Get("overdue") == "true",
		Page:        int(parseQueryInt64(q.Get("page"))),
		PerPage:     int(parseQueryInt64(q.Get("per_page"))),
	}
	debts, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list debts failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"debts":      debts,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func parseID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parseQueryInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
