package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/duka-erp/duka-erp/internal/platform/httpx"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// Handler exposes the sales HTTP API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/lines", h.addLine)
	r.Delete("/{id}/lines/{lineID}", h.removeLine)
	r.Get("/{id}/profit", h.profit)
}

type lineRequest struct {
	Kind      string  `json:"kind" validate:"required,oneof=retail wholesale"`
	ItemID    int64   `json:"item_id" validate:"gte=0"`
	ProductID int64   `json:"product_id" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"required,gte=1"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
}

func (r lineRequest) toInput() LineInput {
	return LineInput{
		Kind:      LineKind(r.Kind),
		ItemID:    r.ItemID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
	}
}

type createSaleRequest struct {
	CustomerID    *int64        `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	PaymentMethod string        `json:"payment_method" validate:"required,oneof=cash card bank_transfer credit"`
	Paid          bool          `json:"is_paid"`
	Notes         string        `json:"notes"`
	Lines         []lineRequest `json:"lines" validate:"dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		ActorID:       shared.ActorFromContext(r.Context()),
		CustomerID:    req.CustomerID,
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		Paid:          req.Paid,
		Notes:         req.Notes,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, line.toInput())
	}
	sale, err := h.service.CreateSale(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

type updateSaleRequest struct {
	CustomerID    *int64 `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash card bank_transfer credit"`
	Paid          bool   `json:"is_paid"`
	Notes         string `json:"notes"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req updateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.UpdateHeader(r.Context(), shared.ActorFromContext(r.Context()), id, HeaderInput{
		CustomerID:    req.CustomerID,
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		Paid:          req.Paid,
		Notes:         req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.AddLine(r.Context(), shared.ActorFromContext(r.Context()), id, req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	lineID, err := parseID(r, "lineID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid line id")
		return
	}
	sale, err := h.service.RemoveLine(r.Context(), shared.ActorFromContext(r.Context()), id, lineID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.Delete(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) profit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	profit, err := h.service.Profit(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sale_id": id, "profit": profit})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		CustomerID: parseQueryInt64(q.Get("customer_id")),
		Kind:       Kind(q.Get("kind")),
		From:       parseQueryDate(q.Get("from")),
		To:         parseQueryDate(q.Get("to")),
		Page:       int(parseQueryInt64(q.Get("page"))),
		PerPage:    int(parseQueryInt64(q.Get("per_page"))),
	}
	if paid := q.Get("paid"); paid != "" {
		v := paid == "true"
		filter.Paid = &v
	}
	sales, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list sales failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":      sales,
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

func parseQueryDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}
