package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/duka-erp/duka-erp/internal/platform/httpx"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// Handler exposes the catalog HTTP API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Get("/items", h.listItems)
	r.Post("/items", h.createItem)
	r.Get("/items/{id}", h.getItem)
	r.Put("/items/{id}", h.updateItem)
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Get("/low-stock", h.lowStock)
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category, err := h.service.CreateCategory(r.Context(), shared.ActorFromContext(r.Context()), CategoryInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}

type itemRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	CategoryID   int64   `json:"category_id" validate:"required,gt=0"`
	SKU          string  `json:"sku" validate:"max=50"`
	Description  string  `json:"description"`
	UnitPrice    float64 `json:"unit_price" validate:"gte=0"`
	CostPrice    float64 `json:"cost_price" validate:"gte=0"`
	StockQty     int     `json:"stock_quantity" validate:"gte=0"`
	MinimumStock int     `json:"minimum_stock" validate:"gte=0"`
	Supplier     string  `json:"supplier" validate:"max=200"`
	Active       bool    `json:"is_active"`
}

func (r itemRequest) toInput() ItemInput {
	return ItemInput{
		Name:         r.Name,
		CategoryID:   r.CategoryID,
		SKU:          r.SKU,
		Description:  r.Description,
		UnitPrice:    r.UnitPrice,
		CostPrice:    r.CostPrice,
		StockQty:     r.StockQty,
		MinimumStock: r.MinimumStock,
		Supplier:     r.Supplier,
		Active:       r.Active,
	}
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.CreateItem(r.Context(), shared.ActorFromContext(r.Context()), req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	item, err := h.service.Item(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.UpdateItem(r.Context(), shared.ActorFromContext(r.Context()), id, req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ItemFilter{
		CategoryID: parseInt64(q.Get("category_id")),
		Search:     q.Get("q"),
		ActiveOnly: q.Get("active") == "true",
		LowStock:   q.Get("low_stock") == "true",
		Page:       int(parseInt64(q.Get("page"))),
		PerPage:    int(parseInt64(q.Get("per_page"))),
	}
	items, total, err := h.service.Items(r.Context(), filter)
	if err != nil {
		h.logger.Error("list items failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

type productRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	CategoryID     int64   `json:"category_id" validate:"required,gt=0"`
	SKU            string  `json:"sku" validate:"max=50"`
	Description    string  `json:"description"`
	SupplierPrice  float64 `json:"supplier_price" validate:"gte=0"`
	SellingPrice   float64 `json:"selling_price" validate:"gte=0"`
	UnitsPerCarton int     `json:"units_per_carton" validate:"required,gt=0"`
	CartonsInStock int     `json:"cartons_in_stock" validate:"gte=0"`
	MinimumCartons int     `json:"minimum_cartons" validate:"gte=0"`
	LinkedItemID   *int64  `json:"linked_item_id,omitempty" validate:"omitempty,gt=0"`
	Active         bool    `json:"is_active"`
}

func (r productRequest) toInput() ProductInput {
	return ProductInput{
		Name:           r.Name,
		CategoryID:     r.CategoryID,
		SKU:            r.SKU,
		Description:    r.Description,
		SupplierPrice:  r.SupplierPrice,
		SellingPrice:   r.SellingPrice,
		UnitsPerCarton: r.UnitsPerCarton,
		CartonsInStock: r.CartonsInStock,
		MinimumCartons: r.MinimumCartons,
		LinkedItemID:   r.LinkedItemID,
		Active:         r.Active,
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.CreateProduct(r.Context(), shared.ActorFromContext(r.Context()), req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	product, err := h.service.Product(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), shared.ActorFromContext(r.Context()), id, req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ProductFilter{
		CategoryID: parseInt64(q.Get("category_id")),
		Search:     q.Get("q"),
		ActiveOnly: q.Get("active") == "true",
		LowStock:   q.Get("low_stock") == "true",
		Page:       int(parseInt64(q.Get("page"))),
		PerPage:    int(parseInt64(q.Get("per_page"))),
	}
	products, total, err := h.service.Products(r.Context(), filter)
	if err != nil {
		h.logger.Error("list products failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   products,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LowStock(r.Context())
	if err != nil {
		h.logger.Error("low stock summary failed", "err", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
