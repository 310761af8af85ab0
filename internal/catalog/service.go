package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/duka-erp/duka-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	LowStockItems(ctx context.Context) ([]Item, error)
	LowStockProducts(ctx context.Context) ([]Product, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  *LowStockCache
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache *LowStockCache, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// CategoryInput is the payload for creating a category.
type CategoryInput struct {
	Name        string
	Description string
}

// CreateCategory inserts a category; names are unique.
func (s *Service) CreateCategory(ctx context.Context, actorID int64, input CategoryInput) (Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Category{}, &shared.ValidationError{Field: "name", Reason: "required"}
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		id, err = tx.InsertCategory(ctx, Category{Name: name, Description: input.Description})
		return err
	})
	if err != nil {
		return Category{}, err
	}
	s.recordAudit(ctx, actorID, "catalog:category_create", "category", id, nil)
	return s.repo.GetCategory(ctx, id)
}

// Categories lists all categories ordered by name.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// ItemInput is the payload for creating or updating a retail item.
type ItemInput struct {
	Name         string
	CategoryID   int64
	SKU          string
	Description  string
	UnitPrice    float64
	CostPrice    float64
	StockQty     int
	MinimumStock int
	Supplier     string
	Active       bool
}

func (s *Service) validateItem(input ItemInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return &shared.ValidationError{Field: "name", Reason: "required"}
	case input.CategoryID == 0:
		return &shared.ValidationError{Field: "category_id", Reason: "required"}
	case input.UnitPrice < 0 || input.CostPrice < 0:
		return &shared.ValidationError{Field: "price", Reason: "must not be negative"}
	case input.StockQty < 0:
		return &shared.ValidationError{Field: "stock_quantity", Reason: "must not be negative"}
	case input.MinimumStock < 0:
		return &shared.ValidationError{Field: "minimum_stock", Reason: "must not be negative"}
	}
	return nil
}

// CreateItem inserts a retail item, generating a SKU when none is supplied.
func (s *Service) CreateItem(ctx context.Context, actorID int64, input ItemInput) (Item, error) {
	if err := s.validateItem(input); err != nil {
		return Item{}, err
	}
	category, err := s.repo.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return Item{}, err
	}
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sku, err := s.resolveSKU(ctx, tx, "items", input.SKU, category.Name, input.Name)
		if err != nil {
			return err
		}
		id, err = tx.InsertItem(ctx, Item{
			Name:         strings.TrimSpace(input.Name),
			CategoryID:   input.CategoryID,
			SKU:          sku,
			Description:  input.Description,
			UnitPrice:    input.UnitPrice,
			CostPrice:    input.CostPrice,
			StockQty:     input.StockQty,
			MinimumStock: input.MinimumStock,
			Supplier:     input.Supplier,
			Active:       input.Active,
		})
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.invalidateLowStock(ctx)
	s.recordAudit(ctx, actorID, "catalog:item_create", "item", id, map[string]any{"stock": input.StockQty})
	return s.repo.GetItem(ctx, id)
}

// UpdateItem replaces the mutable fields of an item.
func (s *Service) UpdateItem(ctx context.Context, actorID int64, id int64, input ItemInput) (Item, error) {
	if err := s.validateItem(input); err != nil {
		return Item{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sku := strings.TrimSpace(input.SKU)
		if sku == "" {
			sku = current.SKU
		}
		current.Name = strings.TrimSpace(input.Name)
		current.CategoryID = input.CategoryID
		current.SKU = sku
		current.Description = input.Description
		current.UnitPrice = input.UnitPrice
		current.CostPrice = input.CostPrice
		current.StockQty = input.StockQty
		current.MinimumStock = input.MinimumStock
		current.Supplier = input.Supplier
		current.Active = input.Active
		return tx.UpdateItem(ctx, current)
	})
	if err != nil {
		return Item{}, err
	}
	s.invalidateLowStock(ctx)
	s.recordAudit(ctx, actorID, "catalog:item_update", "item", id, nil)
	return s.repo.GetItem(ctx, id)
}

// Item fetches one item.
func (s *Service) Item(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// Items lists items with filters and pagination.
func (s *Service) Items(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	return s.repo.ListItems(ctx, filter)
}

// ProductInput is the payload for creating or updating a wholesale product.
type ProductInput struct {
	Name           string
	CategoryID     int64
	SKU            string
	Description    string
	SupplierPrice  float64
	SellingPrice   float64
	UnitsPerCarton int
	CartonsInStock int
	MinimumCartons int
	LinkedItemID   *int64
	Active         bool
}

func (s *Service) validateProduct(input ProductInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return &shared.ValidationError{Field: "name", Reason: "required"}
	case input.CategoryID == 0:
		return &shared.ValidationError{Field: "category_id", Reason: "required"}
	case input.SupplierPrice < 0 || input.SellingPrice < 0:
		return &shared.ValidationError{Field: "price", Reason: "must not be negative"}
	case input.UnitsPerCarton <= 0:
		return &shared.ValidationError{Field: "units_per_carton", Reason: "must be positive"}
	case input.CartonsInStock < 0:
		return &shared.ValidationError{Field: "cartons_in_stock", Reason: "must not be negative"}
	case input.MinimumCartons < 0:
		return &shared.ValidationError{Field: "minimum_cartons", Reason: "must not be negative"}
	}
	return nil
}

// CreateProduct inserts a wholesale product and mirrors stock into the
// linked retail item when one is attached.
func (s *Service) CreateProduct(ctx context.Context, actorID int64, input ProductInput) (Product, error) {
	if err := s.validateProduct(input); err != nil {
		return Product{}, err
	}
	category, err := s.repo.GetCategory(ctx, input.CategoryID)
	if err != nil {
		return Product{}, err
	}
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sku, err := s.resolveSKU(ctx, tx, "products", input.SKU, category.Name, input.Name)
		if err != nil {
			return err
		}
		product := Product{
			Name:           strings.TrimSpace(input.Name),
			CategoryID:     input.CategoryID,
			SKU:            sku,
			Description:    input.Description,
			SupplierPrice:  input.SupplierPrice,
			SellingPrice:   input.SellingPrice,
			UnitsPerCarton: input.UnitsPerCarton,
			CartonsInStock: input.CartonsInStock,
			MinimumCartons: input.MinimumCartons,
			LinkedItemID:   input.LinkedItemID,
			Active:         input.Active,
		}
		id, err = tx.InsertProduct(ctx, product)
		if err != nil {
			return err
		}
		return s.syncLinkedItem(ctx, tx, product)
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidateLowStock(ctx)
	s.recordAudit(ctx, actorID, "catalog:product_create", "product", id, map[string]any{"cartons": input.CartonsInStock})
	return s.repo.GetProduct(ctx, id)
}

// UpdateProduct replaces the mutable fields and re-syncs the linked item.
func (s *Service) UpdateProduct(ctx context.Context, actorID int64, id int64, input ProductInput) (Product, error) {
	if err := s.validateProduct(input); err != nil {
		return Product{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sku := strings.TrimSpace(input.SKU)
		if sku == "" {
			sku = current.SKU
		}
		current.Name = strings.TrimSpace(input.Name)
		current.CategoryID = input.CategoryID
		current.SKU = sku
		current.Description = input.Description
		current.SupplierPrice = input.SupplierPrice
		current.SellingPrice = input.SellingPrice
		current.UnitsPerCarton = input.UnitsPerCarton
		current.CartonsInStock = input.CartonsInStock
		current.MinimumCartons = input.MinimumCartons
		current.LinkedItemID = input.LinkedItemID
		current.Active = input.Active
		if err := tx.UpdateProduct(ctx, current); err != nil {
			return err
		}
		return s.syncLinkedItem(ctx, tx, current)
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidateLowStock(ctx)
	s.recordAudit(ctx, actorID, "catalog:product_update", "product", id, nil)
	return s.repo.GetProduct(ctx, id)
}

// Product fetches one product.
func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Products lists products with filters and pagination.
func (s *Service) Products(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filter)
}

// LowStock returns the unified reorder view, served from cache when wired.
func (s *Service) LowStock(ctx context.Context) (LowStockSummary, error) {
	load := func(ctx context.Context) (LowStockSummary, error) {
		items, err := s.repo.LowStockItems(ctx)
		if err != nil {
			return LowStockSummary{}, err
		}
		products, err := s.repo.LowStockProducts(ctx)
		if err != nil {
			return LowStockSummary{}, err
		}
		return LowStockSummary{Items: items, Products: products, GeneratedAt: s.now().UTC()}, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	return s.cache.Get(ctx, load)
}

// resolveSKU generates a SKU when the input is blank and rejects
// duplicates when one is supplied explicitly.
func (s *Service) resolveSKU(ctx context.Context, tx TxRepository, table, explicit, categoryName, name string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		taken, err := tx.SKUTaken(ctx, table, explicit)
		if err != nil {
			return "", err
		}
		if taken {
			return "", &shared.ValidationError{Field: "sku", Reason: "already in use"}
		}
		return explicit, nil
	}
	now := s.now()
	count, err := tx.CountCreatedOn(ctx, table, now)
	if err != nil {
		return "", err
	}
	base := BuildSKU(categoryName, name, now, count+1)
	var skuErr error
	sku := UniqueSKU(base, func(candidate string) bool {
		taken, err := tx.SKUTaken(ctx, table, candidate)
		if err != nil {
			skuErr = err
			return false
		}
		return taken
	})
	if skuErr != nil {
		return "", skuErr
	}
	return sku, nil
}

func (s *Service) syncLinkedItem(ctx context.Context, tx TxRepository, p Product) error {
	if p.LinkedItemID == nil {
		return nil
	}
	if _, err := tx.GetItemForUpdate(ctx, *p.LinkedItemID); err != nil {
		return err
	}
	return tx.SetItemStock(ctx, *p.LinkedItemID, p.MirroredUnits())
}

func (s *Service) invalidateLowStock(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Warn("low-stock cache invalidation failed", "err", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: entity, EntityID: id, Meta: meta})
}
