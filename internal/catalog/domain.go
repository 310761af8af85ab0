package catalog

import "time"

// Category groups items and products for reporting and SKU prefixes.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Item is a retail stock-keeping unit sold by piece.
type Item struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CategoryID   int64     `json:"category_id"`
	SKU          string    `json:"sku"`
	Description  string    `json:"description"`
	UnitPrice    float64   `json:"unit_price"`
	CostPrice    float64   `json:"cost_price"`
	StockQty     int       `json:"stock_quantity"`
	MinimumStock int       `json:"minimum_stock"`
	Supplier     string    `json:"supplier"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsLowStock reports whether the item is at or below its reorder level.
func (i Item) IsLowStock() bool { return i.StockQty <= i.MinimumStock }

// Margin is the per-unit gross margin.
func (i Item) Margin() float64 { return i.UnitPrice - i.CostPrice }

// Product is a wholesale line sold by carton. A product may mirror its
// stock into a linked retail item (cartons times units per carton).
type Product struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	CategoryID     int64     `json:"category_id"`
	SKU            string    `json:"sku"`
	Description    string    `json:"description"`
	SupplierPrice  float64   `json:"supplier_price"`
	SellingPrice   float64   `json:"selling_price"`
	UnitsPerCarton int       `json:"units_per_carton"`
	CartonsInStock int       `json:"cartons_in_stock"`
	MinimumCartons int       `json:"minimum_cartons"`
	LinkedItemID   *int64    `json:"linked_item_id,omitempty"`
	Active         bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsLowStock reports whether the product is at or below its reorder level.
func (p Product) IsLowStock() bool { return p.CartonsInStock <= p.MinimumCartons }

// MirroredUnits is the retail stock a linked item should carry.
func (p Product) MirroredUnits() int { return p.CartonsInStock * p.UnitsPerCarton }

// CartonMargin is the gross margin per carton.
func (p Product) CartonMargin() float64 { return p.SellingPrice - p.SupplierPrice }

// ItemFilter narrows item listings.
type ItemFilter struct {
	CategoryID int64
	Search     string
	ActiveOnly bool
	LowStock   bool
	Page       int
	PerPage    int
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID int64
	Search     string
	ActiveOnly bool
	LowStock   bool
	Page       int
	PerPage    int
}

// LowStockSummary is the cached unified reorder view.
type LowStockSummary struct {
	Items       []Item    `json:"items"`
	Products    []Product `json:"products"`
	GeneratedAt time.Time `json:"generated_at"`
}
