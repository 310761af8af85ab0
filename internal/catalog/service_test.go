package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duka-erp/duka-erp/internal/shared"
)

type memoryRepo struct {
	categories map[int64]Category
	items      map[int64]Item
	products   map[int64]Product
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		categories: make(map[int64]Category),
		items:      make(map[int64]Item),
		products:   make(map[int64]Product),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	if c, ok := r.categories[id]; ok {
		return c, nil
	}
	return Category{}, shared.ErrNotFound
}

func (r *memoryRepo) ListCategories(context.Context) ([]Category, error) {
	var out []Category
	for _, c := range r.categories {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryRepo) GetItem(_ context.Context, id int64) (Item, error) {
	if it, ok := r.items[id]; ok {
		return it, nil
	}
	return Item{}, shared.ErrNotFound
}

func (r *memoryRepo) ListItems(_ context.Context, _ ItemFilter) ([]Item, int, error) {
	var out []Item
	for _, it := range r.items {
		out = append(out, it)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return Product{}, shared.ErrNotFound
}

func (r *memoryRepo) ListProducts(_ context.Context, _ ProductFilter) ([]Product, int, error) {
	var out []Product
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) LowStockItems(context.Context) ([]Item, error) {
	var out []Item
	for _, it := range r.items {
		if it.Active && it.IsLowStock() {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memoryRepo) LowStockProducts(context.Context) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		if p.Active && p.IsLowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertCategory(_ context.Context, c Category) (int64, error) {
	for _, existing := range tx.repo.categories {
		if existing.Name == c.Name {
			return 0, shared.ErrDuplicate
		}
	}
	c.ID = tx.repo.id()
	c.CreatedAt = time.Now()
	tx.repo.categories[c.ID] = c
	return c.ID, nil
}

func (tx *memoryTx) InsertItem(_ context.Context, it Item) (int64, error) {
	it.ID = tx.repo.id()
	it.CreatedAt = time.Now()
	tx.repo.items[it.ID] = it
	return it.ID, nil
}

func (tx *memoryTx) UpdateItem(_ context.Context, it Item) error {
	if _, ok := tx.repo.items[it.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.items[it.ID] = it
	return nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	return tx.repo.GetItem(ctx, id)
}

func (tx *memoryTx) SetItemStock(_ context.Context, itemID int64, qty int) error {
	it, ok := tx.repo.items[itemID]
	if !ok {
		return shared.ErrNotFound
	}
	it.StockQty = qty
	tx.repo.items[itemID] = it
	return nil
}

func (tx *memoryTx) InsertProduct(_ context.Context, p Product) (int64, error) {
	p.ID = tx.repo.id()
	p.CreatedAt = time.Now()
	tx.repo.products[p.ID] = p
	return p.ID, nil
}

func (tx *memoryTx) UpdateProduct(_ context.Context, p Product) error {
	if _, ok := tx.repo.products[p.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.products[p.ID] = p
	return nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return tx.repo.GetProduct(ctx, id)
}

func (tx *memoryTx) SKUTaken(_ context.Context, table, sku string) (bool, error) {
	if table == "items" {
		for _, it := range tx.repo.items {
			if it.SKU == sku {
				return true, nil
			}
		}
		return false, nil
	}
	for _, p := range tx.repo.products {
		if p.SKU == sku {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) CountCreatedOn(_ context.Context, table string, _ time.Time) (int, error) {
	if table == "items" {
		return len(tx.repo.items), nil
	}
	return len(tx.repo.products), nil
}

func seedCategory(t *testing.T, svc *Service) Category {
	t.Helper()
	category, err := svc.CreateCategory(context.Background(), 1, CategoryInput{Name: "Office Supplies"})
	require.NoError(t, err)
	return category
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateItemGeneratesSKU(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	category := seedCategory(t, svc)

	item, err := svc.CreateItem(context.Background(), 1, ItemInput{
		Name: "Pencil HB", CategoryID: category.ID, UnitPrice: 500, CostPrice: 300,
		StockQty: 100, MinimumStock: 10, Active: true,
	})
	require.NoError(t, err)
	require.Equal(t, "OFF-PEN-26-001", item.SKU)

	second, err := svc.CreateItem(context.Background(), 1, ItemInput{
		Name: "Pen Blue", CategoryID: category.ID, UnitPrice: 800, CostPrice: 500, Active: true,
	})
	require.NoError(t, err)
	require.Equal(t, "OFF-PEN-26-002", second.SKU)
}

func TestCreateItemExplicitSKUConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	category := seedCategory(t, svc)

	_, err := svc.CreateItem(context.Background(), 1, ItemInput{
		Name: "Ruler", CategoryID: category.ID, SKU: "RULER-1", UnitPrice: 1000, Active: true,
	})
	require.NoError(t, err)

	_, err = svc.CreateItem(context.Background(), 1, ItemInput{
		Name: "Ruler Steel", CategoryID: category.ID, SKU: "RULER-1", UnitPrice: 2000, Active: true,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSKUCollisionSuffix(t *testing.T) {
	taken := map[string]bool{"OFF-PEN-26-001": true, "OFF-PEN-26-001-1": true}
	sku := UniqueSKU("OFF-PEN-26-001", func(s string) bool { return taken[s] })
	require.Equal(t, "OFF-PEN-26-001-2", sku)
}

func TestProductMirrorsLinkedItemStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	category := seedCategory(t, svc)

	item, err := svc.CreateItem(context.Background(), 1, ItemInput{
		Name: "Exercise Book", CategoryID: category.ID, UnitPrice: 700, CostPrice: 400,
		StockQty: 5, Active: true,
	})
	require.NoError(t, err)

	product, err := svc.CreateProduct(context.Background(), 1, ProductInput{
		Name: "Exercise Book Carton", CategoryID: category.ID,
		SupplierPrice: 40000, SellingPrice: 52000,
		UnitsPerCarton: 48, CartonsInStock: 3, LinkedItemID: &item.ID, Active: true,
	})
	require.NoError(t, err)
	require.Equal(t, 144, product.MirroredUnits())

	mirrored, err := svc.Item(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 144, mirrored.StockQty)

	_, err = svc.UpdateProduct(context.Background(), 1, product.ID, ProductInput{
		Name: product.Name, CategoryID: category.ID,
		SupplierPrice: 40000, SellingPrice: 52000,
		UnitsPerCarton: 48, CartonsInStock: 5, LinkedItemID: &item.ID, Active: true,
	})
	require.NoError(t, err)

	mirrored, err = svc.Item(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 240, mirrored.StockQty)
}

func TestLowStockSummary(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	category := seedCategory(t, svc)

	_, err := svc.CreateItem(context.Background(), 1, ItemInput{
		Name: "Stapler", CategoryID: category.ID, UnitPrice: 4000, StockQty: 2, MinimumStock: 5, Active: true,
	})
	require.NoError(t, err)
	_, err = svc.CreateItem(context.Background(), 1, ItemInput{
		Name: "Marker", CategoryID: category.ID, UnitPrice: 1500, StockQty: 50, MinimumStock: 5, Active: true,
	})
	require.NoError(t, err)

	summary, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	require.Equal(t, "Stapler", summary.Items[0].Name)
}
