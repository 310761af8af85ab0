package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duka-erp/duka-erp/internal/platform/db"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertCategory(ctx context.Context, c Category) (int64, error)
	InsertItem(ctx context.Context, it Item) (int64, error)
	UpdateItem(ctx context.Context, it Item) error
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	SetItemStock(ctx context.Context, itemID int64, qty int) error
	InsertProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, p Product) error
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	SKUTaken(ctx context.Context, table, sku string) (bool, error)
	CountCreatedOn(ctx context.Context, table string, day time.Time) (int, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const itemColumns = `id, name, category_id, sku, description, unit_price, cost_price, stock_quantity, minimum_stock, supplier, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.CategoryID, &it.SKU, &it.Description, &it.UnitPrice, &it.CostPrice, &it.StockQty, &it.MinimumStock, &it.Supplier, &it.Active, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.ErrNotFound
	}
	return it, err
}

const productColumns = `id, name, category_id, sku, description, supplier_price, selling_price, units_per_carton, cartons_in_stock, minimum_cartons, linked_item_id, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.SKU, &p.Description, &p.SupplierPrice, &p.SellingPrice, &p.UnitsPerCarton, &p.CartonsInStock, &p.MinimumCartons, &p.LinkedItemID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at FROM categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, shared.ErrNotFound
	}
	return c, err
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, id))
}

func (r *Repository) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	where, args := itemFilterClauses(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM items%s ORDER BY name LIMIT $%d OFFSET $%d`, itemColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

func itemFilterClauses(filter ItemFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active")
	}
	if filter.LowStock {
		clauses = append(clauses, "stock_quantity <= minimum_stock")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	where, args := productFilterClauses(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY name LIMIT $%d OFFSET $%d`, productColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func productFilterClauses(filter ProductFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active")
	}
	if filter.LowStock {
		clauses = append(clauses, "cartons_in_stock <= minimum_cartons")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Repository) LowStockItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE is_active AND stock_quantity <= minimum_stock ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) LowStockProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active AND cartons_in_stock <= minimum_cartons ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepo) InsertCategory(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`, c.Name, c.Description).Scan(&id)
	return id, mapUniqueViolation(err)
}

func (r *txRepo) InsertItem(ctx context.Context, it Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO items (name, category_id, sku, description, unit_price, cost_price, stock_quantity, minimum_stock, supplier, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		it.Name, it.CategoryID, it.SKU, it.Description, it.UnitPrice, it.CostPrice, it.StockQty, it.MinimumStock, it.Supplier, it.Active).Scan(&id)
	return id, mapUniqueViolation(err)
}

func (r *txRepo) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE items SET name=$2, category_id=$3, sku=$4, description=$5, unit_price=$6, cost_price=$7,
			stock_quantity=$8, minimum_stock=$9, supplier=$10, is_active=$11, updated_at=NOW()
		WHERE id=$1`,
		it.ID, it.Name, it.CategoryID, it.SKU, it.Description, it.UnitPrice, it.CostPrice, it.StockQty, it.MinimumStock, it.Supplier, it.Active)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepo) SetItemStock(ctx context.Context, itemID int64, qty int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE items SET stock_quantity=$2, updated_at=NOW() WHERE id=$1`, itemID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO products (name, category_id, sku, description, supplier_price, selling_price, units_per_carton, cartons_in_stock, minimum_cartons, linked_item_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		p.Name, p.CategoryID, p.SKU, p.Description, p.SupplierPrice, p.SellingPrice, p.UnitsPerCarton, p.CartonsInStock, p.MinimumCartons, p.LinkedItemID, p.Active).Scan(&id)
	return id, mapUniqueViolation(err)
}

func (r *txRepo) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE products SET name=$2, category_id=$3, sku=$4, description=$5, supplier_price=$6, selling_price=$7,
			units_per_carton=$8, cartons_in_stock=$9, minimum_cartons=$10, linked_item_id=$11, is_active=$12, updated_at=NOW()
		WHERE id=$1`,
		p.ID, p.Name, p.CategoryID, p.SKU, p.Description, p.SupplierPrice, p.SellingPrice, p.UnitsPerCarton, p.CartonsInStock, p.MinimumCartons, p.LinkedItemID, p.Active)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepo) SKUTaken(ctx context.Context, table, sku string) (bool, error) {
	if table != "items" && table != "products" {
		return false, fmt.Errorf("catalog: unknown sku table %q", table)
	}
	var taken bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE sku=$1)`, sku).Scan(&taken)
	return taken, err
}

func (r *txRepo) CountCreatedOn(ctx context.Context, table string, day time.Time) (int, error) {
	if table != "items" && table != "products" {
		return 0, fmt.Errorf("catalog: unknown count table %q", table)
	}
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE created_at::date = $1::date`, day).Scan(&count)
	return count, err
}

func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
