package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duka-erp/duka-erp/internal/platform/db"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. Stock
// columns on items/products are touched here so the check-and-decrement
// stays inside one transaction with the sale mutation.
type TxRepository interface {
	InsertSale(ctx context.Context, s Sale) (int64, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	UpdateSaleHeader(ctx context.Context, s Sale) error
	SetSaleTotal(ctx context.Context, saleID int64, total float64) error
	DeleteSale(ctx context.Context, saleID int64) error

	FindLine(ctx context.Context, saleID int64, kind LineKind, refID int64) (Line, error)
	GetLine(ctx context.Context, lineID int64) (Line, error)
	InsertLine(ctx context.Context, l Line) (int64, error)
	UpdateLine(ctx context.Context, l Line) error
	DeleteLine(ctx context.Context, lineID int64) error
	ListLines(ctx context.Context, saleID int64) ([]Line, error)
	SumLineTotals(ctx context.Context, saleID int64) (float64, error)

	GetItemForUpdate(ctx context.Context, itemID int64) (StockRef, error)
	AdjustItemStock(ctx context.Context, itemID int64, delta int) error
	GetProductForUpdate(ctx context.Context, productID int64) (StockRef, error)
	AdjustProductStock(ctx context.Context, productID int64, delta int) error
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

const saleColumns = `id, kind, customer_id, sale_date, total_amount, payment_method, is_paid, notes, debt_id, created_by`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Kind, &s.CustomerID, &s.SaleDate, &s.TotalAmount, &s.PaymentMethod, &s.Paid, &s.Notes, &s.DebtID, &s.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.ErrNotFound
	}
	return s, err
}

const lineColumns = `id, sale_id, kind, item_id, product_id, quantity, unit_price, total_price`

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.SaleID, &l.Kind, &l.ItemID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.TotalPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, shared.ErrNotFound
	}
	return l, err
}

// GetSale loads a sale with its lines.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
	if err != nil {
		return Sale{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+` FROM sale_lines WHERE sale_id=$1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return Sale{}, err
		}
		sale.Lines = append(sale.Lines, line)
	}
	return sale, rows.Err()
}

// List fetches sales (headers only) with filters and pagination.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Sale, int, error) {
	var clauses []string
	var args []any
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.Paid != nil {
		args = append(args, *filter.Paid)
		clauses = append(clauses, fmt.Sprintf("is_paid=$%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		clauses = append(clauses, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		clauses = append(clauses, fmt.Sprintf("sale_date <= $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM sales%s ORDER BY sale_date DESC LIMIT $%d OFFSET $%d`, saleColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *txRepo) InsertSale(ctx context.Context, s Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO sales (kind, customer_id, total_amount, payment_method, is_paid, notes, debt_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		s.Kind, s.CustomerID, s.TotalAmount, s.PaymentMethod, s.Paid, s.Notes, s.DebtID, s.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	return scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepo) UpdateSaleHeader(ctx context.Context, s Sale) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE sales SET customer_id=$2, payment_method=$3, is_paid=$4, notes=$5 WHERE id=$1`,
		s.ID, s.CustomerID, s.PaymentMethod, s.Paid, s.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) SetSaleTotal(ctx context.Context, saleID int64, total float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET total_amount=$2 WHERE id=$1`, saleID, total)
	return err
}

func (r *txRepo) DeleteSale(ctx context.Context, saleID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE id=$1`, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) FindLine(ctx context.Context, saleID int64, kind LineKind, refID int64) (Line, error) {
	column := "item_id"
	if kind == LineWholesale {
		column = "product_id"
	}
	return scanLine(r.tx.QueryRow(ctx, `SELECT `+lineColumns+` FROM sale_lines WHERE sale_id=$1 AND kind=$2 AND `+column+`=$3`, saleID, kind, refID))
}

func (r *txRepo) GetLine(ctx context.Context, lineID int64) (Line, error) {
	return scanLine(r.tx.QueryRow(ctx, `SELECT `+lineColumns+` FROM sale_lines WHERE id=$1`, lineID))
}

func (r *txRepo) InsertLine(ctx context.Context, l Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO sale_lines (sale_id, kind, item_id, product_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		l.SaleID, l.Kind, l.ItemID, l.ProductID, l.Quantity, l.UnitPrice, l.TotalPrice).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateLine(ctx context.Context, l Line) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sale_lines SET quantity=$2, unit_price=$3, total_price=$4 WHERE id=$1`,
		l.ID, l.Quantity, l.UnitPrice, l.TotalPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) DeleteLine(ctx context.Context, lineID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM sale_lines WHERE id=$1`, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) ListLines(ctx context.Context, saleID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+` FROM sale_lines WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txRepo) SumLineTotals(ctx context.Context, saleID int64) (float64, error) {
	var total float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(total_price), 0) FROM sale_lines WHERE sale_id=$1`, saleID).Scan(&total)
	return total, err
}

func (r *txRepo) GetItemForUpdate(ctx context.Context, itemID int64) (StockRef, error) {
	var ref StockRef
	err := r.tx.QueryRow(ctx, `SELECT id, name, stock_quantity, unit_price, cost_price FROM items WHERE id=$1 FOR UPDATE`, itemID).
		Scan(&ref.ID, &ref.Name, &ref.Stock, &ref.UnitPrice, &ref.CostPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRef{}, shared.ErrNotFound
	}
	return ref, err
}

func (r *txRepo) AdjustItemStock(ctx context.Context, itemID int64, delta int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE items SET stock_quantity = stock_quantity + $2, updated_at=NOW() WHERE id=$1`, itemID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) GetProductForUpdate(ctx context.Context, productID int64) (StockRef, error) {
	var ref StockRef
	err := r.tx.QueryRow(ctx, `SELECT id, name, cartons_in_stock, selling_price, supplier_price FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&ref.ID, &ref.Name, &ref.Stock, &ref.UnitPrice, &ref.CostPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRef{}, shared.ErrNotFound
	}
	return ref, err
}

func (r *txRepo) AdjustProductStock(ctx context.Context, productID int64, delta int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET cartons_in_stock = cartons_in_stock + $2, updated_at=NOW() WHERE id=$1`, productID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	// The linked retail item mirrors cartons × units-per-carton at all
	// times, so every carton movement re-derives its stock.
	_, err = r.tx.Exec(ctx, `
		UPDATE items SET stock_quantity = p.cartons_in_stock * p.units_per_carton, updated_at=NOW()
		FROM products p
		WHERE p.id=$1 AND items.id = p.linked_item_id`, productID)
	return err
}
