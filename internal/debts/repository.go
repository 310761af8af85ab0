package debts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duka-erp/duka-erp/internal/platform/db"
	"github.com/duka-erp/duka-erp/internal/sales"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// Repository persists debts and payments in PostgreSQL. It also reads and
// writes sale rows directly: payment sales and reversals must commit in the
// same transaction as the debt mutation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	GetDebtForUpdate(ctx context.Context, id int64) (Debt, error)
	GetDebtBySaleForUpdate(ctx context.Context, saleID int64) (Debt, error)
	InsertDebt(ctx context.Context, d Debt) (int64, error)
	UpdateDebt(ctx context.Context, d Debt) error
	DeleteAutoDebtsBySale(ctx context.Context, saleID int64) error
	LinkDebtSale(ctx context.Context, debtID, saleID int64) error

	InsertPayment(ctx context.Context, p Payment) (int64, error)

	GetSaleRef(ctx context.Context, saleID int64) (saleRef, error)
	GetSaleRefForUpdate(ctx context.Context, saleID int64) (saleRef, error)
	FirstRetailLine(ctx context.Context, saleID int64) (itemID int64, quantity int, err error)
	InsertPaymentSale(ctx context.Context, customerID int64, amount float64, method sales.PaymentMethod, notes string, debtID, createdBy int64) (int64, error)
	DeleteSaleRow(ctx context.Context, saleID int64) error

	GetItemForUpdate(ctx context.Context, itemID int64) (itemRef, error)
	AdjustItemStock(ctx context.Context, itemID int64, delta int) error
	EnsureMiscItem(ctx context.Context) (int64, error)
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

const debtColumns = `id, customer_id, sale_id, item_id, quantity, amount, paid_amount, due_date, status, auto_created, notes, created_by, created_at, updated_at`

func scanDebt(row pgx.Row) (Debt, error) {
	var d Debt
	err := row.Scan(&d.ID, &d.CustomerID, &d.SaleID, &d.ItemID, &d.Quantity, &d.Amount, &d.PaidAmount, &d.DueDate, &d.Status, &d.AutoCreated, &d.Notes, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Debt{}, shared.ErrNotFound
	}
	return d, err
}

// GetDebt loads one debt.
func (r *Repository) GetDebt(ctx context.Context, id int64) (Debt, error) {
	return scanDebt(r.pool.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id=$1`, id))
}

// List fetches debts with filters and pagination. OverdueOnly selects debts
// past due that are still pending or partially paid.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Debt, int, error) {
	var clauses []string
	var args []any
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.OverdueOnly {
		clauses = append(clauses, `due_date < CURRENT_DATE AND status IN ('pending', 'partial')`)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM debts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM debts%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, debtColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// Overdue fetches every debt past due that is still pending or partially
// paid, oldest due date first. Used by the reminder jobs.
func (r *Repository) Overdue(ctx context.Context) ([]Debt, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+debtColumns+` FROM debts WHERE due_date < CURRENT_DATE AND status IN ('pending', 'partial') ORDER BY due_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ItemCost reads the cost price of an item.
func (r *Repository) ItemCost(ctx context.Context, itemID int64) (float64, error) {
	var cost float64
	err := r.pool.QueryRow(ctx, `SELECT cost_price FROM items WHERE id=$1`, itemID).Scan(&cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return cost, err
}

const paymentColumns = `id, debt_id, amount, payment_method, reference, notes, created_by, paid_at`

// ListPayments fetches all payments for a debt, newest first.
func (r *Repository) ListPayments(ctx context.Context, debtID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM debt_payments WHERE debt_id=$1 ORDER BY paid_at DESC`, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.Method, &p.Reference, &p.Notes, &p.CreatedBy, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepo) GetDebtForUpdate(ctx context.Context, id int64) (Debt, error) {
	return scanDebt(r.tx.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepo) GetDebtBySaleForUpdate(ctx context.Context, saleID int64) (Debt, error) {
	return scanDebt(r.tx.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE sale_id=$1 FOR UPDATE`, saleID))
}

func (r *txRepo) InsertDebt(ctx context.Context, d Debt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO debts (customer_id, sale_id, item_id, quantity, amount, paid_amount, due_date, status, auto_created, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		d.CustomerID, d.SaleID, d.ItemID, d.Quantity, d.Amount, d.PaidAmount, d.DueDate, d.Status, d.AutoCreated, d.Notes, d.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateDebt(ctx context.Context, d Debt) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE debts SET customer_id=$2, item_id=$3, quantity=$4, amount=$5, paid_amount=$6, due_date=$7, status=$8, notes=$9, updated_at=NOW()
		WHERE id=$1`,
		d.ID, d.CustomerID, d.ItemID, d.Quantity, d.Amount, d.PaidAmount, d.DueDate, d.Status, d.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) DeleteAutoDebtsBySale(ctx context.Context, saleID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM debts WHERE sale_id=$1 AND auto_created`, saleID)
	return err
}

func (r *txRepo) LinkDebtSale(ctx context.Context, debtID, saleID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE debts SET sale_id=$2, updated_at=NOW() WHERE id=$1`, debtID, saleID)
	return err
}

func (r *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO debt_payments (debt_id, amount, payment_method, reference, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.DebtID, p.Amount, p.Method, p.Reference, p.Notes, p.CreatedBy).Scan(&id)
	return id, err
}

const saleRefColumns = `id, kind, customer_id, sale_date, total_amount, is_paid, debt_id, created_by`

func scanSaleRef(row pgx.Row) (saleRef, error) {
	var s saleRef
	err := row.Scan(&s.ID, &s.Kind, &s.CustomerID, &s.SaleDate, &s.TotalAmount, &s.Paid, &s.DebtID, &s.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return saleRef{}, shared.ErrNotFound
	}
	return s, err
}

func (r *txRepo) GetSaleRef(ctx context.Context, saleID int64) (saleRef, error) {
	return scanSaleRef(r.tx.QueryRow(ctx, `SELECT `+saleRefColumns+` FROM sales WHERE id=$1`, saleID))
}

func (r *txRepo) GetSaleRefForUpdate(ctx context.Context, saleID int64) (saleRef, error) {
	return scanSaleRef(r.tx.QueryRow(ctx, `SELECT `+saleRefColumns+` FROM sales WHERE id=$1 FOR UPDATE`, saleID))
}

func (r *txRepo) FirstRetailLine(ctx context.Context, saleID int64) (int64, int, error) {
	var itemID int64
	var quantity int
	err := r.tx.QueryRow(ctx, `SELECT item_id, quantity FROM sale_lines WHERE sale_id=$1 AND kind='retail' ORDER BY id LIMIT 1`, saleID).Scan(&itemID, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, shared.ErrNotFound
	}
	return itemID, quantity, err
}

func (r *txRepo) InsertPaymentSale(ctx context.Context, customerID int64, amount float64, method sales.PaymentMethod, notes string, debtID, createdBy int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO sales (kind, customer_id, total_amount, payment_method, is_paid, notes, debt_id, created_by)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7) RETURNING id`,
		sales.KindPayment, customerID, amount, method, notes, debtID, createdBy).Scan(&id)
	return id, err
}

func (r *txRepo) DeleteSaleRow(ctx context.Context, saleID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE id=$1`, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) GetItemForUpdate(ctx context.Context, itemID int64) (itemRef, error) {
	var ref itemRef
	err := r.tx.QueryRow(ctx, `SELECT id, name, stock_quantity, unit_price, cost_price FROM items WHERE id=$1 FOR UPDATE`, itemID).
		Scan(&ref.ID, &ref.Name, &ref.Stock, &ref.UnitPrice, &ref.CostPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return itemRef{}, shared.ErrNotFound
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

// EnsureMiscItem returns the placeholder item, creating it on first use.
// The insert races are absorbed by the unique SKU index.
func (r *txRepo) EnsureMiscItem(ctx context.Context) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM items WHERE sku=$1`, miscItemSKU).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = r.tx.QueryRow(ctx, `
		INSERT INTO items (name, category_id, sku, description, unit_price, cost_price, stock_quantity, minimum_stock, supplier, is_active)
		VALUES ('Miscellaneous Debt', (SELECT MIN(id) FROM categories), $1, 'Placeholder for debts without a stock item', 0.01, 0.01, 0, 0, '', FALSE)
		ON CONFLICT (sku) DO UPDATE SET sku=EXCLUDED.sku
		RETURNING id`, miscItemSKU).Scan(&id)
	return id, err
}
