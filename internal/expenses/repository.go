package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duka-erp/duka-erp/internal/shared"
)

// Repository persists expenditures in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, category, description, amount, expense_date, created_by, created_at`

func scan(row pgx.Row) (Expenditure, error) {
	var e Expenditure
	err := row.Scan(&e.ID, &e.Category, &e.Description, &e.Amount, &e.ExpenseDate, &e.CreatedBy, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expenditure{}, shared.ErrNotFound
	}
	return e, err
}

// Insert stores a new expenditure.
func (r *Repository) Insert(ctx context.Context, e Expenditure) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO expenditures (category, description, amount, expense_date, created_by)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.Category, e.Description, e.Amount, e.ExpenseDate, e.CreatedBy).Scan(&id)
	return id, err
}

// Update replaces the mutable fields of an expenditure.
func (r *Repository) Update(ctx context.Context, e Expenditure) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE expenditures SET category=$2, description=$3, amount=$4, expense_date=$5 WHERE id=$1`,
		e.ID, e.Category, e.Description, e.Amount, e.ExpenseDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an expenditure.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenditures WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Get loads one expenditure.
func (r *Repository) Get(ctx context.Context, id int64) (Expenditure, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM expenditures WHERE id=$1`, id))
}

func filterClauses(filter Filter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		clauses = append(clauses, fmt.Sprintf("expense_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		clauses = append(clauses, fmt.Sprintf("expense_date <= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List fetches expenditures with filters and pagination, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Expenditure, int, error) {
	where, args := filterClauses(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenditures`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM expenditures%s ORDER BY expense_date DESC LIMIT $%d OFFSET $%d`, columns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Expenditure
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Summarize aggregates spend per category within the filter's date range.
func (r *Repository) Summarize(ctx context.Context, filter Filter) (Summary, error) {
	where, args := filterClauses(filter)
	rows, err := r.pool.Query(ctx, `SELECT category, COALESCE(SUM(amount), 0) FROM expenditures`+where+` GROUP BY category`, args...)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	summary := Summary{From: filter.From, To: filter.To, ByCategory: make(map[Category]float64)}
	for rows.Next() {
		var category Category
		var amount float64
		if err := rows.Scan(&category, &amount); err != nil {
			return Summary{}, err
		}
		summary.ByCategory[category] = amount
		summary.Total += amount
	}
	return summary, rows.Err()
}
