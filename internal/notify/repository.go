package notify

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duka-erp/duka-erp/internal/shared"
)

// Repository assembles reminder rows by joining debts with customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reminderQuery = `
	SELECT d.id, c.name, c.phone, d.amount, d.amount - d.paid_amount, d.due_date, d.status,
	       d.due_date < CURRENT_DATE AND d.status <> 'paid'
	FROM debts d
	JOIN customers c ON c.id = d.customer_id`

func scanReminder(row pgx.Row) (Reminder, error) {
	var r Reminder
	err := row.Scan(&r.DebtID, &r.CustomerName, &r.Phone, &r.Amount, &r.Remaining, &r.DueDate, &r.Status, &r.Overdue)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reminder{}, shared.ErrNotFound
	}
	return r, err
}

// ReminderForDebt loads the reminder row for one debt.
func (r *Repository) ReminderForDebt(ctx context.Context, debtID int64) (Reminder, error) {
	return scanReminder(r.pool.QueryRow(ctx, reminderQuery+` WHERE d.id=$1`, debtID))
}

// OverdueReminders loads reminder rows for every overdue debt whose
// customer has a phone number.
func (r *Repository) OverdueReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, reminderQuery+`
		WHERE d.due_date < CURRENT_DATE AND d.status IN ('pending', 'partial') AND c.phone <> ''
		ORDER BY d.due_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reminder)
	}
	return out, rows.Err()
}
