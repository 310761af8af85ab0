package debts

import (
	"time"

	"github.com/duka-erp/duka-erp/internal/sales"
)

// Status is the settlement state of a debt.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// StatusFor derives the status from the amounts. Paid wins on equality.
func StatusFor(paidAmount, amount float64) Status {
	switch {
	case paidAmount >= amount:
		return StatusPaid
	case paidAmount > 0:
		return StatusPartial
	default:
		return StatusPending
	}
}

// Debt is an amount a customer owes. Auto-created debts track an unpaid
// sale and follow it; manual debts are entered directly against an item.
type Debt struct {
	ID          int64     `json:"id"`
	CustomerID  int64     `json:"customer_id"`
	SaleID      *int64    `json:"sale_id,omitempty"`
	ItemID      int64     `json:"item_id"`
	Quantity    int       `json:"quantity"`
	Amount      float64   `json:"amount"`
	PaidAmount  float64   `json:"paid_amount"`
	DueDate     time.Time `json:"due_date"`
	Status      Status    `json:"status"`
	AutoCreated bool      `json:"auto_created"`
	Notes       string    `json:"notes"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Remaining is the unpaid balance.
func (d Debt) Remaining() float64 {
	return d.Amount - d.PaidAmount
}

// IsOverdue reports whether the debt is past due and not settled. Like the
// repository's CURRENT_DATE comparison, whole calendar dates are compared,
// not instants.
func (d Debt) IsOverdue(today time.Time) bool {
	if d.Status == StatusPaid {
		return false
	}
	dy, dm, dd := d.DueDate.Date()
	ty, tm, td := today.Date()
	due := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	now := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return due.Before(now)
}

// Payment is an append-only record of money received against a debt.
type Payment struct {
	ID        int64               `json:"id"`
	DebtID    int64               `json:"debt_id"`
	Amount    float64             `json:"amount"`
	Method    sales.PaymentMethod `json:"payment_method"`
	Reference string              `json:"reference"`
	Notes     string              `json:"notes"`
	CreatedBy int64               `json:"created_by"`
	PaidAt    time.Time           `json:"paid_at"`
}

// Filter narrows debt listings.
type Filter struct {
	CustomerID  int64
	Status      Status
	OverdueOnly bool
	Page        int
	PerPage     int
}

// saleRef is the slice of a sale row the debt ledger works with.
type saleRef struct {
	ID          int64
	Kind        sales.Kind
	CustomerID  *int64
	SaleDate    time.Time
	TotalAmount float64
	Paid        bool
	DebtID      *int64
	CreatedBy   int64
}

// itemRef is a locked item row seen by debt mutations.
type itemRef struct {
	ID        int64
	Name      string
	Stock     int
	UnitPrice float64
	CostPrice float64
}

// Debts auto-created from a sale fall due one week after the sale date.
const dueDateGraceDays = 7

// Placeholder item backing debts that reference no concrete stock.
const miscItemSKU = "MISC-DEBT"
