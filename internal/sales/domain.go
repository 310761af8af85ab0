package sales

import (
	"time"

	"github.com/duka-erp/duka-erp/internal/shared"
)

// Kind discriminates regular sales from synthetic debt-payment sales.
type Kind string

const (
	KindNormal  Kind = "normal"
	KindPayment Kind = "payment"
)

// PaymentMethod enumerates how a sale was settled.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCredit       PaymentMethod = "credit"
)

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodCredit:
		return true
	}
	return false
}

// LineKind discriminates retail item lines from wholesale carton lines.
type LineKind string

const (
	LineRetail    LineKind = "retail"
	LineWholesale LineKind = "wholesale"
)

// Sale is a sales transaction. A payment sale carries no lines and a
// back-reference to the debt it settles.
type Sale struct {
	ID            int64         `json:"id"`
	Kind          Kind          `json:"kind"`
	CustomerID    *int64        `json:"customer_id,omitempty"`
	SaleDate      time.Time     `json:"sale_date"`
	TotalAmount   float64       `json:"total_amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Paid          bool          `json:"is_paid"`
	Notes         string        `json:"notes"`
	DebtID        *int64        `json:"debt_id,omitempty"`
	CreatedBy     int64         `json:"created_by"`
	Lines         []Line        `json:"lines,omitempty"`
}

// Line is one item position on a sale. Exactly one of ItemID/ProductID is
// set, matching the line kind.
type Line struct {
	ID         int64    `json:"id"`
	SaleID     int64    `json:"sale_id"`
	Kind       LineKind `json:"kind"`
	ItemID     *int64   `json:"item_id,omitempty"`
	ProductID  *int64   `json:"product_id,omitempty"`
	Quantity   int      `json:"quantity"`
	UnitPrice  float64  `json:"unit_price"`
	TotalPrice float64  `json:"total_price"`
}

// RefID returns the referenced item or product id for the line's kind.
func (l Line) RefID() int64 {
	switch l.Kind {
	case LineRetail:
		if l.ItemID != nil {
			return *l.ItemID
		}
	case LineWholesale:
		if l.ProductID != nil {
			return *l.ProductID
		}
	}
	return 0
}

// NewLine builds a validated line; the reference must match the kind.
func NewLine(kind LineKind, refID int64, quantity int, unitPrice float64) (Line, error) {
	if kind != LineRetail && kind != LineWholesale {
		return Line{}, &shared.ValidationError{Field: "kind", Reason: "must be retail or wholesale"}
	}
	if refID <= 0 {
		return Line{}, &shared.ValidationError{Field: "reference", Reason: "item or product required"}
	}
	if quantity < 1 {
		return Line{}, &shared.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if unitPrice <= 0 {
		return Line{}, &shared.ValidationError{Field: "unit_price", Reason: "must be positive"}
	}
	line := Line{Kind: kind, Quantity: quantity, UnitPrice: unitPrice, TotalPrice: float64(quantity) * unitPrice}
	if kind == LineRetail {
		line.ItemID = &refID
	} else {
		line.ProductID = &refID
	}
	return line, nil
}

// Filter narrows sale listings.
type Filter struct {
	CustomerID int64
	Paid       *bool
	Kind       Kind
	From       time.Time
	To         time.Time
	Page       int
	PerPage    int
}

// StockRef is a locked stock row (retail item or wholesale product) seen
// by the sale mutations.
type StockRef struct {
	ID        int64
	Name      string
	Stock     int
	UnitPrice float64
	CostPrice float64
}

// DebtBasis is what the debt ledger knows about a debt when payment-sale
// profit is prorated.
type DebtBasis struct {
	Amount        float64
	OriginSaleID  *int64
	ItemCostTotal float64
}
