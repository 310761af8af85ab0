package expenses

import "time"

// Category classifies an expenditure.
type Category string

const (
	CategorySupplies  Category = "supplies"
	CategoryRent      Category = "rent"
	CategoryUtilities Category = "utilities"
	CategorySalary    Category = "salary"
	CategoryMarketing Category = "marketing"
	CategoryOther     Category = "other"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategorySupplies, CategoryRent, CategoryUtilities, CategorySalary, CategoryMarketing, CategoryOther:
		return true
	}
	return false
}

// Expenditure is money going out of the business.
type Expenditure struct {
	ID          int64     `json:"id"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	ExpenseDate time.Time `json:"expense_date"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter narrows expenditure listings.
type Filter struct {
	Category Category
	From     time.Time
	To       time.Time
	Page     int
	PerPage  int
}

// Summary aggregates spend over a period.
type Summary struct {
	From       time.Time            `json:"from"`
	To         time.Time            `json:"to"`
	Total      float64              `json:"total"`
	ByCategory map[Category]float64 `json:"by_category"`
}
