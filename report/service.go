package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/duka-erp/duka-erp/internal/customers"
	"github.com/duka-erp/duka-erp/internal/expenses"
	"github.com/duka-erp/duka-erp/internal/sales"
)

// SaleRow is one exported sale.
type SaleRow struct {
	ID        int64
	Date      time.Time
	Customer  string
	Amount    float64
	Profit    float64
	Method    string
	Status    string
	CreatedBy int64
}

// ExpenditureRow is one exported expenditure.
type ExpenditureRow struct {
	ID          int64
	Date        time.Time
	Category    string
	Description string
	Amount      float64
	CreatedBy   int64
}

// SalesSource feeds sale rows into exports.
type SalesSource interface {
	List(ctx context.Context, filter sales.Filter) ([]sales.Sale, int, error)
	Profit(ctx context.Context, saleID int64) (float64, error)
}

// ExpenseSource feeds expenditure rows into exports.
type ExpenseSource interface {
	List(ctx context.Context, filter expenses.Filter) ([]expenses.Expenditure, int, error)
}

// CustomerSource resolves customer names for exports.
type CustomerSource interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
}

// Listings are paged, so exports walk pages at the listing cap.
const exportPageSize = 100

// Service assembles export rows from the domain services.
type Service struct {
	salesSrc    SalesSource
	expenseSrc  ExpenseSource
	customerSrc CustomerSource
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(salesSrc SalesSource, expenseSrc ExpenseSource, customerSrc CustomerSource, logger *slog.Logger) *Service {
	return &Service{salesSrc: salesSrc, expenseSrc: expenseSrc, customerSrc: customerSrc, logger: logger}
}

// SaleRows collects every sale in the range as export rows. Profit is
// computed per sale; a customer that cannot be resolved exports blank.
func (s *Service) SaleRows(ctx context.Context, from, to time.Time) ([]SaleRow, error) {
	names := make(map[int64]string)
	var rows []SaleRow
	for page := 1; ; page++ {
		batch, total, err := s.salesSrc.List(ctx, sales.Filter{From: from, To: to, Page: page, PerPage: exportPageSize})
		if err != nil {
			return nil, err
		}
		for _, sale := range batch {
			row := SaleRow{
				ID:        sale.ID,
				Date:      sale.SaleDate,
				Amount:    sale.TotalAmount,
				Method:    string(sale.PaymentMethod),
				Status:    saleStatus(sale),
				CreatedBy: sale.CreatedBy,
			}
			if sale.CustomerID != nil {
				row.Customer = s.customerName(ctx, names, *sale.CustomerID)
			}
			profit, err := s.salesSrc.Profit(ctx, sale.ID)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("profit unavailable for export", "sale_id", sale.ID, "err", err)
				}
			} else {
				row.Profit = profit
			}
			rows = append(rows, row)
		}
		if len(rows) >= total || len(batch) == 0 {
			return rows, nil
		}
	}
}

// ExpenditureRows collects every expenditure in the range as export rows.
func (s *Service) ExpenditureRows(ctx context.Context, from, to time.Time) ([]ExpenditureRow, error) {
	var rows []ExpenditureRow
	for page := 1; ; page++ {
		batch, total, err := s.expenseSrc.List(ctx, expenses.Filter{From: from, To: to, Page: page, PerPage: exportPageSize})
		if err != nil {
			return nil, err
		}
		for _, e := range batch {
			rows = append(rows, ExpenditureRow{
				ID:          e.ID,
				Date:        e.ExpenseDate,
				Category:    string(e.Category),
				Description: e.Description,
				Amount:      e.Amount,
				CreatedBy:   e.CreatedBy,
			})
		}
		if len(rows) >= total || len(batch) == 0 {
			return rows, nil
		}
	}
}

func (s *Service) customerName(ctx context.Context, cache map[int64]string, id int64) string {
	if name, ok := cache[id]; ok {
		return name
	}
	customer, err := s.customerSrc.Get(ctx, id)
	if err != nil {
		cache[id] = ""
		return ""
	}
	cache[id] = customer.Name
	return customer.Name
}

func saleStatus(sale sales.Sale) string {
	switch {
	case sale.Kind == sales.KindPayment:
		return "payment"
	case sale.Paid:
		return "paid"
	default:
		return "credit"
	}
}
