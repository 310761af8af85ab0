package debts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duka-erp/duka-erp/internal/observability"
	"github.com/duka-erp/duka-erp/internal/sales"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDebt(ctx context.Context, id int64) (Debt, error)
	List(ctx context.Context, filter Filter) ([]Debt, int, error)
	Overdue(ctx context.Context) ([]Debt, error)
	ListPayments(ctx context.Context, debtID int64) ([]Payment, error)
	ItemCost(ctx context.Context, itemID int64) (float64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards payment submissions against retries.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key string) error
}

const paymentIdempotencyScope = "debts.payment"

// Service is the debt ledger. It owns debt and payment mutations and keeps
// auto-created debts in step with their sales; it also satisfies the
// sales.DebtLedger port.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	idem    IdempotencyPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service. audit, idem and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, idem: idem, metrics: metrics, logger: logger, now: time.Now}
}

// CreateInput is the payload for manually recording a debt.
type CreateInput struct {
	ActorID    int64
	CustomerID int64
	ItemID     int64
	Quantity   int
	Amount     float64
	DueDate    time.Time
	Notes      string
}

// CreateDebt records a debt entered directly, reserving the item's stock.
// A zero amount defaults to unit price times quantity; an amount equal to
// the unit price is treated as per-unit and multiplied out.
func (s *Service) CreateDebt(ctx context.Context, input CreateInput) (Debt, error) {
	if input.CustomerID <= 0 {
		return Debt{}, &shared.ValidationError{Field: "customer_id", Reason: "required"}
	}
	if input.ItemID <= 0 {
		return Debt{}, &shared.ValidationError{Field: "item_id", Reason: "required"}
	}
	if input.Quantity < 1 {
		return Debt{}, &shared.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if input.Amount < 0 {
		return Debt{}, &shared.ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if input.DueDate.IsZero() {
		return Debt{}, &shared.ValidationError{Field: "due_date", Reason: "required"}
	}
	var debtID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		amount := input.Amount
		if amount == 0 || amount == item.UnitPrice {
			amount = item.UnitPrice * float64(input.Quantity)
		}
		if item.Stock < input.Quantity {
			if s.metrics != nil {
				s.metrics.StockConflicts.Inc()
			}
			return &shared.InsufficientStockError{Name: item.Name, Available: item.Stock, Requested: input.Quantity}
		}
		if err := tx.AdjustItemStock(ctx, input.ItemID, -input.Quantity); err != nil {
			return err
		}
		debtID, err = tx.InsertDebt(ctx, Debt{
			CustomerID: input.CustomerID,
			ItemID:     input.ItemID,
			Quantity:   input.Quantity,
			Amount:     amount,
			DueDate:    input.DueDate,
			Status:     StatusPending,
			Notes:      input.Notes,
			CreatedBy:  input.ActorID,
		})
		return err
	})
	if err != nil {
		return Debt{}, err
	}
	s.recordAudit(ctx, input.ActorID, "debts:create", debtID, map[string]any{"customer": input.CustomerID})
	return s.repo.GetDebt(ctx, debtID)
}

// Get loads one debt.
func (s *Service) Get(ctx context.Context, id int64) (Debt, error) {
	return s.repo.GetDebt(ctx, id)
}

// List fetches debts with filters and pagination.
func (s *Service) List(ctx context.Context, filter Filter) ([]Debt, int, error) {
	return s.repo.List(ctx, filter)
}

// Overdue fetches every debt past due that still carries a balance.
func (s *Service) Overdue(ctx context.Context) ([]Debt, error) {
	return s.repo.Overdue(ctx)
}

// Payments fetches the payment history of a debt.
func (s *Service) Payments(ctx context.Context, debtID int64) ([]Payment, error) {
	if _, err := s.repo.GetDebt(ctx, debtID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, debtID)
}

// PaymentInput is the payload for recording a payment against a debt.
type PaymentInput struct {
	Amount         float64
	Method         sales.PaymentMethod
	Notes          string
	IdempotencyKey string
}

// RecordPayment applies a payment to a debt: the payment row, the updated
// balance and status, and a synthetic paid sale all commit together. The
// payment may never exceed the remaining balance.
func (s *Service) RecordPayment(ctx context.Context, actorID, debtID int64, input PaymentInput) (Debt, error) {
	if input.Amount <= 0 {
		return Debt{}, &shared.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !sales.ValidMethod(input.Method) {
		return Debt{}, &shared.ValidationError{Field: "payment_method", Reason: "unknown method"}
	}
	keyed := input.IdempotencyKey != "" && s.idem != nil
	if keyed {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, paymentIdempotencyScope); err != nil {
			return Debt{}, err
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		debt, err := tx.GetDebtForUpdate(ctx, debtID)
		if err != nil {
			return err
		}
		if input.Amount > debt.Remaining() {
			return &shared.ValidationError{Field: "amount", Reason: fmt.Sprintf("exceeds remaining balance of %.2f", debt.Remaining())}
		}
		if _, err := tx.InsertPayment(ctx, Payment{
			DebtID:    debtID,
			Amount:    input.Amount,
			Method:    input.Method,
			Reference: uuid.NewString(),
			Notes:     input.Notes,
			CreatedBy: actorID,
		}); err != nil {
			return err
		}
		debt.PaidAmount += input.Amount
		debt.Status = StatusFor(debt.PaidAmount, debt.Amount)
		if err := tx.UpdateDebt(ctx, debt); err != nil {
			return err
		}
		item, err := tx.GetItemForUpdate(ctx, debt.ItemID)
		if err != nil {
			return err
		}
		notes := fmt.Sprintf("Payment for debt #%d: %s", debt.ID, item.Name)
		saleID, err := tx.InsertPaymentSale(ctx, debt.CustomerID, input.Amount, input.Method, notes, debt.ID, actorID)
		if err != nil {
			return err
		}
		// Keep the originating sale link; only a debt with no sale gets
		// attached to its first payment sale.
		if debt.SaleID == nil {
			return tx.LinkDebtSale(ctx, debt.ID, saleID)
		}
		return nil
	})
	if err != nil {
		if keyed {
			_ = s.idem.Delete(ctx, input.IdempotencyKey)
		}
		return Debt{}, err
	}
	if s.metrics != nil {
		s.metrics.DebtPayments.Inc()
		s.metrics.SalesCreated.Inc()
	}
	s.recordAudit(ctx, actorID, "debts:payment", debtID, map[string]any{"amount": input.Amount})
	return s.repo.GetDebt(ctx, debtID)
}

// SyncForSale reconciles the debt ledger after a sale mutation:
//   - no customer or zero total removes any auto-created debt;
//   - a paid sale settles its debt in full;
//   - an unpaid sale with a customer and positive total gets a debt created
//     or updated, due one week after the sale date.
//
// The paid amount of an existing debt is never overwritten.
func (s *Service) SyncForSale(ctx context.Context, saleID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleRef(ctx, saleID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		if sale.Kind == sales.KindPayment {
			// Payment sales settle debts through RecordPayment.
			return nil
		}
		if sale.CustomerID == nil || sale.TotalAmount <= 0 {
			return tx.DeleteAutoDebtsBySale(ctx, saleID)
		}
		if sale.Paid {
			debt, err := tx.GetDebtBySaleForUpdate(ctx, saleID)
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			debt.PaidAmount = debt.Amount
			debt.Status = StatusPaid
			return tx.UpdateDebt(ctx, debt)
		}
		dueDate := s.dueDateFor(sale.SaleDate)
		itemID, quantity, err := tx.FirstRetailLine(ctx, saleID)
		if errors.Is(err, shared.ErrNotFound) {
			itemID, err = tx.EnsureMiscItem(ctx)
			quantity = 1
		}
		if err != nil {
			return err
		}
		debt, err := tx.GetDebtBySaleForUpdate(ctx, saleID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			id := saleID
			_, err = tx.InsertDebt(ctx, Debt{
				CustomerID:  *sale.CustomerID,
				SaleID:      &id,
				ItemID:      itemID,
				Quantity:    quantity,
				Amount:      sale.TotalAmount,
				DueDate:     dueDate,
				Status:      StatusPending,
				AutoCreated: true,
				CreatedBy:   sale.CreatedBy,
			})
			return err
		case err != nil:
			return err
		}
		debt.CustomerID = *sale.CustomerID
		debt.Amount = sale.TotalAmount
		if debt.ItemID == 0 {
			debt.ItemID = itemID
			debt.Quantity = quantity
		}
		debt.Status = StatusFor(debt.PaidAmount, debt.Amount)
		if debt.AutoCreated {
			debt.DueDate = dueDate
		}
		return tx.UpdateDebt(ctx, debt)
	})
}

// ReversePaymentSale undoes a payment sale: the debt item's stock comes
// back, the paid amount rolls back (floored at zero), the status is
// recomputed and the sale row goes, all in one transaction.
func (s *Service) ReversePaymentSale(ctx context.Context, saleID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleRefForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Kind != sales.KindPayment {
			return &shared.ValidationError{Field: "sale", Reason: "not a payment sale"}
		}
		if sale.DebtID != nil {
			debt, err := tx.GetDebtForUpdate(ctx, *sale.DebtID)
			switch {
			case errors.Is(err, shared.ErrNotFound):
				// Debt already removed; just drop the sale.
			case err != nil:
				return err
			default:
				if err := tx.AdjustItemStock(ctx, debt.ItemID, debt.Quantity); err != nil && !errors.Is(err, shared.ErrNotFound) {
					return err
				}
				debt.PaidAmount -= sale.TotalAmount
				if debt.PaidAmount < 0 {
					debt.PaidAmount = 0
				}
				debt.Status = StatusFor(debt.PaidAmount, debt.Amount)
				if err := tx.UpdateDebt(ctx, debt); err != nil {
					return err
				}
			}
		}
		return tx.DeleteSaleRow(ctx, saleID)
	})
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("payment sale reversed", "sale_id", saleID)
	}
	return nil
}

// DebtBasis reports the amounts the sales service needs to prorate
// payment-sale profit.
func (s *Service) DebtBasis(ctx context.Context, debtID int64) (sales.DebtBasis, error) {
	debt, err := s.repo.GetDebt(ctx, debtID)
	if err != nil {
		return sales.DebtBasis{}, err
	}
	cost, err := s.repo.ItemCost(ctx, debt.ItemID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return sales.DebtBasis{}, err
	}
	return sales.DebtBasis{
		Amount:        debt.Amount,
		OriginSaleID:  debt.SaleID,
		ItemCostTotal: cost * float64(debt.Quantity),
	}, nil
}

// dueDateFor is the sale's calendar date plus the grace week. AddDate keeps
// the arithmetic in whole days, so a DST shift inside the week cannot move
// the due date onto the wrong calendar day.
func (s *Service) dueDateFor(saleDate time.Time) time.Time {
	if saleDate.IsZero() {
		saleDate = s.now()
	}
	y, m, d := saleDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, saleDate.Location()).AddDate(0, 0, dueDateGraceDays)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, debtID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "debt", EntityID: debtID, Meta: meta})
}
