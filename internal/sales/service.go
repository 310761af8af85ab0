package sales

import (
	"context"
	"errors"
	"log/slog"

	"github.com/duka-erp/duka-erp/internal/observability"
	"github.com/duka-erp/duka-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, filter Filter) ([]Sale, int, error)
}

// DebtLedger is the debts module seen from sales. Sales never import the
// debts package; the concrete service is injected at wiring time.
type DebtLedger interface {
	// SyncForSale reconciles the auto-created debt after a sale mutation.
	SyncForSale(ctx context.Context, saleID int64) error
	// ReversePaymentSale undoes a payment sale: restores the debt item
	// stock, rolls back the paid amount and deletes the sale row, all in
	// one transaction.
	ReversePaymentSale(ctx context.Context, saleID int64) error
	// DebtBasis reports the amounts needed to prorate payment-sale profit.
	DebtBasis(ctx context.Context, debtID int64) (DebtBasis, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates sale mutations and keeps stock, totals and debts
// consistent.
type Service struct {
	repo    RepositoryPort
	ledger  DebtLedger
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService builds Service. ledger, audit and metrics may be nil.
func NewService(repo RepositoryPort, ledger DebtLedger, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit, metrics: metrics, logger: logger}
}

// LineInput describes one line to add to a sale.
type LineInput struct {
	Kind      LineKind
	ItemID    int64
	ProductID int64
	Quantity  int
	UnitPrice float64
}

func (in LineInput) toLine() (Line, error) {
	refID := in.ItemID
	if in.Kind == LineWholesale {
		refID = in.ProductID
	}
	if in.ItemID != 0 && in.ProductID != 0 {
		return Line{}, &shared.ValidationError{Field: "reference", Reason: "set either item_id or product_id, not both"}
	}
	return NewLine(in.Kind, refID, in.Quantity, in.UnitPrice)
}

// CreateInput is the payload for creating a sale.
type CreateInput struct {
	ActorID       int64
	CustomerID    *int64
	PaymentMethod PaymentMethod
	Paid          bool
	Notes         string
	Lines         []LineInput
}

// CreateSale atomically inserts the sale, applies every line's stock
// check-and-decrement and sets the total. On any failure nothing is left
// behind.
func (s *Service) CreateSale(ctx context.Context, input CreateInput) (Sale, error) {
	if !ValidMethod(input.PaymentMethod) {
		return Sale{}, &shared.ValidationError{Field: "payment_method", Reason: "unknown method"}
	}
	lines := make([]Line, 0, len(input.Lines))
	for _, in := range input.Lines {
		line, err := in.toLine()
		if err != nil {
			return Sale{}, err
		}
		lines = append(lines, line)
	}
	var saleID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		saleID, err = tx.InsertSale(ctx, Sale{
			Kind:          KindNormal,
			CustomerID:    input.CustomerID,
			PaymentMethod: input.PaymentMethod,
			Paid:          input.Paid,
			Notes:         input.Notes,
			CreatedBy:     input.ActorID,
		})
		if err != nil {
			return err
		}
		for _, line := range lines {
			line.SaleID = saleID
			if err := s.applyLine(ctx, tx, line); err != nil {
				return err
			}
		}
		return s.recomputeTotal(ctx, tx, saleID)
	})
	if err != nil {
		return Sale{}, err
	}
	if s.metrics != nil {
		s.metrics.SalesCreated.Inc()
	}
	s.recordAudit(ctx, input.ActorID, "sales:create", saleID, map[string]any{"lines": len(lines)})
	if err := s.syncDebt(ctx, saleID); err != nil {
		return Sale{}, err
	}
	return s.repo.GetSale(ctx, saleID)
}

// AddLine adds a line to an existing sale, merging into an existing line
// for the same item or product. The sale row is locked so concurrent adds
// serialize.
func (s *Service) AddLine(ctx context.Context, actorID, saleID int64, input LineInput) (Sale, error) {
	line, err := input.toLine()
	if err != nil {
		return Sale{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Kind == KindPayment {
			return &shared.ValidationError{Field: "sale", Reason: "payment sales carry no lines"}
		}
		line.SaleID = saleID
		if err := s.applyLine(ctx, tx, line); err != nil {
			return err
		}
		return s.recomputeTotal(ctx, tx, saleID)
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "sales:add_line", saleID, map[string]any{"kind": line.Kind, "ref": line.RefID(), "qty": line.Quantity})
	if err := s.syncDebt(ctx, saleID); err != nil {
		return Sale{}, err
	}
	return s.repo.GetSale(ctx, saleID)
}

// applyLine merges or inserts a line, re-validating stock only for the
// increment when a line for the same reference already exists.
func (s *Service) applyLine(ctx context.Context, tx TxRepository, line Line) error {
	ref, err := s.lockStock(ctx, tx, line.Kind, line.RefID())
	if err != nil {
		return err
	}
	if ref.Stock < line.Quantity {
		if s.metrics != nil {
			s.metrics.StockConflicts.Inc()
		}
		return &shared.InsufficientStockError{Name: ref.Name, Available: ref.Stock, Requested: line.Quantity}
	}
	existing, err := tx.FindLine(ctx, line.SaleID, line.Kind, line.RefID())
	switch {
	case err == nil:
		existing.Quantity += line.Quantity
		existing.UnitPrice = line.UnitPrice
		existing.TotalPrice = float64(existing.Quantity) * existing.UnitPrice
		if err := tx.UpdateLine(ctx, existing); err != nil {
			return err
		}
	case errors.Is(err, shared.ErrNotFound):
		if _, err := tx.InsertLine(ctx, line); err != nil {
			return err
		}
	default:
		return err
	}
	return s.adjustStock(ctx, tx, line.Kind, line.RefID(), -line.Quantity)
}

// RemoveLine deletes a line and restores its stock.
func (s *Service) RemoveLine(ctx context.Context, actorID, saleID, lineID int64) (Sale, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetSaleForUpdate(ctx, saleID); err != nil {
			return err
		}
		line, err := tx.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.SaleID != saleID {
			return shared.ErrNotFound
		}
		if err := s.adjustStock(ctx, tx, line.Kind, line.RefID(), line.Quantity); err != nil {
			return err
		}
		if err := tx.DeleteLine(ctx, lineID); err != nil {
			return err
		}
		return s.recomputeTotal(ctx, tx, saleID)
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "sales:remove_line", saleID, map[string]any{"line": lineID})
	if err := s.syncDebt(ctx, saleID); err != nil {
		return Sale{}, err
	}
	return s.repo.GetSale(ctx, saleID)
}

// HeaderInput is the payload for updating a sale's header fields.
type HeaderInput struct {
	CustomerID    *int64
	PaymentMethod PaymentMethod
	Paid          bool
	Notes         string
}

// UpdateHeader replaces the sale's header fields; flipping the paid flag
// is how a credit sale gets settled outside the debts flow.
func (s *Service) UpdateHeader(ctx context.Context, actorID, saleID int64, input HeaderInput) (Sale, error) {
	if !ValidMethod(input.PaymentMethod) {
		return Sale{}, &shared.ValidationError{Field: "payment_method", Reason: "unknown method"}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Kind == KindPayment {
			return &shared.ValidationError{Field: "sale", Reason: "payment sales cannot be edited; delete to reverse"}
		}
		sale.CustomerID = input.CustomerID
		sale.PaymentMethod = input.PaymentMethod
		sale.Paid = input.Paid
		sale.Notes = input.Notes
		return tx.UpdateSaleHeader(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "sales:update", saleID, nil)
	if err := s.syncDebt(ctx, saleID); err != nil {
		return Sale{}, err
	}
	return s.repo.GetSale(ctx, saleID)
}

// Delete removes a sale. Every line's stock is restored inside the delete
// transaction before the rows go, so bulk deletion can never leak stock.
// Payment sales are handed to the debt ledger for a full reversal.
func (s *Service) Delete(ctx context.Context, actorID, saleID int64) error {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Kind == KindPayment {
		if s.ledger == nil {
			return &shared.ValidationError{Field: "sale", Reason: "payment sale reversal unavailable"}
		}
		if err := s.ledger.ReversePaymentSale(ctx, saleID); err != nil {
			return err
		}
		s.recordAudit(ctx, actorID, "sales:reverse_payment", saleID, nil)
		return nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetSaleForUpdate(ctx, saleID); err != nil {
			return err
		}
		lines, err := tx.ListLines(ctx, saleID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.adjustStock(ctx, tx, line.Kind, line.RefID(), line.Quantity); err != nil {
				return err
			}
			if err := tx.DeleteLine(ctx, line.ID); err != nil {
				return err
			}
		}
		return tx.DeleteSale(ctx, saleID)
	})
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("sale deleted, stock restored", "sale_id", saleID, "lines", len(sale.Lines))
	}
	s.recordAudit(ctx, actorID, "sales:delete", saleID, map[string]any{"lines": len(sale.Lines)})
	return nil
}

// Get loads a sale with lines.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// List fetches sale headers with filters and pagination.
func (s *Service) List(ctx context.Context, filter Filter) ([]Sale, int, error) {
	return s.repo.List(ctx, filter)
}

// Profit computes the sale's profit. Regular sales: revenue minus cost of
// goods over retail lines; wholesale lines contribute revenue at zero cost.
// Payment sales: the originating sale's profit prorated by the fraction of
// the debt this payment covers.
func (s *Service) Profit(ctx context.Context, saleID int64) (float64, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return 0, err
	}
	return s.profitOf(ctx, sale)
}

func (s *Service) profitOf(ctx context.Context, sale Sale) (float64, error) {
	if len(sale.Lines) > 0 {
		var cost float64
		for _, line := range sale.Lines {
			if line.Kind != LineRetail || line.ItemID == nil {
				continue
			}
			unitCost, err := s.itemCost(ctx, *line.ItemID)
			if err != nil {
				return 0, err
			}
			cost += unitCost * float64(line.Quantity)
		}
		return sale.TotalAmount - cost, nil
	}
	if sale.Kind != KindPayment || sale.DebtID == nil || s.ledger == nil {
		// A line-less regular sale has no cost information; report zero
		// rather than overstating profit on a bare cash receipt.
		return 0, nil
	}
	basis, err := s.ledger.DebtBasis(ctx, *sale.DebtID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return sale.TotalAmount, nil
		}
		return 0, err
	}
	if basis.Amount <= 0 {
		return 0, nil
	}
	ratio := sale.TotalAmount / basis.Amount
	if basis.OriginSaleID != nil && *basis.OriginSaleID != sale.ID {
		origin, err := s.repo.GetSale(ctx, *basis.OriginSaleID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return sale.TotalAmount, nil
			}
			return 0, err
		}
		originProfit, err := s.profitOf(ctx, origin)
		if err != nil {
			return 0, err
		}
		return originProfit * ratio, nil
	}
	return (basis.Amount - basis.ItemCostTotal) * ratio, nil
}

// itemCost reads the current cost price for a retail item outside any
// stock lock; profit is a reporting concern.
func (s *Service) itemCost(ctx context.Context, itemID int64) (float64, error) {
	var cost float64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ref, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		cost = ref.CostPrice
		return nil
	})
	return cost, err
}

func (s *Service) lockStock(ctx context.Context, tx TxRepository, kind LineKind, refID int64) (StockRef, error) {
	if kind == LineWholesale {
		return tx.GetProductForUpdate(ctx, refID)
	}
	return tx.GetItemForUpdate(ctx, refID)
}

func (s *Service) adjustStock(ctx context.Context, tx TxRepository, kind LineKind, refID int64, delta int) error {
	if kind == LineWholesale {
		return tx.AdjustProductStock(ctx, refID, delta)
	}
	return tx.AdjustItemStock(ctx, refID, delta)
}

// recomputeTotal sets the header total to the sum of line totals read
// back from storage, never to a running figure held in memory.
func (s *Service) recomputeTotal(ctx context.Context, tx TxRepository, saleID int64) error {
	total, err := tx.SumLineTotals(ctx, saleID)
	if err != nil {
		return err
	}
	return tx.SetSaleTotal(ctx, saleID, total)
}

func (s *Service) syncDebt(ctx context.Context, saleID int64) error {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.SyncForSale(ctx, saleID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "sale", EntityID: saleID, Meta: meta})
}
