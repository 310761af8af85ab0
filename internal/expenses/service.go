package expenses

import (
	"context"
	"log/slog"
	"time"

	"github.com/duka-erp/duka-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, e Expenditure) (int64, error)
	Update(ctx context.Context, e Expenditure) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Expenditure, error)
	List(ctx context.Context, filter Filter) ([]Expenditure, int, error)
	Summarize(ctx context.Context, filter Filter) (Summary, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages expenditures.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Input is the payload for creating or updating an expenditure.
type Input struct {
	ActorID     int64
	Category    Category
	Description string
	Amount      float64
	ExpenseDate time.Time
}

func (in Input) validate() error {
	if !ValidCategory(in.Category) {
		return &shared.ValidationError{Field: "category", Reason: "unknown category"}
	}
	if in.Amount <= 0 {
		return &shared.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}

// Create records an expenditure; a zero date defaults to now.
func (s *Service) Create(ctx context.Context, input Input) (Expenditure, error) {
	if err := input.validate(); err != nil {
		return Expenditure{}, err
	}
	if input.ExpenseDate.IsZero() {
		input.ExpenseDate = s.now()
	}
	id, err := s.repo.Insert(ctx, Expenditure{
		Category:    input.Category,
		Description: input.Description,
		Amount:      input.Amount,
		ExpenseDate: input.ExpenseDate,
		CreatedBy:   input.ActorID,
	})
	if err != nil {
		return Expenditure{}, err
	}
	s.recordAudit(ctx, input.ActorID, "expenses:create", id)
	return s.repo.Get(ctx, id)
}

// Update replaces an expenditure's fields.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Expenditure, error) {
	if err := input.validate(); err != nil {
		return Expenditure{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Expenditure{}, err
	}
	current.Category = input.Category
	current.Description = input.Description
	current.Amount = input.Amount
	if !input.ExpenseDate.IsZero() {
		current.ExpenseDate = input.ExpenseDate
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return Expenditure{}, err
	}
	s.recordAudit(ctx, input.ActorID, "expenses:update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes an expenditure.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "expenses:delete", id)
	return nil
}

// Get loads one expenditure.
func (s *Service) Get(ctx context.Context, id int64) (Expenditure, error) {
	return s.repo.Get(ctx, id)
}

// List fetches expenditures with filters and pagination.
func (s *Service) List(ctx context.Context, filter Filter) ([]Expenditure, int, error) {
	return s.repo.List(ctx, filter)
}

// Summarize aggregates spend per category over the filter's range.
func (s *Service) Summarize(ctx context.Context, filter Filter) (Summary, error) {
	return s.repo.Summarize(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "expenditure", EntityID: id})
}
