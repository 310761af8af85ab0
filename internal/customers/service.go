package customers

import (
	"context"
	"strings"

	"github.com/duka-erp/duka-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, c Customer) (int64, error)
	Update(ctx context.Context, c Customer) error
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, filter Filter) ([]Customer, int, error)
}

// Service coordinates customer operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Input is the payload for creating or updating a customer.
type Input struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Active  bool
}

func validate(input Input) error {
	if strings.TrimSpace(input.Name) == "" {
		return &shared.ValidationError{Field: "name", Reason: "required"}
	}
	return nil
}

// Create inserts a customer.
func (s *Service) Create(ctx context.Context, input Input) (Customer, error) {
	if err := validate(input); err != nil {
		return Customer{}, err
	}
	id, err := s.repo.Insert(ctx, Customer{
		Name:    strings.TrimSpace(input.Name),
		Email:   input.Email,
		Phone:   strings.TrimSpace(input.Phone),
		Address: input.Address,
		Active:  input.Active,
	})
	if err != nil {
		return Customer{}, err
	}
	return s.repo.Get(ctx, id)
}

// Update replaces the mutable fields of a customer.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Customer, error) {
	if err := validate(input); err != nil {
		return Customer{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	current.Name = strings.TrimSpace(input.Name)
	current.Email = input.Email
	current.Phone = strings.TrimSpace(input.Phone)
	current.Address = input.Address
	current.Active = input.Active
	if err := s.repo.Update(ctx, current); err != nil {
		return Customer{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get fetches one customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List fetches customers with filters and pagination.
func (s *Service) List(ctx context.Context, filter Filter) ([]Customer, int, error) {
	return s.repo.List(ctx, filter)
}
