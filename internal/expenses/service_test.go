package expenses

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duka-erp/duka-erp/internal/shared"
)

type memoryRepo struct {
	rows   map[int64]*Expenditure
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]*Expenditure)}
}

func (r *memoryRepo) Insert(_ context.Context, e Expenditure) (int64, error) {
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now()
	r.rows[e.ID] = &e
	return e.ID, nil
}

func (r *memoryRepo) Update(_ context.Context, e Expenditure) error {
	if _, ok := r.rows[e.ID]; !ok {
		return shared.ErrNotFound
	}
	r.rows[e.ID] = &e
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Expenditure, error) {
	if e, ok := r.rows[id]; ok {
		return *e, nil
	}
	return Expenditure{}, shared.ErrNotFound
}

func (r *memoryRepo) matches(e *Expenditure, filter Filter) bool {
	if filter.Category != "" && e.Category != filter.Category {
		return false
	}
	if !filter.From.IsZero() && e.ExpenseDate.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && e.ExpenseDate.After(filter.To) {
		return false
	}
	return true
}

func (r *memoryRepo) List(_ context.Context, filter Filter) ([]Expenditure, int, error) {
	var out []Expenditure
	for _, e := range r.rows {
		if r.matches(e, filter) {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) Summarize(_ context.Context, filter Filter) (Summary, error) {
	summary := Summary{From: filter.From, To: filter.To, ByCategory: make(map[Category]float64)}
	for _, e := range r.rows {
		if r.matches(e, filter) {
			summary.ByCategory[e.Category] += e.Amount
			summary.Total += e.Amount
		}
	}
	return summary, nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateDefaultsDateToNow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	e, err := svc.Create(context.Background(), Input{ActorID: 1, Category: CategoryRent, Amount: 150000})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC), e.ExpenseDate)
	require.Equal(t, int64(1), e.CreatedBy)
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Input{ActorID: 1, Category: "travel", Amount: 1000})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Input{ActorID: 1, Category: CategoryOther, Amount: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateKeepsDateWhenOmitted(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	date := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), Input{ActorID: 1, Category: CategorySupplies, Amount: 2000, ExpenseDate: date})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, Input{ActorID: 1, Category: CategorySupplies, Amount: 2500})
	require.NoError(t, err)
	require.InDelta(t, 2500.0, updated.Amount, 0.001)
	require.Equal(t, date, updated.ExpenseDate)
}

func TestSummarizeGroupsByCategory(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	jan := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)

	for _, in := range []Input{
		{ActorID: 1, Category: CategoryRent, Amount: 150000, ExpenseDate: jan},
		{ActorID: 1, Category: CategorySupplies, Amount: 30000, ExpenseDate: jan},
		{ActorID: 1, Category: CategorySupplies, Amount: 20000, ExpenseDate: feb},
	} {
		_, err := svc.Create(context.Background(), in)
		require.NoError(t, err)
	}

	summary, err := svc.Summarize(context.Background(), Filter{
		From: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.InDelta(t, 180000.0, summary.Total, 0.001)
	require.InDelta(t, 150000.0, summary.ByCategory[CategoryRent], 0.001)
	require.InDelta(t, 30000.0, summary.ByCategory[CategorySupplies], 0.001)
}
