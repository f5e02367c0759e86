// Package memory is an in-process LedgerStore used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/boddenberg/expense-assistant-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Store keeps expense records in a slice. The mutex only protects the slice;
// it does not make multi-step ledger operations atomic.
type Store struct {
	mu    sync.Mutex
	items []domain.ExpenseRecord
}

func New() *Store {
	return &Store{}
}

func (s *Store) Create(_ context.Context, rec *domain.ExpenseRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, *rec)
	return nil
}

func (s *Store) Find(_ context.Context, filter domain.ExpenseFilter, order domain.SortOrder) ([]domain.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matching(filter, order), nil
}

// FindOne returns the first match in the given order, or nil.
func (s *Store) FindOne(_ context.Context, filter domain.ExpenseFilter, order domain.SortOrder) (*domain.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.matching(filter, order)
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (s *Store) UpdateAmount(_ context.Context, id string, amount decimal.Decimal) error {
	if err := domain.ValidateAmount("amount", amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Amount = amount
			return nil
		}
	}
	return &domain.ErrExternalService{Service: "storage", Err: errMissingID(id)}
}

// FindOneAndDelete removes the first match in insertion order.
func (s *Store) FindOneAndDelete(_ context.Context, filter domain.ExpenseFilter) (*domain.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.items {
		if filter.Matches(rec) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *Store) AggregateSum(_ context.Context, filter domain.ExpenseFilter) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, rec := range s.items {
		if filter.Matches(rec) {
			sum = sum.Add(rec.Amount)
		}
	}
	return sum, nil
}

// Count returns the number of records matching filter.
func (s *Store) Count(_ context.Context, filter domain.ExpenseFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.items {
		if filter.Matches(rec) {
			n++
		}
	}
	return n, nil
}

func (s *Store) matching(filter domain.ExpenseFilter, order domain.SortOrder) []domain.ExpenseRecord {
	out := make([]domain.ExpenseRecord, 0, len(s.items))
	for _, rec := range s.items {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	switch order {
	case domain.SortNewestFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].SpentAt.After(out[j].SpentAt) })
	case domain.SortOldestFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].SpentAt.Before(out[j].SpentAt) })
	}
	return out
}

type errMissingID string

func (e errMissingID) Error() string { return "no expense with id " + string(e) }
