// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/expense-assistant-go/internal/domain"

	"github.com/shopspring/decimal"
)

// IntentClassifier turns free text into a structured Intent.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, text string) (*domain.Classification, error)
}

// CategoryClassifier maps a free-text category onto the fixed taxonomy.
type CategoryClassifier interface {
	ClassifyCategory(ctx context.Context, raw string) (domain.Category, error)
}

// LedgerStore is the capability surface the core needs from persistence.
// FindOne and FindOneAndDelete return (nil, nil) when nothing matches.
type LedgerStore interface {
	Create(ctx context.Context, rec *domain.ExpenseRecord) error
	Find(ctx context.Context, filter domain.ExpenseFilter, sort domain.SortOrder) ([]domain.ExpenseRecord, error)
	FindOne(ctx context.Context, filter domain.ExpenseFilter, sort domain.SortOrder) (*domain.ExpenseRecord, error)
	UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) error
	FindOneAndDelete(ctx context.Context, filter domain.ExpenseFilter) (*domain.ExpenseRecord, error)
	AggregateSum(ctx context.Context, filter domain.ExpenseFilter) (decimal.Decimal, error)
}

// EventPublisher announces ledger mutations to downstream consumers.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev domain.LedgerEvent) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
