package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"
	"github.com/boddenberg/expense-assistant-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// LedgerMutator adds, edits and deletes expense records.
//
// Edit and delete locate their target by amount and category (plus a day
// window for delete) using the configured match policy. There is no locking:
// two concurrent edits of the same match race at the store, last write wins.
type LedgerMutator struct {
	store      port.LedgerStore
	dates      *DateResolver
	normalizer *CategoryNormalizer
	publisher  port.EventPublisher
	match      domain.MatchPolicy
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewLedgerMutator creates the mutator with all dependencies injected.
func NewLedgerMutator(
	store port.LedgerStore,
	dates *DateResolver,
	normalizer *CategoryNormalizer,
	publisher port.EventPublisher,
	match domain.MatchPolicy,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerMutator {
	if match == "" {
		match = domain.MatchFold
	}
	return &LedgerMutator{
		store:      store,
		dates:      dates,
		normalizer: normalizer,
		publisher:  publisher,
		match:      match,
		metrics:    metrics,
		logger:     logger,
	}
}

// AddExpense persists one expense. An empty date means now.
func (m *LedgerMutator) AddExpense(ctx context.Context, amount *decimal.Decimal, category, date string) (*domain.AddResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerMutator.AddExpense")
	defer span.End()

	if err := requireAmountAndCategory(amount, category); err != nil {
		return nil, err
	}

	spentAt := m.dates.ResolveFreeform(date)
	rec, err := m.create(ctx, *amount, category, spentAt)
	if err != nil {
		m.metrics.IncrLedgerOp("add", outcomeOf(err))
		return nil, err
	}
	m.metrics.IncrLedgerOp("add", "ok")
	span.SetAttributes(attribute.String("expense.category", rec.Category))

	return &domain.AddResult{Amount: rec.Amount, Category: rec.Category, Date: rec.SpentAt}, nil
}

// AddExpenses persists a batch sequentially. All entries share one resolved
// date. The batch is not atomic: every entry is attempted and reported in
// either Added or Failed, and committed entries stay committed.
func (m *LedgerMutator) AddExpenses(ctx context.Context, items []domain.ExpenseItem, date string) (*domain.BatchResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerMutator.AddExpenses")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(items)))

	if len(items) == 0 {
		return nil, &domain.ErrValidation{Field: "items", Message: "at least one expense is required"}
	}

	result := &domain.BatchResult{Date: m.dates.ResolveFreeform(date)}
	var storageErr error

	for i, item := range items {
		if err := requireAmountAndCategory(item.Amount, item.Category); err != nil {
			result.Failed = append(result.Failed, domain.BatchFailure{Index: i, Amount: item.Amount, Category: item.Category, Err: err})
			continue
		}
		rec, err := m.create(ctx, *item.Amount, item.Category, result.Date)
		if err != nil {
			m.logger.Error("batch entry failed",
				zap.Int("index", i),
				zap.String("category", item.Category),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, domain.BatchFailure{Index: i, Amount: item.Amount, Category: item.Category, Err: err})
			var ve *domain.ErrValidation
			if !errors.As(err, &ve) && storageErr == nil {
				storageErr = err
			}
			continue
		}
		result.Added = append(result.Added, domain.BatchItem{Amount: rec.Amount, Category: rec.Category})
	}

	m.metrics.IncrLedgerOp("add_batch", batchOutcome(result))

	if len(result.Added) == 0 {
		if storageErr != nil {
			return nil, storageErr
		}
		return nil, &domain.ErrValidation{Field: "items", Message: "no entry had both an amount and a category"}
	}
	return result, nil
}

// EditExpense changes the amount of the newest record matching oldAmount and
// oldCategory. oldCategory is compared as given, without normalization.
func (m *LedgerMutator) EditExpense(ctx context.Context, oldAmount *decimal.Decimal, oldCategory string, newAmount *decimal.Decimal) (*domain.EditResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerMutator.EditExpense")
	defer span.End()

	oldCategory = strings.TrimSpace(oldCategory)
	if oldAmount == nil {
		return nil, &domain.ErrValidation{Field: "old_amount", Message: "required"}
	}
	if oldCategory == "" {
		return nil, &domain.ErrValidation{Field: "old_category", Message: "required"}
	}
	if newAmount == nil {
		return nil, &domain.ErrValidation{Field: "new_amount", Message: "required"}
	}
	if err := domain.ValidateAmount("old_amount", *oldAmount); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount("new_amount", *newAmount); err != nil {
		return nil, err
	}

	filter := domain.ExpenseFilter{Amount: oldAmount, Category: oldCategory, Match: m.match}
	rec, err := m.store.FindOne(ctx, filter, domain.SortNewestFirst)
	if err != nil {
		m.metrics.IncrLedgerOp("edit", "error")
		return nil, fmt.Errorf("find expense to edit: %w", err)
	}
	if rec == nil {
		m.metrics.IncrLedgerOp("edit", "not_found")
		return nil, &domain.ErrNotFound{Resource: "expense", Amount: *oldAmount, Category: oldCategory}
	}

	if err := m.store.UpdateAmount(ctx, rec.ID, *newAmount); err != nil {
		m.metrics.IncrLedgerOp("edit", "error")
		return nil, fmt.Errorf("update expense: %w", err)
	}
	m.metrics.IncrLedgerOp("edit", "ok")

	old := rec.Amount
	m.publish(ctx, domain.LedgerEvent{
		Type:      domain.EventExpenseEdited,
		ExpenseID: rec.ID,
		Amount:    *newAmount,
		OldAmount: &old,
		Category:  rec.Category,
		SpentAt:   rec.SpentAt,
	})

	return &domain.EditResult{OldAmount: old, NewAmount: *newAmount, Category: rec.Category, Date: rec.SpentAt}, nil
}

// DeleteExpense removes one record matching amount and category inside the
// calendar day named by date (today when empty).
func (m *LedgerMutator) DeleteExpense(ctx context.Context, amount *decimal.Decimal, category, date string) (*domain.DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerMutator.DeleteExpense")
	defer span.End()

	category = strings.TrimSpace(category)
	if err := requireAmountAndCategory(amount, category); err != nil {
		return nil, err
	}

	window := m.dates.DayWindow(m.dates.ResolveFreeform(date))
	filter := domain.ExpenseFilter{Amount: amount, Category: category, Match: m.match, Range: window}

	rec, err := m.store.FindOneAndDelete(ctx, filter)
	if err != nil {
		m.metrics.IncrLedgerOp("delete", "error")
		return nil, fmt.Errorf("delete expense: %w", err)
	}
	if rec == nil {
		m.metrics.IncrLedgerOp("delete", "not_found")
		return nil, &domain.ErrNotFound{Resource: "expense", Amount: *amount, Category: category, Window: window}
	}
	m.metrics.IncrLedgerOp("delete", "ok")

	m.publish(ctx, domain.LedgerEvent{
		Type:      domain.EventExpenseDeleted,
		ExpenseID: rec.ID,
		Amount:    rec.Amount,
		Category:  rec.Category,
		SpentAt:   rec.SpentAt,
	})

	return &domain.DeleteResult{Amount: rec.Amount, Category: rec.Category, Date: rec.SpentAt}, nil
}

// create normalizes the category, stores the record and announces it.
func (m *LedgerMutator) create(ctx context.Context, amount decimal.Decimal, category string, spentAt time.Time) (*domain.ExpenseRecord, error) {
	rec := &domain.ExpenseRecord{
		ID:        uuid.NewString(),
		Amount:    amount,
		Category:  m.normalizer.Normalize(ctx, category),
		SpentAt:   spentAt,
		CreatedAt: m.dates.Now(),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}

	m.logger.Info("expense added",
		zap.String("id", rec.ID),
		zap.String("amount", rec.Amount.String()),
		zap.String("category", rec.Category),
		zap.Time("spent_at", rec.SpentAt),
	)

	m.publish(ctx, domain.LedgerEvent{
		Type:      domain.EventExpenseAdded,
		ExpenseID: rec.ID,
		Amount:    rec.Amount,
		Category:  rec.Category,
		SpentAt:   rec.SpentAt,
	})
	return rec, nil
}

// publish is fire-and-forget: the ledger write already happened.
func (m *LedgerMutator) publish(ctx context.Context, ev domain.LedgerEvent) {
	if m.publisher == nil {
		return
	}
	ev.OccurredAt = m.dates.Now()
	if err := m.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		m.logger.Warn("failed to publish ledger event",
			zap.String("type", string(ev.Type)),
			zap.String("expense_id", ev.ExpenseID),
			zap.Error(err),
		)
		m.metrics.IncrExternalError("events")
	}
}

func requireAmountAndCategory(amount *decimal.Decimal, category string) error {
	if amount == nil {
		return &domain.ErrValidation{Field: "amount", Message: "required"}
	}
	if err := domain.ValidateAmount("amount", *amount); err != nil {
		return err
	}
	if strings.TrimSpace(category) == "" {
		return &domain.ErrValidation{Field: "category", Message: "required"}
	}
	return nil
}

func outcomeOf(err error) string {
	var ve *domain.ErrValidation
	if errors.As(err, &ve) {
		return "invalid"
	}
	return "error"
}

func batchOutcome(r *domain.BatchResult) string {
	switch {
	case len(r.Failed) == 0:
		return "ok"
	case len(r.Added) == 0:
		return "error"
	default:
		return "partial"
	}
}
