package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"
	"github.com/boddenberg/expense-assistant-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TotalFilter narrows a Total query. Zero fields do not filter.
type TotalFilter struct {
	Range    domain.DateRange
	Category string
}

// LedgerQuery answers aggregate and listing questions about the ledger.
type LedgerQuery struct {
	store   port.LedgerStore
	dates   *DateResolver
	match   domain.MatchPolicy
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLedgerQuery creates the query engine. match governs category filtering
// of totals and defaults to a case-insensitive substring match.
func NewLedgerQuery(
	store port.LedgerStore,
	dates *DateResolver,
	match domain.MatchPolicy,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerQuery {
	if match == "" {
		match = domain.MatchContains
	}
	return &LedgerQuery{
		store:   store,
		dates:   dates,
		match:   match,
		metrics: metrics,
		logger:  logger,
	}
}

// Total sums the matching amounts. It returns zero when nothing matches and
// an error only when the store itself failed.
func (q *LedgerQuery) Total(ctx context.Context, f TotalFilter) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "LedgerQuery.Total")
	defer span.End()

	filter := domain.ExpenseFilter{
		Category: strings.TrimSpace(f.Category),
		Match:    q.match,
		Range:    f.Range,
	}
	sum, err := q.store.AggregateSum(ctx, filter)
	if err != nil {
		q.metrics.IncrLedgerOp("total", "error")
		return decimal.Zero, fmt.Errorf("aggregate total: %w", err)
	}
	q.metrics.IncrLedgerOp("total", "ok")
	span.SetAttributes(attribute.String("total", sum.String()))
	return sum, nil
}

// Answer resolves a Query intent into a filter and totals it. A symbolic
// period takes precedence over a single date.
func (q *LedgerQuery) Answer(ctx context.Context, in domain.QueryIntent) (*domain.TotalResult, error) {
	if in.QueryType == domain.QueryCategory && strings.TrimSpace(in.Category) == "" {
		return nil, &domain.ErrValidation{Field: "category", Message: "required for a category query"}
	}

	var (
		rng    domain.DateRange
		period string
	)
	switch {
	case in.Period != "":
		rng = q.dates.ResolveSymbolic(in.Period)
		if !rng.IsZero() {
			period = normalizePeriod(in.Period)
		} else {
			q.logger.Debug("unrecognized period, querying all time", zap.String("period", in.Period))
		}
	case in.Date != "":
		rng = q.dates.DayWindow(q.dates.ResolveFreeform(in.Date))
	}

	category := ""
	if in.QueryType == domain.QueryCategory {
		category = strings.TrimSpace(in.Category)
	}

	total, err := q.Total(ctx, TotalFilter{Range: rng, Category: category})
	if err != nil {
		return nil, err
	}
	return &domain.TotalResult{Total: total, Category: category, Period: period, Range: rng}, nil
}

// ListAll returns every record, newest first.
func (q *LedgerQuery) ListAll(ctx context.Context) (*domain.ListResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerQuery.ListAll")
	defer span.End()

	records, err := q.store.Find(ctx, domain.ExpenseFilter{}, domain.SortNewestFirst)
	if err != nil {
		q.metrics.IncrLedgerOp("list", "error")
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	q.metrics.IncrLedgerOp("list", "ok")
	span.SetAttributes(attribute.Int("records", len(records)))
	return &domain.ListResult{Records: records}, nil
}
