package service

import (
	"context"
	"errors"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// handlerFunc handles one intent variant and returns the reply text.
type handlerFunc func(ctx context.Context, in domain.Intent) (string, error)

// IntentRouter dispatches a classified intent to the ledger and renders the
// reply. Route always returns text and never an error.
type IntentRouter struct {
	mutator  *LedgerMutator
	query    *LedgerQuery
	format   *Formatter
	handlers map[domain.IntentKind]handlerFunc
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewIntentRouter creates the router and its dispatch table.
func NewIntentRouter(
	mutator *LedgerMutator,
	query *LedgerQuery,
	format *Formatter,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *IntentRouter {
	r := &IntentRouter{
		mutator: mutator,
		query:   query,
		format:  format,
		metrics: metrics,
		logger:  logger,
	}
	r.handlers = map[domain.IntentKind]handlerFunc{
		domain.IntentAddExpense:    r.addExpense,
		domain.IntentAddExpenses:   r.addExpenses,
		domain.IntentQuery:         r.queryTotal,
		domain.IntentEditExpense:   r.editExpense,
		domain.IntentDeleteExpense: r.deleteExpense,
		domain.IntentListAll:       r.listAll,
		domain.IntentHelp:          r.help,
	}
	return r
}

// Route runs the handler for the intent's kind.
func (r *IntentRouter) Route(ctx context.Context, in domain.Intent) (reply string) {
	if in == nil {
		return r.format.Guidance()
	}
	kind := in.Kind()

	ctx, span := tracer.Start(ctx, "IntentRouter.Route")
	defer span.End()
	span.SetAttributes(attribute.String("intent", string(kind)))
	r.metrics.IncrIntent(kind)

	h, ok := r.handlers[kind]
	if !ok {
		r.logger.Info("no handler for intent", zap.String("intent", string(kind)))
		return r.format.Guidance()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("intent handler panicked",
				zap.String("intent", string(kind)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			span.SetStatus(codes.Error, "panic")
			reply = MsgApology
		}
	}()

	out, err := h(ctx, in)
	if err != nil {
		span.RecordError(err)
		return r.replyForError(kind, err)
	}
	return out
}

// RouteError converts a failure that happened before routing (classification)
// into the generic apology.
func (r *IntentRouter) RouteError(ctx context.Context, err error) string {
	var unknown *domain.ErrUnknownIntent
	if errors.As(err, &unknown) {
		r.logger.Warn("classifier returned unknown intent", zap.String("tag", unknown.Tag))
		return MsgApology
	}
	r.logger.Error("classification failed", zap.Error(err))
	return MsgApology
}

// replyForError maps domain errors to corrective text; everything else is
// logged and collapsed into the apology.
func (r *IntentRouter) replyForError(kind domain.IntentKind, err error) string {
	var (
		validationErr *domain.ErrValidation
		notFoundErr   *domain.ErrNotFound
		circuitErr    *domain.ErrCircuitOpen
		extErr        *domain.ErrExternalService
	)

	switch {
	case errors.As(err, &validationErr):
		r.logger.Info("intent rejected",
			zap.String("intent", string(kind)),
			zap.String("field", validationErr.Field),
			zap.String("reason", validationErr.Message),
		)
		return r.format.Invalid(kind)
	case errors.As(err, &notFoundErr):
		r.logger.Info("no matching expense",
			zap.String("intent", string(kind)),
			zap.Error(err),
		)
		return r.format.NotFound(notFoundErr)
	case errors.As(err, &circuitErr):
		r.logger.Warn("circuit open", zap.String("service", circuitErr.Service))
		return MsgApology
	case errors.As(err, &extErr):
		r.logger.Error("external service failed",
			zap.String("intent", string(kind)),
			zap.String("service", extErr.Service),
			zap.Error(err),
		)
		r.metrics.IncrExternalError(extErr.Service)
		return MsgApology
	default:
		r.logger.Error("intent handler failed",
			zap.String("intent", string(kind)),
			zap.Error(err),
		)
		return MsgApology
	}
}

// ============================================================
// Handlers
// ============================================================

func (r *IntentRouter) addExpense(ctx context.Context, in domain.Intent) (string, error) {
	it := in.(domain.AddExpenseIntent)
	res, err := r.mutator.AddExpense(ctx, it.Amount, it.Category, it.Date)
	if err != nil {
		return "", err
	}
	return r.format.Added(res), nil
}

func (r *IntentRouter) addExpenses(ctx context.Context, in domain.Intent) (string, error) {
	it := in.(domain.AddExpensesIntent)
	res, err := r.mutator.AddExpenses(ctx, it.Items, it.Date)
	if err != nil {
		return "", err
	}
	return r.format.Batch(res), nil
}

func (r *IntentRouter) queryTotal(ctx context.Context, in domain.Intent) (string, error) {
	it := in.(domain.QueryIntent)
	res, err := r.query.Answer(ctx, it)
	if err != nil {
		return "", err
	}
	return r.format.Total(res), nil
}

func (r *IntentRouter) editExpense(ctx context.Context, in domain.Intent) (string, error) {
	it := in.(domain.EditExpenseIntent)
	res, err := r.mutator.EditExpense(ctx, it.OldAmount, it.OldCategory, it.NewAmount)
	if err != nil {
		return "", err
	}
	return r.format.Edited(res), nil
}

func (r *IntentRouter) deleteExpense(ctx context.Context, in domain.Intent) (string, error) {
	it := in.(domain.DeleteExpenseIntent)
	res, err := r.mutator.DeleteExpense(ctx, it.Amount, it.Category, it.Date)
	if err != nil {
		return "", err
	}
	return r.format.Deleted(res), nil
}

func (r *IntentRouter) listAll(ctx context.Context, _ domain.Intent) (string, error) {
	res, err := r.query.ListAll(ctx)
	if err != nil {
		return "", err
	}
	return r.format.List(res), nil
}

func (r *IntentRouter) help(context.Context, domain.Intent) (string, error) {
	return r.format.Help(), nil
}
