// Package supabase provides a LedgerStore over Supabase PostgREST, for
// deployments that keep the ledger in a hosted Postgres table:
//
//	create table expenses (
//	  id uuid primary key,
//	  amount numeric(12,2) not null check (amount > 0),
//	  category text not null,
//	  spent_at timestamptz not null,
//	  created_at timestamptz not null default now()
//	);
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

const (
	serviceName  = "supabase"
	selectFields = "id,amount,category,spent_at,created_at"
)

// Client wraps HTTP calls to the Supabase PostgREST API and implements
// port.LedgerStore.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	table          string
	loc            *time.Location
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// Options carries connection settings.
type Options struct {
	BaseURL        string
	APIKey         string
	ServiceRoleKey string
	Table          string
	Location       *time.Location
}

// NewClient creates a Supabase ledger client.
func NewClient(httpClient *http.Client, opts Options, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	if opts.Table == "" {
		opts.Table = "expenses"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		serviceRoleKey: opts.ServiceRoleKey,
		table:          opts.Table,
		loc:            opts.Location,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// supabaseExpense maps table columns.
type supabaseExpense struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	SpentAt   time.Time       `json:"spent_at"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e supabaseExpense) toDomain(loc *time.Location) domain.ExpenseRecord {
	return domain.ExpenseRecord{
		ID:        e.ID,
		Amount:    e.Amount,
		Category:  e.Category,
		SpentAt:   e.SpentAt.In(loc),
		CreatedAt: e.CreatedAt.In(loc),
	}
}

// execute runs fn through the breaker and the retry loop and maps failures
// to domain errors.
func (c *Client) execute(ctx context.Context, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, fn)
	})
	if err == nil {
		return nil
	}
	if resilience.IsOpen(err) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}

// Ping checks the table is reachable with the configured keys.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	return c.execute(ctx, func() error {
		_, err := c.doGet(ctx, q)
		return err
	})
}

func (c *Client) Create(ctx context.Context, rec *domain.ExpenseRecord) error {
	ctx, span := tracer.Start(ctx, "Supabase.Create")
	defer span.End()
	span.SetAttributes(attribute.String("expense.id", rec.ID))

	if err := rec.Validate(); err != nil {
		return err
	}
	row := supabaseExpense{
		ID:        rec.ID,
		Amount:    rec.Amount,
		Category:  rec.Category,
		SpentAt:   rec.SpentAt.UTC(),
		CreatedAt: rec.CreatedAt.UTC(),
	}
	return c.execute(ctx, func() error {
		_, err := c.doPost(ctx, row)
		return err
	})
}

func (c *Client) Find(ctx context.Context, filter domain.ExpenseFilter, order domain.SortOrder) ([]domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Find")
	defer span.End()

	rows, err := c.selectRows(ctx, filterQuery(filter, order, 0))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExpenseRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain(c.loc))
	}
	return out, nil
}

// FindOne returns the first match in the given order, or (nil, nil).
func (c *Client) FindOne(ctx context.Context, filter domain.ExpenseFilter, order domain.SortOrder) (*domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindOne")
	defer span.End()

	rows, err := c.selectRows(ctx, filterQuery(filter, order, 1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	rec := rows[0].toDomain(c.loc)
	return &rec, nil
}

func (c *Client) UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateAmount")
	defer span.End()

	if err := domain.ValidateAmount("amount", amount); err != nil {
		return err
	}

	q := url.Values{"id": {"eq." + id}}
	return c.execute(ctx, func() error {
		body, err := c.doPatch(ctx, q, map[string]any{"amount": amount})
		if err != nil {
			return err
		}
		var rows []supabaseExpense
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode update response: %w", err))
		}
		if len(rows) == 0 {
			return resilience.Permanent(fmt.Errorf("no row with id %s", id))
		}
		return nil
	})
}

// FindOneAndDelete removes the earliest-inserted match. The lookup and the
// delete are two requests; a concurrent delete of the same row yields (nil, nil).
func (c *Client) FindOneAndDelete(ctx context.Context, filter domain.ExpenseFilter) (*domain.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindOneAndDelete")
	defer span.End()

	q := filterQuery(filter, domain.SortNone, 1)
	q.Set("order", "created_at.asc")
	rows, err := c.selectRows(ctx, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	target := rows[0]

	var deleted []supabaseExpense
	err = c.execute(ctx, func() error {
		body, err := c.doDelete(ctx, url.Values{"id": {"eq." + target.ID}})
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &deleted); err != nil {
			return resilience.Permanent(fmt.Errorf("decode delete response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		c.logger.Info("supabase: expense vanished before delete", zap.String("id", target.ID))
		return nil, nil
	}
	rec := deleted[0].toDomain(c.loc)
	return &rec, nil
}

// AggregateSum adds the matching amounts client-side; PostgREST aggregates
// are disabled on default Supabase projects.
func (c *Client) AggregateSum(ctx context.Context, filter domain.ExpenseFilter) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.AggregateSum")
	defer span.End()

	q := filterQuery(filter, domain.SortNone, 0)
	q.Set("select", "amount")
	rows, err := c.selectRows(ctx, q)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	return sum, nil
}

func (c *Client) selectRows(ctx context.Context, q url.Values) ([]supabaseExpense, error) {
	var rows []supabaseExpense
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, q)
		if err != nil {
			return err
		}
		rows = nil
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode expenses: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// filterQuery translates a filter into PostgREST query parameters.
func filterQuery(f domain.ExpenseFilter, order domain.SortOrder, limit int) url.Values {
	q := url.Values{"select": {selectFields}}
	if f.Amount != nil {
		q.Set("amount", "eq."+f.Amount.String())
	}
	if f.Category != "" {
		switch f.Match {
		case domain.MatchFold:
			q.Set("category", "ilike."+escapeLike(f.Category))
		case domain.MatchContains:
			q.Set("category", "ilike.*"+escapeLike(f.Category)+"*")
		default:
			q.Set("category", "eq."+f.Category)
		}
	}
	if !f.Range.IsZero() {
		q.Add("spent_at", "gte."+f.Range.Start.UTC().Format(time.RFC3339))
		q.Add("spent_at", "lt."+f.Range.End.UTC().Format(time.RFC3339))
	}
	switch order {
	case domain.SortNewestFirst:
		q.Set("order", "spent_at.desc,created_at.desc")
	case domain.SortOldestFirst:
		q.Set("order", "spent_at.asc,created_at.asc")
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}

// escapeLike neutralizes LIKE wildcards in user-supplied text.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`, "*", `\*`)
	return r.Replace(s)
}

