package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/memory"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"
	"github.com/boddenberg/expense-assistant-go/internal/port"
	"github.com/boddenberg/expense-assistant-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

// fixedNow is 18 Oct 2026, 15:30 UTC.
var fixedNow = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type mockCategoryClassifier struct {
	mu      sync.Mutex
	answers map[string]domain.Category
	err     error
	calls   int
}

func (m *mockCategoryClassifier) ClassifyCategory(_ context.Context, raw string) (domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if c, ok := m.answers[strings.ToLower(raw)]; ok {
		return c, nil
	}
	return "", errors.New("not in taxonomy")
}

func defaultCategories() *mockCategoryClassifier {
	return &mockCategoryClassifier{answers: map[string]domain.Category{
		"food":      domain.CategoryFood,
		"coffee":    domain.CategoryBeverages,
		"chocolate": domain.CategoryFood,
		"groceries": domain.CategoryGroceries,
		"uber":      domain.CategoryTransport,
	}}
}

type mockIntentClassifier struct {
	result *domain.Classification
	err    error
	calls  int
}

func (m *mockIntentClassifier) ClassifyIntent(_ context.Context, _ string) (*domain.Classification, error) {
	m.calls++
	return m.result, m.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// flakyStore wraps the memory store and fails the Nth Create call (1-based)
// and, optionally, every read.
type flakyStore struct {
	*memory.Store
	failCreateAt int
	failReads    bool
	creates      int
}

func (s *flakyStore) Create(ctx context.Context, rec *domain.ExpenseRecord) error {
	s.creates++
	if s.creates == s.failCreateAt {
		return &domain.ErrExternalService{Service: "storage", Err: errors.New("write timeout")}
	}
	return s.Store.Create(ctx, rec)
}

func (s *flakyStore) AggregateSum(ctx context.Context, f domain.ExpenseFilter) (decimal.Decimal, error) {
	if s.failReads {
		return decimal.Zero, &domain.ErrExternalService{Service: "storage", Err: errors.New("connection reset")}
	}
	return s.Store.AggregateSum(ctx, f)
}

// --- Fixture ---

type fixture struct {
	store      *memory.Store
	categories *mockCategoryClassifier
	publisher  *recordingPublisher
	dates      *service.DateResolver
	mutator    *service.LedgerMutator
	query      *service.LedgerQuery
	format     *service.Formatter
	router     *service.IntentRouter
	metrics    *observability.Metrics
}

func newFixture() *fixture {
	return newFixtureWithStore(memory.New(), nil)
}

// newFixtureWithStore builds the core over store. When ledger is non-nil it
// is used in place of store for every ledger call.
func newFixtureWithStore(store *memory.Store, ledger port.LedgerStore) *fixture {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	f := &fixture{
		store:      store,
		categories: defaultCategories(),
		publisher:  &recordingPublisher{},
		metrics:    metrics,
	}
	if ledger == nil {
		ledger = store
	}
	f.dates = service.NewDateResolver(time.UTC, fixedClock, logger)
	normalizer := service.NewCategoryNormalizer(f.categories, nil, metrics, logger)
	f.mutator = service.NewLedgerMutator(ledger, f.dates, normalizer, f.publisher, domain.MatchFold, metrics, logger)
	f.query = service.NewLedgerQuery(ledger, f.dates, domain.MatchContains, metrics, logger)
	f.format = service.NewFormatter("₹")
	f.router = service.NewIntentRouter(f.mutator, f.query, f.format, metrics, logger)
	return f
}

func (f *fixture) size() int {
	n, _ := f.store.Count(context.Background(), domain.ExpenseFilter{})
	return n
}
