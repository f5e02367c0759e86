package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/config"
	"github.com/boddenberg/expense-assistant-go/internal/handler"
	"github.com/boddenberg/expense-assistant-go/internal/infra/amqp"
	"github.com/boddenberg/expense-assistant-go/internal/infra/cache"
	"github.com/boddenberg/expense-assistant-go/internal/infra/llm"
	"github.com/boddenberg/expense-assistant-go/internal/infra/memory"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"
	"github.com/boddenberg/expense-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/expense-assistant-go/internal/infra/sqlite"
	"github.com/boddenberg/expense-assistant-go/internal/infra/supabase"
	"github.com/boddenberg/expense-assistant-go/internal/port"
	"github.com/boddenberg/expense-assistant-go/internal/service"

	"go.uber.org/zap"
)

// app is the assembled dependency graph shared by serve and ask.
type app struct {
	assistant *service.Assistant
	store     port.LedgerStore
	bulkhead  *resilience.Bulkhead
	metrics   *observability.Metrics
	logger    *zap.Logger
	closers   []func() error
}

func build(cfg *config.Config, logger *zap.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	queryMatch, err := cfg.QueryMatch()
	if err != nil {
		return nil, err
	}
	mutationMatch, err := cfg.MutationMatch()
	if err != nil {
		return nil, err
	}

	a := &app{
		metrics:  observability.NewMetrics(),
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:   logger,
	}

	// --- Resilience ---
	retryCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Storage ---
	switch cfg.StorageBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase ledger", zap.String("supabase_url", cfg.SupabaseURL))
		a.store = supabase.NewClient(
			httpClient,
			supabase.Options{
				BaseURL:        cfg.SupabaseURL,
				APIKey:         cfg.SupabaseAnonKey,
				ServiceRoleKey: cfg.SupabaseServiceKey,
				Table:          cfg.SupabaseTable,
				Location:       loc,
			},
			resilience.NewCircuitBreaker("supabase", logger),
			retryCfg,
			logger,
		)
	case config.BackendMemory:
		logger.Warn("using in-memory ledger, records are lost on exit")
		a.store = memory.New()
	default:
		store, err := sqlite.Open(cfg.SQLiteDBPath, loc, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		logger.Info("using SQLite ledger", zap.String("path", cfg.SQLiteDBPath))
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	// --- Classifier ---
	classifier := llm.NewClient(
		httpClient,
		llm.Config{
			URL:       cfg.GroqAPIURL,
			APIKey:    cfg.GroqAPIKey,
			Model:     cfg.GroqModel,
			MaxTokens: cfg.ClassifierMaxTokens,
		},
		resilience.NewCircuitBreaker("classifier", logger),
		retryCfg,
		logger,
	)

	var categoryCache port.Cache[string]
	if cfg.CategoryCacheTTL > 0 {
		c := cache.New[string](cfg.CategoryCacheTTL)
		categoryCache = c
		a.closers = append(a.closers, func() error { c.Close(); return nil })
	}

	// --- Events ---
	var publisher port.EventPublisher
	if cfg.AMQPURL != "" {
		p, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("ledger events disabled, broker unreachable", zap.Error(err))
		} else {
			publisher = p
			a.closers = append(a.closers, p.Close)
		}
	}

	// --- Services ---
	dates := service.NewDateResolver(loc, time.Now, logger)
	normalizer := service.NewCategoryNormalizer(classifier, categoryCache, a.metrics, logger)
	format := service.NewFormatter(cfg.CurrencySymbol)
	mutator := service.NewLedgerMutator(a.store, dates, normalizer, publisher, mutationMatch, a.metrics, logger)
	query := service.NewLedgerQuery(a.store, dates, queryMatch, a.metrics, logger)
	router := service.NewIntentRouter(mutator, query, format, a.metrics, logger)
	a.assistant = service.NewAssistant(classifier, router, format, a.metrics, logger)

	return a, nil
}

// pinger exposes the store to readiness checks when it supports them.
func (a *app) pinger() handler.Pinger {
	if p, ok := a.store.(handler.Pinger); ok {
		return p
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
}
