package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"
	"github.com/boddenberg/expense-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/expense-assistant-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

const pingTimeout = 2 * time.Second

// Pinger is implemented by stores that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware.
// pinger may be nil, in which case /readyz reports ready unconditionally.
func NewRouter(
	svc *service.Assistant,
	pinger Pinger,
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	if bulkhead == nil {
		bulkhead = resilience.NewBulkhead(0)
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(pinger))
	r.Get("/readyz", readyzHandler(pinger, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Twilio webhook ---
	r.Post("/sms", smsWebhookHandler(svc, bulkhead, logger))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", messageHandler(svc, bulkhead, logger))
		r.Get("/metrics/summary", metricsSummaryHandler(metrics))
	})

	return r
}

func healthzHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "expensebot", Status: "healthy", LastChecked: now},
		}

		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			start := time.Now()
			err := pinger.Ping(ctx)
			cancel()

			sh := domain.ServiceHealth{
				Name:        "storage",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				sh.Status = "degraded"
				sh.Error = err.Error()
			}
			services = append(services, sh)
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(pinger Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "storage unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
