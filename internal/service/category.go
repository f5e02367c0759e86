package service

import (
	"context"
	"strings"

	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"
	"github.com/boddenberg/expense-assistant-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CategoryNormalizer maps free-text categories onto the fixed taxonomy.
// Normalization is best-effort: any classifier failure returns the input as-is.
type CategoryNormalizer struct {
	classifier port.CategoryClassifier
	cache      port.Cache[string] // optional, nil disables caching
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewCategoryNormalizer creates the normalizer. cache may be nil.
func NewCategoryNormalizer(
	classifier port.CategoryClassifier,
	cache port.Cache[string],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CategoryNormalizer {
	return &CategoryNormalizer{
		classifier: classifier,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
}

// Normalize returns the canonical category for raw, or raw unchanged when the
// classifier cannot answer. It never fails.
func (n *CategoryNormalizer) Normalize(ctx context.Context, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	ctx, span := tracer.Start(ctx, "CategoryNormalizer.Normalize")
	defer span.End()
	span.SetAttributes(attribute.String("category.raw", raw))

	key := "category:" + strings.ToLower(raw)
	if n.cache != nil {
		if cached, ok := n.cache.Get(key); ok {
			n.metrics.IncrCacheHit("category")
			return cached
		}
		n.metrics.IncrCacheMiss("category")
	}

	category, err := n.classifier.ClassifyCategory(ctx, raw)
	if err != nil {
		n.logger.Warn("category classification failed, keeping raw input",
			zap.String("category", raw),
			zap.Error(err),
		)
		n.metrics.IncrExternalError("classifier")
		return raw
	}

	canonical := string(category)
	span.SetAttributes(attribute.String("category.canonical", canonical))
	if n.cache != nil {
		n.cache.Set(key, canonical)
	}
	return canonical
}
