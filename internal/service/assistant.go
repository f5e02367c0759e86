package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"
	"github.com/boddenberg/expense-assistant-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/assistant")

var (
	greetingRe = regexp.MustCompile(`(?i)^(hi|hello)[!. ]*$`)
	goodbyeRe  = regexp.MustCompile(`(?i)^(bye|goodbye)[!. ]*$`)
)

// Assistant turns one inbound message into one reply: greetings are answered
// directly, everything else is classified and routed to the ledger.
type Assistant struct {
	classifier port.IntentClassifier
	router     *IntentRouter
	format     *Formatter
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAssistant creates the assistant service with all dependencies injected.
func NewAssistant(
	classifier port.IntentClassifier,
	router *IntentRouter,
	format *Formatter,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Assistant {
	return &Assistant{
		classifier: classifier,
		router:     router,
		format:     format,
		metrics:    metrics,
		logger:     logger,
	}
}

// HandleMessage always returns exactly one reply; failures are logged and
// rendered as text.
func (a *Assistant) HandleMessage(ctx context.Context, text string) string {
	ctx, span := tracer.Start(ctx, "Assistant.HandleMessage")
	defer span.End()

	start := time.Now()
	defer func() {
		a.metrics.RecordRequestDuration("assistant", time.Since(start))
	}()

	text = strings.TrimSpace(text)
	switch {
	case text == "":
		a.metrics.IncrMessage("success")
		return a.format.Guidance()
	case greetingRe.MatchString(text):
		a.metrics.IncrMessage("success")
		return MsgGreeting
	case goodbyeRe.MatchString(text):
		a.metrics.IncrMessage("success")
		return MsgGoodbye
	}

	classifyStart := time.Now()
	result, err := a.classifier.ClassifyIntent(ctx, text)
	a.metrics.RecordRequestDuration("classifier", time.Since(classifyStart))
	if err == nil && (result == nil || result.Intent == nil) {
		err = &domain.ErrExternalService{Service: "classifier", Err: domain.ErrMissingIntent}
	}
	if err != nil {
		span.RecordError(err)
		a.metrics.IncrMessage("error")
		a.metrics.IncrExternalError("classifier")
		return a.router.RouteError(ctx, err)
	}

	a.metrics.RecordTokens(result.Usage.PromptTokens, result.Usage.CompletionTokens)
	span.SetAttributes(attribute.String("intent", string(result.Intent.Kind())))

	a.logger.Debug("message classified",
		zap.String("intent", string(result.Intent.Kind())),
		zap.Int("tokens", result.Usage.TotalTokens),
	)

	reply := a.router.Route(ctx, result.Intent)
	a.metrics.IncrMessage("success")
	return reply
}
