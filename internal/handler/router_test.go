package handler_test

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/handler"
	"github.com/boddenberg/expense-assistant-go/internal/infra/memory"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"
	"github.com/boddenberg/expense-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/expense-assistant-go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Fakes ---

type stubClassifier struct {
	intent domain.Intent
	err    error
}

func (s *stubClassifier) ClassifyIntent(context.Context, string) (*domain.Classification, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Classification{Intent: s.intent, Usage: domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}, nil
}

func (s *stubClassifier) ClassifyCategory(_ context.Context, raw string) (domain.Category, error) {
	if c, ok := domain.ParseCategory(raw); ok {
		return c, nil
	}
	return "", errors.New("not in taxonomy")
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router     http.Handler
	store      *memory.Store
	classifier *stubClassifier
	metrics    *observability.Metrics
}

func newTestServer(t *testing.T, pinger handler.Pinger) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memory.New()
	classifier := &stubClassifier{}

	now := func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	dates := service.NewDateResolver(time.UTC, now, logger)
	normalizer := service.NewCategoryNormalizer(classifier, nil, metrics, logger)
	format := service.NewFormatter("₹")
	mutator := service.NewLedgerMutator(store, dates, normalizer, nil, domain.MatchFold, metrics, logger)
	query := service.NewLedgerQuery(store, dates, domain.MatchContains, metrics, logger)
	router := service.NewIntentRouter(mutator, query, format, metrics, logger)
	assistant := service.NewAssistant(classifier, router, format, metrics, logger)

	return &testServer{
		router:     handler.NewRouter(assistant, pinger, resilience.NewBulkhead(4), metrics, logger),
		store:      store,
		classifier: classifier,
		metrics:    metrics,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func postSMS(body string) *http.Request {
	form := url.Values{"Body": {body}, "From": {"+15550001111"}, "MessageSid": {"SM123"}}
	req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func twimlMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		XMLName  xml.Name `xml:"Response"`
		Messages []string `xml:"Message"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	return resp.Messages[0]
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// --- Operational endpoints ---

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, stubPinger{})
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body domain.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Len(t, body.Services, 2)
}

func TestHealthz_DegradedStorage(t *testing.T) {
	srv := newTestServer(t, stubPinger{err: errors.New("disk full")})
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body domain.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}

func TestReadyz(t *testing.T) {
	rec := newTestServer(t, nil).do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = newTestServer(t, stubPinger{err: errors.New("down")}).do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPing(t *testing.T) {
	rec := newTestServer(t, nil).do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(postSMS("hi"))

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "expensebot_messages_total")
}

func TestMetricsSummary(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.classifier.intent = domain.HelpIntent{}
	srv.do(postSMS("what can you do"))

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/metrics/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body domain.AssistantMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.TotalMessages)
	assert.Equal(t, int64(1), body.Intents["help"])
	assert.InDelta(t, 15.0, body.AvgTokensPerMessage, 0.001)
}

// --- Webhook ---

func TestSMS_AddExpense(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.classifier.intent = domain.AddExpenseIntent{Amount: amount(500), Category: "food"}

	rec := srv.do(postSMS("Spent 500 on food"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Saved expense: ₹500 on Food (18 Oct 2026).", twimlMessage(t, rec))

	n, err := srv.store.Count(context.Background(), domain.ExpenseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSMS_Greeting(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(postSMS("Hello!"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.MsgGreeting, twimlMessage(t, rec))
}

func TestSMS_ClassifierFailureStill200(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.classifier.err = &domain.ErrExternalService{Service: "classifier", Err: errors.New("503")}

	rec := srv.do(postSMS("Spent 500 on food"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.MsgApology, twimlMessage(t, rec))
}

func TestSMS_MissingBodyGetsGuidance(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader("From=%2B1555"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := srv.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, twimlMessage(t, rec), "Sorry, I didn't understand that.")
}

// --- JSON surface ---

func TestMessages(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.classifier.intent = domain.QueryIntent{QueryType: domain.QueryTotal}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{"text":"total expenses"}`))
	rec := srv.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body domain.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Your total expenses so far: ₹0", body.Reply)
}

func TestMessages_InvalidBody(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(`{`))

	rec := srv.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
