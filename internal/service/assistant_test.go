package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/service"

	"go.uber.org/zap"
)

// classifyPayload mimics the LLM adapter: decode the raw payload, wrapping
// decode failures as classifier errors.
func classifyPayload(payload string) *mockIntentClassifier {
	in, err := domain.DecodeIntent([]byte(payload))
	if err != nil {
		var unknown *domain.ErrUnknownIntent
		if !errors.As(err, &unknown) {
			err = &domain.ErrExternalService{Service: "classifier", Err: err}
		}
		return &mockIntentClassifier{err: err}
	}
	return &mockIntentClassifier{result: &domain.Classification{
		Intent: in,
		Usage:  domain.TokenUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
	}}
}

func newAssistant(f *fixture, c *mockIntentClassifier) *service.Assistant {
	return service.NewAssistant(c, f.router, f.format, f.metrics, zap.NewNop())
}

// --- Tests ---

func TestHandleMessage_AddExpense(t *testing.T) {
	f := newFixture()
	a := newAssistant(f, classifyPayload(`{"intent":"add_expense","amount":500,"category":"food"}`))

	reply := a.HandleMessage(context.Background(), "Spent 500 on food")
	if reply != "Saved expense: ₹500 on Food (18 Oct 2026)." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if f.size() != 1 {
		t.Fatalf("expected 1 record, got %d", f.size())
	}
}

func TestHandleMessage_GreetingSkipsClassifier(t *testing.T) {
	f := newFixture()
	c := &mockIntentClassifier{err: errors.New("should not be called")}
	a := newAssistant(f, c)

	for text, want := range map[string]string{
		"hi":       service.MsgGreeting,
		"Hello!":   service.MsgGreeting,
		"bye":      service.MsgGoodbye,
		"GOODBYE.": service.MsgGoodbye,
	} {
		if got := a.HandleMessage(context.Background(), text); got != want {
			t.Errorf("%q: expected %q, got %q", text, want, got)
		}
	}
	if c.calls != 0 {
		t.Fatalf("classifier called %d times", c.calls)
	}
}

func TestHandleMessage_MissingIntentKeyIsApology(t *testing.T) {
	for _, payload := range []string{
		`{"amount":500,"category":"food"}`,
		`Sure! Here is the JSON you asked for`,
	} {
		f := newFixture()
		a := newAssistant(f, classifyPayload(payload))

		reply := a.HandleMessage(context.Background(), "Spent 500 on food")
		if reply != service.MsgApology {
			t.Errorf("payload %q: expected apology, got %q", payload, reply)
		}
		if f.size() != 0 {
			t.Errorf("payload %q: expected no mutations, got %d records", payload, f.size())
		}
		if len(f.publisher.events) != 0 {
			t.Errorf("payload %q: expected no events", payload)
		}
	}
}

func TestHandleMessage_UnknownTagIsApology(t *testing.T) {
	f := newFixture()
	a := newAssistant(f, classifyPayload(`{"intent":"transfer_money","amount":5}`))

	if reply := a.HandleMessage(context.Background(), "send 5 to bob"); reply != service.MsgApology {
		t.Fatalf("expected apology, got %q", reply)
	}
}

func TestHandleMessage_NilClassificationIsApology(t *testing.T) {
	f := newFixture()
	a := newAssistant(f, &mockIntentClassifier{})

	if reply := a.HandleMessage(context.Background(), "anything"); reply != service.MsgApology {
		t.Fatalf("expected apology, got %q", reply)
	}
}

func TestHandleMessage_RecordsMetrics(t *testing.T) {
	f := newFixture()
	a := newAssistant(f, classifyPayload(`{"intent":"help"}`))
	a.HandleMessage(context.Background(), "what can you do?")

	failing := newAssistant(f, &mockIntentClassifier{err: &domain.ErrExternalService{Service: "classifier", Err: errors.New("503")}})
	failing.HandleMessage(context.Background(), "spent 5 on tea")

	snap := f.metrics.Snapshot()
	if snap.TotalMessages != 2 {
		t.Fatalf("expected 2 messages, got %d", snap.TotalMessages)
	}
	if snap.ErrorRate != 0.5 {
		t.Fatalf("expected error rate 0.5, got %f", snap.ErrorRate)
	}
	if snap.AvgTokensPerMessage != 75 {
		t.Fatalf("expected 75 avg tokens, got %f", snap.AvgTokensPerMessage)
	}
}
