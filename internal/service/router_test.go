package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/expense-assistant-go/internal/domain"
	"github.com/boddenberg/expense-assistant-go/internal/infra/memory"
	"github.com/boddenberg/expense-assistant-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_AddExpense(t *testing.T) {
	f := newFixture()
	reply := f.router.Route(context.Background(), domain.AddExpenseIntent{Amount: amt(500), Category: "food"})
	assert.Equal(t, "Saved expense: ₹500 on Food (18 Oct 2026).", reply)
	assert.Equal(t, 1, f.size())
}

func TestRoute_AddExpenseMissingAmountGivesGuidance(t *testing.T) {
	f := newFixture()
	reply := f.router.Route(context.Background(), domain.AddExpenseIntent{Category: "food"})
	assert.Contains(t, reply, "Spent ₹500 on food yesterday")
	assert.Zero(t, f.size())
}

func TestRoute_Batch(t *testing.T) {
	f := newFixture()
	reply := f.router.Route(context.Background(), domain.AddExpensesIntent{Items: []domain.ExpenseItem{
		{Amount: amt(100), Category: "coffee"},
		{Amount: amt(200), Category: "chocolate"},
	}})
	assert.Equal(t, "Saved 2 expenses for 18 Oct 2026:\n- ₹100 on Beverages\n- ₹200 on Food", reply)
}

func TestRoute_QueryTotals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.router.Route(ctx, domain.AddExpenseIntent{Amount: amt(500), Category: "food"})

	assert.Equal(t, "Your total expenses so far: ₹500",
		f.router.Route(ctx, domain.QueryIntent{QueryType: domain.QueryTotal}))
	assert.Equal(t, "You have spent ₹500 on food this month.",
		f.router.Route(ctx, domain.QueryIntent{QueryType: domain.QueryCategory, Category: "food", Period: "this_month"}))
	assert.Equal(t, "You spent ₹0 on 04 Feb 2025.",
		f.router.Route(ctx, domain.QueryIntent{QueryType: domain.QueryTotal, Date: "2025-02-04"}))
}

func TestRoute_EditNotFound(t *testing.T) {
	f := newFixture()
	reply := f.router.Route(context.Background(), domain.EditExpenseIntent{OldAmount: amt(500), OldCategory: "food", NewAmount: amt(600)})
	assert.Equal(t, "I couldn't find a ₹500 expense for food.", reply)
}

func TestRoute_EditMissingFields(t *testing.T) {
	f := newFixture()
	reply := f.router.Route(context.Background(), domain.EditExpenseIntent{OldAmount: amt(500)})
	assert.True(t, strings.HasPrefix(reply, "To edit an expense"), reply)
}

func TestRoute_DeleteNotFoundNamesWindow(t *testing.T) {
	f := newFixture()
	reply := f.router.Route(context.Background(), domain.DeleteExpenseIntent{Amount: amt(300), Category: "groceries", Date: "yesterday"})
	assert.Equal(t, "I couldn't find a ₹300 expense for groceries on 17 Oct 2026.", reply)
}

func TestRoute_ListAndHelp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assert.Equal(t, "You have no expenses recorded yet.", f.router.Route(ctx, domain.ListAllIntent{}))

	f.router.Route(ctx, domain.AddExpenseIntent{Amount: amt(50), Category: "coffee", Date: "2026-10-17"})
	assert.Equal(t, "Here are all your expenses:\n- 17 Oct 2026: ₹50 on Beverages", f.router.Route(ctx, domain.ListAllIntent{}))

	help := f.router.Route(ctx, domain.HelpIntent{})
	assert.Contains(t, help, "Groceries")
}

func TestRoute_UnknownIntentGivesGuidance(t *testing.T) {
	f := newFixture()
	reply := f.router.Route(context.Background(), domain.UnknownIntent{})
	assert.Contains(t, reply, "Spent ₹500 on food yesterday")

	assert.Equal(t, reply, f.router.Route(context.Background(), nil))
}

func TestRoute_StorageFailureIsApology(t *testing.T) {
	store := memory.New()
	f := newFixtureWithStore(store, &flakyStore{Store: store, failCreateAt: 1, failReads: true})

	reply := f.router.Route(context.Background(), domain.AddExpenseIntent{Amount: amt(5), Category: "food"})
	assert.Equal(t, service.MsgApology, reply)

	reply = f.router.Route(context.Background(), domain.QueryIntent{QueryType: domain.QueryTotal})
	assert.Equal(t, service.MsgApology, reply)
}

func TestRoute_BatchPartialFailureIsReported(t *testing.T) {
	store := memory.New()
	f := newFixtureWithStore(store, &flakyStore{Store: store, failCreateAt: 2})

	reply := f.router.Route(context.Background(), domain.AddExpensesIntent{Items: []domain.ExpenseItem{
		{Amount: amt(100), Category: "coffee"},
		{Amount: amt(200), Category: "chocolate"},
	}})
	assert.Equal(t, "Saved 1 expense for 18 Oct 2026:\n- ₹100 on Beverages\nCould not save:\n- ₹200 on chocolate (please try again)", reply)
}

func TestRouteError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	assert.Equal(t, service.MsgApology, f.router.RouteError(ctx, &domain.ErrUnknownIntent{Tag: "buy_stock"}))
	assert.Equal(t, service.MsgApology, f.router.RouteError(ctx, &domain.ErrExternalService{Service: "classifier", Err: errors.New("boom")}))
}

func TestRoute_MetricsCountIntents(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.router.Route(ctx, domain.HelpIntent{})
	f.router.Route(ctx, domain.HelpIntent{})
	f.router.Route(ctx, domain.ListAllIntent{})

	snap := f.metrics.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.Intents["help"])
	assert.Equal(t, int64(1), snap.Intents["list_all"])
}
