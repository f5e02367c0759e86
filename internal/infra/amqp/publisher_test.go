package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishLedgerEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "expenses", zap.NewNop())

	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	old := decimal.NewFromInt(500)
	err := p.PublishLedgerEvent(context.Background(), domain.LedgerEvent{
		Type:       domain.EventExpenseEdited,
		ExpenseID:  "e1",
		Amount:     decimal.NewFromInt(600),
		OldAmount:  &old,
		Category:   "Food",
		SpentAt:    at,
		OccurredAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, "expenses", ch.exchange)
	assert.Equal(t, "expense.edited", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "e1", ch.msg.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(ch.msg.Body, &body))
	assert.Equal(t, "600", body["amount"])
	assert.Equal(t, "500", body["old_amount"])
	assert.Equal(t, "Food", body["category"])
}

func TestPublishLedgerEvent_BrokerFailure(t *testing.T) {
	p := newPublisher(&fakeChannel{err: amqp091.ErrClosed}, "expenses", zap.NewNop())

	err := p.PublishLedgerEvent(context.Background(), domain.LedgerEvent{Type: domain.EventExpenseAdded})

	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "amqp", ext.Service)
	assert.ErrorIs(t, err, amqp091.ErrClosed)
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "expenses", zap.NewNop())
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
