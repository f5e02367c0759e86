// Package amqp publishes ledger events to a RabbitMQ exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends each ledger event to a durable direct exchange, routed by
// event type (expense.added, expense.edited, expense.deleted).
type Publisher struct {
	conn     *amqp091.Connection
	channel  channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	logger.Info("amqp publisher ready", zap.String("exchange", exchange))
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *zap.Logger) *Publisher {
	return &Publisher{channel: ch, exchange: exchange, logger: logger}
}

// PublishLedgerEvent sends ev as a persistent JSON message.
func (p *Publisher) PublishLedgerEvent(ctx context.Context, ev domain.LedgerEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,      // exchange
		string(ev.Type), // routing key
		false,           // mandatory
		false,           // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.ExpenseID,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return &domain.ErrExternalService{Service: "amqp", Err: err}
	}

	p.logger.Debug("ledger event published",
		zap.String("type", string(ev.Type)),
		zap.String("expense_id", ev.ExpenseID),
		zap.String("exchange", p.exchange),
	)
	return nil
}

// Close releases the channel and the connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
