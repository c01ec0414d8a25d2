// internal/app/system/events/events.go
//
// Package events publishes booking and payment lifecycle notifications to a
// RabbitMQ topic exchange. Publishing happens after the state change has
// committed and is best-effort: a failed publish is logged, never surfaced to
// the caller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing keys
const (
	BookingApproved = "booking.approved"
	BookingRejected = "booking.rejected"
	PaymentRecorded = "payment.recorded"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "clubhub.events"

// Envelope wraps every published payload.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// BookingDecision is the payload of booking.approved and booking.rejected.
type BookingDecision struct {
	BookingID string `json:"booking_id"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Promoted  bool   `json:"promoted"`
}

// PaymentRecord is the payload of payment.recorded.
type PaymentRecord struct {
	PaymentID     string    `json:"payment_id"`
	BookingID     string    `json:"booking_id"`
	Email         string    `json:"email"`
	Amount        int64     `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	PaymentDate   time.Time `json:"payment_date"`
}

// Publisher sends an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, data any) error
	Close() error
}

// NewEnvelope stamps data with a fresh message id and the current time.
func NewEnvelope(key string, data any) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Emit publishes and logs the outcome. It never fails the caller.
func Emit(ctx context.Context, p Publisher, log *zap.Logger, key string, data any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, key, data); err != nil {
		log.Error("event publish failed", zap.String("routing_key", key), zap.Error(err))
	}
}

// AMQP publishes to a durable topic exchange.
type AMQP struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects to RabbitMQ and declares the exchange.
func Dial(url, exchange string) (*AMQP, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish implements Publisher.
func (p *AMQP) Publish(ctx context.Context, key string, data any) error {
	env := NewEnvelope(key, data)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Type:         key,
		Body:         body,
	})
}

// Close implements Publisher.
func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

// Memory keeps published envelopes in order. Intended for tests.
type Memory struct {
	mu   sync.Mutex
	sent []Envelope
	Err  error
}

func (m *Memory) Publish(_ context.Context, key string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, NewEnvelope(key, data))
	return nil
}

func (m *Memory) Close() error { return nil }

// Sent returns a copy of the published envelopes.
func (m *Memory) Sent() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Envelope(nil), m.sent...)
}
