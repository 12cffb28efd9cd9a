package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Ключи маршрутизации событий сервиса.
const (
	KeyBookingCreated     = "booking.created"
	KeyBookingDeleted     = "booking.deleted"
	KeyRuleAdded          = "rule.added"
	KeyRuleDeleted        = "rule.deleted"
	KeyQuotaChanged       = "quota.changed"
	KeyManualBlockToggled = "manual_block.toggled"
	KeyMemberStatus       = "member.status_changed"
)

// EventPublisher: от него зависят сервисы.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
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
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishJSON отправляет v как persistent JSON-сообщение. Канал amqp
// нельзя использовать из нескольких горутин одновременно.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// LogPublisher только пишет события в лог, когда брокер не настроен.
type LogPublisher struct{}

func (LogPublisher) PublishJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	log.Printf("[mq] %s %s", key, b)
	return nil
}

// Publish отправляет событие и только логирует ошибку: запись в БД
// уже прошла.
func Publish(ctx context.Context, p EventPublisher, key string, v any) {
	if p == nil {
		return
	}
	if err := p.PublishJSON(ctx, key, v); err != nil {
		log.Printf("[mq] publish %s failed: %v", key, err)
	}
}
