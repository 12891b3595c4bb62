package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"webinfinitygen/internal/events"
)

// DeclareExchange declares the durable fanout exchange chat events travel on.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange failed: %w", err)
	}
	return nil
}

// EventPublisher broadcasts chat events to every instance through a fanout
// exchange.
type EventPublisher struct {
	conn     *amqp.Connection
	exchange string
}

func NewEventPublisher(conn *amqp.Connection, exchange string) *EventPublisher {
	return &EventPublisher{
		conn:     conn,
		exchange: exchange,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, ev events.ChatEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareExchange(ch, p.exchange); err != nil {
		return err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal chat event failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		p.exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Type:        string(ev.Type),
			Timestamp:   ev.At,
			Body:        payload,
		},
	); err != nil {
		return fmt.Errorf("publish chat event failed: %w", err)
	}
	return nil
}
