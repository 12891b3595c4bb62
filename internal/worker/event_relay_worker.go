package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"webinfinitygen/internal/events"
	"webinfinitygen/internal/platform/rabbitmq"
)

// EventRelayWorker consumes the chat event exchange through a private queue and
// hands each event to the local hub, so SSE clients on this instance see
// changes made on any instance.
type EventRelayWorker struct {
	conn     *amqp.Connection
	hub      *events.Hub
	exchange string
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEventRelayWorker(conn *amqp.Connection, hub *events.Hub, exchange string, logger *slog.Logger) *EventRelayWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRelayWorker{
		conn:     conn,
		hub:      hub,
		exchange: exchange,
		logger:   logger.With("component", "event_relay"),
	}
}

func (w *EventRelayWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareExchange(ch, w.exchange); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	q, err := ch.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare relay queue failed: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", w.exchange, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("bind relay queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",
		true,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume relay queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("relay deliveries closed")
					return
				}
				w.relay(d.Body)
			}
		}
	}()

	return nil
}

func (w *EventRelayWorker) relay(body []byte) {
	var ev events.ChatEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		w.logger.Warn("decode chat event failed", "error", err)
		return
	}
	w.hub.Deliver(ev)
}

func (w *EventRelayWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
