package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

// Sender delivers one order event to the broker.
type Sender interface {
	PublishOrderPlaced(ctx context.Context, ev OrderPlacedEvent) error
}

// Publisher dials the broker per message. Order volume at a single
// counter is low enough that a long-lived channel is not worth its
// reconnect handling.
type Publisher struct {
	url string
	log *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{url: url, log: log}
}

// PublishOrderPlaced sends ev to the order.placed queue as a persistent
// message. Errors are logged and returned; callers treat them as best
// effort.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, ev OrderPlacedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error("rabbitmq dial failed", slog.String("action", "order_publish"), logger.Err(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error("rabbitmq channel open failed", slog.String("action", "order_publish"), logger.Err(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
		p.log.Error("rabbitmq queue declare failed", slog.String("action", "order_publish"), logger.Err(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", OrderPlacedQueue, false, false, msg); err != nil {
		p.log.Error("rabbitmq publish failed", slog.String("action", "order_publish"),
			slog.String("order_number", ev.Number), logger.Err(err))
		return err
	}
	return nil
}

// Forward mirrors every new-order broadcast to the broker until ctx ends
// or the subscription closes. Broker failures never reach checkout.
func Forward(ctx context.Context, sub broadcast.Subscription, s Sender, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if ev.Topic != broadcast.NewOrder {
				continue
			}
			var o model.Order
			if err := ev.Decode(&o); err != nil {
				log.Warn("order event ignored", slog.String("action", "order_forward"), logger.Err(err))
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := s.PublishOrderPlaced(pctx, NewOrderPlaced(o)); err != nil {
				log.Warn("order not mirrored to broker", slog.String("action", "order_forward"),
					slog.String("order_number", o.Number), logger.Err(err))
			}
			cancel()
		}
	}
}
