package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/pos-dashboard/internal/logger"
)

// ReceiptConsumer appends one line per placed order to <dir>/orders.log.
type ReceiptConsumer struct {
	url string
	dir string
	log *slog.Logger
}

func NewReceiptConsumer(url, dir string, log *slog.Logger) *ReceiptConsumer {
	if dir == "" {
		dir = "logs"
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReceiptConsumer{url: url, dir: dir, log: log}
}

// Run connects, consumes and reconnects with backoff until ctx ends.
func (c *ReceiptConsumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("receipt consumer cannot reach broker",
				slog.String("action", "receipt_consume"),
				slog.Duration("retry_in", backoff), logger.Err(err))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("receipt consumer loop ended, reconnecting",
			slog.String("action", "receipt_consume"), logger.Err(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *ReceiptConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", slog.String("action", "receipt_consume"), logger.Err(err))
	}
	if _, err := ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(OrderPlacedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.Error("receipt not written", slog.String("action", "receipt_consume"), logger.Err(err))
				// reject without requeue so a bad message cannot loop
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends its receipt line.
func (c *ReceiptConsumer) Handle(body []byte) error {
	var ev OrderPlacedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, "orders.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open receipt log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(ReceiptLine(ev)); err != nil {
		return fmt.Errorf("write receipt log: %w", err)
	}
	return nil
}

// ReceiptLine renders ev as a single human-readable log line.
func ReceiptLine(ev OrderPlacedEvent) string {
	table := ev.TableName
	if table == "" {
		table = "-"
	}
	return fmt.Sprintf("[%s] Order placed | number=%s | source=%s | service=%s | table=%q | total=%s | items=[%s]\n",
		ev.PlacedAt, ev.Number, ev.Source, ev.ServiceType, table, ev.Total, strings.Join(ev.Items, ", "))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
