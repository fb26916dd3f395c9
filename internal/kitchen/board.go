// Package kitchen tracks preparation of food items across received
// orders. Every item moves pending → preparing → ready → completed, one
// staff action at a time, and the ticket status is derived from its
// items.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/metrics"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

var (
	ErrOrderNotFound     = errors.New("kitchen order not found")
	ErrItemNotFound      = errors.New("kitchen item not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// nextStatus is the only legal successor of each item status.
var nextStatus = map[model.OrderStatus]model.OrderStatus{
	model.StatusPending:   model.StatusPreparing,
	model.StatusPreparing: model.StatusReady,
	model.StatusReady:     model.StatusCompleted,
}

// Item is one food line on a ticket.
type Item struct {
	model.OrderLine
	Status model.OrderStatus `json:"status"`
}

// Ticket is the kitchen's view of an order.
type Ticket struct {
	OrderID    string            `json:"order_id"`
	Number     string            `json:"number"`
	Source     model.OrderSource `json:"source"`
	TableName  string            `json:"table_name,omitempty"`
	Items      []Item            `json:"items"`
	Status     model.OrderStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Publisher is the part of the broadcast hub the board needs.
type Publisher interface {
	Publish(topic broadcast.Topic, payload any) (broadcast.Event, error)
}

// DeriveStatus computes a ticket status: completed if every item is
// completed, ready if every item is ready or completed, preparing if any
// item is preparing, pending otherwise.
func DeriveStatus(items []model.OrderStatus) model.OrderStatus {
	if len(items) == 0 {
		return model.StatusPending
	}
	allDone, allReady, anyPreparing := true, true, false
	for _, s := range items {
		if s != model.StatusCompleted {
			allDone = false
		}
		if s != model.StatusReady && s != model.StatusCompleted {
			allReady = false
		}
		if s == model.StatusPreparing {
			anyPreparing = true
		}
	}
	switch {
	case allDone:
		return model.StatusCompleted
	case allReady:
		return model.StatusReady
	case anyPreparing:
		return model.StatusPreparing
	}
	return model.StatusPending
}

// Board holds the tickets. It is safe for concurrent use.
type Board struct {
	mu      sync.Mutex
	tickets map[string]*Ticket

	pub   Publisher
	clock clock.Clock
	log   *slog.Logger
}

// NewBoard returns an empty board.
func NewBoard(pub Publisher, clk clock.Clock, log *slog.Logger) *Board {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Board{tickets: map[string]*Ticket{}, pub: pub, clock: clk, log: log}
}

// Receive stores the food lines of an order. An order already on the
// board is replaced, its item progress reset.
func (b *Board) Receive(o model.Order) Ticket {
	t := &Ticket{
		OrderID:    o.ID,
		Number:     o.Number,
		Source:     o.Source,
		TableName:  o.TableName,
		CreatedAt:  o.CreatedAt,
		ReceivedAt: b.clock.Now().UTC(),
	}
	for _, l := range o.FoodLines() {
		t.Items = append(t.Items, Item{OrderLine: l, Status: model.StatusPending})
	}
	t.Status = DeriveStatus(t.statuses())

	b.mu.Lock()
	if old, ok := b.tickets[o.ID]; ok {
		t.ReceivedAt = old.ReceivedAt
	}
	b.tickets[o.ID] = t
	out := t.clone()
	b.mu.Unlock()
	return out
}

// Advance moves one item to its next status.
func (b *Board) Advance(orderID string, index int) (Ticket, error) {
	return b.transition(orderID, index, func(cur model.OrderStatus) (model.OrderStatus, error) {
		next, ok := nextStatus[cur]
		if !ok {
			return "", fmt.Errorf("%w: item already %s", ErrInvalidTransition, cur)
		}
		return next, nil
	})
}

// SetStatus moves one item to target, which must be its immediate
// successor.
func (b *Board) SetStatus(orderID string, index int, target model.OrderStatus) (Ticket, error) {
	return b.transition(orderID, index, func(cur model.OrderStatus) (model.OrderStatus, error) {
		if next, ok := nextStatus[cur]; !ok || next != target {
			return "", fmt.Errorf("%w: %s to %s", ErrInvalidTransition, cur, target)
		}
		return target, nil
	})
}

func (b *Board) transition(orderID string, index int, step func(model.OrderStatus) (model.OrderStatus, error)) (Ticket, error) {
	b.mu.Lock()
	t, ok := b.tickets[orderID]
	if !ok {
		b.mu.Unlock()
		return Ticket{}, ErrOrderNotFound
	}
	if index < 0 || index >= len(t.Items) {
		b.mu.Unlock()
		return Ticket{}, ErrItemNotFound
	}
	next, err := step(t.Items[index].Status)
	if err != nil {
		b.mu.Unlock()
		return Ticket{}, err
	}
	t.Items[index].Status = next
	t.Status = DeriveStatus(t.statuses())
	out := t.clone()
	b.mu.Unlock()

	metrics.KitchenItems.WithLabelValues(string(next)).Inc()
	b.announce(out)
	return out, nil
}

// Remove drops a ticket, e.g. when its order is voided.
func (b *Board) Remove(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.tickets[orderID]
	delete(b.tickets, orderID)
	return ok
}

// Orders returns all tickets, oldest first.
func (b *Board) Orders() []Ticket {
	b.mu.Lock()
	out := make([]Ticket, 0, len(b.tickets))
	for _, t := range b.tickets {
		out = append(out, t.clone())
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// Ticket returns one ticket.
func (b *Board) Ticket(orderID string) (Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tickets[orderID]
	if !ok {
		return Ticket{}, ErrOrderNotFound
	}
	return t.clone(), nil
}

// Clear removes every ticket.
func (b *Board) Clear() {
	b.mu.Lock()
	b.tickets = map[string]*Ticket{}
	b.mu.Unlock()
}

// Topics lists what Run expects its subscription to cover.
func Topics() []broadcast.Topic {
	return []broadcast.Topic{broadcast.NewKitchenOrder, broadcast.ClearKitchenOrders, broadcast.OrderStatusChanged}
}

// Apply handles one hub event.
func (b *Board) Apply(ev broadcast.Event) error {
	switch ev.Topic {
	case broadcast.NewKitchenOrder:
		var o model.Order
		if err := ev.Decode(&o); err != nil {
			return err
		}
		b.Receive(o)
	case broadcast.ClearKitchenOrders:
		b.Clear()
	case broadcast.OrderStatusChanged:
		var sc model.StatusChange
		if err := ev.Decode(&sc); err != nil {
			return err
		}
		if sc.Status == model.StatusVoided || sc.Status == model.StatusRefunded {
			b.Remove(sc.OrderID)
		}
	}
	return nil
}

// Run consumes sub until ctx ends or the subscription closes.
func (b *Board) Run(ctx context.Context, sub broadcast.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := b.Apply(ev); err != nil {
				b.log.Warn("kitchen event ignored", slog.String("action", "kitchen_receive"),
					slog.String("topic", string(ev.Topic)), logger.Err(err))
			}
		}
	}
}

func (b *Board) announce(t Ticket) {
	if b.pub == nil {
		return
	}
	_, err := b.pub.Publish(broadcast.OrderStatusChanged, model.StatusChange{
		OrderID: t.OrderID,
		Number:  t.Number,
		Status:  t.Status,
		Items:   t.statuses(),
	})
	if err != nil {
		b.log.Error("announce kitchen status failed", slog.String("action", "kitchen_broadcast"), logger.Err(err))
	}
}

func (t *Ticket) statuses() []model.OrderStatus {
	out := make([]model.OrderStatus, len(t.Items))
	for i, it := range t.Items {
		out[i] = it.Status
	}
	return out
}

func (t *Ticket) clone() Ticket {
	c := *t
	c.Items = append([]Item(nil), t.Items...)
	return c
}
