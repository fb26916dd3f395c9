// Package checkout turns a cart into an order and its transaction, fans
// the result out to the other views and queues the database write.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/cart"
	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/logger"
	"github.com/iliyamo/pos-dashboard/internal/metrics"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrPaymentRequired     = errors.New("payment method is required")
	ErrInvalidSource       = errors.New("unknown order source")
	ErrInvalidService      = errors.New("unknown service type")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotCompleted        = errors.New("only completed transactions can be reversed")
)

// Publisher is the part of the broadcast hub checkout needs.
type Publisher interface {
	Publish(topic broadcast.Topic, payload any) (broadcast.Event, error)
}

// Seater seats a dine-in order at a table.
type Seater interface {
	Get(id string) (model.Table, error)
	Occupy(ctx context.Context, id string, guests int, duration time.Duration) (model.Table, error)
}

// Context carries everything about an order that is not in the cart.
type Context struct {
	Source        model.OrderSource   `json:"source"`
	ServiceType   model.ServiceType   `json:"service_type"`
	TableID       string              `json:"table_id,omitempty"`
	Guests        int                 `json:"guests,omitempty"`
	CustomerName  string              `json:"customer_name,omitempty"`
	Phone         string              `json:"phone,omitempty"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
}

// Result is what a successful checkout produced.
type Result struct {
	Order       model.Order       `json:"order"`
	Transaction model.Transaction `json:"transaction"`
}

// Service is safe for concurrent use.
type Service struct {
	seq    *Sequencer
	outbox *Outbox
	pub    Publisher
	tables Seater
	clock  clock.Clock
	log    *slog.Logger

	mu      sync.Mutex
	history []model.Transaction
	orders  map[string]model.Order
}

// New builds the service. tables may be nil when table service is off.
func New(seq *Sequencer, outbox *Outbox, pub Publisher, tables Seater, clk clock.Clock, log *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		seq:    seq,
		outbox: outbox,
		pub:    pub,
		tables: tables,
		clock:  clk,
		log:    log,
		orders: map[string]model.Order{},
	}
}

// Checkout places the contents of c as an order. Validation failures
// leave the cart, the tables and the history untouched.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart, oc Context) (Result, error) {
	lines := c.Lines()
	if len(lines) == 0 {
		metrics.CheckoutRejected.WithLabelValues("empty_cart").Inc()
		return Result{}, ErrEmptyCart
	}
	if oc.PaymentMethod == "" {
		metrics.CheckoutRejected.WithLabelValues("payment_required").Inc()
		return Result{}, ErrPaymentRequired
	}
	if !oc.PaymentMethod.Valid() {
		metrics.CheckoutRejected.WithLabelValues("payment_required").Inc()
		return Result{}, fmt.Errorf("%w: %q is not accepted", ErrPaymentRequired, oc.PaymentMethod)
	}
	if oc.Source == "" {
		oc.Source = model.SourceTerminal
	}
	if !oc.Source.Valid() {
		metrics.CheckoutRejected.WithLabelValues("invalid_source").Inc()
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidSource, oc.Source)
	}
	if oc.ServiceType == "" {
		oc.ServiceType = model.ServiceTakeout
	}

	order := model.Order{
		ID:           uuid.NewString(),
		Source:       oc.Source,
		ServiceType:  oc.ServiceType,
		Status:       model.StatusPending,
		CreatedAt:    s.clock.Now().UTC(),
		CustomerName: strings.TrimSpace(oc.CustomerName),
		Phone:        strings.TrimSpace(oc.Phone),
	}
	for _, l := range lines {
		order.Lines = append(order.Lines, model.OrderLine{
			ItemID:    l.Item.ID,
			Name:      l.Item.Name,
			Quantity:  l.Quantity,
			Type:      l.Item.Type,
			Options:   l.Selections.Labels(l.Item),
			UnitPrice: l.UnitPrice,
			Total:     l.Total,
		})
	}

	switch oc.ServiceType {
	case model.ServiceDineIn:
		if err := s.seat(ctx, &order, oc); err != nil {
			metrics.CheckoutRejected.WithLabelValues("table").Inc()
			return Result{}, err
		}
	case model.ServiceTakeout, model.ServiceDelivery:
	default:
		metrics.CheckoutRejected.WithLabelValues("invalid_service").Inc()
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidService, oc.ServiceType)
	}

	order.Number = s.seq.Next(ctx)
	tx := model.Transaction{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		Source:        order.Source,
		Amount:        order.Total(),
		PaymentMethod: oc.PaymentMethod,
		Status:        model.TxCompleted,
		Lines:         order.Lines,
		CreatedAt:     order.CreatedAt,
	}

	s.mu.Lock()
	s.history = append(s.history, tx)
	s.orders[order.ID] = order
	s.mu.Unlock()

	s.persist(ctx, tx)
	s.publish(broadcast.NewOrder, order)
	s.publish(broadcast.NewTransaction, tx)
	s.publish(broadcast.NewAnalyticsTransaction, tx)
	if food := order.FoodLines(); len(food) > 0 {
		kitchen := order
		kitchen.Lines = food
		s.publish(broadcast.NewKitchenOrder, kitchen)
	}
	c.Clear()

	metrics.OrdersTotal.WithLabelValues(string(order.Source)).Inc()
	s.log.Info("order placed",
		slog.String("action", "checkout"),
		slog.String("order_number", order.Number),
		slog.String("source", string(order.Source)),
		slog.String("amount", tx.Amount.StringFixed(2)))
	return Result{Order: order, Transaction: tx}, nil
}

// seat resolves the table for a dine-in order. A table that is already
// occupied takes the order as-is; anything else is seated first.
func (s *Service) seat(ctx context.Context, order *model.Order, oc Context) error {
	if oc.TableID == "" || s.tables == nil {
		order.TableName = model.WalkIn
		return nil
	}
	tb, err := s.tables.Get(oc.TableID)
	if err != nil {
		return err
	}
	if tb.Status != model.TableOccupied {
		guests := oc.Guests
		if guests <= 0 {
			guests = 1
		}
		if tb, err = s.tables.Occupy(ctx, oc.TableID, guests, 0); err != nil {
			return err
		}
	}
	order.TableID = tb.ID
	order.TableName = tb.Name
	return nil
}

// Void reverses a completed transaction before the customer leaves.
func (s *Service) Void(ctx context.Context, txID string) (model.Transaction, error) {
	return s.reverse(ctx, txID, model.TxVoided, model.StatusVoided)
}

// Refund reverses a completed transaction after the fact.
func (s *Service) Refund(ctx context.Context, txID string) (model.Transaction, error) {
	return s.reverse(ctx, txID, model.TxRefunded, model.StatusRefunded)
}

func (s *Service) reverse(ctx context.Context, txID string, txStatus model.TransactionStatus, orderStatus model.OrderStatus) (model.Transaction, error) {
	s.mu.Lock()
	idx := -1
	for i, t := range s.history {
		if t.ID == txID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return model.Transaction{}, ErrTransactionNotFound
	}
	orig := s.history[idx]
	if orig.Status != model.TxCompleted || orig.IsCompensation() {
		s.mu.Unlock()
		return model.Transaction{}, fmt.Errorf("%w: %s is %s", ErrNotCompleted, txID, orig.Status)
	}
	orig.Status = txStatus
	s.history[idx] = orig

	comp := model.Transaction{
		ID:            uuid.NewString(),
		OrderID:       orig.OrderID,
		OrderNumber:   orig.OrderNumber,
		Source:        orig.Source,
		Amount:        orig.Amount.Neg(),
		PaymentMethod: orig.PaymentMethod,
		Status:        txStatus,
		Lines:         negate(orig.Lines),
		CompensatesID: orig.ID,
		CreatedAt:     s.clock.Now().UTC(),
	}
	s.history = append(s.history, comp)
	if o, ok := s.orders[orig.OrderID]; ok {
		o.Status = orderStatus
		s.orders[orig.OrderID] = o
	}
	s.mu.Unlock()

	s.persist(ctx, orig)
	s.persist(ctx, comp)
	s.publish(broadcast.NewTransaction, comp)
	s.publish(broadcast.NewAnalyticsTransaction, comp)
	s.publish(broadcast.OrderStatusChanged, model.StatusChange{
		OrderID: orig.OrderID,
		Number:  orig.OrderNumber,
		Status:  orderStatus,
	})

	s.log.Info("transaction reversed",
		slog.String("action", "transaction_"+string(txStatus)),
		slog.String("transaction_id", orig.ID),
		slog.String("order_number", orig.OrderNumber))
	return comp, nil
}

// Transactions returns the session history, oldest first.
func (s *Service) Transactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Transaction(nil), s.history...)
}

// Order returns an order placed in this session.
func (s *Service) Order(id string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// Seed preloads history read back from the database. Orders are not
// restored; only the transactions are needed for void and refund.
func (s *Service) Seed(txs []model.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(append([]model.Transaction(nil), txs...), s.history...)
}

// ClearHistory drops the session history.
func (s *Service) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Outbox exposes the write queue for status reporting.
func (s *Service) Outbox() *Outbox { return s.outbox }

func (s *Service) persist(ctx context.Context, tx model.Transaction) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Enqueue(ctx, tx); err != nil {
		s.log.Error("transaction not queued for persistence",
			slog.String("action", "outbox_enqueue"),
			slog.String("transaction_id", tx.ID), logger.Err(err))
	}
}

func (s *Service) publish(topic broadcast.Topic, payload any) {
	if s.pub == nil {
		return
	}
	if _, err := s.pub.Publish(topic, payload); err != nil {
		s.log.Error("broadcast failed", slog.String("action", "checkout_broadcast"),
			slog.String("topic", string(topic)), logger.Err(err))
	}
}

func negate(lines []model.OrderLine) []model.OrderLine {
	out := make([]model.OrderLine, len(lines))
	for i, l := range lines {
		l.Quantity = -l.Quantity
		l.Total = l.Total.Neg()
		out[i] = l
	}
	return out
}
