package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

func sampleOrder() model.Order {
	return model.Order{
		ID:          "o1",
		Number:      "ORD_20260301_007",
		Source:      model.SourceTerminal,
		ServiceType: model.ServiceDineIn,
		TableName:   "Table 2",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Lines: []model.OrderLine{
			{Name: "Burger", Quantity: 2, Total: decimal.RequireFromString("17")},
			{Name: "Milk Tea", Quantity: 1, Total: decimal.RequireFromString("4")},
		},
	}
}

func TestNewOrderPlaced(t *testing.T) {
	ev := NewOrderPlaced(sampleOrder())
	assert.Equal(t, "21.00", ev.Total)
	assert.Equal(t, []string{"2x Burger", "1x Milk Tea"}, ev.Items)
	assert.Equal(t, "2026-03-01T12:00:00Z", ev.PlacedAt)
}

func TestReceiptConsumerAppends(t *testing.T) {
	dir := t.TempDir()
	c := NewReceiptConsumer("", dir, nil)
	body, err := json.Marshal(NewOrderPlaced(sampleOrder()))
	require.NoError(t, err)

	require.NoError(t, c.Handle(body))
	require.NoError(t, c.Handle(body))
	assert.Error(t, c.Handle([]byte("{")))

	raw, err := os.ReadFile(filepath.Join(dir, "orders.log"))
	require.NoError(t, err)
	want := "[2026-03-01T12:00:00Z] Order placed | number=ORD_20260301_007 | source=terminal | service=dine_in | table=\"Table 2\" | total=21.00 | items=[2x Burger, 1x Milk Tea]\n"
	assert.Equal(t, want+want, string(raw))
}

type recordingSender struct {
	mu   sync.Mutex
	got  []OrderPlacedEvent
	fail bool
}

func (s *recordingSender) PublishOrderPlaced(_ context.Context, ev OrderPlacedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, ev)
	if s.fail {
		return errors.New("broker down")
	}
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestForwardMirrorsNewOrders(t *testing.T) {
	hub := broadcast.NewHub()
	sub := hub.Subscribe(broadcast.NewOrder)
	sender := &recordingSender{fail: true}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Forward(ctx, sub, sender, nil)
		close(done)
	}()

	_, err := hub.Publish(broadcast.NewOrder, sampleOrder())
	require.NoError(t, err)
	_, err = hub.Publish(broadcast.NewOrder, sampleOrder())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 5*time.Millisecond,
		"a failing broker must not stop forwarding")
	cancel()
	<-done
	assert.Equal(t, "ORD_20260301_007", sender.got[0].Number)
}
