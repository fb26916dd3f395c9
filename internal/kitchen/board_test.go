package kitchen

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/clock"
	"github.com/iliyamo/pos-dashboard/internal/model"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func order(id string, lines ...model.OrderLine) model.Order {
	return model.Order{
		ID:        id,
		Number:    "ORD_20260301_00" + id,
		Source:    model.SourceTerminal,
		Lines:     lines,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func food(name string) model.OrderLine {
	return model.OrderLine{Name: name, Quantity: 1, Type: model.ItemFood, UnitPrice: decimal.NewFromInt(5), Total: decimal.NewFromInt(5)}
}

func drink(name string) model.OrderLine {
	return model.OrderLine{Name: name, Quantity: 1, Type: model.ItemBeverage, UnitPrice: decimal.NewFromInt(3), Total: decimal.NewFromInt(3)}
}

func TestDeriveStatus(t *testing.T) {
	P, Pr, R, C := model.StatusPending, model.StatusPreparing, model.StatusReady, model.StatusCompleted
	cases := []struct {
		items []model.OrderStatus
		want  model.OrderStatus
	}{
		{[]model.OrderStatus{P, P}, P},
		{[]model.OrderStatus{Pr, P}, Pr},
		{[]model.OrderStatus{R, P}, P},
		{[]model.OrderStatus{R, Pr}, Pr},
		{[]model.OrderStatus{R, C}, R},
		{[]model.OrderStatus{R, R}, R},
		{[]model.OrderStatus{C, C}, C},
		{nil, P},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveStatus(tc.items), "%v", tc.items)
	}
}

func TestReceiveKeepsOnlyFood(t *testing.T) {
	b := NewBoard(nil, clock.NewFake(time.Now()), quiet)
	tk := b.Receive(order("1", food("Dumplings"), drink("Milk Tea"), food("Noodles")))
	require.Len(t, tk.Items, 2)
	assert.Equal(t, "Dumplings", tk.Items[0].Name)
	assert.Equal(t, "Noodles", tk.Items[1].Name)
	assert.Equal(t, model.StatusPending, tk.Status)
}

func TestRebroadcastReplacesTicket(t *testing.T) {
	b := NewBoard(nil, nil, quiet)
	b.Receive(order("1", food("Dumplings")))
	_, err := b.Advance("1", 0)
	require.NoError(t, err)

	b.Receive(order("1", food("Dumplings"), food("Rice")))
	all := b.Orders()
	require.Len(t, all, 1, "same order id must not duplicate")
	require.Len(t, all[0].Items, 2)
	assert.Equal(t, model.StatusPending, all[0].Items[0].Status)
}

func TestAdvanceIsMonotonic(t *testing.T) {
	hub := broadcast.NewHub()
	sub := hub.Subscribe(broadcast.OrderStatusChanged)
	defer sub.Close()
	b := NewBoard(hub, nil, quiet)
	b.Receive(order("1", food("Dumplings"), food("Rice")))

	tk, err := b.Advance("1", 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, tk.Items[0].Status)
	assert.Equal(t, model.StatusPreparing, tk.Status)

	var sc model.StatusChange
	require.NoError(t, (<-sub.Events).Decode(&sc))
	assert.Equal(t, "1", sc.OrderID)
	assert.Equal(t, model.StatusPreparing, sc.Status)

	_, err = b.SetStatus("1", 0, model.StatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition, "backwards")
	_, err = b.SetStatus("1", 1, model.StatusReady)
	assert.ErrorIs(t, err, ErrInvalidTransition, "skipping preparing")

	for i := 0; i < 2; i++ {
		_, err = b.Advance("1", 0)
		require.NoError(t, err)
	}
	_, err = b.Advance("1", 0)
	assert.ErrorIs(t, err, ErrInvalidTransition, "completed is terminal")

	tk, err = b.SetStatus("1", 1, model.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, tk.Status)
	_, _ = b.Advance("1", 1)
	tk, _ = b.Ticket("1")
	assert.Equal(t, model.StatusReady, tk.Status)
	_, _ = b.Advance("1", 1)
	tk, _ = b.Ticket("1")
	assert.Equal(t, model.StatusCompleted, tk.Status)
}

func TestAdvanceErrors(t *testing.T) {
	b := NewBoard(nil, nil, quiet)
	_, err := b.Advance("missing", 0)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	b.Receive(order("1", food("Dumplings")))
	_, err = b.Advance("1", 3)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestApplyEvents(t *testing.T) {
	hub := broadcast.NewHub()
	sub := hub.Subscribe(Topics()...)
	defer sub.Close()
	b := NewBoard(nil, nil, quiet)

	_, err := hub.Publish(broadcast.NewKitchenOrder, order("1", food("Dumplings")))
	require.NoError(t, err)
	_, err = hub.Publish(broadcast.NewKitchenOrder, order("2", food("Rice")))
	require.NoError(t, err)
	_, err = hub.Publish(broadcast.OrderStatusChanged, model.StatusChange{OrderID: "1", Status: model.StatusVoided})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Apply(<-sub.Events))
	}
	all := b.Orders()
	require.Len(t, all, 1)
	assert.Equal(t, "2", all[0].OrderID)

	_, err = hub.Publish(broadcast.ClearKitchenOrders, nil)
	require.NoError(t, err)
	require.NoError(t, b.Apply(<-sub.Events))
	assert.Empty(t, b.Orders())
}
