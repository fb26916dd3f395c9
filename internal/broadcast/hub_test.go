package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-dashboard/internal/clock"
)

func next(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Events:
		return ev
	default:
		t.Fatal("no event queued")
		return Event{}
	}
}

func empty(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected event %s on %s", ev.ID, ev.Topic)
	default:
	}
}

func TestPublishReachesSubscribersInOrder(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(NewOrder)
	b := h.Subscribe(NewOrder, NewTransaction)
	other := h.Subscribe(NewKitchenOrder)
	defer a.Close()
	defer b.Close()
	defer other.Close()

	ev, err := h.Publish(NewOrder, map[string]string{"id": "o-1"})
	require.NoError(t, err)

	assert.Equal(t, ev.ID, next(t, a).ID)
	got := next(t, b)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, SchemaVersion, got.Version)

	var payload map[string]string
	require.NoError(t, got.Decode(&payload))
	assert.Equal(t, "o-1", payload["id"])
	empty(t, other)
}

func TestDuplicateEventIDIgnored(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(NewOrder)
	defer sub.Close()

	ev := Event{ID: "evt-1", Topic: NewOrder}
	h.Route(ev)
	h.Route(ev)

	assert.Equal(t, "evt-1", next(t, sub).ID)
	empty(t, sub)
}

func TestLateSubscriberGetsSnapshot(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	h := NewHub(WithClock(fc))

	_, err := h.Publish(AvailableTables, []string{"T1"})
	require.NoError(t, err)
	second, err := h.Publish(AvailableTables, []string{"T1", "T2"})
	require.NoError(t, err)
	_, err = h.Publish(NewOrder, map[string]string{"id": "missed"})
	require.NoError(t, err)

	sub := h.Subscribe(AvailableTables, NewOrder)
	defer sub.Close()

	got := next(t, sub)
	assert.Equal(t, second.ID, got.ID, "late subscriber should see the latest snapshot only")
	assert.Equal(t, fc.Now(), got.At)
	empty(t, sub)
}

func TestRequestTopicResendsSnapshot(t *testing.T) {
	h := NewHub()
	menu, err := h.Publish(MenuItemsUpdated, []string{"tea"})
	require.NoError(t, err)

	sub := h.Subscribe(MenuItemsUpdated)
	defer sub.Close()
	assert.Equal(t, menu.ID, next(t, sub).ID)

	_, err = h.Publish(RequestMenuItems, nil)
	require.NoError(t, err)
	assert.Equal(t, menu.ID, next(t, sub).ID)
}

func TestOverflowDropsOldest(t *testing.T) {
	var dropped []Topic
	h := NewHub(WithSubscriberCapacity(2), WithDropHook(func(tp Topic) { dropped = append(dropped, tp) }))
	sub := h.Subscribe(NewTransaction)
	defer sub.Close()

	h.Route(Event{ID: "1", Topic: NewTransaction})
	h.Route(Event{ID: "2", Topic: NewTransaction})
	h.Route(Event{ID: "3", Topic: NewTransaction})

	assert.Equal(t, "2", next(t, sub).ID)
	assert.Equal(t, "3", next(t, sub).ID)
	assert.Equal(t, []Topic{NewTransaction}, dropped)
}

func TestCloseStopsDelivery(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(NewOrder)
	sub.Close()

	h.Route(Event{ID: "x", Topic: NewOrder})
	_, open := <-sub.Events
	assert.False(t, open)
}

func TestParseTopic(t *testing.T) {
	tp, err := ParseTopic("new-kitchen-order")
	require.NoError(t, err)
	assert.Equal(t, NewKitchenOrder, tp)

	_, err = ParseTopic("nope")
	assert.Error(t, err)
}

func TestAllTopics(t *testing.T) {
	all := All()
	assert.Len(t, all, 13)
	assert.Contains(t, all, OrderStatusChanged)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1], all[i])
	}
}
