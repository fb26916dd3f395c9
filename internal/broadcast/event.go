// Package broadcast is the in-process publish/subscribe hub that connects
// the terminal, kitchen display, customer display and reports screens.
// Topics are typed, events carry a schema version, and snapshot topics
// retain their last event so a view that subscribes late still sees the
// current menu and table state.
package broadcast

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SchemaVersion is stamped on every event published by this service.
const SchemaVersion = 1

// Topic names a broadcast channel.
type Topic string

const (
	NewOrder                Topic = "new-order"
	NewKitchenOrder         Topic = "new-kitchen-order"
	NewTransaction          Topic = "new-transaction"
	NewAnalyticsTransaction Topic = "new-analytics-transaction"
	MenuItemsUpdated        Topic = "menu-items-updated"
	RequestMenuItems        Topic = "request-menu-items"
	AvailableTables         Topic = "available-tables"
	RequestAvailableTables  Topic = "request-available-tables"
	ClearKitchenOrders      Topic = "clear-kitchen-orders"
	ClearTransactions       Topic = "clear-transactions"
	CategoriesImported      Topic = "excel-import-categories"
	TableReminder           Topic = "table-reminder"
	OrderStatusChanged      Topic = "order-status-changed"
)

var knownTopics = map[Topic]bool{
	NewOrder: true, NewKitchenOrder: true, NewTransaction: true,
	NewAnalyticsTransaction: true, MenuItemsUpdated: true, RequestMenuItems: true,
	AvailableTables: true, RequestAvailableTables: true, ClearKitchenOrders: true,
	ClearTransactions: true, CategoriesImported: true, TableReminder: true,
	OrderStatusChanged: true,
}

// snapshotTopics retain their last event for late subscribers.
var snapshotTopics = map[Topic]bool{
	MenuItemsUpdated: true,
	AvailableTables:  true,
}

// requestTopics map a "please resend" topic to the snapshot it asks for.
var requestTopics = map[Topic]Topic{
	RequestMenuItems:       MenuItemsUpdated,
	RequestAvailableTables: AvailableTables,
}

// ParseTopic validates a topic name coming from outside the process.
func ParseTopic(s string) (Topic, error) {
	t := Topic(s)
	if !knownTopics[t] {
		return "", fmt.Errorf("unknown topic %q", s)
	}
	return t, nil
}

// All returns every known topic in name order.
func All() []Topic {
	out := make([]Topic, 0, len(knownTopics))
	for t := range knownTopics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Event is one message on the hub.
type Event struct {
	ID      string          `json:"id"`
	Topic   Topic           `json:"topic"`
	Version int             `json:"version"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s: empty payload", e.Topic)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("event %s: %w", e.Topic, err)
	}
	return nil
}
