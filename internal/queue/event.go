// Package queue carries placed orders to RabbitMQ for consumers outside
// this service, and ships the bundled consumer that keeps a receipt log.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/pos-dashboard/internal/model"
)

// OrderPlacedQueue is the durable queue order events are published to.
const OrderPlacedQueue = "order.placed"

// OrderPlacedEvent is published once per checkout. It is self-contained
// so consumers never need to query the POS database.
type OrderPlacedEvent struct {
	OrderID      string   `json:"order_id"`
	Number       string   `json:"number"`
	Source       string   `json:"source"`
	ServiceType  string   `json:"service_type"`
	TableName    string   `json:"table_name,omitempty"`
	CustomerName string   `json:"customer_name,omitempty"`
	Items        []string `json:"items"`
	Total        string   `json:"total"`
	PlacedAt     string   `json:"placed_at"`
}

// NewOrderPlaced flattens an order into its wire form.
func NewOrderPlaced(o model.Order) OrderPlacedEvent {
	ev := OrderPlacedEvent{
		OrderID:      o.ID,
		Number:       o.Number,
		Source:       string(o.Source),
		ServiceType:  string(o.ServiceType),
		TableName:    o.TableName,
		CustomerName: o.CustomerName,
		Total:        o.Total().StringFixed(2),
		PlacedAt:     o.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, l := range o.Lines {
		ev.Items = append(ev.Items, fmt.Sprintf("%dx %s", l.Quantity, l.Name))
	}
	return ev
}
