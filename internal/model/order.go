package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSource identifies where an order was entered.
type OrderSource string

const (
	SourceTerminal        OrderSource = "terminal"
	SourceCustomerDisplay OrderSource = "customer_display"
	SourceDelivery        OrderSource = "delivery"
)

// Valid reports whether s is a known order source.
func (s OrderSource) Valid() bool {
	switch s {
	case SourceTerminal, SourceCustomerDisplay, SourceDelivery:
		return true
	}
	return false
}

// ServiceType describes how the order is served.
type ServiceType string

const (
	ServiceDineIn   ServiceType = "dine_in"
	ServiceTakeout  ServiceType = "takeout"
	ServiceDelivery ServiceType = "delivery"
)

// OrderStatus is the lifecycle state of an order. The first four values
// are also the per-item kitchen states.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusVoided    OrderStatus = "voided"
	StatusRefunded  OrderStatus = "refunded"
)

// WalkIn is the table name used for dine-in orders placed without a table.
const WalkIn = "walk-in"

// OrderLine is a priced, flattened copy of a cart line. Options holds
// human-readable "Group: Choice" labels.
type OrderLine struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Type      ItemType        `json:"type"`
	Options   []string        `json:"options,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// Order is created at checkout and is immutable afterwards except for
// Status.
type Order struct {
	ID           string      `json:"id"`
	Number       string      `json:"number"`
	Source       OrderSource `json:"source"`
	ServiceType  ServiceType `json:"service_type"`
	Lines        []OrderLine `json:"lines"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	TableID      string      `json:"table_id,omitempty"`
	TableName    string      `json:"table_name,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	Phone        string      `json:"phone,omitempty"`
}

// FoodLines returns the lines the kitchen has to prepare.
func (o Order) FoodLines() []OrderLine {
	var out []OrderLine
	for _, l := range o.Lines {
		if l.Type == ItemFood {
			out = append(out, l)
		}
	}
	return out
}

// Total sums the line totals.
func (o Order) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Lines {
		sum = sum.Add(l.Total)
	}
	return sum
}

// StatusChange announces a new status for an existing order. Items is
// set when the change comes from the kitchen.
type StatusChange struct {
	OrderID string        `json:"order_id"`
	Number  string        `json:"number"`
	Status  OrderStatus   `json:"status"`
	Items   []OrderStatus `json:"items,omitempty"`
}
