// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_orders_total",
			Help: "Orders placed, by source",
		},
		[]string{"source"},
	)

	CheckoutRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_checkout_rejected_total",
			Help: "Checkouts refused before any state changed",
		},
		[]string{"reason"},
	)

	OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_outbox_pending",
			Help: "Transaction writes waiting to reach the database",
		},
	)

	OutboxFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_outbox_failures_total",
			Help: "Failed attempts to persist an outbox entry",
		},
	)

	OutboxDeadLetters = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_outbox_dead_letters_total",
			Help: "Outbox entries given up on after the retry limit",
		},
	)

	BroadcastDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_broadcast_dropped_total",
			Help: "Events dropped because a subscriber fell behind",
		},
		[]string{"topic"},
	)

	TableNoShows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_table_no_shows_total",
			Help: "Reservations released after the no-show grace period",
		},
	)

	KitchenItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_kitchen_items_total",
			Help: "Kitchen item transitions, by new status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersTotal,
		CheckoutRejected,
		OutboxPending,
		OutboxFailures,
		OutboxDeadLetters,
		BroadcastDropped,
		TableNoShows,
		KitchenItems,
	)
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
