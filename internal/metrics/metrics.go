// Package metrics exposes the engine's prometheus instrumentation:
// orders processed by outcome, trades settled, book depth, and deposit
// activity. A Registry bundles the collectors so the CLI can register
// them once against a single prometheus.Registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/exiort/mas-market-laboratory/internal/types"
)

// Registry bundles every collector the engine updates per tick.
type Registry struct {
	OrdersProcessed *prometheus.CounterVec
	TradesSettled   prometheus.Counter
	TradeVolume     prometheus.Counter
	BookDepth       *prometheus.GaugeVec
	DepositsOpened  prometheus.Counter
	DepositsMatured prometheus.Counter
}

// NewRegistry constructs and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		OrdersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketlab",
			Name:      "orders_processed_total",
			Help:      "Orders processed, labeled by end_reason right after submission (NONE if resting).",
		}, []string{"end_reason"}),
		TradesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketlab",
			Name:      "trades_settled_total",
			Help:      "Trades settled by the matching engine.",
		}),
		TradeVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketlab",
			Name:      "trade_volume_total",
			Help:      "Cumulative traded share volume.",
		}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "marketlab",
			Name:      "book_depth",
			Help:      "Resident price levels, labeled by side.",
		}, []string{"side"}),
		DepositsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketlab",
			Name:      "deposits_opened_total",
			Help:      "Term deposits opened.",
		}),
		DepositsMatured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketlab",
			Name:      "deposits_matured_total",
			Help:      "Term deposits credited at maturity.",
		}),
	}

	reg.MustRegister(
		r.OrdersProcessed, r.TradesSettled, r.TradeVolume,
		r.BookDepth, r.DepositsOpened, r.DepositsMatured,
	)
	return r
}

// ObserveOrder records an order's end_reason as it stands right after
// submission processing: NONE for an order left resting on the book.
// Later fills, cancels, and expiries of a resting order are not recorded.
func (r *Registry) ObserveOrder(endReason types.EndReason) {
	r.OrdersProcessed.WithLabelValues(string(endReason)).Inc()
}

// ObserveTrade records one settled trade of the given quantity.
func (r *Registry) ObserveTrade(quantity int64) {
	r.TradesSettled.Inc()
	r.TradeVolume.Add(float64(quantity))
}

// ObserveBookDepth records the current resident level count per side.
func (r *Registry) ObserveBookDepth(bidLevels, askLevels int) {
	r.BookDepth.WithLabelValues("bid").Set(float64(bidLevels))
	r.BookDepth.WithLabelValues("ask").Set(float64(askLevels))
}

// ObserveDepositOpened records a successfully opened deposit.
func (r *Registry) ObserveDepositOpened() {
	r.DepositsOpened.Inc()
}

// ObserveDepositsMatured records count matured deposits credited in one
// CheckMaturedDeposits call.
func (r *Registry) ObserveDepositsMatured(count int) {
	r.DepositsMatured.Add(float64(count))
}
