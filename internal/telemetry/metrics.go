// Package telemetry exposes Percolator's Prometheus metrics, grounded on
// svyatogor45-abitrage's internal/bot/metrics.go: package-level
// promauto-registered vectors plus small Record*/Update* helper functions
// so call sites never touch the prometheus API directly.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Slab latency ============

var ReserveLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "percolator",
		Subsystem: "slab",
		Name:      "reserve_latency_ms",
		Help:      "Time to walk the book and produce a reservation, in milliseconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
	},
	[]string{"slab_id"},
)

var CommitLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "percolator",
		Subsystem: "slab",
		Name:      "commit_latency_ms",
		Help:      "Time to validate and execute a reservation's slices, in milliseconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
	},
	[]string{"slab_id"},
)

// ============ Slab counters ============

var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "percolator",
		Subsystem: "slab",
		Name:      "trades_total",
		Help:      "Total number of executed trade prints",
	},
	[]string{"slab_id", "instrument"},
)

var ReservationsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "percolator",
		Subsystem: "slab",
		Name:      "reservations_rejected_total",
		Help:      "Total number of reserve calls rejected, by error code",
	},
	[]string{"slab_id", "code"},
)

var KillBandTrips = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "percolator",
		Subsystem: "slab",
		Name:      "kill_band_trips_total",
		Help:      "Total number of commits rejected for exceeding the kill band",
	},
	[]string{"slab_id"},
)

// ============ Router counters/gauges ============

var RouteEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "percolator",
		Subsystem: "router",
		Name:      "events_total",
		Help:      "Total number of Router events emitted, by type",
	},
	[]string{"type"},
)

var LiquidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "percolator",
		Subsystem: "router",
		Name:      "liquidations_total",
		Help:      "Total number of LiquidateUser calls, by outcome",
	},
	[]string{"outcome"}, // closed, rejected_above_mm, rejected_grace_window
)

var VaultAvailable = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "percolator",
		Subsystem: "router",
		Name:      "vault_available",
		Help:      "Unpledged balance available per mint",
	},
	[]string{"mint"},
)

var PortfolioFreeCollateral = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "percolator",
		Subsystem: "router",
		Name:      "portfolio_free_collateral",
		Help:      "Free collateral (equity - IM) per user",
	},
	[]string{"user"},
)

// ============ Outbox ============

var OutboxPending = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "percolator",
		Subsystem: "eventlog",
		Name:      "outbox_pending",
		Help:      "Number of outbox records not yet ACKED",
	},
	[]string{"topic"},
)

// RecordTrade records one executed trade print.
func RecordTrade(slabID, instrument string) {
	TradesTotal.WithLabelValues(slabID, instrument).Inc()
}

// RecordReservationRejected records a failed reserve call by error code.
func RecordReservationRejected(slabID, code string) {
	ReservationsRejected.WithLabelValues(slabID, code).Inc()
}

// RecordKillBandTrip records a commit rejected by the kill band check.
func RecordKillBandTrip(slabID string) {
	KillBandTrips.WithLabelValues(slabID).Inc()
}

// RecordRouteEvent records one Router event of the given type.
func RecordRouteEvent(eventType string) {
	RouteEvents.WithLabelValues(eventType).Inc()
}

// RecordLiquidation records one LiquidateUser outcome.
func RecordLiquidation(outcome string) {
	LiquidationsTotal.WithLabelValues(outcome).Inc()
}

// UpdateVaultAvailable sets the current unpledged balance for mint.
func UpdateVaultAvailable(mint string, available float64) {
	VaultAvailable.WithLabelValues(mint).Set(available)
}

// UpdatePortfolioFreeCollateral sets a user's current free collateral.
func UpdatePortfolioFreeCollateral(user string, freeCollateral float64) {
	PortfolioFreeCollateral.WithLabelValues(user).Set(freeCollateral)
}

// UpdateOutboxPending sets the current pending-record count for topic.
func UpdateOutboxPending(topic string, pending float64) {
	OutboxPending.WithLabelValues(topic).Set(pending)
}
