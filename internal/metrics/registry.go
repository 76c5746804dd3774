// Package metrics implements C11: counters/histograms/gauges exposed over
// HTTP for scraping, plus a /health liveness endpoint summarizing every
// stream shard's connection state.
//
// Grounded on internal/interfaces/http/metrics.go's MetricsRegistry shape
// (one struct holding every prometheus collector, registered once at
// construction), generalized from the teacher's momentum-scan metric names
// to this service's streaming/detector/dispatch domain.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every Prometheus collector this service exposes.
type Registry struct {
	AlertsTotal      *prometheus.CounterVec
	TradesProcessed  *prometheus.CounterVec
	ShardReconnects  *prometheus.CounterVec
	SinkDrops        *prometheus.CounterVec
	ActiveConns      *prometheus.GaugeVec
	OrderbookLevels  *prometheus.GaugeVec
	TradesPerSecond  *prometheus.GaugeVec
	SlippageObserved *prometheus.HistogramVec
}

// NewRegistry builds and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_alerts_total",
			Help: "Total alerts dispatched by severity, venue, and detector kind.",
		}, []string{"severity", "venue", "kind"}),

		TradesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_trades_processed_total",
			Help: "Total aggregated-trade events processed by venue.",
		}, []string{"venue"}),

		ShardReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_shard_reconnects_total",
			Help: "Total reconnect attempts by shard.",
		}, []string{"shard"}),

		SinkDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_sink_drops_total",
			Help: "Total alerts dropped by a dispatch sink due to a full queue.",
		}, []string{"sink"}),

		ActiveConns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "surveil_active_connections",
			Help: "Number of shards currently in the Streaming state, by venue.",
		}, []string{"venue"}),

		OrderbookLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "surveil_orderbook_levels",
			Help: "Current depth ladder level count by venue and side.",
		}, []string{"venue", "side"}),

		TradesPerSecond: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "surveil_trades_per_second",
			Help: "Rolling trades/sec observed per venue.",
		}, []string{"venue"}),

		SlippageObserved: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "surveil_slippage_pct",
			Help:    "Observed VWAP slippage percentage by venue.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"venue"}),
	}

	reg.MustRegister(
		r.AlertsTotal, r.TradesProcessed, r.ShardReconnects, r.SinkDrops,
		r.ActiveConns, r.OrderbookLevels, r.TradesPerSecond, r.SlippageObserved,
	)
	return r
}

// RecordAlert increments the alert counter for one dispatched alert.
func (r *Registry) RecordAlert(severity, venue, kind string) {
	r.AlertsTotal.WithLabelValues(severity, venue, kind).Inc()
}

// RecordTrade increments the processed-trade counter for venue.
func (r *Registry) RecordTrade(venue string) {
	r.TradesProcessed.WithLabelValues(venue).Inc()
}

// RecordReconnect increments the reconnect counter for shard.
func (r *Registry) RecordReconnect(shard string) {
	r.ShardReconnects.WithLabelValues(shard).Inc()
}

// RecordSinkDrop increments the drop counter for sink.
func (r *Registry) RecordSinkDrop(sink string) {
	r.SinkDrops.WithLabelValues(sink).Inc()
}

// SetActiveConnections sets the active-connection gauge for venue.
func (r *Registry) SetActiveConnections(venue string, n int) {
	r.ActiveConns.WithLabelValues(venue).Set(float64(n))
}

// SetOrderbookLevels sets the depth-level gauge for (venue, side).
func (r *Registry) SetOrderbookLevels(venue, side string, n int) {
	r.OrderbookLevels.WithLabelValues(venue, side).Set(float64(n))
}

// SetTradesPerSecond sets the rolling trades/sec gauge for venue.
func (r *Registry) SetTradesPerSecond(venue string, rate float64) {
	r.TradesPerSecond.WithLabelValues(venue).Set(rate)
}

// ObserveSlippage records one slippage percentage sample for venue.
func (r *Registry) ObserveSlippage(venue string, pct float64) {
	r.SlippageObserved.WithLabelValues(venue).Observe(pct)
}
