package sync

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRefreshes            = "sync_refreshes_total"
	MetricStaleSnapshots       = "sync_stale_snapshots_total"
	MetricNotificationsAllowed = "sync_notifications_allowed_total"
	MetricNotificationsDropped = "sync_notifications_dropped_total"
	MetricFeedReconnects       = "sync_feed_reconnects_total"
	MetricRefreshLatency       = "sync_refresh_latency_seconds"
)

// Metrics contains Prometheus metrics for the synchronization controller.
// All operations are thread-safe.
type Metrics struct {
	refreshes            *prometheus.CounterVec
	staleSnapshots       *prometheus.CounterVec
	notificationsAllowed prometheus.Counter
	notificationsDropped prometheus.Counter
	feedReconnects       *prometheus.CounterVec
	refreshLatency       prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRefreshes,
			Help: "Total number of snapshot refreshes per dataset",
		}, []string{"dataset"}),
		staleSnapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricStaleSnapshots,
			Help: "Total number of snapshot responses discarded as stale",
		}, []string{"dataset"}),
		notificationsAllowed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricNotificationsAllowed,
			Help: "Total number of notifications that passed the throttle",
		}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricNotificationsDropped,
			Help: "Total number of notifications dropped by the throttle",
		}),
		feedReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFeedReconnects,
			Help: "Total number of feed reconnection attempts per table",
		}, []string{"table"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRefreshLatency,
			Help:    "Histogram of snapshot refresh latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.refreshes,
		m.staleSnapshots,
		m.notificationsAllowed,
		m.notificationsDropped,
		m.feedReconnects,
		m.refreshLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRefreshes increments the refresh counter for a dataset.
func (m *Metrics) IncRefreshes(dataset string) {
	m.refreshes.WithLabelValues(dataset).Inc()
}

// IncStaleSnapshots increments the stale snapshot counter for a dataset.
func (m *Metrics) IncStaleSnapshots(dataset string) {
	m.staleSnapshots.WithLabelValues(dataset).Inc()
}

// IncNotificationsAllowed increments the allowed notification counter.
func (m *Metrics) IncNotificationsAllowed() {
	m.notificationsAllowed.Inc()
}

// IncNotificationsDropped increments the dropped notification counter.
func (m *Metrics) IncNotificationsDropped() {
	m.notificationsDropped.Inc()
}

// IncFeedReconnects increments the reconnect counter for a table.
func (m *Metrics) IncFeedReconnects(table string) {
	m.feedReconnects.WithLabelValues(table).Inc()
}

// ObserveRefreshLatency records a refresh latency sample.
func (m *Metrics) ObserveRefreshLatency(seconds float64) {
	m.refreshLatency.Observe(seconds)
}
