package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not component-specific)
type Metrics struct {
	// Content API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Notification metrics
	NotificationsShown *prometheus.CounterVec

	// Analytics metrics
	EventsRecorded *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	StoreFailures  prometheus.Counter

	// Fetch coordination metrics
	FetchesInFlight prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dashkit",
				Subsystem: "requests",
				Name:      "total",
				Help:      "Total number of content API requests",
			},
			[]string{"endpoint"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dashkit",
				Subsystem: "requests",
				Name:      "duration_seconds",
				Help:      "Content API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		RequestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dashkit",
				Subsystem: "requests",
				Name:      "errors_total",
				Help:      "Total number of failed content API requests",
			},
			[]string{"endpoint"},
		),

		NotificationsShown: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dashkit",
				Subsystem: "notifications",
				Name:      "shown_total",
				Help:      "Total number of notifications shown",
			},
			[]string{"kind"},
		),

		EventsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dashkit",
				Subsystem: "analytics",
				Name:      "events_recorded_total",
				Help:      "Total number of analytics events recorded",
			},
			[]string{"kind"},
		),

		EventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dashkit",
				Subsystem: "analytics",
				Name:      "events_dropped_total",
				Help:      "Total number of analytics events dropped by the capacity bound",
			},
		),

		StoreFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dashkit",
				Subsystem: "analytics",
				Name:      "store_failures_total",
				Help:      "Total number of local store read/write failures",
			},
		),

		FetchesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dashkit",
				Subsystem: "content",
				Name:      "fetches_in_flight",
				Help:      "Number of content fetches currently in flight",
			},
		),
	}
}

// RecordRequest records a completed content API request
func (c *Metrics) RecordRequest(endpoint string, duration time.Duration, failed bool) {
	c.RequestsTotal.WithLabelValues(endpoint).Inc()
	c.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if failed {
		c.RequestErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordNotification increments the shown counter for a notification kind
func (c *Metrics) RecordNotification(kind string) {
	c.NotificationsShown.WithLabelValues(kind).Inc()
}

// RecordEvent increments the recorded counter for an event kind
func (c *Metrics) RecordEvent(kind string) {
	c.EventsRecorded.WithLabelValues(kind).Inc()
}

// RecordEventDropped increments the dropped event counter
func (c *Metrics) RecordEventDropped() {
	c.EventsDropped.Inc()
}

// RecordStoreFailure increments the local store failure counter
func (c *Metrics) RecordStoreFailure() {
	c.StoreFailures.Inc()
}

// SetFetchesInFlight updates the in-flight fetch gauge
func (c *Metrics) SetFetchesInFlight(n int) {
	c.FetchesInFlight.Set(float64(n))
}
