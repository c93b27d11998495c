package notify

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/statelab/dashkit/metric"
)

// channelMetrics holds Prometheus metrics for notification activity.
type channelMetrics struct {
	shown       *prometheus.CounterVec
	autoHidden  prometheus.Counter
	staleTimers prometheus.Counter
}

func newChannelMetrics(registry *metric.MetricsRegistry, component string) (*channelMetrics, error) {
	m := &channelMetrics{
		shown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "dashkit",
			Subsystem:   "notify",
			Name:        "shown_total",
			ConstLabels: prometheus.Labels{"component": component},
			Help:        "Total number of notifications shown by kind",
		}, []string{"kind"}),
		autoHidden: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dashkit",
			Subsystem:   "notify",
			Name:        "auto_hidden_total",
			ConstLabels: prometheus.Labels{"component": component},
			Help:        "Total number of notifications hidden by their timer",
		}),
		staleTimers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dashkit",
			Subsystem:   "notify",
			Name:        "stale_timers_total",
			ConstLabels: prometheus.Labels{"component": component},
			Help:        "Total number of auto-hide timers that fired after replacement",
		}),
	}

	if err := registry.RegisterCounterVec(component, "notify_shown", m.shown); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "notify_auto_hidden", m.autoHidden); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "notify_stale_timers", m.staleTimers); err != nil {
		return nil, err
	}

	return m, nil
}
