package notify

import (
	"time"

	"github.com/statelab/dashkit/metric"
)

// Option configures a Channel.
type Option func(*Channel)

// WithAutoHide overrides the error and success auto-hide delays.
// Non-positive values keep the defaults.
func WithAutoHide(errorHide, successHide time.Duration) Option {
	return func(c *Channel) {
		if errorHide > 0 {
			c.errorHide = errorHide
		}
		if successHide > 0 {
			c.successHide = successHide
		}
	}
}

// WithMetrics enables Prometheus metrics on the given registry.
// If registry is nil or component is empty, this option is ignored.
func WithMetrics(registry *metric.MetricsRegistry, component string) Option {
	return func(c *Channel) {
		if registry == nil || component == "" {
			return
		}
		if m, err := newChannelMetrics(registry, component); err == nil {
			c.metrics = m
		}
	}
}
