package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())
}

func TestRegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "Test counter",
	})

	err := registry.RegisterCounter("cache", "test_counter", counter)
	require.NoError(t, err)

	// Duplicate registration under the same key fails
	err = registry.RegisterCounter("cache", "test_counter", counter)
	assert.Error(t, err)
}

func TestRegisterGaugeAndUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "Test gauge",
	})

	require.NoError(t, registry.RegisterGauge("ring", "test_gauge", gauge))
	assert.True(t, registry.Unregister("ring", "test_gauge"))
	assert.False(t, registry.Unregister("ring", "test_gauge"), "already unregistered")

	// Re-registration works after unregister
	require.NoError(t, registry.RegisterGauge("ring", "test_gauge", gauge))
}

func TestCoreMetricsRecordRequest(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordRequest("content", 120*time.Millisecond, false)
	m.RecordRequest("content", 80*time.Millisecond, true)
	m.RecordRequest("generate", 500*time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("content")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestErrors.WithLabelValues("content")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("generate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestErrors.WithLabelValues("generate")))
}

func TestCoreMetricsAnalyticsCounters(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordEvent("view")
	m.RecordEvent("view")
	m.RecordEvent("search")
	m.RecordEventDropped()
	m.RecordStoreFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsRecorded.WithLabelValues("view")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsRecorded.WithLabelValues("search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures))
}

func TestSetFetchesInFlight(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.SetFetchesInFlight(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FetchesInFlight))
	m.SetFetchesInFlight(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FetchesInFlight))
}
