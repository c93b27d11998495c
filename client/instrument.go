package client

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/statelab/dashkit/metric"
)

// UnknownEndpoint is the bucket for requests whose URL cannot be mapped
// to a logical endpoint name.
const UnknownEndpoint = "unknown"

// EndpointStat holds the raw per-endpoint counters. Derived metrics are
// computed at read time so they are always consistent with the counters.
type EndpointStat struct {
	Count          int64 `json:"count"`
	TotalLatencyMs int64 `json:"totalLatencyMs"`
	ErrorCount     int64 `json:"errorCount"`
}

// EndpointSnapshot is one endpoint's counters plus derived metrics.
type EndpointSnapshot struct {
	Endpoint       string  `json:"endpoint"`
	Count          int64   `json:"count"`
	TotalLatencyMs int64   `json:"totalLatencyMs"`
	ErrorCount     int64   `json:"errorCount"`
	AvgLatencyMs   float64 `json:"avgLatencyMs"`
	ErrorRate      float64 `json:"errorRate"`
}

// Instrumentation aggregates request latency and outcome per logical
// endpoint. Lifecycle spans the process; Reset is the only way to zero
// the counters.
type Instrumentation struct {
	mu        sync.Mutex
	stats     map[string]*EndpointStat
	apiPrefix string
}

// NewInstrumentation creates an endpoint stats aggregator. Endpoint
// names are the path segment following apiPrefix.
func NewInstrumentation(apiPrefix string) *Instrumentation {
	return &Instrumentation{
		stats:     make(map[string]*EndpointStat),
		apiPrefix: strings.TrimSuffix(apiPrefix, "/"),
	}
}

// Endpoint extracts the logical endpoint name from a raw URL: the path
// segment following the API prefix, query string stripped. Anything
// unparseable maps to the UnknownEndpoint bucket.
func (i *Instrumentation) Endpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return UnknownEndpoint
	}
	return i.endpointFromPath(u.Path)
}

func (i *Instrumentation) endpointFromPath(path string) string {
	if i.apiPrefix != "" {
		if !strings.HasPrefix(path, i.apiPrefix+"/") {
			return UnknownEndpoint
		}
		path = strings.TrimPrefix(path, i.apiPrefix+"/")
	} else {
		path = strings.TrimPrefix(path, "/")
	}

	segment, _, _ := strings.Cut(path, "/")
	if segment == "" {
		return UnknownEndpoint
	}
	return segment
}

// Record updates the counters for an endpoint after a completed request.
func (i *Instrumentation) Record(endpoint string, elapsed time.Duration, failed bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	stat, ok := i.stats[endpoint]
	if !ok {
		stat = &EndpointStat{}
		i.stats[endpoint] = stat
	}
	stat.Count++
	stat.TotalLatencyMs += elapsed.Milliseconds()
	if failed {
		stat.ErrorCount++
	}
}

// Snapshot returns per-endpoint snapshots sorted by endpoint name.
// AvgLatencyMs and ErrorRate (percent) are 0 when Count is 0.
func (i *Instrumentation) Snapshot() []EndpointSnapshot {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]EndpointSnapshot, 0, len(i.stats))
	for name, stat := range i.stats {
		s := EndpointSnapshot{
			Endpoint:       name,
			Count:          stat.Count,
			TotalLatencyMs: stat.TotalLatencyMs,
			ErrorCount:     stat.ErrorCount,
		}
		if stat.Count > 0 {
			s.AvgLatencyMs = float64(stat.TotalLatencyMs) / float64(stat.Count)
			s.ErrorRate = float64(stat.ErrorCount) / float64(stat.Count) * 100
		}
		out = append(out, s)
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Endpoint < out[b].Endpoint })
	return out
}

// Reset zeroes all counters.
func (i *Instrumentation) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stats = make(map[string]*EndpointStat)
}

// Transport is an http.RoundTripper that measures every request passing
// through it. Call sites do not opt in: wrapping the client's transport
// is enough. Errors and responses pass through untouched.
type Transport struct {
	base    http.RoundTripper
	inst    *Instrumentation
	metrics *metric.Metrics
}

// NewTransport wraps base with instrumentation. A nil base uses
// http.DefaultTransport; metrics may be nil.
func NewTransport(base http.RoundTripper, inst *Instrumentation, metrics *metric.Metrics) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, inst: inst, metrics: metrics}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	endpoint := t.inst.endpointFromPath(req.URL.Path)
	failed := err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300

	// ALWAYS track in stats (observability is not optional)
	t.inst.Record(endpoint, elapsed, failed)
	if t.metrics != nil {
		t.metrics.RecordRequest(endpoint, elapsed, failed)
	}

	return resp, err
}
