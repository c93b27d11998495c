package analytics

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/statelab/dashkit/errors"
	"github.com/statelab/dashkit/metric"
	"github.com/statelab/dashkit/pkg/ring"
	"github.com/statelab/dashkit/storage"
)

// MaxEvents bounds the persisted event log. Recording beyond this drops
// the oldest events first.
const MaxEvents = 1000

// storeKey is where the serialized event log lives in the local store.
const storeKey = "analytics/events"

// Recorder is the page-wide event log. All methods are safe for
// concurrent use. Recording never fails from the caller's point of view:
// store errors are logged, counted, and swallowed.
type Recorder struct {
	mu      sync.Mutex
	buf     ring.Buffer[Event]
	store   storage.Store
	session *Session
	logger  *slog.Logger
	metrics *metric.Metrics
	now     func() time.Time

	// degraded is set after a store write failure so the log line is
	// emitted once, not per event.
	degraded bool
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics wires the recorder to the core platform metrics.
func WithMetrics(registry *metric.MetricsRegistry) RecorderOption {
	return func(r *Recorder) {
		if registry != nil {
			r.metrics = registry.CoreMetrics()
		}
	}
}

// WithSession sets an externally created session. Defaults to a fresh one.
func WithSession(session *Session) RecorderOption {
	return func(r *Recorder) {
		if session != nil {
			r.session = session
		}
	}
}

// WithClock overrides the recorder's time source. Used in tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a recorder backed by the given store and restores
// any previously persisted log. A nil store yields an in-memory-only
// recorder. An unavailable or corrupt store is treated as an empty log.
func NewRecorder(ctx context.Context, store storage.Store, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		store:   store,
		session: NewSession(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	buf, err := ring.New[Event](MaxEvents, ring.WithDropCallback[Event](func(Event) {
		if r.metrics != nil {
			r.metrics.RecordEventDropped()
		}
	}))
	if err != nil {
		return nil, errors.WrapFatal(err, "analytics", "NewRecorder", "create event buffer")
	}
	r.buf = buf

	r.restore(ctx)
	return r, nil
}

// Session returns the recorder's session context.
func (r *Recorder) Session() *Session {
	return r.session
}

// Record appends an event to the log, trimming the oldest events if the
// bound would be exceeded, then persists the log best-effort. Missing
// timestamp and session fields are stamped from the recorder.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}
	if event.SessionID == "" {
		event.SessionID = r.session.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.buf.Write(event); err != nil {
		// DropOldest never refuses a write; treat anything else as a bug
		// worth logging but not worth failing the user action.
		r.logger.Error("event buffer write failed", "error", err)
		return
	}

	if r.metrics != nil {
		r.metrics.RecordEvent(string(event.Kind))
	}

	r.persistLocked(ctx)
}

// RecordView records a content view.
func (r *Recorder) RecordView(ctx context.Context, contentID, title, category string) {
	r.Record(ctx, Event{
		Kind: EventView,
		View: &ViewEvent{ContentID: contentID, Title: title, Category: category},
	})
}

// RecordSearch records a search query and its result count.
func (r *Recorder) RecordSearch(ctx context.Context, query string, resultCount int) {
	r.Record(ctx, Event{
		Kind:   EventSearch,
		Search: &SearchEvent{Query: query, ResultCount: resultCount},
	})
}

// RecordGeneration records a content generation attempt.
func (r *Recorder) RecordGeneration(ctx context.Context, topic string, wordCount int, success bool) {
	r.Record(ctx, Event{
		Kind:       EventGeneration,
		Generation: &GenerationEvent{Topic: topic, WordCount: wordCount, Success: success},
	})
}

// RecordPerformance records a client-observed request timing.
func (r *Recorder) RecordPerformance(ctx context.Context, endpoint string, latencyMs int64, failed bool) {
	r.Record(ctx, Event{
		Kind:        EventPerformance,
		Performance: &PerformanceEvent{Endpoint: endpoint, LatencyMs: latencyMs, Failed: failed},
	})
}

// Size returns the current event count.
func (r *Recorder) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Size()
}

// Events returns a copy of the current log, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Snapshot()
}

// Stats returns event buffer statistics.
func (r *Recorder) Stats() ring.StatsSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Stats().Summary()
}

// restore loads the persisted log. Any failure leaves the log empty.
func (r *Recorder) restore(ctx context.Context) {
	if r.store == nil {
		return
	}

	data, err := r.store.Get(ctx, storeKey)
	if err != nil {
		if stderrors.Is(err, errors.ErrKeyNotFound) {
			return
		}
		r.logger.Warn("event log unavailable, starting empty", "error", err)
		if r.metrics != nil {
			r.metrics.RecordStoreFailure()
		}
		return
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		r.logger.Warn("event log corrupt, starting empty", "error", err)
		if r.metrics != nil {
			r.metrics.RecordStoreFailure()
		}
		return
	}

	r.mu.Lock()
	r.buf.Replace(events)
	r.mu.Unlock()
}

// persistLocked writes the log to the store. Failures degrade the
// recorder to in-memory operation but never surface to the caller.
// must hold r.mu
func (r *Recorder) persistLocked(ctx context.Context) {
	if r.store == nil {
		return
	}

	data, err := json.Marshal(r.buf.Snapshot())
	if err != nil {
		r.logger.Error("event log marshal failed", "error", err)
		return
	}

	if err := r.store.Put(ctx, storeKey, data); err != nil {
		if r.metrics != nil {
			r.metrics.RecordStoreFailure()
		}
		if !r.degraded {
			r.degraded = true
			r.logger.Warn("event log persistence failed, continuing in memory", "error", err)
		}
		return
	}
	r.degraded = false
}
