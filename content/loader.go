// Package content coordinates content fetches for the dashboard. It
// owns the bounded content cache and the in-flight guard, drives the
// notification channel, and records analytics events, so the rendering
// layer only ever calls Load/Search/Generate/Save.
package content

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/statelab/dashkit/analytics"
	"github.com/statelab/dashkit/client"
	"github.com/statelab/dashkit/errors"
	"github.com/statelab/dashkit/metric"
	"github.com/statelab/dashkit/notify"
	"github.com/statelab/dashkit/pkg/cache"
)

// DefaultCacheSize bounds the content cache.
const DefaultCacheSize = 50

// DefaultFetchTimeout force-clears a hung fetch's loading flag and
// surfaces a timeout error instead of blocking the key forever.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher is the network side of the loader. *client.Client satisfies it.
type Fetcher interface {
	GetContent(ctx context.Context, id string) (*client.Content, error)
	Search(ctx context.Context, query, category string, limit int) (*client.SearchResult, error)
	Generate(ctx context.Context, req client.GenerationRequest) (*client.Content, error)
	Save(ctx context.Context, content *client.Content) (*client.Content, error)
}

// Loader implements the content fetch protocol. All methods are safe
// for concurrent use.
type Loader struct {
	cache    cache.Cache[*client.Content]
	guard    *cache.Guard
	notes    *notify.Channel
	recorder *analytics.Recorder
	fetcher  Fetcher
	logger   *slog.Logger
	metrics  *metric.Metrics
	registry *metric.MetricsRegistry
	timeout  time.Duration

	cacheSize *int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFetchTimeout bounds each fetch. Non-positive keeps the default.
func WithFetchTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithCacheSize sets the content cache capacity. Zero is legal and
// disables caching. Applies only before the cache is built.
func WithCacheSize(size int) LoaderOption {
	return func(l *Loader) {
		l.cacheSize = &size
	}
}

// WithLoaderLogger sets the logger. Defaults to slog.Default().
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLoaderMetrics wires the loader to the core platform metrics and
// registers the content cache's Prometheus mirror.
func WithLoaderMetrics(registry *metric.MetricsRegistry) LoaderOption {
	return func(l *Loader) {
		if registry != nil {
			l.registry = registry
			l.metrics = registry.CoreMetrics()
		}
	}
}

// NewLoader creates a loader around the given fetcher, notification
// channel, and analytics recorder.
func NewLoader(fetcher Fetcher, notes *notify.Channel, recorder *analytics.Recorder, opts ...LoaderOption) (*Loader, error) {
	if fetcher == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "content", "NewLoader", "fetcher cannot be nil")
	}
	if notes == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "content", "NewLoader", "notification channel cannot be nil")
	}
	if recorder == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "content", "NewLoader", "analytics recorder cannot be nil")
	}

	l := &Loader{
		guard:    cache.NewGuard(),
		notes:    notes,
		recorder: recorder,
		fetcher:  fetcher,
		logger:   slog.Default(),
		timeout:  DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}

	size := DefaultCacheSize
	if l.cacheSize != nil {
		size = *l.cacheSize
	}

	var cacheOpts []cache.Option[*client.Content]
	if l.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[*client.Content](l.registry, "content"))
	}
	contentCache, err := cache.NewFIFO[*client.Content](size, cacheOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "content", "NewLoader", "create content cache")
	}
	l.cache = contentCache

	return l, nil
}

// Load returns the content for id, fetching it at most once.
//
// Protocol: if a fetch for id is already in flight the call returns
// ErrAlreadyLoading immediately; if the cache holds id it is returned
// with zero network cost; otherwise the key is marked in flight, fetched
// with a timeout, and on success cached. The loading flag clears on
// every exit path so a failed fetch never blocks retries, and a failure
// leaves the cache unchanged.
func (l *Loader) Load(ctx context.Context, id string) (*client.Content, error) {
	if l.guard.IsLoading(id) {
		return nil, errors.WrapInvalid(errors.ErrAlreadyLoading, "content", "Load", id)
	}

	if cached, ok := l.cache.Get(id); ok {
		l.recorder.RecordView(ctx, cached.ID, cached.Title, cached.Category)
		return cached, nil
	}

	if !l.guard.MarkLoading(id) {
		// Lost the race to another caller between the check and here.
		return nil, errors.WrapInvalid(errors.ErrAlreadyLoading, "content", "Load", id)
	}
	defer func() {
		l.guard.ClearLoading(id)
		l.updateInFlight()
	}()
	l.updateInFlight()

	handle := l.notes.ShowLoading("Loading content...", true)

	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	fetched, err := l.fetcher.GetContent(fetchCtx, id)
	l.notes.HideLoading(handle)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			err = errors.WrapTransient(errors.ErrFetchTimeout, "content", "Load", id)
		}
		l.logger.Warn("content fetch failed", "id", id, "error", err)
		l.showRetryableError("Failed to load content", err, func() {
			_, _ = l.Load(context.Background(), id)
		})
		return nil, err
	}

	if _, err := l.cache.Set(id, fetched); err != nil {
		// Invalid key; the fetch itself succeeded, so return the content.
		l.logger.Warn("content cache set failed", "id", id, "error", err)
	}
	l.recorder.RecordView(ctx, fetched.ID, fetched.Title, fetched.Category)
	return fetched, nil
}

// Search runs a content search and records the search event.
func (l *Loader) Search(ctx context.Context, query, category string, limit int) (*client.SearchResult, error) {
	result, err := l.fetcher.Search(ctx, query, category, limit)
	if err != nil {
		l.showRetryableError("Search failed", err, func() {
			_, _ = l.Search(context.Background(), query, category, limit)
		})
		return nil, err
	}

	l.recorder.RecordSearch(ctx, query, len(result.Items))
	return result, nil
}

// Generate asks the backend for a generated article, recording the
// attempt outcome and notifying the user either way.
func (l *Loader) Generate(ctx context.Context, req client.GenerationRequest) (*client.Content, error) {
	handle := l.notes.ShowLoading("Generating content...", true)

	generated, err := l.fetcher.Generate(ctx, req)
	l.notes.HideLoading(handle)
	if err != nil {
		l.recorder.RecordGeneration(ctx, req.Topic, 0, false)
		l.showRetryableError("Generation failed", err, func() {
			_, _ = l.Generate(context.Background(), req)
		})
		return nil, err
	}

	l.recorder.RecordGeneration(ctx, req.Topic, generated.WordCount, true)
	l.notes.ShowSuccess("Content generated", generated.Title, true)
	return generated, nil
}

// Save persists content and notifies the user of the outcome.
func (l *Loader) Save(ctx context.Context, c *client.Content) (*client.Content, error) {
	saved, err := l.fetcher.Save(ctx, c)
	if err != nil {
		l.showRetryableError("Save failed", err, func() {
			_, _ = l.Save(context.Background(), c)
		})
		return nil, err
	}

	// Saved content replaces any cached copy under its ID.
	if saved.ID != "" {
		if _, err := l.cache.Set(saved.ID, saved); err != nil {
			l.logger.Warn("content cache set failed", "id", saved.ID, "error", err)
		}
	}
	l.notes.ShowSuccess("Content saved", saved.Title, true)
	return saved, nil
}

// Has reports whether id is cached.
func (l *Loader) Has(id string) bool {
	return l.cache.Has(id)
}

// IsLoading reports whether a fetch for id is in flight.
func (l *Loader) IsLoading(id string) bool {
	return l.guard.IsLoading(id)
}

// CacheStats returns content cache statistics.
func (l *Loader) CacheStats() cache.StatsSummary {
	return l.cache.Stats().Summary()
}

func (l *Loader) showRetryableError(title string, err error, retry func()) {
	l.notes.ShowError(title, err.Error(), []notify.Action{notify.RetryAction(retry)}, true)
}

func (l *Loader) updateInFlight() {
	if l.metrics != nil {
		l.metrics.SetFetchesInFlight(l.guard.Size())
	}
}
