// Package service wires the dashkit components into a runnable
// application: storage, notification channel, analytics recorder,
// instrumented API client, content loader, gateway, and metrics server,
// with periodic health probing and graceful shutdown.
package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/statelab/dashkit/analytics"
	"github.com/statelab/dashkit/client"
	"github.com/statelab/dashkit/config"
	"github.com/statelab/dashkit/content"
	"github.com/statelab/dashkit/errors"
	"github.com/statelab/dashkit/gateway"
	"github.com/statelab/dashkit/health"
	"github.com/statelab/dashkit/metric"
	"github.com/statelab/dashkit/notify"
	"github.com/statelab/dashkit/storage"
	"github.com/statelab/dashkit/storage/filestore"
	"github.com/statelab/dashkit/storage/natskv"
)

// healthProbeInterval is how often the app re-probes its dependencies.
const healthProbeInterval = 30 * time.Second

// App owns the full component graph for one dashkit process.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry

	store    storage.Store
	natsConn *nats.Conn

	notes    *notify.Channel
	recorder *analytics.Recorder
	api      *client.Client
	loader   *content.Loader
	monitor  *health.Monitor

	gateway       *gateway.Server
	metricsServer *metric.Server

	started atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New builds the component graph from a validated config. Nothing is
// started yet; call Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "service", "New", "config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapFatal(err, "service", "New", "validate config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		cfg:      cfg,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
		monitor:  health.NewMonitor(),
	}

	if err := app.buildStore(ctx); err != nil {
		return nil, err
	}

	app.notes = notify.New(
		notify.WithAutoHide(cfg.Notifications.ErrorAutoHide, cfg.Notifications.SuccessAutoHide),
		notify.WithMetrics(app.registry, "dashboard"),
	)

	recorder, err := analytics.NewRecorder(ctx, app.store,
		analytics.WithLogger(logger),
		analytics.WithMetrics(app.registry),
	)
	if err != nil {
		return nil, err
	}
	app.recorder = recorder

	api, err := client.New(client.Config{
		BaseURL:    cfg.Client.BaseURL,
		APIPrefix:  cfg.Client.APIPrefix,
		Timeout:    cfg.Client.Timeout,
		RateLimit:  cfg.Client.RateLimit,
		RateBurst:  cfg.Client.RateBurst,
		MaxRetries: cfg.Client.MaxRetries,
	}, app.registry, client.WithClientLogger(logger))
	if err != nil {
		return nil, err
	}
	app.api = api

	loader, err := content.NewLoader(api, app.notes, recorder,
		content.WithCacheSize(cfg.Cache.MaxSize),
		content.WithFetchTimeout(cfg.Cache.FetchTimeout),
		content.WithLoaderLogger(logger),
		content.WithLoaderMetrics(app.registry),
	)
	if err != nil {
		return nil, err
	}
	app.loader = loader

	gw, err := gateway.New(cfg.Server, loader, recorder, app.notes, api.Stats(), app.monitor, logger)
	if err != nil {
		return nil, err
	}
	app.gateway = gw

	if cfg.Metrics.Enabled {
		app.metricsServer = metric.NewServer(cfg.Metrics.Port, "/metrics", app.registry)
	}

	return app, nil
}

// buildStore creates the event log store for the configured mode.
func (a *App) buildStore(ctx context.Context) error {
	if !a.cfg.Analytics.Enabled {
		a.logger.Info("analytics persistence disabled, event log is in-memory only")
		return nil
	}

	switch a.cfg.Storage.Mode {
	case config.StorageModeMemory:
		return nil

	case config.StorageModeFile:
		store, err := filestore.New(a.cfg.Storage.Dir)
		if err != nil {
			return err
		}
		a.store = store
		return nil

	case config.StorageModeNATS:
		nc, err := nats.Connect(a.cfg.Storage.URL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return errors.WrapTransient(err, "service", "buildStore", "connect to NATS")
		}
		a.natsConn = nc

		store, err := natskv.New(ctx, nc, a.cfg.Storage.Bucket)
		if err != nil {
			nc.Close()
			a.natsConn = nil
			return err
		}
		a.store = store
		return nil

	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "service", "buildStore", a.cfg.Storage.Mode)
	}
}

// Start launches the gateway, the metrics endpoint, and the health
// probe loop.
func (a *App) Start(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "service", "Start", "app")
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.group, runCtx = errgroup.WithContext(runCtx)

	if err := a.gateway.Start(runCtx); err != nil {
		cancel()
		return err
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Start(); err != nil {
			cancel()
			return err
		}
	}

	a.probeHealth(runCtx)
	a.group.Go(func() error {
		ticker := time.NewTicker(healthProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return nil
			case <-ticker.C:
				a.probeHealth(runCtx)
			}
		}
	})

	a.logger.Info("dashkit started",
		"gateway_port", a.cfg.Server.Port,
		"storage_mode", a.cfg.Storage.Mode,
		"metrics", a.cfg.Metrics.Enabled,
	)
	return nil
}

// Stop shuts everything down in reverse dependency order.
func (a *App) Stop(ctx context.Context) error {
	if !a.started.CompareAndSwap(true, false) {
		return errors.WrapInvalid(errors.ErrNotStarted, "service", "Stop", "app")
	}

	a.cancel()
	_ = a.group.Wait()

	var firstErr error
	if err := a.gateway.Stop(ctx); err != nil {
		firstErr = err
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.natsConn != nil {
		a.natsConn.Close()
	}

	a.logger.Info("dashkit stopped")
	return firstErr
}

// Loader exposes the content loader for embedding callers.
func (a *App) Loader() *content.Loader { return a.loader }

// Recorder exposes the analytics recorder for embedding callers.
func (a *App) Recorder() *analytics.Recorder { return a.recorder }

// Notifications exposes the notification channel for embedding callers.
func (a *App) Notifications() *notify.Channel { return a.notes }

// probeHealth refreshes per-component statuses.
func (a *App) probeHealth(ctx context.Context) {
	a.monitor.UpdateHealthy("cache", "ok")
	a.monitor.UpdateHealthy("notifications", "ok")

	if a.store == nil {
		a.monitor.UpdateDegraded("store", "event log is in-memory only")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.store.Put(probeCtx, "health/probe", []byte(`{"ok":true}`)); err != nil {
		a.monitor.UpdateFromError("store", err)
		return
	}
	a.monitor.UpdateHealthy("store", "ok")
}
