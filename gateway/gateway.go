// Package gateway exposes the dashboard's HTTP surface: content
// operations proxied through the loader, analytics reports, endpoint
// stats, health, and a WebSocket stream of notification transitions.
package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/statelab/dashkit/analytics"
	"github.com/statelab/dashkit/client"
	"github.com/statelab/dashkit/config"
	"github.com/statelab/dashkit/content"
	"github.com/statelab/dashkit/errors"
	"github.com/statelab/dashkit/health"
	"github.com/statelab/dashkit/notify"
)

// Server is the dashboard HTTP gateway.
type Server struct {
	cfg      config.ServerConfig
	loader   *content.Loader
	recorder *analytics.Recorder
	notes    *notify.Channel
	inst     *client.Instrumentation
	monitor  *health.Monitor
	logger   *slog.Logger

	httpServer *http.Server
	hub        *wsHub
	started    atomic.Bool
}

// New creates the gateway. All dependencies are required except the
// health monitor, which defaults to an empty one.
func New(
	cfg config.ServerConfig,
	loader *content.Loader,
	recorder *analytics.Recorder,
	notes *notify.Channel,
	inst *client.Instrumentation,
	monitor *health.Monitor,
	logger *slog.Logger,
) (*Server, error) {
	if loader == nil || recorder == nil || notes == nil || inst == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "gateway", "New", "missing dependency")
	}
	if monitor == nil {
		monitor = health.NewMonitor()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		loader:   loader,
		recorder: recorder,
		notes:    notes,
		inst:     inst,
		monitor:  monitor,
		logger:   logger,
	}
	s.hub = newWSHub(notes, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/content/{id}", s.handleGetContent)
	mux.HandleFunc("GET /api/v1/content", s.handleSearch)
	mux.HandleFunc("POST /api/v1/content/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/v1/content/save", s.handleSave)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("GET /api/v1/analytics/report", s.handleReport)
	mux.HandleFunc("GET /api/v1/notifications/active", s.handleActiveNotification)
	mux.HandleFunc("GET /ws/notifications", s.hub.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the gateway's HTTP handler. Used in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "gateway", "Start", "server")
	}

	s.hub.start()

	go func() {
		s.logger.Info("gateway listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return errors.WrapInvalid(errors.ErrNotStarted, "gateway", "Stop", "server")
	}

	s.hub.stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "gateway", "Stop", "server shutdown")
	}
	return nil
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	c, err := s.loader.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("search")
	category := r.URL.Query().Get("category")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := s.loader.Search(r.Context(), query, category, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req client.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	generated, err := s.loader.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, generated)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var c client.Content
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	saved, err := s.loader.Save(r.Context(), &c)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

// statsResponse bundles every locally tracked counter surface.
type statsResponse struct {
	Endpoints     []client.EndpointSnapshot `json:"endpoints"`
	Cache         any                       `json:"cache"`
	Notifications notify.StatsSummary       `json:"notifications"`
	EventBuffer   any                       `json:"eventBuffer"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statsResponse{
		Endpoints:     s.inst.Snapshot(),
		Cache:         s.loader.CacheStats(),
		Notifications: s.notes.Stats(),
		EventBuffer:   s.recorder.Stats(),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.loader.CacheStats())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	window := analytics.DefaultReportWindow
	if v := r.URL.Query().Get("window_hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window_hours must be a positive integer"})
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	s.writeJSON(w, http.StatusOK, s.recorder.BuildReportWindow(window))
}

func (s *Server) handleActiveNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := s.notes.Active()
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"active": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"active": n})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	system := s.monitor.AggregateHealth("dashkit")

	status := http.StatusOK
	if system.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, system)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, errors.ErrAlreadyLoading):
		status = http.StatusConflict
	case errors.IsInvalid(err):
		status = http.StatusBadRequest
	case errors.IsTransient(err):
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
