// Package health exposes the operational HTTP surface: liveness, a JSON
// status snapshot, and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mwhittaker87/clearcrawl/internal/monitor"
	"github.com/mwhittaker87/clearcrawl/internal/store"
)

// Status is the /v1/health response body.
type Status struct {
	OK              bool            `json:"ok"`
	Now             time.Time       `json:"now"`
	LastObservation *time.Time      `json:"last_observation,omitempty"`
	LastCompletion  *time.Time      `json:"last_completion,omitempty"`
	AlarmingZips    []string        `json:"alarming_zips,omitempty"`
	Metrics         monitor.Summary `json:"metrics"`
}

// Trackers bundles the monitors the status endpoint reads.
type Trackers struct {
	Metrics     *monitor.MetricsEmitter
	Cursor      *monitor.ZipTracker
	Consistency *monitor.ConsistencyTracker
}

// Server hosts the health endpoints.
type Server struct {
	repo     store.Repository
	trackers Trackers
	log      *zap.Logger
	registry *prometheus.Registry
	srv      *http.Server
}

// New constructs the server on port.
func New(port int, repo store.Repository, trackers Trackers, registry *prometheus.Registry, log *zap.Logger) *Server {
	s := &Server{
		repo:     repo,
		trackers: trackers,
		log:      log.Named("health"),
		registry: registry,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleLiveness)
	r.Get("/v1/health", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Info("health surface listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{OK: true, Now: time.Now().UTC()}

	if s.repo != nil {
		if ts, err := s.repo.LastObservationTime(r.Context()); err == nil {
			status.LastObservation = &ts
		} else if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("last observation lookup failed", zap.Error(err))
			status.OK = false
		}
	}
	if s.trackers.Cursor != nil {
		if last := s.trackers.Cursor.LastCompletion(); !last.IsZero() {
			status.LastCompletion = &last
		}
	}
	if s.trackers.Consistency != nil {
		status.AlarmingZips = s.trackers.Consistency.Alarming()
		if len(status.AlarmingZips) > 0 {
			status.OK = false
		}
	}
	if s.trackers.Metrics != nil {
		status.Metrics = s.trackers.Metrics.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.log.Warn("status encode failed", zap.Error(err))
	}
}
