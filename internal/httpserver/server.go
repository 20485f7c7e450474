// Package httpserver exposes the controller's liveness, readiness,
// metrics, and state endpoints. It is a thin, read-only projection
// over the reconciler — it never mutates controller state.
package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/magicorntech/epictetus/internal/reconciler"
)

// Server wires the controller's observability surface onto an
// http.ServeMux: /healthz, /readyz, /metrics, /state.
type Server struct {
	Reconciler *reconciler.Reconciler
	Logger     *zap.SugaredLogger
}

func (s *Server) logger() *zap.SugaredLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop().Sugar()
}

// Handler builds the mux. Splitting this from Serve lets tests drive
// requests with httptest without binding a real port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleLiveness)
	mux.HandleFunc("/readyz", s.handleReadiness)
	mux.HandleFunc("/state", s.handleState)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve blocks serving Handler() on addr until the listener fails.
func (s *Server) Serve(addr string) error {
	s.logger().Infow("starting http reporter", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type statusResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "alive", Timestamp: time.Now(), Service: "epictetus"})
}

type readinessResponse struct {
	Status       string    `json:"status"`
	HealthStatus string    `json:"health_status"`
	Timestamp    time.Time `json:"timestamp"`
	Service      string    `json:"service"`
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	health := s.Reconciler.HealthSnapshot()
	resp := readinessResponse{
		HealthStatus: string(health.Overall),
		Timestamp:    time.Now(),
		Service:      "epictetus",
	}
	if health.Overall != reconciler.Healthy {
		resp.Status = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = "ready"
	writeJSON(w, http.StatusOK, resp)
}

type stateResponse struct {
	Health       reconciler.HealthStatus      `json:"health"`
	RecentEvents []reconciler.ManagementEvent `json:"recent_events"`
	RecentSyncs  []reconciler.SyncReport      `json:"recent_syncs"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{
		Health:       s.Reconciler.HealthSnapshot(),
		RecentEvents: s.Reconciler.RecentEvents(10),
		RecentSyncs:  s.Reconciler.RecentReports(5),
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
