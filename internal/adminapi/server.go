// Package adminapi exposes the broker's admin HTTP surface: health, pool
// status, Prometheus metrics and the live occupancy WebSocket.
package adminapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codescord/broker/internal/pool"
	"github.com/codescord/broker/internal/wsstream"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// PoolStatusResponse is the body of GET /api/v1/pool/status.
type PoolStatusResponse struct {
	PoolSize   int   `json:"pool_size"`
	InFlight   int   `json:"in_flight"`
	QueueDepth int   `json:"queue_depth"`
	UsedPorts  []int `json:"used_ports"`
}

// Server bundles the routed admin surface behind a single http.Handler.
type Server struct {
	router *mux.Router
	pool   *pool.Pool
	hub    *wsstream.Hub
	log    *slog.Logger
}

// New builds the admin router. hub may be nil, in which case /ws/pool is not
// registered.
func New(p *pool.Pool, hub *wsstream.Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{router: mux.NewRouter(), pool: p, hub: hub, log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/pool/status", s.handlePoolStatus).Methods(http.MethodGet)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if s.hub != nil {
		s.router.HandleFunc("/ws/pool", s.hub.ServeHTTP)
	}
}

// ServeHTTP makes Server itself usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Timestamp: time.Now()})
}

func (s *Server) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PoolStatusResponse{
		PoolSize:   stats.PoolSize,
		InFlight:   stats.InFlight,
		QueueDepth: stats.QueueDepth,
		UsedPorts:  stats.UsedPorts,
	})
}
