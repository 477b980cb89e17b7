// Package introspect serves the daemon's observation endpoints.
package introspect

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fieldrover/wayfarer/internal/events"
	"github.com/fieldrover/wayfarer/internal/logging"
	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/models"
	"github.com/fieldrover/wayfarer/internal/pose"
)

// Status is the payload of the /status endpoint.
type Status struct {
	Plan        string          `json:"plan"`
	RunID       string          `json:"run_id"`
	State       string          `json:"state"`
	Waypoint    string          `json:"waypoint,omitempty"`
	Cursor      int             `json:"cursor"`
	Waypoints   int             `json:"waypoints"`
	Terminal    string          `json:"terminal,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	Uptime      string          `json:"uptime"`
	Feed        pose.FeedHealth `json:"feed"`
	Pose        pose.Estimate   `json:"pose"`
	Subscribers int             `json:"subscribers"`
}

// StatusSource reports the live run state.
type StatusSource interface {
	Status() Status
}

// Server exposes run status, recent events, the active plan, and metrics
// over HTTP.
type Server struct {
	status   StatusSource
	ring     *events.Ring
	plan     *mission.Plan
	gatherer prometheus.Gatherer
	limiter  *Limiter
	logger   zerolog.Logger
}

// NewServer creates an introspection server. Ring and gatherer may be nil,
// which disables /events content and /metrics respectively.
func NewServer(status StatusSource, ring *events.Ring, plan *mission.Plan, gatherer prometheus.Gatherer) *Server {
	return &Server{
		status:   status,
		ring:     ring,
		plan:     plan,
		gatherer: gatherer,
		limiter:  NewLimiter(nil),
		logger:   logging.Component("introspect"),
	}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/plan", s.handlePlan)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.limiter.middleware(s.ServeMux()))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	io.WriteString(w, "ok\n")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.status == nil {
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	buffered := s.ring.Snapshot()
	if buffered == nil {
		buffered = []models.Event{}
	}

	// ?n= trims to the most recent n events.
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if n < len(buffered) {
			buffered = buffered[len(buffered)-n:]
		}
	}

	s.writeJSON(w, http.StatusOK, buffered)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.plan == nil {
		http.Error(w, "no plan loaded", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.plan)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}
