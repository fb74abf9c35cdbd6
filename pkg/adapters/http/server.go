// Package http exposes stored schedules over a small JSON API: listing,
// inspection, validation, Mermaid graphs, abort requests and a server-sent
// event stream of lifecycle events.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/sluice/internal/logging"
	"github.com/aretw0/sluice/internal/presentation/graph"
	"github.com/aretw0/sluice/internal/validator"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/persistence"
	"github.com/aretw0/sluice/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves the schedule API.
type Server struct {
	store   ports.ScheduleStore
	abort   ports.AbortSignal
	metrics http.Handler
	version string
	logger  *slog.Logger

	Streams *StreamManager
}

// Option configures the Server.
type Option func(*Server)

// WithAbortSignal enables POST /schedules/{name}/abort.
func WithAbortSignal(signal ports.AbortSignal) Option {
	return func(s *Server) {
		s.abort = signal
	}
}

// WithMetrics mounts a metrics handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares an existing stream manager, for engines built before
// the server.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// NewServer creates a server over the schedule store.
func NewServer(store ports.ScheduleStore, opts ...Option) *Server {
	s := &Server{
		store:   store,
		version: "dev",
		logger:  logging.NewNop(),
		Streams: NewStreamManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/events", s.subscribeEvents)
	r.Route("/schedules", func(r chi.Router) {
		r.Get("/", s.listSchedules)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.getSchedule)
			r.Get("/validate", s.validateSchedule)
			r.Get("/graph", s.getGraph)
			r.Post("/abort", s.abortSchedule)
		})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// load fetches the schedule named in the URL, answering 404 or 500 itself.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*domain.Schedule, bool) {
	name := chi.URLParam(r, "name")
	sched, err := s.store.Load(r.Context(), name)
	switch {
	case errors.Is(err, domain.ErrScheduleNotFound):
		s.writeError(w, http.StatusNotFound, fmt.Errorf("schedule '%s' not found", name))
		return nil, false
	case err != nil:
		s.logger.Error("Load failed", "schedule", name, "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return sched, true
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "sluice-http",
		"version": s.version,
	})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("List failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"schedules": names})
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.load(w, r)
	if !ok {
		return
	}
	data, err := persistence.Marshal(sched, persistence.FormatJSON)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

type validationResponse struct {
	Valid  bool              `json:"valid"`
	Issues []validator.Issue `json:"issues"`
}

func (s *Server) validateSchedule(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.load(w, r)
	if !ok {
		return
	}
	report := validator.Validate(sched)
	issues := report.Issues
	if issues == nil {
		issues = []validator.Issue{}
	}
	s.writeJSON(w, http.StatusOK, validationResponse{Valid: report.Valid(), Issues: issues})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(sched, graph.OverlayFor(sched))))
}

func (s *Server) abortSchedule(w http.ResponseWriter, r *http.Request) {
	if s.abort == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("abort is not configured"))
		return
	}
	sched, ok := s.load(w, r)
	if !ok {
		return
	}
	if err := s.abort.Request(r.Context(), sched.Name); err != nil {
		s.logger.Error("Abort request failed", "schedule", sched.Name, "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("Abort requested", "schedule", sched.Name, "request_id", middleware.GetReqID(r.Context()))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "abort requested"})
}
