package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jeremiassm/controlh-app/pkg/tracker"
	"github.com/Jeremiassm/controlh-app/pkg/ward"
)

// Server is the HTTP API server.
type Server struct {
	svc     *tracker.Service
	bus     *ward.Bus
	mux     *http.ServeMux
	metrics *metrics
	handler http.Handler
}

// New creates a new Server. bus may be nil, in which case the change stream
// is unavailable. Metrics are registered on reg, or on a fresh registry when
// reg is nil.
func New(svc *tracker.Service, bus *ward.Bus, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		svc:     svc,
		bus:     bus,
		mux:     http.NewServeMux(),
		metrics: newMetrics(reg),
	}
	s.routes(reg)
	s.handler = s.instrument(s.mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes(reg *prometheus.Registry) {
	// Patients
	s.mux.HandleFunc("GET /api/patients", s.handlePatientList)
	s.mux.HandleFunc("POST /api/patients", s.handlePatientCreate)
	s.mux.HandleFunc("GET /api/patients/{id}", s.handlePatientGet)
	s.mux.HandleFunc("PUT /api/patients/{id}", s.handlePatientUpdate)
	s.mux.HandleFunc("DELETE /api/patients/{id}", s.handlePatientDelete)

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/pending", s.handleTaskPending)
	s.mux.HandleFunc("GET /api/tasks/day/{date}", s.handleTaskDay)
	s.mux.HandleFunc("GET /api/tasks/category/{category}", s.handleTaskCategory)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PUT /api/tasks/{id}/status", s.handleTaskStatus)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)

	// Changes
	s.mux.HandleFunc("GET /api/changes/stream", s.handleChangeStream)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps the ward error taxonomy onto HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ward.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ward.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("storage: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
