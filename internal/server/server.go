// Package server exposes the strain graph engine over HTTP for
// orchestrators and the visualization front end.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/project-eidolon/eidolon/internal/engine"
	"github.com/project-eidolon/eidolon/internal/graph"
	"github.com/project-eidolon/eidolon/internal/storage"
)

// Server is the eidolon HTTP API server.
type Server struct {
	engine  *engine.Engine
	router  chi.Router
	log     *logrus.Logger
	version string
	started time.Time
}

// New creates a Server over the engine with the given version string.
func New(eng *engine.Engine, log *logrus.Logger, version string) *Server {
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		engine:  eng,
		log:     log,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Post("/", s.handleCreateEntity)
			r.Get("/{entityID}", s.handleGetEntity)
			r.Put("/{entityID}", s.handleUpdateEntity)
			r.Delete("/{entityID}", s.handleDeleteEntity)
			r.Get("/{entityID}/relationships", s.handleEntityRelationships)
			r.Get("/{entityID}/confidence", s.handleConfidence)
		})

		r.Route("/relationships", func(r chi.Router) {
			r.Get("/", s.handleListRelationships)
			r.Post("/", s.handleCreateRelationship)
		})

		r.Route("/contexts", func(r chi.Router) {
			r.Get("/", s.handleListContexts)
			r.Post("/", s.handleCreateContext)
			r.Post("/{contextID}/entities/{entityID}", s.handleAddEntityToContext)
		})

		r.Route("/query", func(r chi.Router) {
			r.Get("/high-strain", s.handleHighStrain)
			r.Get("/low-strain", s.handleLowStrain)
			r.Get("/by-type/{entityType}", s.handleByType)
			r.Get("/connected/{entityID}", s.handleConnected)
			r.Post("/filter", s.handleFilter)
		})

		r.Post("/propagate", s.handlePropagate)
		r.Post("/dissonance", s.handleDissonance)

		r.Get("/graph-data", s.handleGraphData)
		r.Get("/snapshot", s.handleExportSnapshot)
		r.Post("/snapshot", s.handleImportSnapshot)
	})

	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Store()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       s.version,
		"uptime":        time.Since(s.started).Seconds(),
		"entities":      store.EntityCount(),
		"relationships": store.RelationshipCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses: absence is 404,
// bad references and types are 400, storage failures are 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var failure *storage.Failure
	switch {
	case errors.Is(err, graph.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, graph.ErrInvalidReference), errors.Is(err, graph.ErrInvalidType):
		status = http.StatusBadRequest
	case errors.As(err, &failure):
		s.log.WithError(err).Error("storage failure")
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
