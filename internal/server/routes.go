package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/project-eidolon/eidolon/internal/engine"
	"github.com/project-eidolon/eidolon/internal/graph"
)

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// Entities

type createEntityRequest struct {
	Name        string            `json:"name"`
	Type        graph.EntityType  `json:"entity_type"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes"`
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	if req.Name == "" {
		s.badRequest(w, fmt.Errorf("name is required"))
		return
	}

	store := s.engine.Store()
	ent, err := store.CreateEntity(req.Name, req.Type, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Attributes) > 0 {
		ent.Attributes = req.Attributes
		if err := store.UpdateEntity(ent); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.log.WithFields(logrus.Fields{"id": ent.ID, "type": ent.Type}).Info("entity created")
	writeJSON(w, http.StatusCreated, ent)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")
	store := s.engine.Store()
	ent, ok := store.GetEntity(id)
	if !ok {
		s.writeError(w, fmt.Errorf("entity %s: %w", id, graph.ErrNotFound))
		return
	}
	// A read over the API counts as an access.
	if err := store.TouchEntity(id); err == nil {
		ent, _ = store.GetEntity(id)
	}
	writeJSON(w, http.StatusOK, ent)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Store()
	if t := r.URL.Query().Get("type"); t != "" {
		typ := graph.EntityType(t)
		if !typ.IsValid() {
			s.writeError(w, fmt.Errorf("entity type %q: %w", t, graph.ErrInvalidType))
			return
		}
		writeJSON(w, http.StatusOK, store.EntitiesByType(typ))
		return
	}
	writeJSON(w, http.StatusOK, store.ListEntities())
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")
	var ent graph.Entity
	if err := decode(r, &ent); err != nil {
		s.badRequest(w, err)
		return
	}
	ent.ID = id
	if err := s.engine.Store().UpdateEntity(&ent); err != nil {
		s.writeError(w, err)
		return
	}
	updated, _ := s.engine.Store().GetEntity(id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")
	if err := s.engine.Store().DeleteEntity(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.WithField("id", id).Info("entity deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEntityRelationships(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")
	store := s.engine.Store()
	if _, ok := store.GetEntity(id); !ok {
		s.writeError(w, fmt.Errorf("entity %s: %w", id, graph.ErrNotFound))
		return
	}
	if relType := r.URL.Query().Get("type"); relType != "" {
		writeJSON(w, http.StatusOK, store.RelationshipsByType(id, relType))
		return
	}
	writeJSON(w, http.StatusOK, store.Relationships(id))
}

func (s *Server) handleConfidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")
	score, err := s.engine.ConfidenceScoreFor(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// Relationships

type createRelationshipRequest struct {
	FromID string `json:"from_entity_id"`
	ToID   string `json:"to_entity_id"`
	Type   string `json:"relationship_type"`
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	rel, err := s.engine.Store().CreateRelationship(req.FromID, req.ToID, req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Store().ListRelationships())
}

// Contexts

type createContextRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateContext(w http.ResponseWriter, r *http.Request) {
	var req createContextRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	if req.Name == "" {
		s.badRequest(w, fmt.Errorf("name is required"))
		return
	}
	ctx, err := s.engine.Store().CreateContext(req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ctx)
}

func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Store().ListContexts())
}

func (s *Server) handleAddEntityToContext(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	entityID := chi.URLParam(r, "entityID")
	if err := s.engine.Store().AddEntityToContext(contextID, entityID); err != nil {
		s.writeError(w, err)
		return
	}
	ctx, _ := s.engine.Store().GetContext(contextID)
	writeJSON(w, http.StatusOK, ctx)
}

// Queries

func (s *Server) thresholdParam(r *http.Request, fallback float64) (float64, error) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("threshold %q: %w", raw, err)
	}
	return v, nil
}

func (s *Server) handleHighStrain(w http.ResponseWriter, r *http.Request) {
	threshold, err := s.thresholdParam(r, s.engine.Params().HighStrainThreshold)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.QueryHighStrain(threshold))
}

func (s *Server) handleLowStrain(w http.ResponseWriter, r *http.Request) {
	threshold, err := s.thresholdParam(r, s.engine.Params().LowStrainThreshold)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.QueryLowStrain(threshold))
}

func (s *Server) handleByType(w http.ResponseWriter, r *http.Request) {
	typ := graph.EntityType(chi.URLParam(r, "entityType"))
	res, err := s.engine.QueryByType(typ)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConnected(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")
	maxHops := 1
	if raw := r.URL.Query().Get("hops"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.badRequest(w, fmt.Errorf("hops %q: must be a positive integer", raw))
			return
		}
		maxHops = v
	}
	res, err := s.engine.QueryConnected(id, maxHops)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var f engine.Filter
	if err := decode(r, &f); err != nil {
		s.badRequest(w, err)
		return
	}
	for _, t := range f.Types {
		if !t.IsValid() {
			s.writeError(w, fmt.Errorf("entity type %q: %w", t, graph.ErrInvalidType))
			return
		}
	}
	writeJSON(w, http.StatusOK, s.engine.CombinedFilter(f))
}

// Strain operations

type propagateRequest struct {
	SeedID   string `json:"seed_id"`
	MaxDepth int    `json:"max_depth"`
}

type propagateResponse struct {
	SeedID string              `json:"seed_id"`
	Deltas []graph.StrainDelta `json:"deltas"`
}

func (s *Server) handlePropagate(w http.ResponseWriter, r *http.Request) {
	var req propagateRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	deltas, err := s.engine.Propagate(req.SeedID, req.MaxDepth)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, propagateResponse{SeedID: req.SeedID, Deltas: deltas})
}

type dissonanceRequest struct {
	EntityA   string  `json:"entity_a"`
	EntityB   string  `json:"entity_b"`
	Threshold float64 `json:"threshold"`
	Apply     bool    `json:"apply"`
}

type dissonanceResponse struct {
	EntityA string  `json:"entity_a"`
	EntityB string  `json:"entity_b"`
	Score   float64 `json:"score"`
	Applied bool    `json:"applied"`
}

func (s *Server) handleDissonance(w http.ResponseWriter, r *http.Request) {
	var req dissonanceRequest
	if err := decode(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = -1 // engine substitutes the configured default
	}
	score, err := s.engine.DetectDissonance(req.EntityA, req.EntityB, threshold)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := dissonanceResponse{EntityA: req.EntityA, EntityB: req.EntityB, Score: score}
	if req.Apply && score > 0 {
		for _, id := range []string{req.EntityA, req.EntityB} {
			if err := s.engine.ApplyDissonance(id, score); err != nil {
				s.writeError(w, err)
				return
			}
		}
		resp.Applied = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// Graph data feed for the visualization front end.

type graphNode struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"entity_type"`
	StrainAmplitude float64 `json:"strain_amplitude"`
	StrainFrequency int     `json:"strain_frequency"`
}

type graphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type graphData struct {
	Nodes []graphNode `json:"nodes"`
	Links []graphLink `json:"links"`
}

func (s *Server) handleGraphData(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Store()
	data := graphData{Nodes: []graphNode{}, Links: []graphLink{}}
	for _, ent := range store.ListEntities() {
		data.Nodes = append(data.Nodes, graphNode{
			ID:              ent.ID,
			Name:            ent.Name,
			Type:            string(ent.Type),
			StrainAmplitude: ent.Strain.Amplitude,
			StrainFrequency: ent.Strain.Frequency,
		})
	}
	for _, rel := range store.ListRelationships() {
		data.Links = append(data.Links, graphLink{
			Source: rel.FromID,
			Target: rel.ToID,
			Type:   rel.Type,
		})
	}
	writeJSON(w, http.StatusOK, data)
}

// Snapshots

func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	raw, err := s.engine.Store().ExportJSON()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.badRequest(w, fmt.Errorf("read body: %w", err))
		return
	}
	store := s.engine.Store()
	if err := store.ImportJSON(raw); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"entities":      store.EntityCount(),
		"relationships": store.RelationshipCount(),
	}).Info("snapshot imported")
	writeJSON(w, http.StatusOK, map[string]any{
		"entities":      store.EntityCount(),
		"relationships": store.RelationshipCount(),
	})
}
