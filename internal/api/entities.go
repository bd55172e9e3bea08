package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minihub-dev/minihub-core/internal/entity"
)

// handleListEntities returns all entities.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.entities.List(r.Context())
	if err != nil {
		s.logger.Error("listing entities", "error", err)
		writeInternalError(w, "failed to list entities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
	})
}

// handleGetEntity returns a single entity by its key.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ent, err := s.entities.Get(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// setStateRequest is the body for PUT /entities/{key}/state.
type setStateRequest struct {
	State string `json:"state"`
}

// handleSetEntityState sets an entity's state.
func (s *Server) handleSetEntityState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ent, err := s.entities.UpdateState(r.Context(), key, entity.State(req.State))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// patchAttributesRequest is the body for PATCH /entities/{key}/attributes.
type patchAttributesRequest struct {
	Attributes map[string]any `json:"attributes"`
}

// handlePatchEntityAttributes merges attributes into an entity.
func (s *Server) handlePatchEntityAttributes(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req patchAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Attributes) == 0 {
		writeBadRequest(w, "attributes object is required")
		return
	}

	ent, err := s.entities.UpdateAttributes(r.Context(), key, req.Attributes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// handleDeleteEntity removes an entity.
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.entities.Delete(r.Context(), key); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCallService invokes a service against an entity. The request body
// is an optional JSON object passed through as service data.
func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	service := chi.URLParam(r, "service")

	var data map[string]any
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	caller := s.services
	if caller == nil {
		caller = s.entities
	}
	if err := caller.CallService(r.Context(), key, service, data); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": key,
		"service":   service,
		"status":    "ok",
	})
}

// defaultHistoryLimit bounds history responses when the client does not
// pass an explicit limit.
const defaultHistoryLimit = 500

// handleEntityHistory returns recorded snapshots for an entity,
// oldest first. Query parameters: since, until (RFC3339), limit.
func (s *Server) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history recording is not enabled")
		return
	}
	key := chi.URLParam(r, "key")

	var since, until time.Time
	var err error
	if v := r.URL.Query().Get("since"); v != "" {
		since, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be RFC3339")
			return
		}
	}
	if v := r.URL.Query().Get("until"); v != "" {
		until, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "until must be RFC3339")
			return
		}
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
	}

	rows, err := s.history.ListByEntity(r.Context(), key, since, until, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": key,
		"history":   rows,
		"count":     len(rows),
	})
}
