package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minihub-dev/minihub-core/internal/area"
)

// areaRequest is the body for area create/update requests.
type areaRequest struct {
	Name      string  `json:"name"`
	ParentID  *string `json:"parent_id"`
	SortOrder int     `json:"sort_order"`
}

// handleListAreas returns all areas as a flat list.
func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.areas.List(r.Context())
	if err != nil {
		s.logger.Error("listing areas", "error", err)
		writeInternalError(w, "failed to list areas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"areas": areas,
		"count": len(areas),
	})
}

// handleAreaTree returns the areas as a nested tree.
func (s *Server) handleAreaTree(w http.ResponseWriter, r *http.Request) {
	areas, err := s.areas.List(r.Context())
	if err != nil {
		s.logger.Error("listing areas", "error", err)
		writeInternalError(w, "failed to list areas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tree": area.BuildTree(areas),
	})
}

// handleCreateArea creates a new area.
func (s *Server) handleCreateArea(w http.ResponseWriter, r *http.Request) {
	var req areaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	a := &area.Area{
		ID:        area.GenerateID(),
		Name:      req.Name,
		ParentID:  req.ParentID,
		SortOrder: req.SortOrder,
	}
	if err := a.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.areas.Create(r.Context(), a); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// handleGetArea returns a single area by ID.
func (s *Server) handleGetArea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.areas.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleUpdateArea renames or re-parents an area. Re-parenting is checked
// against the current tree so no request can introduce a cycle.
func (s *Server) handleUpdateArea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req areaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	a, err := s.areas.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Name != "" {
		a.Name = req.Name
	}
	a.SortOrder = req.SortOrder
	if req.ParentID != nil || a.ParentID != nil {
		all, err := s.areas.List(r.Context())
		if err != nil {
			writeInternalError(w, "failed to list areas")
			return
		}
		if area.WouldCreateCycle(all, id, req.ParentID) {
			writeDomainError(w, area.ErrCycleDetected)
			return
		}
		a.ParentID = req.ParentID
	}

	if err := a.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.areas.Update(r.Context(), a); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleDeleteArea removes an area. Areas with child areas or assigned
// devices are refused.
func (s *Server) handleDeleteArea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.devices != nil {
		n, err := s.devices.CountByArea(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if n > 0 {
			writeError(w, http.StatusConflict, ErrCodeConflict, "area has assigned devices")
			return
		}
	}

	if err := s.areas.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
