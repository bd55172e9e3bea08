package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minihub-dev/minihub-core/internal/automation"
)

// automationRequest is the body for automation create/update requests.
type automationRequest struct {
	Name        string                 `json:"name"`
	Description *string                `json:"description,omitempty"`
	Enabled     *bool                  `json:"enabled,omitempty"`
	Trigger     *automation.Trigger    `json:"trigger,omitempty"`
	Conditions  []automation.Condition `json:"conditions,omitempty"`
	Actions     []automation.Action    `json:"actions,omitempty"`
}

// handleListAutomations returns all automations.
func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	automations, err := s.automations.List(r.Context())
	if err != nil {
		s.logger.Error("listing automations", "error", err)
		writeInternalError(w, "failed to list automations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"automations": automations,
		"count":       len(automations),
	})
}

// handleCreateAutomation creates a new automation. New automations are
// enabled unless the body says otherwise.
func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Trigger == nil {
		writeBadRequest(w, "trigger is required")
		return
	}

	a := &automation.Automation{
		ID:          automation.GenerateID(),
		Name:        req.Name,
		Description: req.Description,
		Enabled:     true,
		Trigger:     *req.Trigger,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if err := a.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.automations.Create(r.Context(), a); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// handleGetAutomation returns a single automation by ID.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.automations.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleUpdateAutomation applies a partial update. Only provided fields
// change; the result is re-validated as a whole.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	a, err := s.automations.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Name != "" {
		a.Name = req.Name
	}
	if req.Description != nil {
		a.Description = req.Description
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if req.Trigger != nil {
		a.Trigger = *req.Trigger
	}
	if req.Conditions != nil {
		a.Conditions = req.Conditions
	}
	if req.Actions != nil {
		a.Actions = req.Actions
	}

	if err := a.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.automations.Update(r.Context(), a); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleDeleteAutomation removes an automation.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.automations.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEnableAutomation enables an automation.
func (s *Server) handleEnableAutomation(w http.ResponseWriter, r *http.Request) {
	s.setAutomationEnabled(w, r, true)
}

// handleDisableAutomation disables an automation.
func (s *Server) handleDisableAutomation(w http.ResponseWriter, r *http.Request) {
	s.setAutomationEnabled(w, r, false)
}

func (s *Server) setAutomationEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")
	if err := s.automations.SetEnabled(r.Context(), id, enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"enabled": enabled,
	})
}

// handleTriggerAutomation runs an automation immediately, skipping its
// trigger but honouring its conditions. Disabled automations refuse.
func (s *Server) handleTriggerAutomation(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeNotFound(w, "automation engine is not running")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.engine.TriggerManual(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": "triggered",
	})
}
