package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Entity endpoints. Keys use dots (light.kitchen), so the param
		// is matched greedily.
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", s.handleGetEntity)
				r.Delete("/", s.handleDeleteEntity)
				r.Put("/state", s.handleSetEntityState)
				r.Patch("/attributes", s.handlePatchEntityAttributes)
				r.Post("/services/{service}", s.handleCallService)
				r.Get("/history", s.handleEntityHistory)
			})
		})

		// Device endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Get("/entities", s.handleListDeviceEntities)
			})
		})

		// Area endpoints
		r.Route("/areas", func(r chi.Router) {
			r.Get("/", s.handleListAreas)
			r.Post("/", s.handleCreateArea)
			r.Get("/tree", s.handleAreaTree)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetArea)
				r.Patch("/", s.handleUpdateArea)
				r.Delete("/", s.handleDeleteArea)
			})
		})

		// Automation endpoints
		r.Route("/automations", func(r chi.Router) {
			r.Get("/", s.handleListAutomations)
			r.Post("/", s.handleCreateAutomation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAutomation)
				r.Patch("/", s.handleUpdateAutomation)
				r.Delete("/", s.handleDeleteAutomation)
				r.Post("/enable", s.handleEnableAutomation)
				r.Post("/disable", s.handleDisableAutomation)
				r.Post("/trigger", s.handleTriggerAutomation)
			})
		})

		// Event log
		r.Get("/events", s.handleListEvents)

		// WebSocket feed
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
