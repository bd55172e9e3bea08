package api

import (
	"net/http"
	"strconv"
)

// defaultEventLimit bounds event log responses when the client does not
// pass an explicit limit.
const defaultEventLimit = 100

// handleListEvents returns recent events from the event log, newest
// first. Query parameters: entity_id (filter), limit.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeNotFound(w, "event log is not enabled")
		return
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var err error
	var events any
	if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
		events, err = s.events.ListRecentByEntity(r.Context(), entityID, limit)
	} else {
		events, err = s.events.ListRecent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("listing events", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}
