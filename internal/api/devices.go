package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
)

// deviceWithEntities is a device row expanded with its owned entities,
// returned by GET /devices?include=entities.
type deviceWithEntities struct {
	device.Device
	Entities []entity.Entity `json:"entities"`
}

// handleListDevices returns all registered devices. With
// ?include=entities each device carries its entities, fetched in a
// single batch query rather than one per device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	if r.URL.Query().Get("include") != "entities" {
		writeJSON(w, http.StatusOK, map[string]any{
			"devices": devices,
			"count":   len(devices),
		})
		return
	}

	ids := make([]string, len(devices))
	for i := range devices {
		ids[i] = devices[i].ID
	}
	entities, err := s.entities.ListByDevices(r.Context(), ids)
	if err != nil {
		s.logger.Error("listing device entities", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	byDevice := make(map[string][]entity.Entity, len(devices))
	for _, ent := range entities {
		byDevice[ent.DeviceID] = append(byDevice[ent.DeviceID], ent)
	}

	expanded := make([]deviceWithEntities, len(devices))
	for i := range devices {
		expanded[i] = deviceWithEntities{
			Device:   devices[i],
			Entities: byDevice[devices[i].ID],
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": expanded,
		"count":   len(expanded),
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// updateDeviceRequest is the body for PATCH /devices/{id}. Only provided
// fields are changed; area_id may be set to null to clear the assignment.
type updateDeviceRequest struct {
	Name   *string `json:"name,omitempty"`
	AreaID *string `json:"area_id"`

	// areaIDSet distinguishes "area_id": null from an absent key.
	areaIDSet bool
}

func (u *updateDeviceRequest) UnmarshalJSON(data []byte) error {
	type alias updateDeviceRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*u = updateDeviceRequest(a)
	_, u.areaIDSet = keys["area_id"]
	return nil
}

// handleUpdateDevice renames a device or moves it between areas.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.areaIDSet {
		dev.AreaID = req.AreaID
	}
	if err := dev.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.devices.Update(r.Context(), dev); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device and every entity it owns. Entity
// removal goes through the authority so entity_removed events fire.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	entities, err := s.entities.ListByDevice(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for _, ent := range entities {
		if err := s.entities.Delete(ctx, ent.EntityID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if err := s.devices.Delete(ctx, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListDeviceEntities returns the entities owned by a device.
func (s *Server) handleListDeviceEntities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.devices.GetByID(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	entities, err := s.entities.ListByDevice(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"entities":  entities,
		"count":     len(entities),
	})
}
