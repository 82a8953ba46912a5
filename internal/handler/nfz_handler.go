package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/service"
	"uav-fleet-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type NoFlyZoneHandler struct {
	zoneService *service.ZoneService
	validator   *validator.Validate
}

func NewNoFlyZoneHandler(zoneService *service.ZoneService) *NoFlyZoneHandler {
	return &NoFlyZoneHandler{
		zoneService: zoneService,
		validator:   validator.New(),
	}
}

// ListActive is readable by any authenticated user; pilots need to know
// where not to fly.
func (h *NoFlyZoneHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	zones, err := h.zoneService.ActiveZones()
	if err != nil {
		response.InternalError(w, "Failed to load no-fly zones")
		return
	}

	response.Success(w, zones)
}

func (h *NoFlyZoneHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	zones, err := h.zoneService.ListAll()
	if err != nil {
		response.InternalError(w, "Failed to load no-fly zones")
		return
	}

	response.Success(w, zones)
}

func (h *NoFlyZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	zone, err := h.zoneService.Create(&req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidGeometry) {
			response.BadRequest(w, "Invalid zone geometry")
			return
		}
		response.InternalError(w, "Failed to create no-fly zone")
		return
	}

	response.Created(w, zone)
}

func (h *NoFlyZoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	zone, err := h.zoneService.Update(mux.Vars(r)["id"], &req)
	if err != nil {
		if errors.Is(err, service.ErrZoneNotFound) {
			response.NotFound(w, "No-fly zone not found")
			return
		}
		response.InternalError(w, "Failed to update no-fly zone")
		return
	}

	response.Success(w, zone)
}

func (h *NoFlyZoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.zoneService.Delete(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, service.ErrZoneNotFound) {
			response.NotFound(w, "No-fly zone not found")
			return
		}
		response.InternalError(w, "Failed to delete no-fly zone")
		return
	}

	response.Success(w, map[string]string{
		"message": "No-fly zone deleted",
	})
}
