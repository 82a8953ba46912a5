package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/middleware"
	"uav-fleet-server/internal/service"
	"uav-fleet-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type DeviceHandler struct {
	deviceService *service.DeviceService
	flightService *service.FlightService
	validator     *validator.Validate
}

func NewDeviceHandler(deviceService *service.DeviceService, flightService *service.FlightService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		flightService: flightService,
		validator:     validator.New(),
	}
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	device, err := h.deviceService.Register(userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrDeviceIDTaken) {
			response.BadRequest(w, "Device ID is already registered")
			return
		}
		response.InternalError(w, "Failed to register device")
		return
	}

	response.Created(w, device)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	devices, err := h.deviceService.ListByOwner(userID)
	if err != nil {
		response.InternalError(w, "Failed to list devices")
		return
	}

	response.Success(w, devices)
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	device, err := h.deviceService.Get(userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeDeviceError(w, err)
		return
	}

	response.Success(w, device)
}

func (h *DeviceHandler) StartFlight(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := h.deviceService.Get(userID, id); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	session, err := h.flightService.Start(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyFlying):
			response.BadRequest(w, "Device already has an active flight")
		case errors.Is(err, service.ErrDeviceLocked):
			response.Forbidden(w, "Device is locked")
		default:
			response.InternalError(w, "Failed to start flight")
		}
		return
	}

	response.Created(w, session)
}

func (h *DeviceHandler) StopFlight(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := h.deviceService.Get(userID, id); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	var req domain.StopFlightRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid request body")
			return
		}
	}

	result, err := h.flightService.Stop(r.Context(), id, &req)
	if err != nil {
		response.InternalError(w, "Failed to stop flight")
		return
	}

	response.Success(w, result)
}

func (h *DeviceHandler) FlightHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := h.deviceService.Get(userID, id); err != nil {
		h.writeDeviceError(w, err)
		return
	}

	sessions, err := h.flightService.History(id)
	if err != nil {
		response.InternalError(w, "Failed to load flight history")
		return
	}

	response.Success(w, sessions)
}

func (h *DeviceHandler) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound):
		response.NotFound(w, "Device not found")
	case errors.Is(err, service.ErrNotOwner):
		response.Forbidden(w, "Device belongs to another user")
	default:
		response.InternalError(w, "Failed to load device")
	}
}
