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

type AdminHandler struct {
	adminService *service.AdminService
	validator    *validator.Validate
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		validator:    validator.New(),
	}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats()
	if err != nil {
		response.InternalError(w, "Failed to load stats")
		return
	}

	response.Success(w, stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListUsers()
	if err != nil {
		response.InternalError(w, "Failed to list users")
		return
	}

	response.Success(w, users)
}

func (h *AdminHandler) ToggleUserLock(w http.ResponseWriter, r *http.Request) {
	user, err := h.adminService.ToggleUserLock(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w, "Failed to toggle user lock")
		return
	}

	response.Success(w, user)
}

func (h *AdminHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.adminService.ListDevices()
	if err != nil {
		response.InternalError(w, "Failed to list devices")
		return
	}

	response.Success(w, devices)
}

func (h *AdminHandler) ToggleDeviceLock(w http.ResponseWriter, r *http.Request) {
	device, err := h.adminService.ToggleDeviceLock(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			response.NotFound(w, "Device not found")
			return
		}
		response.InternalError(w, "Failed to toggle device lock")
		return
	}

	response.Success(w, device)
}

func (h *AdminHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.adminService.DeleteDevice(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			response.NotFound(w, "Device not found")
			return
		}
		response.InternalError(w, "Failed to delete device")
		return
	}

	response.Success(w, map[string]string{
		"message": "Device and its flight history deleted",
	})
}

func (h *AdminHandler) NotifyUser(w http.ResponseWriter, r *http.Request) {
	var req domain.NotifyUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	h.adminService.NotifyUser(&req)

	response.Success(w, map[string]string{
		"message": "Notification sent",
	})
}
