package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/protocol"
	"uav-fleet-server/internal/service"
	"uav-fleet-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// IngestHandler receives telemetry from the devices themselves. The routes
// are unauthenticated: drones identify by their registered device ID, not
// by a user token.
type IngestHandler struct {
	ingestService *service.IngestService
	validator     *validator.Validate
}

func NewIngestHandler(ingestService *service.IngestService) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		validator:     validator.New(),
	}
}

// ReportPosition accepts a canonical JSON position report.
func (h *IngestHandler) ReportPosition(w http.ResponseWriter, r *http.Request) {
	var report domain.PositionReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	h.process(w, r, &report)
}

// ReportRaw accepts a vendor-specific payload and decodes it with the
// protocol named in the path before running the same pipeline.
func (h *IngestHandler) ReportRaw(w http.ResponseWriter, r *http.Request) {
	protocolName := mux.Vars(r)["protocol"]

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "Failed to read request body")
		return
	}

	report, err := protocol.Decode(protocolName, raw)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	h.process(w, r, report)
}

func (h *IngestHandler) process(w http.ResponseWriter, r *http.Request, report *domain.PositionReport) {
	if err := h.validator.Struct(report); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	device, err := h.ingestService.ReportPosition(r.Context(), report)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeviceNotFound):
			response.NotFound(w, "Device not registered")
		case errors.Is(err, service.ErrDeviceLocked):
			response.Forbidden(w, "Device is locked")
		default:
			response.InternalError(w, "Failed to process position report")
		}
		return
	}

	response.Success(w, device)
}
