package domain

import "time"

type DeviceStatus string

const (
	StatusAwaitingConnection DeviceStatus = "awaiting_connection"
	StatusActive             DeviceStatus = "active"
	StatusInactive           DeviceStatus = "inactive"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Device is a registered airborne unit. DeviceID is the stable identifier
// the hardware reports with; ID is the document id assigned at registration.
type Device struct {
	ID            string       `json:"id"`
	Rev           string       `json:"_rev,omitempty"`
	DeviceID      string       `json:"device_id"`
	Name          string       `json:"name"`
	OwnerID       string       `json:"owner_id"`
	Protocol      string       `json:"protocol"`
	Location      *GeoPoint    `json:"location,omitempty"`
	Status        DeviceStatus `json:"status"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	IsLocked      bool         `json:"is_locked"`
	CreatedAt     time.Time    `json:"created_at"`
}

// PositionReport is one normalized telemetry ping, regardless of which
// vendor protocol it arrived in.
type PositionReport struct {
	DeviceID string  `json:"deviceId" validate:"required"`
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" validate:"gte=-180,lte=180"`
	Battery  int     `json:"battery,omitempty"`
}

type RegisterDeviceRequest struct {
	DeviceID string    `json:"device_id" validate:"required"`
	Name     string    `json:"name" validate:"required"`
	Protocol string    `json:"protocol" validate:"required,oneof=dji_json_v1 veeniix_csv standard_gps"`
	Location *GeoPoint `json:"location,omitempty"`
}
