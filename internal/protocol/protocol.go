// Package protocol decodes vendor-specific telemetry payloads into the
// canonical position report the ingestion pipeline consumes.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"uav-fleet-server/internal/domain"
)

const (
	DJIJSONV1   = "dji_json_v1"
	VeeniixCSV  = "veeniix_csv"
	StandardGPS = "standard_gps"
)

// Decode parses a raw device payload according to the named protocol.
func Decode(protocolName string, raw []byte) (*domain.PositionReport, error) {
	switch protocolName {
	case DJIJSONV1:
		return decodeDJIJSONV1(raw)
	case VeeniixCSV:
		return decodeVeeniixCSV(raw)
	case StandardGPS:
		return decodeStandardGPS(raw)
	default:
		return nil, fmt.Errorf("unknown device protocol %q", protocolName)
	}
}

type djiPayload struct {
	Serial   string `json:"serial"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	BatteryPercent int `json:"battery_percent"`
}

func decodeDJIJSONV1(raw []byte) (*domain.PositionReport, error) {
	var p djiPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid dji_json_v1 payload: %w", err)
	}
	return &domain.PositionReport{
		DeviceID: p.Serial,
		Lat:      p.Location.Latitude,
		Lng:      p.Location.Longitude,
		Battery:  p.BatteryPercent,
	}, nil
}

// veeniix_csv frames look like "SERIAL;lat,lng;battery".
func decodeVeeniixCSV(raw []byte) (*domain.PositionReport, error) {
	parts := strings.Split(strings.TrimSpace(string(raw)), ";")
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid veeniix_csv payload: expected 3 fields, got %d", len(parts))
	}

	coords := strings.Split(parts[1], ",")
	if len(coords) != 2 {
		return nil, fmt.Errorf("invalid veeniix_csv coordinates %q", parts[1])
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid veeniix_csv latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid veeniix_csv longitude: %w", err)
	}

	battery, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid veeniix_csv battery: %w", err)
	}

	return &domain.PositionReport{
		DeviceID: strings.TrimSpace(parts[0]),
		Lat:      lat,
		Lng:      lng,
		Battery:  battery,
	}, nil
}

func decodeStandardGPS(raw []byte) (*domain.PositionReport, error) {
	var report domain.PositionReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("invalid standard_gps payload: %w", err)
	}
	return &report, nil
}
