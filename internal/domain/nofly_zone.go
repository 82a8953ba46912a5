package domain

import "time"

type ZoneShape string

const (
	ShapeCircle  ZoneShape = "Circle"
	ShapePolygon ZoneShape = "Polygon"
)

// NoFlyZone is a named geofence, either a circle (center + radius in meters)
// or a polygon (ordered ring of vertices, implicitly closed). Only zones with
// IsActive set participate in breach checks.
type NoFlyZone struct {
	ID          string     `json:"id"`
	Rev         string     `json:"_rev,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	Shape       ZoneShape  `json:"shape"`
	Center      *GeoPoint  `json:"center,omitempty"`
	Radius      float64    `json:"radius,omitempty"`
	Path        []GeoPoint `json:"path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type CreateZoneRequest struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	IsActive    *bool      `json:"is_active"`
	Shape       ZoneShape  `json:"shape" validate:"required,oneof=Circle Polygon"`
	Center      *GeoPoint  `json:"center,omitempty"`
	Radius      float64    `json:"radius,omitempty"`
	Path        []GeoPoint `json:"path,omitempty"`
}

type UpdateZoneRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}
