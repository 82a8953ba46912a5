// Package geo holds the pure containment math the breach checks run on.
// No I/O, no shared state.
package geo

import (
	"math"

	"uav-fleet-server/internal/domain"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the haversine great-circle distance between two
// points in meters.
func DistanceMeters(a, b domain.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PointInCircle reports whether point lies within radiusMeters of center.
// The boundary counts as inside.
func PointInCircle(point, center domain.GeoPoint, radiusMeters float64) bool {
	return DistanceMeters(point, center) <= radiusMeters
}

// PointInPolygon runs an even-odd ray-casting test over the ring, treating
// (lat, lng) as (y, x). The ring is implicitly closed. Rings with fewer than
// three vertices are never inside; rejecting such data is the caller's job,
// this just refuses to blow up on it.
func PointInPolygon(point domain.GeoPoint, ring []domain.GeoPoint) bool {
	if len(ring) < 3 {
		return false
	}

	x, y := point.Lng, point.Lat
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := ring[i].Lng, ring[i].Lat
		xj, yj := ring[j].Lng, ring[j].Lat
		if ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi)+xi) {
			inside = !inside
		}
		j = i
	}
	return inside
}
