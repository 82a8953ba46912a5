package domain

import "time"

// Address placeholders. Start addresses begin as AddressResolving and are
// replaced asynchronously; a session that has not closed yet carries
// AddressNotEnded. Geocoder failures yield AddressUnavailable.
const (
	AddressResolving   = "resolving address..."
	AddressNotEnded    = "not ended"
	AddressUnavailable = "address unavailable"
)

// FlightSession is one continuous period of reported activity for a device.
// A nil EndTime means the session is still open.
type FlightSession struct {
	ID                string     `json:"id"`
	Rev               string     `json:"_rev,omitempty"`
	DeviceID          string     `json:"device_id"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	DurationInSeconds int64      `json:"duration_in_seconds"`
	StartAddress      string     `json:"start_address"`
	EndAddress        string     `json:"end_address"`
	Path              []GeoPoint `json:"path"`
}

// Open reports whether the session is still in progress.
func (s *FlightSession) Open() bool {
	return s.EndTime == nil
}

type StopFlightRequest struct {
	Location *GeoPoint  `json:"location,omitempty"`
	Path     []GeoPoint `json:"path,omitempty"`
}

// StopFlightResult carries the stop outcome. Caveat is set when no open
// session existed and the device was normalized to inactive anyway.
type StopFlightResult struct {
	Device  *Device        `json:"device"`
	Session *FlightSession `json:"session,omitempty"`
	Caveat  string         `json:"caveat,omitempty"`
}
