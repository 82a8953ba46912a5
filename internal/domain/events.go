package domain

import "time"

// Event names on the real-time channel. Location and status updates are
// broadcast to every connected client, breaches go to the admin audience,
// and user notices are delivered to one user's connections only.
const (
	EventDeviceLocationUpdate = "deviceLocationUpdate"
	EventDeviceStatusUpdate   = "deviceStatusUpdate"
	EventNFZBreach            = "nfzBreach"
	EventUserNotice           = "userNotice"
)

type LocationUpdateEvent struct {
	DeviceID  string       `json:"device_id"`
	Location  GeoPoint     `json:"location"`
	Status    DeviceStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

type StatusUpdateEvent struct {
	DeviceID  string       `json:"device_id"`
	Status    DeviceStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// BreachEvent is produced when a reported position falls inside an active
// no-fly zone. It is transient: delivered once, never persisted or retried.
type BreachEvent struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	ZoneID     string    `json:"zone_id"`
	ZoneName   string    `json:"zone_name"`
	OwnerID    string    `json:"owner_id"`
	Location   GeoPoint  `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
}

type UserNoticeEvent struct {
	UserID     string    `json:"user_id"`
	Sender     string    `json:"sender"`
	Message    string    `json:"message"`
	DeviceName string    `json:"device_name,omitempty"`
	ZoneName   string    `json:"zone_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
