package service

import (
	"context"
	"sync"

	"uav-fleet-server/internal/domain"
)

// EventPublisher fans events out to connected observers. Delivery is
// fire-and-forget: implementations must never block the pipeline or surface
// transport errors to it.
type EventPublisher interface {
	PublishLocationUpdate(event domain.LocationUpdateEvent)
	PublishStatusUpdate(event domain.StatusUpdateEvent)
	PublishBreach(event domain.BreachEvent)
	PublishUserNotice(event domain.UserNoticeEvent)
}

// Geocoder resolves coordinates to a display address, best effort, within a
// bounded time budget.
type Geocoder interface {
	ResolveAddress(ctx context.Context, lat, lng float64) string
}

// DeviceLocks serializes all session and status mutation per device, so an
// in-flight position report and the liveness sweep cannot race on the same
// device. Keyed by the stable device identifier.
type DeviceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDeviceLocks() *DeviceLocks {
	return &DeviceLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the device's mutex and returns the unlock func.
func (l *DeviceLocks) Lock(deviceID string) func() {
	l.mu.Lock()
	m, ok := l.locks[deviceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[deviceID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
