package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/repository"
)

// Monitor is the liveness sweep: a periodic task that force-closes sessions
// for devices that stopped reporting. It shares the per-device locks with
// the ingestion pipeline so a sweep cannot close a session the instant a
// fresh signal arrives.
type Monitor struct {
	devices   repository.DeviceRepository
	sessions  repository.FlightSessionRepository
	geocoder  Geocoder
	publisher EventPublisher
	locks     *DeviceLocks

	period    time.Duration
	threshold time.Duration
	epsilon   time.Duration
	now       func() time.Time
}

func NewMonitor(
	devices repository.DeviceRepository,
	sessions repository.FlightSessionRepository,
	geocoder Geocoder,
	publisher EventPublisher,
	locks *DeviceLocks,
	period, threshold, epsilon time.Duration,
) *Monitor {
	return &Monitor{
		devices:   devices,
		sessions:  sessions,
		geocoder:  geocoder,
		publisher: publisher,
		locks:     locks,
		period:    period,
		threshold: threshold,
		epsilon:   epsilon,
		now:       time.Now,
	}
}

// Run sweeps on a fixed period until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	log.Printf("[Monitor] liveness sweep every %s, timeout threshold %s", m.period, m.threshold)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Monitor] stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep closes sessions of every active device whose last heartbeat is
// older than the threshold. One device failing must not abort the sweep
// for the rest.
func (m *Monitor) Sweep(ctx context.Context) {
	cutoff := m.now().Add(-m.threshold)

	stale, err := m.devices.FindStaleActive(cutoff)
	if err != nil {
		log.Printf("[Monitor] failed to query stale devices: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	log.Printf("[Monitor] %d device(s) lost connection", len(stale))

	for _, device := range stale {
		if err := m.closeDevice(ctx, device.ID, cutoff); err != nil {
			log.Printf("[Monitor] failed to close device %s: %v", device.ID, err)
		}
	}
}

func (m *Monitor) closeDevice(ctx context.Context, id string, cutoff time.Time) error {
	device, err := m.devices.FindByID(id)
	if err != nil {
		return err
	}

	unlock := m.locks.Lock(device.DeviceID)
	defer unlock()

	// Re-read under the lock: a report may have arrived since the query.
	device, err = m.devices.FindByID(id)
	if err != nil {
		return err
	}
	if device.Status != domain.StatusActive || device.LastHeartbeat.After(cutoff) {
		return nil
	}

	session, err := m.sessions.FindOpenByDevice(device.ID)
	switch {
	case err == nil:
		// The session ends at the last real signal, not at sweep time, so
		// the recorded duration reflects actual reporting.
		endTime := device.LastHeartbeat.Add(m.epsilon)
		session.EndTime = &endTime
		session.DurationInSeconds = int64(math.Round(endTime.Sub(session.StartTime).Seconds()))

		if len(session.Path) > 0 {
			last := session.Path[len(session.Path)-1]
			session.EndAddress = m.geocoder.ResolveAddress(ctx, last.Lat, last.Lng)
		} else {
			session.EndAddress = domain.AddressUnavailable
		}

		if err := m.sessions.Update(session); err != nil {
			return err
		}
		log.Printf("[Monitor] closed session %s for device %s", session.ID, device.DeviceID)
	case errors.Is(err, repository.ErrNotFound):
		// Nothing to close, just normalize the status below.
	default:
		return err
	}

	device.Status = domain.StatusInactive
	if err := m.devices.Update(device); err != nil {
		return err
	}

	m.publisher.PublishStatusUpdate(domain.StatusUpdateEvent{
		DeviceID:  device.ID,
		Status:    device.Status,
		Timestamp: m.now(),
	})

	return nil
}
