package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/repository"

	"github.com/google/uuid"
)

// IngestService is the position-ingestion pipeline. Every telemetry ping
// runs through ReportPosition: device state update, session open/continue,
// geofence evaluation, event fan-out. Reports for one device are applied in
// arrival order under the device lock; different devices proceed
// concurrently.
type IngestService struct {
	devices   repository.DeviceRepository
	sessions  repository.FlightSessionRepository
	zones     *ZoneService
	geocoder  Geocoder
	publisher EventPublisher
	locks     *DeviceLocks
	now       func() time.Time
}

func NewIngestService(
	devices repository.DeviceRepository,
	sessions repository.FlightSessionRepository,
	zones *ZoneService,
	geocoder Geocoder,
	publisher EventPublisher,
	locks *DeviceLocks,
) *IngestService {
	return &IngestService{
		devices:   devices,
		sessions:  sessions,
		zones:     zones,
		geocoder:  geocoder,
		publisher: publisher,
		locks:     locks,
		now:       time.Now,
	}
}

// ReportPosition applies one position report. Persistence failures surface
// to the caller so the device can retry; geofence and fan-out failures are
// logged and swallowed.
func (s *IngestService) ReportPosition(ctx context.Context, report *domain.PositionReport) (*domain.Device, error) {
	unlock := s.locks.Lock(report.DeviceID)
	defer unlock()

	device, err := s.devices.FindByDeviceID(report.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	if device.IsLocked {
		return nil, ErrDeviceLocked
	}

	now := s.now()
	point := domain.GeoPoint{Lat: report.Lat, Lng: report.Lng}
	wasInactive := device.Status != domain.StatusActive

	device.Location = &point
	device.Status = domain.StatusActive
	device.LastHeartbeat = now

	if err := s.devices.Update(device); err != nil {
		return nil, err
	}

	if wasInactive {
		if _, err := s.openSession(device, point, now); err != nil {
			return nil, err
		}
	} else {
		session, err := s.sessions.FindOpenByDevice(device.ID)
		switch {
		case err == nil:
			if err := s.sessions.AppendPoint(session.ID, point); err != nil {
				return nil, err
			}
		case errors.Is(err, repository.ErrNotFound):
			// Active device with no open session: inconsistent state left
			// behind by a crash. Open a fresh session instead of failing
			// the report.
			log.Printf("[Ingest] device %s active without open session, opening one", device.ID)
			if _, err := s.openSession(device, point, now); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	s.publisher.PublishLocationUpdate(domain.LocationUpdateEvent{
		DeviceID:  device.ID,
		Location:  point,
		Status:    device.Status,
		Timestamp: now,
	})

	s.evaluateZones(device, point, now)

	return device, nil
}

func (s *IngestService) openSession(device *domain.Device, point domain.GeoPoint, now time.Time) (*domain.FlightSession, error) {
	session := &domain.FlightSession{
		ID:           uuid.New().String(),
		DeviceID:     device.ID,
		StartTime:    now,
		StartAddress: domain.AddressResolving,
		EndAddress:   domain.AddressNotEnded,
		Path:         []domain.GeoPoint{point},
	}

	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	// Resolved off the request path; a slow or failing geocoder must never
	// hold up ingestion.
	go s.resolveStartAddress(session.ID, point)

	return session, nil
}

func (s *IngestService) resolveStartAddress(sessionID string, point domain.GeoPoint) {
	address := s.geocoder.ResolveAddress(context.Background(), point.Lat, point.Lng)
	if err := s.sessions.SetStartAddress(sessionID, address); err != nil {
		log.Printf("[Ingest] failed to set start address for session %s: %v", sessionID, err)
	}
}

// evaluateZones checks the point against the active geofences and emits at
// most one breach: the first matching zone wins, later overlaps are not
// reported.
func (s *IngestService) evaluateZones(device *domain.Device, point domain.GeoPoint, now time.Time) {
	zones, err := s.zones.ActiveZones()
	if err != nil {
		log.Printf("[Ingest] failed to load active zones: %v", err)
		return
	}

	zone := s.zones.BreachingZone(point, zones)
	if zone == nil {
		return
	}

	s.publisher.PublishBreach(domain.BreachEvent{
		DeviceID:   device.ID,
		DeviceName: device.Name,
		ZoneID:     zone.ID,
		ZoneName:   zone.Name,
		OwnerID:    device.OwnerID,
		Location:   point,
		Timestamp:  now,
	})

	s.publisher.PublishUserNotice(domain.UserNoticeEvent{
		UserID:     device.OwnerID,
		Sender:     "system",
		Message:    fmt.Sprintf("Device %q has entered no-fly zone %q", device.Name, zone.Name),
		DeviceName: device.Name,
		ZoneName:   zone.Name,
		Timestamp:  now,
	})
}
