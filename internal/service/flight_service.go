package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/repository"

	"github.com/google/uuid"
)

// FlightService handles explicit flight start/stop and history. The
// ingestion pipeline opens sessions implicitly on the first ping; these
// operations are the operator-driven path.
type FlightService struct {
	devices   repository.DeviceRepository
	sessions  repository.FlightSessionRepository
	geocoder  Geocoder
	publisher EventPublisher
	locks     *DeviceLocks
	now       func() time.Time
}

func NewFlightService(
	devices repository.DeviceRepository,
	sessions repository.FlightSessionRepository,
	geocoder Geocoder,
	publisher EventPublisher,
	locks *DeviceLocks,
) *FlightService {
	return &FlightService{
		devices:   devices,
		sessions:  sessions,
		geocoder:  geocoder,
		publisher: publisher,
		locks:     locks,
		now:       time.Now,
	}
}

// Start opens a flight session for a device that is not already flying.
// At most one open session may exist per device: an open session left
// behind by an earlier failed transition is adopted, never duplicated.
func (s *FlightService) Start(ctx context.Context, deviceID string) (*domain.FlightSession, error) {
	device, err := s.findDevice(deviceID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(device.DeviceID)
	defer unlock()

	// Re-read under the lock: a telemetry ping may have activated the
	// device between the first read and lock acquisition.
	device, err = s.findDevice(deviceID)
	if err != nil {
		return nil, err
	}

	if device.IsLocked {
		return nil, ErrDeviceLocked
	}
	if device.Status == domain.StatusActive {
		return nil, ErrAlreadyFlying
	}

	now := s.now()

	session, err := s.sessions.FindOpenByDevice(device.ID)
	switch {
	case err == nil:
		// Inactive device with an open session: finish the interrupted
		// transition and hand the existing session back.
		log.Printf("[Flight] device %s has an open session %s, adopting it", device.ID, session.ID)
		if err := s.activate(device, now); err != nil {
			return nil, err
		}
		return session, nil
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, err
	}

	// The device transition persists first: if it fails, no session has
	// been created yet and a retried start begins clean.
	if err := s.activate(device, now); err != nil {
		return nil, err
	}

	var path []domain.GeoPoint
	if device.Location != nil {
		path = []domain.GeoPoint{*device.Location}
	}

	session = &domain.FlightSession{
		ID:           uuid.New().String(),
		DeviceID:     device.ID,
		StartTime:    now,
		StartAddress: domain.AddressResolving,
		EndAddress:   domain.AddressNotEnded,
		Path:         path,
	}

	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	if device.Location != nil {
		start := *device.Location
		go func() {
			address := s.geocoder.ResolveAddress(context.Background(), start.Lat, start.Lng)
			if err := s.sessions.SetStartAddress(session.ID, address); err != nil {
				log.Printf("[Flight] failed to set start address for session %s: %v", session.ID, err)
			}
		}()
	}

	return session, nil
}

func (s *FlightService) activate(device *domain.Device, now time.Time) error {
	device.Status = domain.StatusActive
	device.LastHeartbeat = now

	if err := s.devices.Update(device); err != nil {
		return err
	}

	s.publisher.PublishStatusUpdate(domain.StatusUpdateEvent{
		DeviceID:  device.ID,
		Status:    device.Status,
		Timestamp: now,
	})

	return nil
}

// Stop closes the device's open session. A stop with no open session is not
// an error: the device status is normalized to inactive anyway and the
// result carries a caveat, so repeated stops are idempotent.
func (s *FlightService) Stop(ctx context.Context, deviceID string, req *domain.StopFlightRequest) (*domain.StopFlightResult, error) {
	device, err := s.findDevice(deviceID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(device.DeviceID)
	defer unlock()

	// Re-read under the lock, same as Start: the monitor or a ping may
	// have changed the device meanwhile.
	device, err = s.findDevice(deviceID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	session, err := s.sessions.FindOpenByDevice(device.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if err := s.deactivate(device, req.Location, now); err != nil {
			return nil, err
		}
		return &domain.StopFlightResult{
			Device: device,
			Caveat: ErrNoActiveSession.Error(),
		}, nil
	}

	endTime := now
	session.EndTime = &endTime
	session.DurationInSeconds = int64(math.Round(endTime.Sub(session.StartTime).Seconds()))

	// The caller may hand back the full path it accumulated; otherwise the
	// server-side path stands as-is.
	if len(req.Path) > 0 {
		session.Path = req.Path
	}

	final := finalPoint(req, device, session)
	if final != nil {
		session.EndAddress = s.geocoder.ResolveAddress(ctx, final.Lat, final.Lng)
	} else {
		session.EndAddress = domain.AddressUnavailable
	}

	if err := s.sessions.Update(session); err != nil {
		return nil, err
	}

	if err := s.deactivate(device, final, now); err != nil {
		return nil, err
	}

	return &domain.StopFlightResult{Device: device, Session: session}, nil
}

// History returns the device's closed and open sessions, newest first.
func (s *FlightService) History(deviceID string) ([]*domain.FlightSession, error) {
	if _, err := s.findDevice(deviceID); err != nil {
		return nil, err
	}
	return s.sessions.ListByDevice(deviceID)
}

func (s *FlightService) findDevice(deviceID string) (*domain.Device, error) {
	device, err := s.devices.FindByID(deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return device, nil
}

func (s *FlightService) deactivate(device *domain.Device, location *domain.GeoPoint, now time.Time) error {
	device.Status = domain.StatusInactive
	if location != nil {
		device.Location = location
	}

	if err := s.devices.Update(device); err != nil {
		return err
	}

	s.publisher.PublishStatusUpdate(domain.StatusUpdateEvent{
		DeviceID:  device.ID,
		Status:    device.Status,
		Timestamp: now,
	})

	return nil
}

// finalPoint picks the end-of-flight location: the caller-supplied point
// wins, then the device's last known location, then the tail of the path.
func finalPoint(req *domain.StopFlightRequest, device *domain.Device, session *domain.FlightSession) *domain.GeoPoint {
	if req.Location != nil {
		return req.Location
	}
	if device.Location != nil {
		return device.Location
	}
	if len(session.Path) > 0 {
		p := session.Path[len(session.Path)-1]
		return &p
	}
	return nil
}
