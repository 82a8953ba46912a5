package service

import (
	"errors"
	"time"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/repository"
)

// AdminService backs the operator dashboard: fleet-wide stats, lock
// toggles, cascade deletion and direct user notices.
type AdminService struct {
	users     repository.UserRepository
	devices   repository.DeviceRepository
	sessions  repository.FlightSessionRepository
	publisher EventPublisher
}

func NewAdminService(
	users repository.UserRepository,
	devices repository.DeviceRepository,
	sessions repository.FlightSessionRepository,
	publisher EventPublisher,
) *AdminService {
	return &AdminService{
		users:     users,
		devices:   devices,
		sessions:  sessions,
		publisher: publisher,
	}
}

func (s *AdminService) Stats() (*domain.AdminStats, error) {
	users, err := s.users.List()
	if err != nil {
		return nil, err
	}

	devices, err := s.devices.List()
	if err != nil {
		return nil, err
	}

	stats := &domain.AdminStats{
		UserCount:   len(users),
		DeviceCount: len(devices),
	}
	for _, d := range devices {
		switch d.Status {
		case domain.StatusActive:
			stats.FlyingCount++
		case domain.StatusAwaitingConnection:
			stats.AwaitingCount++
		}
	}

	return stats, nil
}

func (s *AdminService) ListUsers() ([]*domain.User, error) {
	return s.users.List()
}

func (s *AdminService) ToggleUserLock(id string) (*domain.User, error) {
	user, err := s.users.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.IsLocked = !user.IsLocked
	user.UpdatedAt = time.Now()

	if err := s.users.Update(user); err != nil {
		return nil, err
	}

	user.Password = ""
	return user, nil
}

func (s *AdminService) ListDevices() ([]*domain.Device, error) {
	return s.devices.List()
}

// ToggleDeviceLock flips the administrative lock. A locked device rejects
// telemetry and flight starts until unlocked.
func (s *AdminService) ToggleDeviceLock(id string) (*domain.Device, error) {
	device, err := s.devices.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	device.IsLocked = !device.IsLocked

	if err := s.devices.Update(device); err != nil {
		return nil, err
	}

	return device, nil
}

// DeleteDevice removes a device and cascades to its flight sessions, so no
// session is left referencing a deleted device.
func (s *AdminService) DeleteDevice(id string) error {
	if err := s.devices.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDeviceNotFound
		}
		return err
	}

	return s.sessions.DeleteByDevice(id)
}

// NotifyUser pushes an administrator message to one user's connections.
func (s *AdminService) NotifyUser(req *domain.NotifyUserRequest) {
	s.publisher.PublishUserNotice(domain.UserNoticeEvent{
		UserID:     req.UserID,
		Sender:     "Administrator",
		Message:    req.Message,
		DeviceName: req.DeviceName,
		ZoneName:   req.ZoneName,
		Timestamp:  time.Now(),
	})
}
