package service

import (
	"errors"
	"time"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/repository"

	"github.com/google/uuid"
)

type DeviceService struct {
	repo repository.DeviceRepository
}

func NewDeviceService(repo repository.DeviceRepository) *DeviceService {
	return &DeviceService{repo: repo}
}

// Register creates a device for the owner. The stable device identifier is
// assigned here and never changes; telemetry reports are matched on it.
func (s *DeviceService) Register(ownerID string, req *domain.RegisterDeviceRequest) (*domain.Device, error) {
	if _, err := s.repo.FindByDeviceID(req.DeviceID); err == nil {
		return nil, ErrDeviceIDTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	device := &domain.Device{
		ID:            uuid.New().String(),
		DeviceID:      req.DeviceID,
		Name:          req.Name,
		OwnerID:       ownerID,
		Protocol:      req.Protocol,
		Location:      req.Location,
		Status:        domain.StatusAwaitingConnection,
		LastHeartbeat: time.Now(),
		CreatedAt:     time.Now(),
	}

	if err := s.repo.Create(device); err != nil {
		return nil, err
	}

	return device, nil
}

func (s *DeviceService) ListByOwner(ownerID string) ([]*domain.Device, error) {
	return s.repo.ListByOwner(ownerID)
}

// Get returns the device after verifying it belongs to the caller. Admins
// read devices through the admin service instead.
func (s *DeviceService) Get(ownerID, id string) (*domain.Device, error) {
	device, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	if device.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	return device, nil
}
