package service

import (
	"errors"
	"testing"

	"uav-fleet-server/internal/domain"
)

func TestDeviceService_Register(t *testing.T) {
	repo := newMockDeviceRepository()
	service := NewDeviceService(repo)

	device, err := service.Register("owner-1", &domain.RegisterDeviceRequest{
		DeviceID: "DRONE-001",
		Name:     "Surveyor",
		Protocol: "dji_json_v1",
	})
	if err != nil {
		t.Fatalf("Register() unexpected error = %v", err)
	}

	if device.Status != domain.StatusAwaitingConnection {
		t.Errorf("device status = %v, want %v", device.Status, domain.StatusAwaitingConnection)
	}
	if device.OwnerID != "owner-1" {
		t.Errorf("device owner = %v, want owner-1", device.OwnerID)
	}
	if device.ID == "" {
		t.Error("Register() must assign an internal ID")
	}

	_, err = service.Register("owner-2", &domain.RegisterDeviceRequest{
		DeviceID: "DRONE-001",
		Name:     "Copycat",
		Protocol: "standard_gps",
	})
	if !errors.Is(err, ErrDeviceIDTaken) {
		t.Errorf("Register() duplicate error = %v, want %v", err, ErrDeviceIDTaken)
	}
}

func TestDeviceService_Get(t *testing.T) {
	repo := newMockDeviceRepository()
	service := NewDeviceService(repo)

	device := testDevice(domain.StatusInactive)
	repo.Create(device)

	got, err := service.Get(device.OwnerID, device.ID)
	if err != nil {
		t.Fatalf("Get() unexpected error = %v", err)
	}
	if got.ID != device.ID {
		t.Errorf("Get() = %v, want %v", got.ID, device.ID)
	}

	if _, err := service.Get("someone-else", device.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Get() foreign owner error = %v, want %v", err, ErrNotOwner)
	}

	if _, err := service.Get(device.OwnerID, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() missing device error = %v, want %v", err, ErrDeviceNotFound)
	}
}
