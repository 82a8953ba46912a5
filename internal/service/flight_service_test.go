package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"uav-fleet-server/internal/domain"
)

func newFlightFixture() (*FlightService, *mockDeviceRepository, *mockSessionRepository, *recordingPublisher) {
	devices := newMockDeviceRepository()
	sessions := newMockSessionRepository()
	publisher := newRecordingPublisher()

	service := NewFlightService(
		devices,
		sessions,
		&stubGeocoder{address: "Landing Zone 5"},
		publisher,
		NewDeviceLocks(),
	)

	return service, devices, sessions, publisher
}

func TestFlightService_Start(t *testing.T) {
	service, devices, sessions, publisher := newFlightFixture()

	device := testDevice(domain.StatusAwaitingConnection)
	device.Location = &domain.GeoPoint{Lat: 21.0, Lng: 105.8}
	devices.Create(device)

	session, err := service.Start(context.Background(), device.ID)
	if err != nil {
		t.Fatalf("Start() unexpected error = %v", err)
	}

	if !session.Open() {
		t.Error("Start() session must be open")
	}
	if len(session.Path) != 1 {
		t.Errorf("session path length = %d, want 1 (device location)", len(session.Path))
	}

	stored, _ := devices.FindByID(device.ID)
	if stored.Status != domain.StatusActive {
		t.Errorf("device status = %v, want %v", stored.Status, domain.StatusActive)
	}

	if publisher.statusUpdateCount() != 1 {
		t.Errorf("published %d status updates, want 1", publisher.statusUpdateCount())
	}

	if _, err := service.Start(context.Background(), device.ID); !errors.Is(err, ErrAlreadyFlying) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyFlying)
	}

	if count := sessions.openCount(device.ID); count != 1 {
		t.Errorf("open session count = %d, want 1", count)
	}
}

func TestFlightService_Start_LockedDevice(t *testing.T) {
	service, devices, _, _ := newFlightFixture()

	device := testDevice(domain.StatusAwaitingConnection)
	device.IsLocked = true
	devices.Create(device)

	if _, err := service.Start(context.Background(), device.ID); !errors.Is(err, ErrDeviceLocked) {
		t.Errorf("Start() error = %v, want %v", err, ErrDeviceLocked)
	}
}

func TestFlightService_Start_RetryAfterFailedUpdate(t *testing.T) {
	service, devices, sessions, _ := newFlightFixture()

	device := testDevice(domain.StatusAwaitingConnection)
	device.Location = &domain.GeoPoint{Lat: 21.0, Lng: 105.8}
	devices.Create(device)

	devices.failUpdate[device.ID] = true
	if _, err := service.Start(context.Background(), device.ID); err == nil {
		t.Fatal("Start() with failing device update must return an error")
	}

	// The device transition never persisted, so no session may exist yet.
	if count := sessions.openCount(device.ID); count != 0 {
		t.Fatalf("open session count after failed start = %d, want 0", count)
	}

	delete(devices.failUpdate, device.ID)
	session, err := service.Start(context.Background(), device.ID)
	if err != nil {
		t.Fatalf("retried Start() unexpected error = %v", err)
	}
	if !session.Open() {
		t.Error("retried Start() session must be open")
	}

	if count := sessions.openCount(device.ID); count != 1 {
		t.Errorf("open session count = %d, want 1", count)
	}
}

func TestFlightService_Start_AdoptsOrphanSession(t *testing.T) {
	service, devices, sessions, publisher := newFlightFixture()

	// An inactive device with an open session left behind by an interrupted
	// transition: start must finish the transition, not open a second session.
	device := testDevice(domain.StatusInactive)
	devices.Create(device)

	sessions.Create(&domain.FlightSession{
		ID:           "sess-orphan",
		DeviceID:     device.ID,
		StartTime:    time.Now().Add(-time.Minute),
		StartAddress: "Takeoff Pad",
		EndAddress:   domain.AddressNotEnded,
	})

	session, err := service.Start(context.Background(), device.ID)
	if err != nil {
		t.Fatalf("Start() unexpected error = %v", err)
	}

	if session.ID != "sess-orphan" {
		t.Errorf("Start() session = %s, want the existing open session", session.ID)
	}
	if count := sessions.openCount(device.ID); count != 1 {
		t.Errorf("open session count = %d, want 1", count)
	}

	stored, _ := devices.FindByID(device.ID)
	if stored.Status != domain.StatusActive {
		t.Errorf("device status = %v, want %v", stored.Status, domain.StatusActive)
	}
	if publisher.statusUpdateCount() != 1 {
		t.Errorf("published %d status updates, want 1", publisher.statusUpdateCount())
	}
}

func TestFlightService_Stop(t *testing.T) {
	service, devices, sessions, _ := newFlightFixture()

	device := testDevice(domain.StatusActive)
	device.Location = &domain.GeoPoint{Lat: 21.0005, Lng: 105.8005}
	devices.Create(device)

	start := time.Now().Add(-90 * time.Second)
	sessions.Create(&domain.FlightSession{
		ID:           "sess-1",
		DeviceID:     device.ID,
		StartTime:    start,
		StartAddress: "Takeoff Pad",
		EndAddress:   domain.AddressNotEnded,
		Path:         []domain.GeoPoint{{Lat: 21.0, Lng: 105.8}},
	})

	result, err := service.Stop(context.Background(), device.ID, &domain.StopFlightRequest{})
	if err != nil {
		t.Fatalf("Stop() unexpected error = %v", err)
	}

	if result.Caveat != "" {
		t.Errorf("Stop() caveat = %q, want none", result.Caveat)
	}
	if result.Session == nil || result.Session.Open() {
		t.Fatal("Stop() session must be closed")
	}
	if result.Session.DurationInSeconds < 89 || result.Session.DurationInSeconds > 91 {
		t.Errorf("session duration = %d, want ~90", result.Session.DurationInSeconds)
	}
	if result.Session.EndAddress != "Landing Zone 5" {
		t.Errorf("session end address = %q, want resolved address", result.Session.EndAddress)
	}

	if result.Device.Status != domain.StatusInactive {
		t.Errorf("device status = %v, want %v", result.Device.Status, domain.StatusInactive)
	}
}

func TestFlightService_Stop_ReplacesPath(t *testing.T) {
	service, devices, sessions, _ := newFlightFixture()

	device := testDevice(domain.StatusActive)
	devices.Create(device)

	sessions.Create(&domain.FlightSession{
		ID:        "sess-1",
		DeviceID:  device.ID,
		StartTime: time.Now().Add(-time.Minute),
		Path:      []domain.GeoPoint{{Lat: 21.0, Lng: 105.8}},
	})

	fullPath := []domain.GeoPoint{
		{Lat: 21.0, Lng: 105.8},
		{Lat: 21.001, Lng: 105.801},
		{Lat: 21.002, Lng: 105.802},
	}

	result, err := service.Stop(context.Background(), device.ID, &domain.StopFlightRequest{
		Location: &fullPath[len(fullPath)-1],
		Path:     fullPath,
	})
	if err != nil {
		t.Fatalf("Stop() unexpected error = %v", err)
	}

	if len(result.Session.Path) != len(fullPath) {
		t.Errorf("session path length = %d, want %d (caller path wins)", len(result.Session.Path), len(fullPath))
	}

	stored, _ := devices.FindByID(device.ID)
	if stored.Location == nil || stored.Location.Lat != 21.002 {
		t.Errorf("device location = %v, want the stop location", stored.Location)
	}
}

func TestFlightService_Stop_NoOpenSession(t *testing.T) {
	service, devices, _, publisher := newFlightFixture()

	// Device stuck active with no session; stop must normalize, not fail.
	device := testDevice(domain.StatusActive)
	devices.Create(device)

	for i := 0; i < 2; i++ {
		result, err := service.Stop(context.Background(), device.ID, &domain.StopFlightRequest{})
		if err != nil {
			t.Fatalf("Stop() #%d unexpected error = %v", i, err)
		}
		if result.Caveat == "" {
			t.Errorf("Stop() #%d caveat empty, want %q", i, ErrNoActiveSession.Error())
		}
		if result.Session != nil {
			t.Errorf("Stop() #%d session = %v, want nil", i, result.Session)
		}
		if result.Device.Status != domain.StatusInactive {
			t.Errorf("Stop() #%d device status = %v, want %v", i, result.Device.Status, domain.StatusInactive)
		}
	}

	if publisher.statusUpdateCount() != 2 {
		t.Errorf("published %d status updates, want 2", publisher.statusUpdateCount())
	}
}

func TestFlightService_History(t *testing.T) {
	service, devices, sessions, _ := newFlightFixture()

	device := testDevice(domain.StatusInactive)
	devices.Create(device)

	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-time.Hour)
	end := older.Add(10 * time.Minute)
	sessions.Create(&domain.FlightSession{ID: "s1", DeviceID: device.ID, StartTime: older, EndTime: &end})
	sessions.Create(&domain.FlightSession{ID: "s2", DeviceID: device.ID, StartTime: newer})
	sessions.Create(&domain.FlightSession{ID: "s3", DeviceID: "other-device", StartTime: newer})

	history, err := service.History(device.ID)
	if err != nil {
		t.Fatalf("History() unexpected error = %v", err)
	}

	if len(history) != 2 {
		t.Fatalf("History() returned %d sessions, want 2", len(history))
	}
	if history[0].ID != "s2" || history[1].ID != "s1" {
		t.Errorf("History() order = [%s %s], want newest first", history[0].ID, history[1].ID)
	}

	if _, err := service.History("missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("History() error = %v, want %v", err, ErrDeviceNotFound)
	}
}
