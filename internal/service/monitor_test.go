package service

import (
	"context"
	"testing"
	"time"

	"uav-fleet-server/internal/domain"
)

func newMonitorFixture() (*Monitor, *mockDeviceRepository, *mockSessionRepository, *recordingPublisher) {
	devices := newMockDeviceRepository()
	sessions := newMockSessionRepository()
	publisher := newRecordingPublisher()

	monitor := NewMonitor(
		devices,
		sessions,
		&stubGeocoder{address: "Last Known Street"},
		publisher,
		NewDeviceLocks(),
		time.Minute,   // period, unused: tests call Sweep directly
		5*time.Minute, // threshold
		time.Second,   // epsilon
	)

	return monitor, devices, sessions, publisher
}

func TestMonitor_SweepClosesStaleDevice(t *testing.T) {
	monitor, devices, sessions, publisher := newMonitorFixture()

	lastHeartbeat := time.Now().Add(-10 * time.Minute)
	device := testDevice(domain.StatusActive)
	device.LastHeartbeat = lastHeartbeat
	devices.Create(device)

	start := lastHeartbeat.Add(-2 * time.Minute)
	sessions.Create(&domain.FlightSession{
		ID:        "sess-1",
		DeviceID:  device.ID,
		StartTime: start,
		Path:      []domain.GeoPoint{{Lat: 21.0, Lng: 105.8}},
	})

	monitor.Sweep(context.Background())

	session, _ := sessions.FindByID("sess-1")
	if session.Open() {
		t.Fatal("Sweep() must close the stale session")
	}

	wantEnd := lastHeartbeat.Add(time.Second)
	if !session.EndTime.Equal(wantEnd) {
		t.Errorf("session end time = %v, want last heartbeat + epsilon (%v)", session.EndTime, wantEnd)
	}
	if session.DurationInSeconds != 121 {
		t.Errorf("session duration = %d, want 121", session.DurationInSeconds)
	}
	if session.EndAddress != "Last Known Street" {
		t.Errorf("session end address = %q, want resolved address", session.EndAddress)
	}

	stored, _ := devices.FindByID(device.ID)
	if stored.Status != domain.StatusInactive {
		t.Errorf("device status = %v, want %v", stored.Status, domain.StatusInactive)
	}

	if publisher.statusUpdateCount() != 1 {
		t.Errorf("published %d status updates, want 1", publisher.statusUpdateCount())
	}
}

func TestMonitor_SweepSkipsFreshDevice(t *testing.T) {
	monitor, devices, sessions, publisher := newMonitorFixture()

	device := testDevice(domain.StatusActive)
	device.LastHeartbeat = time.Now().Add(-30 * time.Second)
	devices.Create(device)

	sessions.Create(&domain.FlightSession{
		ID:        "sess-1",
		DeviceID:  device.ID,
		StartTime: time.Now().Add(-time.Minute),
	})

	monitor.Sweep(context.Background())

	session, _ := sessions.FindByID("sess-1")
	if !session.Open() {
		t.Error("Sweep() must not close a session for a fresh device")
	}

	stored, _ := devices.FindByID(device.ID)
	if stored.Status != domain.StatusActive {
		t.Errorf("device status = %v, want %v", stored.Status, domain.StatusActive)
	}

	if publisher.statusUpdateCount() != 0 {
		t.Errorf("published %d status updates, want 0", publisher.statusUpdateCount())
	}
}

func TestMonitor_SweepNormalizesDeviceWithoutSession(t *testing.T) {
	monitor, devices, _, publisher := newMonitorFixture()

	device := testDevice(domain.StatusActive)
	device.LastHeartbeat = time.Now().Add(-time.Hour)
	devices.Create(device)

	monitor.Sweep(context.Background())

	stored, _ := devices.FindByID(device.ID)
	if stored.Status != domain.StatusInactive {
		t.Errorf("device status = %v, want %v", stored.Status, domain.StatusInactive)
	}
	if publisher.statusUpdateCount() != 1 {
		t.Errorf("published %d status updates, want 1", publisher.statusUpdateCount())
	}
}

func TestMonitor_SweepIsolatesFailures(t *testing.T) {
	monitor, devices, sessions, _ := newMonitorFixture()

	stale := time.Now().Add(-time.Hour)

	broken := testDevice(domain.StatusActive)
	broken.ID = "dev-broken"
	broken.DeviceID = "DRONE-BROKEN"
	broken.LastHeartbeat = stale
	devices.Create(broken)
	devices.failUpdate[broken.ID] = true

	healthy := testDevice(domain.StatusActive)
	healthy.ID = "dev-healthy"
	healthy.DeviceID = "DRONE-HEALTHY"
	healthy.LastHeartbeat = stale
	devices.Create(healthy)

	sessions.Create(&domain.FlightSession{
		ID:        "sess-healthy",
		DeviceID:  healthy.ID,
		StartTime: stale.Add(-time.Minute),
		Path:      []domain.GeoPoint{{Lat: 21.0, Lng: 105.8}},
	})

	monitor.Sweep(context.Background())

	// The failing device must not prevent the healthy one from closing.
	session, _ := sessions.FindByID("sess-healthy")
	if session.Open() {
		t.Error("Sweep() must close the healthy device's session despite another device failing")
	}

	stored, _ := devices.FindByID(healthy.ID)
	if stored.Status != domain.StatusInactive {
		t.Errorf("healthy device status = %v, want %v", stored.Status, domain.StatusInactive)
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	monitor, _, _, _ := newMonitorFixture()
	monitor.period = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}
}
