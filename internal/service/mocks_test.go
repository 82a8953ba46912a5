package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/repository"
)

// The mocks copy documents on every read and write, like the real kivik
// repositories that deserialize a fresh document per call. Without this,
// in-place mutations by a service would "persist" even when Update fails.
func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func copyDevice(d *domain.Device) *domain.Device {
	c := *d
	if d.Location != nil {
		loc := *d.Location
		c.Location = &loc
	}
	return &c
}

func copySession(s *domain.FlightSession) *domain.FlightSession {
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	c.Path = append([]domain.GeoPoint(nil), s.Path...)
	return &c
}

func copyZone(z *domain.NoFlyZone) *domain.NoFlyZone {
	c := *z
	if z.Center != nil {
		center := *z.Center
		c.Center = &center
	}
	c.Path = append([]domain.GeoPoint(nil), z.Path...)
	return &c
}

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *mockUserRepository) FindByEmail(email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
}

func (m *mockUserRepository) FindByID(id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return copyUser(user), nil
	}
	return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
}

func (m *mockUserRepository) FindByUsername(username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return copyUser(user), nil
		}
	}
	return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
}

func (m *mockUserRepository) List() ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []*domain.User
	for _, user := range m.users {
		users = append(users, copyUser(user))
	}
	return users, nil
}

func (m *mockUserRepository) Update(user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *mockUserRepository) EmailExists(email string) (bool, error) {
	_, err := m.FindByEmail(email)
	return err == nil, nil
}

func (m *mockUserRepository) UsernameExists(username string) (bool, error) {
	_, err := m.FindByUsername(username)
	return err == nil, nil
}

type mockDeviceRepository struct {
	mu      sync.Mutex
	devices map[string]*domain.Device

	// Devices whose Update calls should fail, for failure-isolation tests.
	failUpdate map[string]bool
}

func newMockDeviceRepository() *mockDeviceRepository {
	return &mockDeviceRepository{
		devices:    make(map[string]*domain.Device),
		failUpdate: make(map[string]bool),
	}
}

func (m *mockDeviceRepository) Create(device *domain.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.ID] = copyDevice(device)
	return nil
}

func (m *mockDeviceRepository) FindByID(id string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if device, ok := m.devices[id]; ok {
		return copyDevice(device), nil
	}
	return nil, fmt.Errorf("device %s: %w", id, repository.ErrNotFound)
}

func (m *mockDeviceRepository) FindByDeviceID(deviceID string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, device := range m.devices {
		if device.DeviceID == deviceID {
			return copyDevice(device), nil
		}
	}
	return nil, fmt.Errorf("device %s: %w", deviceID, repository.ErrNotFound)
}

func (m *mockDeviceRepository) List() ([]*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var devices []*domain.Device
	for _, device := range m.devices {
		devices = append(devices, copyDevice(device))
	}
	return devices, nil
}

func (m *mockDeviceRepository) ListByOwner(ownerID string) ([]*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var devices []*domain.Device
	for _, device := range m.devices {
		if device.OwnerID == ownerID {
			devices = append(devices, copyDevice(device))
		}
	}
	return devices, nil
}

func (m *mockDeviceRepository) Update(device *domain.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate[device.ID] {
		return fmt.Errorf("update failed for %s", device.ID)
	}
	m.devices[device.ID] = copyDevice(device)
	return nil
}

func (m *mockDeviceRepository) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return fmt.Errorf("device %s: %w", id, repository.ErrNotFound)
	}
	delete(m.devices, id)
	return nil
}

func (m *mockDeviceRepository) FindStaleActive(cutoff time.Time) ([]*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []*domain.Device
	for _, device := range m.devices {
		if device.Status == domain.StatusActive && !device.LastHeartbeat.After(cutoff) {
			stale = append(stale, copyDevice(device))
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID < stale[j].ID })
	return stale, nil
}

type mockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.FlightSession
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{
		sessions: make(map[string]*domain.FlightSession),
	}
}

func (m *mockSessionRepository) Create(session *domain.FlightSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *mockSessionRepository) FindByID(id string) (*domain.FlightSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		return copySession(session), nil
	}
	return nil, fmt.Errorf("session %s: %w", id, repository.ErrNotFound)
}

func (m *mockSessionRepository) FindOpenByDevice(deviceID string) (*domain.FlightSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.DeviceID == deviceID && session.Open() {
			return copySession(session), nil
		}
	}
	return nil, fmt.Errorf("open session for device %s: %w", deviceID, repository.ErrNotFound)
}

func (m *mockSessionRepository) Update(session *domain.FlightSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *mockSessionRepository) AppendPoint(sessionID string, point domain.GeoPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, repository.ErrNotFound)
	}
	session.Path = append(session.Path, point)
	return nil
}

func (m *mockSessionRepository) SetStartAddress(sessionID, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, repository.ErrNotFound)
	}
	session.StartAddress = address
	return nil
}

func (m *mockSessionRepository) ListByDevice(deviceID string) ([]*domain.FlightSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sessions []*domain.FlightSession
	for _, session := range m.sessions {
		if session.DeviceID == deviceID {
			sessions = append(sessions, copySession(session))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

func (m *mockSessionRepository) DeleteByDevice(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		if session.DeviceID == deviceID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *mockSessionRepository) openCount(deviceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, session := range m.sessions {
		if session.DeviceID == deviceID && session.Open() {
			count++
		}
	}
	return count
}

type mockZoneRepository struct {
	mu    sync.Mutex
	zones []*domain.NoFlyZone

	activeCalls int
}

func newMockZoneRepository() *mockZoneRepository {
	return &mockZoneRepository{}
}

func (m *mockZoneRepository) Create(zone *domain.NoFlyZone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = append(m.zones, copyZone(zone))
	return nil
}

func (m *mockZoneRepository) FindByID(id string) (*domain.NoFlyZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, zone := range m.zones {
		if zone.ID == id {
			return copyZone(zone), nil
		}
	}
	return nil, fmt.Errorf("zone %s: %w", id, repository.ErrNotFound)
}

func (m *mockZoneRepository) Update(updated *domain.NoFlyZone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, zone := range m.zones {
		if zone.ID == updated.ID {
			m.zones[i] = copyZone(updated)
			return nil
		}
	}
	return fmt.Errorf("zone %s: %w", updated.ID, repository.ErrNotFound)
}

func (m *mockZoneRepository) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, zone := range m.zones {
		if zone.ID == id {
			m.zones = append(m.zones[:i], m.zones[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("zone %s: %w", id, repository.ErrNotFound)
}

func (m *mockZoneRepository) ListActive() ([]*domain.NoFlyZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeCalls++
	var active []*domain.NoFlyZone
	for _, zone := range m.zones {
		if zone.IsActive {
			active = append(active, zone)
		}
	}
	return active, nil
}

func (m *mockZoneRepository) ListAll() ([]*domain.NoFlyZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.NoFlyZone(nil), m.zones...), nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu              sync.Mutex
	locationUpdates []domain.LocationUpdateEvent
	statusUpdates   []domain.StatusUpdateEvent
	breaches        []domain.BreachEvent
	notices         []domain.UserNoticeEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{}
}

func (p *recordingPublisher) PublishLocationUpdate(event domain.LocationUpdateEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locationUpdates = append(p.locationUpdates, event)
}

func (p *recordingPublisher) PublishStatusUpdate(event domain.StatusUpdateEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusUpdates = append(p.statusUpdates, event)
}

func (p *recordingPublisher) PublishBreach(event domain.BreachEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breaches = append(p.breaches, event)
}

func (p *recordingPublisher) PublishUserNotice(event domain.UserNoticeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, event)
}

func (p *recordingPublisher) breachCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.breaches)
}

func (p *recordingPublisher) statusUpdateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.statusUpdates)
}

// stubGeocoder returns a fixed address without any network access.
type stubGeocoder struct {
	address string
}

func (g *stubGeocoder) ResolveAddress(ctx context.Context, lat, lng float64) string {
	return g.address
}
