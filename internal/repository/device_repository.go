package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"uav-fleet-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type DeviceRepository interface {
	Create(device *domain.Device) error
	FindByID(id string) (*domain.Device, error)
	FindByDeviceID(deviceID string) (*domain.Device, error)
	List() ([]*domain.Device, error)
	ListByOwner(ownerID string) ([]*domain.Device, error)
	Update(device *domain.Device) error
	Delete(id string) error
	FindStaleActive(cutoff time.Time) ([]*domain.Device, error)
}

type deviceRepository struct {
	client *kivik.Client
	dbName string
}

func NewDeviceRepository(client *kivik.Client, dbName string) DeviceRepository {
	return &deviceRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *deviceRepository) Create(device *domain.Device) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("device:%s", device.ID)
	rev, err := db.Put(context.Background(), docID, device)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	device.Rev = rev

	return nil
}

func (r *deviceRepository) FindByID(id string) (*domain.Device, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("device:%s", id)
	row := db.Get(context.Background(), docID)

	var device domain.Device
	if err := row.ScanDoc(&device); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find device: %w", err)
	}

	return &device, nil
}

func (r *deviceRepository) FindByDeviceID(deviceID string) (*domain.Device, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"device_id": deviceID,
		},
		"limit": 1,
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query device by device id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}

	var device domain.Device
	if err := rows.ScanDoc(&device); err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	return &device, nil
}

func (r *deviceRepository) List() ([]*domain.Device, error) {
	return r.find(map[string]interface{}{
		"device_id": map[string]interface{}{"$exists": true},
	})
}

func (r *deviceRepository) ListByOwner(ownerID string) ([]*domain.Device, error) {
	return r.find(map[string]interface{}{
		"device_id": map[string]interface{}{"$exists": true},
		"owner_id":  ownerID,
	})
}

// FindStaleActive returns every active device whose last heartbeat is older
// than the cutoff. This backs the liveness sweep. The heartbeat comparison
// happens here rather than in the Mango selector: RFC 3339 timestamps with
// trimmed fractional seconds do not compare correctly as strings.
func (r *deviceRepository) FindStaleActive(cutoff time.Time) ([]*domain.Device, error) {
	active, err := r.find(map[string]interface{}{
		"device_id": map[string]interface{}{"$exists": true},
		"status":    string(domain.StatusActive),
	})
	if err != nil {
		return nil, err
	}

	var stale []*domain.Device
	for _, device := range active {
		if !device.LastHeartbeat.After(cutoff) {
			stale = append(stale, device)
		}
	}

	return stale, nil
}

func (r *deviceRepository) find(selector map[string]interface{}) ([]*domain.Device, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(context.Background(), map[string]interface{}{"selector": selector})
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		var device domain.Device
		if err := rows.ScanDoc(&device); err != nil {
			continue // Skip malformed docs
		}
		devices = append(devices, &device)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].CreatedAt.Before(devices[j].CreatedAt)
	})

	return devices, nil
}

func (r *deviceRepository) Update(device *domain.Device) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("device:%s", device.ID)
	rev, err := db.Put(context.Background(), docID, device)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	device.Rev = rev

	return nil
}

func (r *deviceRepository) Delete(id string) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("device:%s", id)

	var rawDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&rawDoc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return fmt.Errorf("device %s: %w", id, ErrNotFound)
		}
		return err
	}

	rev, _ := rawDoc["_rev"].(string)
	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	return nil
}
