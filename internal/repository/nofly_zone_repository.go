package repository

import (
	"context"
	"fmt"
	"sort"

	"uav-fleet-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type NoFlyZoneRepository interface {
	Create(zone *domain.NoFlyZone) error
	FindByID(id string) (*domain.NoFlyZone, error)
	Update(zone *domain.NoFlyZone) error
	Delete(id string) error
	ListActive() ([]*domain.NoFlyZone, error)
	ListAll() ([]*domain.NoFlyZone, error)
}

type noFlyZoneRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoFlyZoneRepository(client *kivik.Client, dbName string) NoFlyZoneRepository {
	return &noFlyZoneRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *noFlyZoneRepository) Create(zone *domain.NoFlyZone) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("zone:%s", zone.ID)
	rev, err := db.Put(context.Background(), docID, zone)
	if err != nil {
		return fmt.Errorf("failed to create no-fly zone: %w", err)
	}
	zone.Rev = rev

	return nil
}

func (r *noFlyZoneRepository) FindByID(id string) (*domain.NoFlyZone, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("zone:%s", id)
	row := db.Get(context.Background(), docID)

	var zone domain.NoFlyZone
	if err := row.ScanDoc(&zone); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, fmt.Errorf("no-fly zone %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find no-fly zone: %w", err)
	}

	return &zone, nil
}

func (r *noFlyZoneRepository) Update(zone *domain.NoFlyZone) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("zone:%s", zone.ID)
	rev, err := db.Put(context.Background(), docID, zone)
	if err != nil {
		return fmt.Errorf("failed to update no-fly zone: %w", err)
	}
	zone.Rev = rev

	return nil
}

func (r *noFlyZoneRepository) Delete(id string) error {
	zone, err := r.FindByID(id)
	if err != nil {
		return err
	}

	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("zone:%s", id)
	if _, err := db.Delete(context.Background(), docID, zone.Rev); err != nil {
		return fmt.Errorf("failed to delete no-fly zone: %w", err)
	}

	return nil
}

// ListActive returns zones that participate in breach checks, in creation
// order. The order matters: the breach scan is first-match-wins.
func (r *noFlyZoneRepository) ListActive() ([]*domain.NoFlyZone, error) {
	return r.find(map[string]interface{}{
		"shape":     map[string]interface{}{"$exists": true},
		"is_active": true,
	})
}

func (r *noFlyZoneRepository) ListAll() ([]*domain.NoFlyZone, error) {
	return r.find(map[string]interface{}{
		"shape": map[string]interface{}{"$exists": true},
	})
}

func (r *noFlyZoneRepository) find(selector map[string]interface{}) ([]*domain.NoFlyZone, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(context.Background(), map[string]interface{}{"selector": selector})
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list no-fly zones: %w", err)
	}
	defer rows.Close()

	var zones []*domain.NoFlyZone
	for rows.Next() {
		var zone domain.NoFlyZone
		if err := rows.ScanDoc(&zone); err != nil {
			continue // Skip malformed docs
		}
		zones = append(zones, &zone)
	}

	sort.Slice(zones, func(i, j int) bool {
		return zones[i].CreatedAt.Before(zones[j].CreatedAt)
	})

	return zones, nil
}
