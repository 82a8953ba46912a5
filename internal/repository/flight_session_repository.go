package repository

import (
	"context"
	"fmt"
	"sort"

	"uav-fleet-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type FlightSessionRepository interface {
	Create(session *domain.FlightSession) error
	FindByID(id string) (*domain.FlightSession, error)
	FindOpenByDevice(deviceID string) (*domain.FlightSession, error)
	Update(session *domain.FlightSession) error
	AppendPoint(sessionID string, point domain.GeoPoint) error
	SetStartAddress(sessionID, address string) error
	ListByDevice(deviceID string) ([]*domain.FlightSession, error)
	DeleteByDevice(deviceID string) error
}

type flightSessionRepository struct {
	client *kivik.Client
	dbName string
}

func NewFlightSessionRepository(client *kivik.Client, dbName string) FlightSessionRepository {
	return &flightSessionRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *flightSessionRepository) Create(session *domain.FlightSession) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("session:%s", session.ID)
	rev, err := db.Put(context.Background(), docID, session)
	if err != nil {
		return fmt.Errorf("failed to create flight session: %w", err)
	}
	session.Rev = rev

	return nil
}

func (r *flightSessionRepository) FindByID(id string) (*domain.FlightSession, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("session:%s", id)
	row := db.Get(context.Background(), docID)

	var session domain.FlightSession
	if err := row.ScanDoc(&session); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, fmt.Errorf("flight session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find flight session: %w", err)
	}

	return &session, nil
}

// FindOpenByDevice returns the device's session with no end timestamp.
// ErrNotFound when the device has no open session.
func (r *flightSessionRepository) FindOpenByDevice(deviceID string) (*domain.FlightSession, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"device_id":  deviceID,
			"start_time": map[string]interface{}{"$exists": true},
			"end_time":   map[string]interface{}{"$exists": false},
		},
		"limit": 1,
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query open session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("open session for device %s: %w", deviceID, ErrNotFound)
	}

	var session domain.FlightSession
	if err := rows.ScanDoc(&session); err != nil {
		return nil, fmt.Errorf("failed to scan flight session: %w", err)
	}

	return &session, nil
}

func (r *flightSessionRepository) Update(session *domain.FlightSession) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("session:%s", session.ID)
	rev, err := db.Put(context.Background(), docID, session)
	if err != nil {
		return fmt.Errorf("failed to update flight session: %w", err)
	}
	session.Rev = rev

	return nil
}

// AppendPoint adds one point to the session path. The path is append-only
// while the session is open.
func (r *flightSessionRepository) AppendPoint(sessionID string, point domain.GeoPoint) error {
	session, err := r.FindByID(sessionID)
	if err != nil {
		return err
	}

	session.Path = append(session.Path, point)
	return r.Update(session)
}

func (r *flightSessionRepository) SetStartAddress(sessionID, address string) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("session:%s", sessionID)

	var rawDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&rawDoc); err != nil {
		return err
	}

	rawDoc["start_address"] = address

	if _, err := db.Put(context.Background(), docID, rawDoc); err != nil {
		return fmt.Errorf("failed to set start address: %w", err)
	}

	return nil
}

// ListByDevice returns the device's flight history, newest first.
func (r *flightSessionRepository) ListByDevice(deviceID string) ([]*domain.FlightSession, error) {
	sessions, err := r.findByDevice(deviceID)
	if err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})

	return sessions, nil
}

// DeleteByDevice removes every session of a device. Used by the cascade
// when a device is deleted.
func (r *flightSessionRepository) DeleteByDevice(deviceID string) error {
	sessions, err := r.findByDevice(deviceID)
	if err != nil {
		return err
	}

	db := r.client.DB(r.dbName)
	for _, session := range sessions {
		docID := fmt.Sprintf("session:%s", session.ID)
		if _, err := db.Delete(context.Background(), docID, session.Rev); err != nil {
			return fmt.Errorf("failed to delete flight session %s: %w", session.ID, err)
		}
	}

	return nil
}

func (r *flightSessionRepository) findByDevice(deviceID string) ([]*domain.FlightSession, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"device_id":  deviceID,
			"start_time": map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list flight sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.FlightSession
	for rows.Next() {
		var session domain.FlightSession
		if err := rows.ScanDoc(&session); err != nil {
			continue // Skip malformed docs
		}
		sessions = append(sessions, &session)
	}

	return sessions, nil
}
