package service

import (
	"errors"
	"sync"
	"time"

	"uav-fleet-server/internal/domain"
	"uav-fleet-server/internal/geo"
	"uav-fleet-server/internal/repository"

	"github.com/google/uuid"
)

// ZoneService is the geofence registry. It caches the active zone set and
// invalidates the cache on every mutation, so breach checks see zone
// create/update/delete within the same process without a restart. All zone
// mutation flows through here.
type ZoneService struct {
	repo repository.NoFlyZoneRepository

	mu     sync.RWMutex
	cache  []*domain.NoFlyZone
	cached bool
}

func NewZoneService(repo repository.NoFlyZoneRepository) *ZoneService {
	return &ZoneService{repo: repo}
}

// ActiveZones returns the zones participating in breach checks, in creation
// order.
func (s *ZoneService) ActiveZones() ([]*domain.NoFlyZone, error) {
	s.mu.RLock()
	if s.cached {
		zones := s.cache
		s.mu.RUnlock()
		return zones, nil
	}
	s.mu.RUnlock()

	zones, err := s.repo.ListActive()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = zones
	s.cached = true
	s.mu.Unlock()

	return zones, nil
}

func (s *ZoneService) invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.cached = false
	s.mu.Unlock()
}

// BreachingZone returns the first zone containing the point, or nil. The
// scan is first-match-wins: overlapping zones report only the one created
// earliest. Zones with malformed geometry never match.
func (s *ZoneService) BreachingZone(point domain.GeoPoint, zones []*domain.NoFlyZone) *domain.NoFlyZone {
	for _, zone := range zones {
		switch zone.Shape {
		case domain.ShapeCircle:
			if zone.Center == nil || zone.Radius < 0 {
				continue
			}
			if geo.PointInCircle(point, *zone.Center, zone.Radius) {
				return zone
			}
		case domain.ShapePolygon:
			// rings with <3 vertices are never inside
			if geo.PointInPolygon(point, zone.Path) {
				return zone
			}
		}
	}
	return nil
}

func (s *ZoneService) Create(req *domain.CreateZoneRequest) (*domain.NoFlyZone, error) {
	if err := validateGeometry(req.Shape, req.Center, req.Radius, req.Path); err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	zone := &domain.NoFlyZone{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		IsActive:    isActive,
		Shape:       req.Shape,
		Center:      req.Center,
		Radius:      req.Radius,
		Path:        req.Path,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.Create(zone); err != nil {
		return nil, err
	}

	s.invalidate()
	return zone, nil
}

// Update changes name, description and the active flag. Geometry is
// immutable after creation; replace the zone to reshape it.
func (s *ZoneService) Update(id string, req *domain.UpdateZoneRequest) (*domain.NoFlyZone, error) {
	zone, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrZoneNotFound
		}
		return nil, err
	}

	zone.Name = req.Name
	zone.Description = req.Description
	if req.IsActive != nil {
		zone.IsActive = *req.IsActive
	}

	if err := s.repo.Update(zone); err != nil {
		return nil, err
	}

	s.invalidate()
	return zone, nil
}

func (s *ZoneService) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrZoneNotFound
		}
		return err
	}

	s.invalidate()
	return nil
}

func (s *ZoneService) ListAll() ([]*domain.NoFlyZone, error) {
	return s.repo.ListAll()
}

func validateGeometry(shape domain.ZoneShape, center *domain.GeoPoint, radius float64, path []domain.GeoPoint) error {
	switch shape {
	case domain.ShapeCircle:
		if center == nil || radius <= 0 {
			return ErrInvalidGeometry
		}
	case domain.ShapePolygon:
		if len(path) < 3 {
			return ErrInvalidGeometry
		}
	default:
		return ErrInvalidGeometry
	}
	return nil
}
