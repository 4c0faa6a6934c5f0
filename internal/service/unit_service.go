package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
)

type unitRepository interface {
	FindByID(ctx context.Context, id string) (*models.Unit, error)
	List(ctx context.Context, filter models.UnitFilter) ([]models.Unit, int, error)
	PrerequisiteIDs(ctx context.Context, unitID string) ([]string, error)
}

// UnitService serves the unit catalog and the prerequisite relation.
type UnitService struct {
	units unitRepository
}

// NewUnitService creates a new UnitService.
func NewUnitService(units unitRepository) *UnitService {
	return &UnitService{units: units}
}

// Get returns one unit.
func (s *UnitService) Get(ctx context.Context, id string) (*models.Unit, error) {
	unit, err := s.units.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, fmt.Errorf("find unit: %w", err)
	}
	return unit, nil
}

// List returns units matching the filter.
func (s *UnitService) List(ctx context.Context, filter models.UnitFilter) ([]models.Unit, int, error) {
	return s.units.List(ctx, filter)
}

// Prerequisites returns the direct prerequisite units of a unit.
func (s *UnitService) Prerequisites(ctx context.Context, unitID string) ([]models.Unit, error) {
	if _, err := s.Get(ctx, unitID); err != nil {
		return nil, err
	}

	ids, err := s.units.PrerequisiteIDs(ctx, unitID)
	if err != nil {
		return nil, err
	}

	prerequisites := make([]models.Unit, 0, len(ids))
	for _, id := range ids {
		unit, err := s.units.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load prerequisite %s: %w", id, err)
		}
		prerequisites = append(prerequisites, *unit)
	}
	return prerequisites, nil
}
