package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-registrar-api/internal/models"
)

// UnitRepository provides read access to course units and the prerequisite
// adjacency relation.
type UnitRepository struct {
	db *sqlx.DB
}

// NewUnitRepository constructs the repository.
func NewUnitRepository(db *sqlx.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// FindByID loads a unit by identifier.
func (r *UnitRepository) FindByID(ctx context.Context, id string) (*models.Unit, error) {
	const query = `SELECT id, name, description, unit_size, created_at, updated_at FROM units WHERE id = $1`
	var unit models.Unit
	if err := r.db.GetContext(ctx, &unit, query, id); err != nil {
		return nil, err
	}
	return &unit, nil
}

// List returns units filtered by search text and major membership.
func (r *UnitRepository) List(ctx context.Context, filter models.UnitFilter) ([]models.Unit, int, error) {
	base := "FROM units u"
	var conditions []string
	var args []interface{}

	if filter.MajorID != "" {
		base += " JOIN major_units mu ON mu.unit_id = u.id"
		conditions = append(conditions, fmt.Sprintf("mu.major_id = $%d", len(args)+1))
		args = append(args, filter.MajorID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(u.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT u.id, u.name, u.description, u.unit_size, u.created_at, u.updated_at %s ORDER BY u.name ASC LIMIT %d OFFSET %d", base+clause, size, offset)

	var units []models.Unit
	if err := r.db.SelectContext(ctx, &units, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list units: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count units: %w", err)
	}
	return units, total, nil
}

// PrerequisiteIDs returns the direct prerequisites of a unit. The relation
// is an explicit adjacency table, not an object graph walk, and it is not
// transitively closed here.
func (r *UnitRepository) PrerequisiteIDs(ctx context.Context, unitID string) ([]string, error) {
	const query = `SELECT prerequisite_id FROM unit_prerequisites WHERE unit_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, unitID); err != nil {
		return nil, fmt.Errorf("list unit prerequisites: %w", err)
	}
	return ids, nil
}

// FindMajorByID loads a major, used when deriving student number prefixes.
func (r *UnitRepository) FindMajorByID(ctx context.Context, id string) (*models.Major, error) {
	const query = `SELECT id, codename, name, created_at, updated_at FROM majors WHERE id = $1`
	var major models.Major
	if err := r.db.GetContext(ctx, &major, query, id); err != nil {
		return nil, err
	}
	return &major, nil
}
