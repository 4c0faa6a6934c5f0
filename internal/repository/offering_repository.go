package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-registrar-api/internal/models"
)

// OfferingRepository handles persistence of course offerings.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringDetailColumns = `o.id, o.unit_id, o.instructor_id, o.semester_codename, o.slots, o.price, o.created_at, o.updated_at,
        u.name AS unit_name, u.unit_size AS unit_size, usr.full_name AS instructor_name, s.active AS semester_active,
        (SELECT COUNT(*) FROM enrollments e WHERE e.offering_id = o.id AND e.canceled = FALSE) AS enrolled_count`

const offeringDetailJoins = `FROM offerings o
JOIN units u ON u.id = o.unit_id
JOIN semesters s ON s.codename = o.semester_codename
LEFT JOIN users usr ON usr.id = o.instructor_id`

// FindByID returns an offering by its ID.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.CourseOffering, error) {
	const query = `SELECT id, unit_id, instructor_id, semester_codename, slots, price, created_at, updated_at FROM offerings WHERE id = $1`
	var offering models.CourseOffering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// FindDetailByID returns an offering with unit, instructor and capacity context.
func (r *OfferingRepository) FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE o.id = $1", offeringDetailColumns, offeringDetailJoins)
	var detail models.OfferingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	slots, err := r.TimeSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.TimeSlots = slots
	return &detail, nil
}

// List returns offerings filtered by the provided criteria.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.SemesterCodename != 0 {
		conditions = append(conditions, fmt.Sprintf("o.semester_codename = $%d", len(args)+1))
		args = append(args, filter.SemesterCodename)
	}
	if filter.UnitID != "" {
		conditions = append(conditions, fmt.Sprintf("o.unit_id = $%d", len(args)+1))
		args = append(args, filter.UnitID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("o.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.ActiveSemester != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.ActiveSemester)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.name) LIKE $%d OR LOWER(usr.full_name) LIKE $%d)", len(args)+1, len(args)+1))
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY u.name ASC LIMIT %d OFFSET %d", offeringDetailColumns, offeringDetailJoins+clause, size, offset)

	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", offeringDetailJoins+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}
	return offerings, total, nil
}

// TimeSlots returns the schedule slots attached to an offering.
func (r *OfferingRepository) TimeSlots(ctx context.Context, offeringID string) ([]models.TimeSlot, error) {
	const query = `SELECT ts.id, ts.time FROM offering_time_slots ots JOIN time_slots ts ON ts.id = ots.time_slot_id WHERE ots.offering_id = $1 ORDER BY ts.id`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering time slots: %w", err)
	}
	return slots, nil
}

// TimeSlotIDs returns just the slot identifiers for conflict checks.
func (r *OfferingRepository) TimeSlotIDs(ctx context.Context, offeringID string) ([]int, error) {
	const query = `SELECT time_slot_id FROM offering_time_slots WHERE offering_id = $1`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering time slot ids: %w", err)
	}
	return ids, nil
}

// ListCandidatesForStudent returns offerings of the given semester whose
// unit belongs to the student's major and which the student has no
// enrollment record for yet. Prerequisite filtering happens in the service.
func (r *OfferingRepository) ListCandidatesForStudent(ctx context.Context, studentID, majorID string, semesterCodename int) ([]models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s
JOIN major_units mu ON mu.unit_id = o.unit_id AND mu.major_id = $2
WHERE o.semester_codename = $3
  AND NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = $1 AND e.offering_id = o.id)
ORDER BY u.name ASC`, offeringDetailColumns, offeringDetailJoins)

	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, studentID, majorID, semesterCodename); err != nil {
		return nil, fmt.Errorf("list candidate offerings: %w", err)
	}
	return offerings, nil
}

// Create persists a new course offering and its time slot set.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.CourseOffering, timeSlotIDs []int) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if offering.CreatedAt.IsZero() {
		offering.CreatedAt = now
	}
	offering.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create offering tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO offerings (id, unit_id, instructor_id, semester_codename, slots, price, created_at, updated_at)
        VALUES (:id, :unit_id, :instructor_id, :semester_codename, :slots, :price, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("create offering: %w", err)
	}

	for _, slotID := range timeSlotIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO offering_time_slots (offering_id, time_slot_id) VALUES ($1, $2)`, offering.ID, slotID); err != nil {
			return fmt.Errorf("attach offering time slot: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create offering tx: %w", err)
	}
	return nil
}
