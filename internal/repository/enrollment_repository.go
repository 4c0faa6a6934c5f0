package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
)

// EnrollmentRepository handles persistence of enrollment records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentDetailColumns = `e.id, e.student_id, e.offering_id, e.grade, e.passed, e.paid, e.canceled, e.created_at, e.updated_at,
        o.unit_id AS unit_id, u.name AS unit_name, u.unit_size AS unit_size, o.semester_codename AS semester_codename,
        usr.full_name AS instructor_name`

const enrollmentDetailJoins = `FROM enrollments e
JOIN offerings o ON o.id = e.offering_id
JOIN units u ON u.id = o.unit_id
LEFT JOIN users usr ON usr.id = o.instructor_id`

// FindByID returns an enrollment record by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error) {
	const query = `SELECT id, student_id, offering_id, grade, passed, paid, canceled, created_at, updated_at FROM enrollments WHERE id = $1`
	var record models.EnrollmentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindDetailByID returns an enrollment record with unit and offering context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.id = $1", enrollmentDetailColumns, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns enrollment records filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.OfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("e.offering_id = $%d", len(args)+1))
		args = append(args, filter.OfferingID)
	}
	if filter.SemesterCodename != 0 {
		conditions = append(conditions, fmt.Sprintf("o.semester_codename = $%d", len(args)+1))
		args = append(args, filter.SemesterCodename)
	}
	if filter.Canceled != nil {
		conditions = append(conditions, fmt.Sprintf("e.canceled = $%d", len(args)+1))
		args = append(args, *filter.Canceled)
	}
	if filter.Passed != nil {
		conditions = append(conditions, fmt.Sprintf("e.passed = $%d", len(args)+1))
		args = append(args, *filter.Passed)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d", enrollmentDetailColumns, enrollmentDetailJoins+clause, size, offset)

	var records []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", enrollmentDetailJoins+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return records, total, nil
}

// ExistsForPair checks whether any record, canceled or not, already binds
// the student to the offering.
func (r *EnrollmentRepository) ExistsForPair(ctx context.Context, studentID, offeringID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND offering_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, offeringID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment pair: %w", err)
	}
	return true, nil
}

// CountLive counts non-canceled records for an offering.
func (r *EnrollmentRepository) CountLive(ctx context.Context, offeringID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND canceled = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, offeringID); err != nil {
		return 0, fmt.Errorf("count live enrollments: %w", err)
	}
	return count, nil
}

// HasPassedUnit reports whether the student holds a passed, non-canceled
// record for any offering of the unit.
func (r *EnrollmentRepository) HasPassedUnit(ctx context.Context, studentID, unitID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments e JOIN offerings o ON o.id = e.offering_id
        WHERE e.student_id = $1 AND o.unit_id = $2 AND e.passed IS TRUE AND e.canceled = FALSE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, unitID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check passed unit: %w", err)
	}
	return true, nil
}

// PassedUnitIDs projects the student's passed, non-canceled records to
// their unit identifiers. This is the passed-unit set consumed by the
// prerequisite check.
func (r *EnrollmentRepository) PassedUnitIDs(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT DISTINCT o.unit_id FROM enrollments e JOIN offerings o ON o.id = e.offering_id
        WHERE e.student_id = $1 AND e.passed IS TRUE AND e.canceled = FALSE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("list passed units: %w", err)
	}
	return ids, nil
}

// LiveActiveSlotIDs returns the time slot identifiers of every live
// enrollment the student holds in the active semester. Enrollments in
// inactive semesters never contribute to schedule conflicts.
func (r *EnrollmentRepository) LiveActiveSlotIDs(ctx context.Context, studentID string) ([]int, error) {
	const query = `SELECT DISTINCT ots.time_slot_id FROM enrollments e
        JOIN offerings o ON o.id = e.offering_id
        JOIN semesters s ON s.codename = o.semester_codename AND s.active = TRUE
        JOIN offering_time_slots ots ON ots.offering_id = o.id
        WHERE e.student_id = $1 AND e.canceled = FALSE`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("list live slot ids: %w", err)
	}
	return ids, nil
}

// Admit inserts a new enrollment record under the offering's row lock.
// The lock serializes concurrent admissions for the same offering so the
// capacity recount below cannot be overtaken between check and insert,
// and the unique (student_id, offering_id) index turns a racing duplicate
// into ErrAlreadyRegistered instead of a second record.
func (r *EnrollmentRepository) Admit(ctx context.Context, studentID, offeringID string) (rec *models.EnrollmentRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin admission tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = classifyAdmitError(ctx, err)
		}
	}()

	var slots int
	if err = tx.GetContext(ctx, &slots, `SELECT slots FROM offerings WHERE id = $1 FOR UPDATE`, offeringID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, fmt.Errorf("lock offering: %w", err)
	}

	var live int
	if err = tx.GetContext(ctx, &live, `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND canceled = FALSE`, offeringID); err != nil {
		return nil, fmt.Errorf("count live enrollments: %w", err)
	}
	if live >= slots {
		err = appErrors.ErrCourseFull
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.EnrollmentRecord{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		OfferingID: offeringID,
		Paid:       false,
		Canceled:   false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	const insert = `INSERT INTO enrollments (id, student_id, offering_id, grade, passed, paid, canceled, created_at, updated_at)
        VALUES (:id, :student_id, :offering_id, NULL, NULL, :paid, :canceled, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, record); err != nil {
		if isUniqueViolation(err) {
			err = appErrors.ErrAlreadyRegistered
			return nil, err
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit admission tx: %w", err)
	}
	return record, nil
}

// classifyAdmitError decides what a failed admission transaction means to
// the caller. Typed rejections (course full, duplicate, not found) are
// definitive and stay as they are even when the context has expired by
// the time the rollback runs; only untyped failures caused by contention
// or deadline get relabeled retriable.
func classifyAdmitError(ctx context.Context, err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if isRetriable(err) || ctx.Err() != nil {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, appErrors.ErrTransient.Message)
	}
	return err
}

// SetGrade stores the clamped grade and derived passed flag.
func (r *EnrollmentRepository) SetGrade(ctx context.Context, id string, grade float64, passed bool) error {
	const query = `UPDATE enrollments SET grade = $2, passed = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, grade, passed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set grade: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetCanceled flags the record as canceled. Records are never deleted;
// the flag excludes them from capacity, conflicts and pass history while
// keeping them for audit.
func (r *EnrollmentRepository) SetCanceled(ctx context.Context, id string) error {
	const query = `UPDATE enrollments SET canceled = TRUE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set canceled: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetPaid flips the payment flag.
func (r *EnrollmentRepository) SetPaid(ctx context.Context, id string, paid bool) error {
	const query = `UPDATE enrollments SET paid = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, paid, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set paid: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AcademicRecord returns the student's full enrollment history ordered by
// semester, for transcript export.
func (r *EnrollmentRepository) AcademicRecord(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.student_id = $1 ORDER BY o.semester_codename ASC, u.name ASC", enrollmentDetailColumns, enrollmentDetailJoins)
	var records []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("load academic record: %w", err)
	}
	return records, nil
}
