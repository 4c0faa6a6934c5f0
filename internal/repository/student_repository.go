package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-registrar-api/internal/models"
)

// StudentRepository handles persistence for students, including first-save
// student number generation and GPA updates.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new instance of StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailColumns = `st.id, st.user_id, st.student_no, st.major_id, st.gpa, st.funded, st.verified, st.first_semester, st.created_at, st.updated_at,
        u.full_name AS full_name, u.email AS email, m.codename AS major_codename, m.name AS major_name`

const studentDetailJoins = `FROM students st
JOIN users u ON u.id = st.user_id
JOIN majors m ON m.id = st.major_id`

// FindByID returns a student with identity and major context.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE st.id = $1", studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByUserID resolves the student record owned by an identity.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE st.user_id = $1", studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns students based on filters with total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.MajorID != "" {
		conditions = append(conditions, fmt.Sprintf("st.major_id = $%d", len(args)+1))
		args = append(args, filter.MajorID)
	}
	if filter.FirstSemester != 0 {
		conditions = append(conditions, fmt.Sprintf("st.first_semester = $%d", len(args)+1))
		args = append(args, filter.FirstSemester)
	}
	if filter.Funded != nil {
		conditions = append(conditions, fmt.Sprintf("st.funded = $%d", len(args)+1))
		args = append(args, *filter.Funded)
	}
	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("st.verified = $%d", len(args)+1))
		args = append(args, *filter.Verified)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR st.student_no LIKE $%d)", len(args)+1, len(args)+1))
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY st.student_no ASC LIMIT %d OFFSET %d", studentDetailColumns, studentDetailJoins+clause, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", studentDetailJoins+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// Register persists the identity row and the student row in one
// transaction, generating the student number on the way. Two first-saves
// racing on the same prefix can compute the same next suffix; the unique
// index on student_no rejects the loser and the loop re-reads and retries.
func (r *StudentRepository) Register(ctx context.Context, user *models.User, student *models.Student, prefix string, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = r.register(ctx, user, student, prefix)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) || !strings.Contains(err.Error(), "student_no") {
			return err
		}
	}
	return fmt.Errorf("student number contention after %d attempts: %w", attempts, err)
}

func (r *StudentRepository) register(ctx context.Context, user *models.User, student *models.Student, prefix string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	const insertUser = `INSERT INTO users (id, email, password_hash, full_name, phone_number, national_id, role, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :phone_number, :national_id, :role, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertUser, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	student.StudentNo, err = nextStudentNo(ctx, tx, prefix)
	if err != nil {
		return err
	}

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.UserID = user.ID
	student.CreatedAt = now
	student.UpdatedAt = now

	const insertStudent = `INSERT INTO students (id, user_id, student_no, major_id, gpa, funded, verified, first_semester, created_at, updated_at)
        VALUES (:id, :user_id, :student_no, :major_id, :gpa, :funded, :verified, :first_semester, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertStudent, student); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit register tx: %w", err)
	}
	return nil
}

// nextStudentNo finds the highest existing number for the prefix and
// increments its numeric suffix. The maximum is taken by string order,
// not numeric order, mirroring the legacy registrar behaviour; see the
// design notes for why this is kept as-is.
func nextStudentNo(ctx context.Context, tx *sqlx.Tx, prefix string) (string, error) {
	var current string
	err := tx.GetContext(ctx, &current, `SELECT student_no FROM students WHERE student_no LIKE $1 ORDER BY student_no DESC LIMIT 1`, prefix+"%")
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("find max student number: %w", err)
	}

	next := 1
	if err == nil {
		if suffix, perr := strconv.Atoi(strings.TrimPrefix(current, prefix)); perr == nil {
			next = suffix + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

// UpdateGPA persists the recomputed GPA, skipping the write when the
// stored value already matches.
func (r *StudentRepository) UpdateGPA(ctx context.Context, id string, gpa float64) (bool, error) {
	const query = `UPDATE students SET gpa = $2, updated_at = $3 WHERE id = $1 AND gpa IS DISTINCT FROM $2`
	result, err := r.db.ExecContext(ctx, query, id, gpa, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update gpa: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update gpa result: %w", err)
	}
	return affected > 0, nil
}

// GPAAggregate is the single-query snapshot feeding GPA recomputation.
type GPAAggregate struct {
	Weighted  float64 `db:"weighted"`
	TotalSize int     `db:"total_size"`
}

// PassedGradeAggregate sums grade*size and size over the student's passed,
// non-canceled, graded records in one consistent read.
func (r *StudentRepository) PassedGradeAggregate(ctx context.Context, studentID string) (*GPAAggregate, error) {
	const query = `SELECT COALESCE(SUM(e.grade * u.unit_size), 0) AS weighted, COALESCE(SUM(u.unit_size), 0) AS total_size
        FROM enrollments e
        JOIN offerings o ON o.id = e.offering_id
        JOIN units u ON u.id = o.unit_id
        WHERE e.student_id = $1 AND e.passed IS TRUE AND e.canceled = FALSE AND e.grade IS NOT NULL`
	var agg GPAAggregate
	if err := r.db.GetContext(ctx, &agg, query, studentID); err != nil {
		return nil, fmt.Errorf("aggregate passed grades: %w", err)
	}
	return &agg, nil
}

// SetVerified flips the administrative verification flag.
func (r *StudentRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	const query = `UPDATE students SET verified = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, verified, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
