package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/repository"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
	"github.com/noah-isme/uni-registrar-api/pkg/jobs"
)

// Grading scale bounds. Grades are recorded out of 20; anything at or
// above the pass mark counts toward the GPA and the pass history.
const (
	GradeMax  = 20.0
	GradePass = 10.0
)

// JobTypeGPARecompute identifies queued GPA recomputation jobs.
const JobTypeGPARecompute = "gpa.recompute"

// GPARecomputePayload is the job payload for a single student recompute.
type GPARecomputePayload struct {
	StudentID string `json:"student_id"`
}

type gradeEnrollmentStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	SetGrade(ctx context.Context, id string, grade float64, passed bool) error
	SetCanceled(ctx context.Context, id string) error
	SetPaid(ctx context.Context, id string, paid bool) error
}

type gpaStudentStore interface {
	PassedGradeAggregate(ctx context.Context, studentID string) (*repository.GPAAggregate, error)
	UpdateGPA(ctx context.Context, id string, gpa float64) (bool, error)
}

type gpaEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type gpaMetrics interface {
	ObserveGPARecompute(result string)
}

// RecordGradeRequest carries an instructor's grade entry.
type RecordGradeRequest struct {
	Grade float64 `json:"grade" validate:"gte=0"`
}

// GradeService records grades, cancels enrollments and keeps student GPAs
// consistent through asynchronous recomputation.
type GradeService struct {
	enrollments gradeEnrollmentStore
	students    gpaStudentStore
	queue       gpaEnqueuer
	catalog     catalogInvalidator
	metrics     gpaMetrics
	logger      *zap.Logger
	validate    *validator.Validate
}

// NewGradeService creates a new GradeService.
func NewGradeService(
	enrollments gradeEnrollmentStore,
	students gpaStudentStore,
	queue gpaEnqueuer,
	catalog catalogInvalidator,
	metrics gpaMetrics,
	logger *zap.Logger,
) *GradeService {
	return &GradeService{
		enrollments: enrollments,
		students:    students,
		queue:       queue,
		catalog:     catalog,
		metrics:     metrics,
		logger:      logger,
		validate:    validator.New(),
	}
}

// SetQueue attaches the recompute queue. The queue handler is this
// service's own HandleRecomputeJob, so the queue cannot exist before the
// service does; wiring closes the loop here.
func (s *GradeService) SetQueue(queue gpaEnqueuer) {
	s.queue = queue
}

// RecordGrade stores a grade on an enrollment record. Grades above the
// scale maximum are clamped, never rejected; the passed flag derives from
// the clamped value. A GPA recompute is queued on success.
func (s *GradeService) RecordGrade(ctx context.Context, enrollmentID string, req RecordGradeRequest) (*models.EnrollmentDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade")
	}

	record, err := s.get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if record.Canceled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot grade a canceled enrollment")
	}

	grade := math.Min(req.Grade, GradeMax)
	passed := grade >= GradePass

	if err := s.enrollments.SetGrade(ctx, enrollmentID, grade, passed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, fmt.Errorf("record grade: %w", err)
	}

	s.logger.Info("grade recorded",
		zap.String("enrollment_id", enrollmentID),
		zap.Float64("grade", grade),
		zap.Bool("passed", passed),
	)

	s.enqueueRecompute(record.StudentID)
	if s.catalog != nil {
		s.catalog.InvalidateStudent(ctx, record.StudentID)
	}

	return s.get(ctx, enrollmentID)
}

// Cancel flags an enrollment record as canceled. The record survives for
// audit but stops counting toward capacity, conflicts, pass history and
// GPA, so a recompute is queued. Canceling twice is rejected.
func (s *GradeService) Cancel(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	record, err := s.get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if record.Canceled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already canceled")
	}

	if err := s.enrollments.SetCanceled(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, fmt.Errorf("cancel enrollment: %w", err)
	}

	s.logger.Info("enrollment canceled",
		zap.String("enrollment_id", enrollmentID),
		zap.String("student_id", record.StudentID),
	)

	s.enqueueRecompute(record.StudentID)
	if s.catalog != nil {
		s.catalog.InvalidateStudent(ctx, record.StudentID)
	}

	return s.get(ctx, enrollmentID)
}

// SetPaid flips the payment flag on an enrollment record.
func (s *GradeService) SetPaid(ctx context.Context, enrollmentID string, paid bool) (*models.EnrollmentDetail, error) {
	if err := s.enrollments.SetPaid(ctx, enrollmentID, paid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, fmt.Errorf("set paid: %w", err)
	}
	return s.get(ctx, enrollmentID)
}

// Get returns one enrollment record with unit and offering context.
func (s *GradeService) Get(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	return s.get(ctx, enrollmentID)
}

// List returns enrollment records matching the filter.
func (s *GradeService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return s.enrollments.List(ctx, filter)
}

// RecomputeGPA recalculates the unit-size weighted mean over the
// student's passed, non-canceled records and persists it. A student with
// no passed records gets a zero GPA.
func (s *GradeService) RecomputeGPA(ctx context.Context, studentID string) (float64, error) {
	agg, err := s.students.PassedGradeAggregate(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("aggregate grades: %w", err)
	}

	gpa := 0.0
	if agg.TotalSize > 0 {
		gpa = agg.Weighted / float64(agg.TotalSize)
	}

	changed, err := s.students.UpdateGPA(ctx, studentID, gpa)
	if err != nil {
		return 0, fmt.Errorf("persist gpa: %w", err)
	}
	if changed {
		s.logger.Info("gpa recomputed", zap.String("student_id", studentID), zap.Float64("gpa", gpa))
	}
	return gpa, nil
}

// HandleRecomputeJob is the queue handler for GPA recomputation jobs.
func (s *GradeService) HandleRecomputeJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(GPARecomputePayload)
	if !ok {
		s.observeRecompute("invalid_payload")
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}

	if _, err := s.RecomputeGPA(ctx, payload.StudentID); err != nil {
		s.observeRecompute("error")
		return err
	}
	s.observeRecompute("ok")
	return nil
}

func (s *GradeService) enqueueRecompute(studentID string) {
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeGPARecompute,
		Payload: GPARecomputePayload{StudentID: studentID},
	})
	if err != nil {
		// The write already committed; the GPA catches up on the next
		// grade event or an operator-triggered recompute.
		s.logger.Error("failed to enqueue gpa recompute", zap.String("student_id", studentID), zap.Error(err))
	}
}

func (s *GradeService) observeRecompute(result string) {
	if s.metrics != nil {
		s.metrics.ObserveGPARecompute(result)
	}
}

func (s *GradeService) get(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	record, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	return record, nil
}
