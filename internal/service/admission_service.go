package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
)

type admissionStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type admissionOfferingReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	TimeSlotIDs(ctx context.Context, offeringID string) ([]int, error)
}

type admissionUnitReader interface {
	PrerequisiteIDs(ctx context.Context, unitID string) ([]string, error)
}

type admissionEnrollmentStore interface {
	ExistsForPair(ctx context.Context, studentID, offeringID string) (bool, error)
	CountLive(ctx context.Context, offeringID string) (int, error)
	HasPassedUnit(ctx context.Context, studentID, unitID string) (bool, error)
	PassedUnitIDs(ctx context.Context, studentID string) ([]string, error)
	LiveActiveSlotIDs(ctx context.Context, studentID string) ([]int, error)
	Admit(ctx context.Context, studentID, offeringID string) (*models.EnrollmentRecord, error)
}

type admissionMetrics interface {
	ObserveAdmission(outcome string)
}

type catalogInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string)
}

// EnrollRequest identifies the student/offering pair to admit.
type EnrollRequest struct {
	StudentID  string `json:"student_id" validate:"required,uuid4"`
	OfferingID string `json:"offering_id" validate:"required,uuid4"`
}

// AdmissionService is the enrollment gate. Every admission runs the full
// check sequence in a fixed order; a request failing several checks is
// always reported with the first failure.
type AdmissionService struct {
	students    admissionStudentReader
	offerings   admissionOfferingReader
	units       admissionUnitReader
	enrollments admissionEnrollmentStore
	checker     EligibilityChecker
	catalog     catalogInvalidator
	metrics     admissionMetrics
	txTimeout   time.Duration
	logger      *zap.Logger
	validate    *validator.Validate
}

// NewAdmissionService wires the admission engine.
func NewAdmissionService(
	students admissionStudentReader,
	offerings admissionOfferingReader,
	units admissionUnitReader,
	enrollments admissionEnrollmentStore,
	checker EligibilityChecker,
	catalog catalogInvalidator,
	metrics admissionMetrics,
	txTimeout time.Duration,
	logger *zap.Logger,
) *AdmissionService {
	if txTimeout <= 0 {
		txTimeout = 5 * time.Second
	}
	return &AdmissionService{
		students:    students,
		offerings:   offerings,
		units:       units,
		enrollments: enrollments,
		checker:     checker,
		catalog:     catalog,
		metrics:     metrics,
		txTimeout:   txTimeout,
		logger:      logger,
		validate:    validator.New(),
	}
}

// Enroll admits a student into a course offering. The checks run in
// order: duplicate registration, capacity, already-passed unit,
// prerequisites, schedule conflict. The two contended invariants
// (uniqueness and capacity) are re-validated inside the storage
// transaction, so two racing requests for the last slot never both
// succeed.
func (s *AdmissionService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request")
	}

	record, err := s.enroll(ctx, req)
	s.observe(err)
	if err != nil {
		return nil, err
	}

	if s.catalog != nil {
		s.catalog.InvalidateStudent(ctx, req.StudentID)
	}

	s.logger.Info("student admitted",
		zap.String("student_id", req.StudentID),
		zap.String("offering_id", req.OfferingID),
		zap.String("enrollment_id", record.ID),
	)
	return record, nil
}

func (s *AdmissionService) enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentRecord, error) {
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	offering, err := s.offerings.FindDetailByID(ctx, req.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, fmt.Errorf("load offering: %w", err)
	}

	if !offering.SemesterActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is only open for the active semester")
	}

	if err := s.runChecks(ctx, student, offering); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	return s.enrollments.Admit(txCtx, student.ID, offering.ID)
}

func (s *AdmissionService) runChecks(ctx context.Context, student *models.StudentDetail, offering *models.OfferingDetail) error {
	exists, err := s.enrollments.ExistsForPair(ctx, student.ID, offering.ID)
	if err != nil {
		return fmt.Errorf("check duplicate registration: %w", err)
	}
	if exists {
		return appErrors.ErrAlreadyRegistered
	}

	live, err := s.enrollments.CountLive(ctx, offering.ID)
	if err != nil {
		return fmt.Errorf("check capacity: %w", err)
	}
	if live >= offering.Slots {
		return appErrors.ErrCourseFull
	}

	passed, err := s.enrollments.HasPassedUnit(ctx, student.ID, offering.UnitID)
	if err != nil {
		return fmt.Errorf("check pass history: %w", err)
	}
	if passed {
		return appErrors.ErrAlreadyPassed
	}

	prereqs, err := s.units.PrerequisiteIDs(ctx, offering.UnitID)
	if err != nil {
		return fmt.Errorf("load prerequisites: %w", err)
	}
	if len(prereqs) > 0 {
		passedUnits, err := s.enrollments.PassedUnitIDs(ctx, student.ID)
		if err != nil {
			return fmt.Errorf("load pass history: %w", err)
		}
		if !s.checker.Eligible(prereqs, passedUnits) {
			return appErrors.ErrPrerequisitesNotMet
		}
	}

	candidateSlots, err := s.offerings.TimeSlotIDs(ctx, offering.ID)
	if err != nil {
		return fmt.Errorf("load offering schedule: %w", err)
	}
	takenSlots, err := s.enrollments.LiveActiveSlotIDs(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("load student schedule: %w", err)
	}
	if slotsOverlap(candidateSlots, takenSlots) {
		return appErrors.ErrScheduleConflict
	}

	return nil
}

func (s *AdmissionService) observe(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveAdmission(admissionOutcome(err))
}

func admissionOutcome(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case appErrors.Is(err, appErrors.ErrAlreadyRegistered):
		return "already_registered"
	case appErrors.Is(err, appErrors.ErrCourseFull):
		return "course_full"
	case appErrors.Is(err, appErrors.ErrAlreadyPassed):
		return "already_passed"
	case appErrors.Is(err, appErrors.ErrPrerequisitesNotMet):
		return "prerequisites_not_met"
	case appErrors.Is(err, appErrors.ErrScheduleConflict):
		return "schedule_conflict"
	case appErrors.Is(err, appErrors.ErrTransient):
		return "transient_failure"
	default:
		return "error"
	}
}
