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

type offeringRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error)
	TimeSlots(ctx context.Context, offeringID string) ([]models.TimeSlot, error)
	TimeSlotIDs(ctx context.Context, offeringID string) ([]int, error)
	ListCandidatesForStudent(ctx context.Context, studentID, majorID string, semesterCodename int) ([]models.OfferingDetail, error)
	Create(ctx context.Context, offering *models.CourseOffering, timeSlotIDs []int) error
}

type offeringUnitReader interface {
	FindByID(ctx context.Context, id string) (*models.Unit, error)
	PrerequisiteIDs(ctx context.Context, unitID string) ([]string, error)
}

type offeringStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type offeringEnrollmentReader interface {
	PassedUnitIDs(ctx context.Context, studentID string) ([]string, error)
	LiveActiveSlotIDs(ctx context.Context, studentID string) ([]int, error)
}

type activeSemesterReader interface {
	GetActive(ctx context.Context) (*models.Semester, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateOfferingRequest registers a new course offering for a semester.
type CreateOfferingRequest struct {
	UnitID           string `json:"unit_id" validate:"required,uuid4"`
	InstructorID     string `json:"instructor_id" validate:"required,uuid4"`
	SemesterCodename int    `json:"semester_codename" validate:"required,min=1"`
	Slots            int    `json:"slots" validate:"required,min=1"`
	Price            int64  `json:"price" validate:"gte=0"`
	TimeSlotIDs      []int  `json:"time_slot_ids" validate:"required,min=1,dive,min=1"`
}

// OfferingService serves the offering catalog, including the per-student
// eligible-offerings read model.
type OfferingService struct {
	offerings   offeringRepository
	units       offeringUnitReader
	students    offeringStudentReader
	enrollments offeringEnrollmentReader
	semesters   activeSemesterReader
	checker     EligibilityChecker
	cache       catalogCache
	cacheTTL    time.Duration
	logger      *zap.Logger
	validate    *validator.Validate
}

// NewOfferingService creates a new OfferingService. The cache is optional;
// a nil cache disables the read-model snapshot without changing results.
func NewOfferingService(
	offerings offeringRepository,
	units offeringUnitReader,
	students offeringStudentReader,
	enrollments offeringEnrollmentReader,
	semesters activeSemesterReader,
	checker EligibilityChecker,
	cache catalogCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *OfferingService {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &OfferingService{
		offerings:   offerings,
		units:       units,
		students:    students,
		enrollments: enrollments,
		semesters:   semesters,
		checker:     checker,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		validate:    validator.New(),
	}
}

// Get returns a single offering with schedule and capacity context.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.OfferingDetail, error) {
	offering, err := s.offerings.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, fmt.Errorf("find offering: %w", err)
	}
	return offering, nil
}

// List returns offerings matching the filter.
func (s *OfferingService) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	return s.offerings.List(ctx, filter)
}

// Create registers an offering. The unit must exist; slot capacity and
// the time slot set are fixed at creation.
func (s *OfferingService) Create(ctx context.Context, req CreateOfferingRequest) (*models.OfferingDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering")
	}

	if _, err := s.units.FindByID(ctx, req.UnitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, fmt.Errorf("find unit: %w", err)
	}

	offering := &models.CourseOffering{
		UnitID:           req.UnitID,
		InstructorID:     req.InstructorID,
		SemesterCodename: req.SemesterCodename,
		Slots:            req.Slots,
		Price:            req.Price,
	}
	if err := s.offerings.Create(ctx, offering, req.TimeSlotIDs); err != nil {
		return nil, fmt.Errorf("create offering: %w", err)
	}

	s.logger.Info("offering created",
		zap.String("offering_id", offering.ID),
		zap.String("unit_id", offering.UnitID),
		zap.Int("semester", offering.SemesterCodename),
	)
	return s.Get(ctx, offering.ID)
}

// ListEligible returns the active-semester offerings the student could be
// admitted to right now: units of the student's major, not yet taken,
// with capacity left, prerequisites satisfied and no schedule overlap.
// The snapshot is cached per student and invalidated on any event that
// can change it.
func (s *OfferingService) ListEligible(ctx context.Context, studentID string) ([]models.OfferingDetail, error) {
	key := eligibleCacheKey(studentID)
	if s.cache != nil {
		var cached []models.OfferingDetail
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	eligible, err := s.listEligible(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, eligible, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return eligible, nil
}

func (s *OfferingService) listEligible(ctx context.Context, studentID string) ([]models.OfferingDetail, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	semester, err := s.semesters.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := s.offerings.ListCandidatesForStudent(ctx, student.ID, student.MajorID, semester.Codename)
	if err != nil {
		return nil, err
	}

	passedUnits, err := s.enrollments.PassedUnitIDs(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("load pass history: %w", err)
	}
	takenSlots, err := s.enrollments.LiveActiveSlotIDs(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("load student schedule: %w", err)
	}

	passedSet := make(map[string]struct{}, len(passedUnits))
	for _, id := range passedUnits {
		passedSet[id] = struct{}{}
	}

	eligible := make([]models.OfferingDetail, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.EnrolledCount >= candidate.Slots {
			continue
		}
		if _, done := passedSet[candidate.UnitID]; done {
			continue
		}

		prereqs, err := s.units.PrerequisiteIDs(ctx, candidate.UnitID)
		if err != nil {
			return nil, fmt.Errorf("load prerequisites: %w", err)
		}
		if !s.checker.Eligible(prereqs, passedUnits) {
			continue
		}

		slots, err := s.offerings.TimeSlotIDs(ctx, candidate.ID)
		if err != nil {
			return nil, fmt.Errorf("load offering schedule: %w", err)
		}
		if slotsOverlap(slots, takenSlots) {
			continue
		}

		eligible = append(eligible, candidate)
	}
	return eligible, nil
}

// InvalidateStudent drops the student's cached eligibility snapshot.
// Failures are logged, never surfaced: the TTL bounds staleness anyway.
func (s *OfferingService) InvalidateStudent(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, eligibleCacheKey(studentID)); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
}

func eligibleCacheKey(studentID string) string {
	return fmt.Sprintf("catalog:eligible:%s", studentID)
}
