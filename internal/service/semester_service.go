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

type semesterRepository interface {
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error)
	FindByCodename(ctx context.Context, codename int) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	CountActive(ctx context.Context) (int, error)
	Create(ctx context.Context, semester *models.Semester) error
	Update(ctx context.Context, semester *models.Semester) error
	SetActive(ctx context.Context, codename int) error
}

// CreateSemesterRequest carries the fields for registering a new term.
type CreateSemesterRequest struct {
	Codename  int       `json:"codename" validate:"required,min=1"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// UpdateSemesterRequest adjusts the date window of an existing term.
type UpdateSemesterRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// SemesterService manages the term registry and the single-active
// invariant.
type SemesterService struct {
	repo     semesterRepository
	logger   *zap.Logger
	validate *validator.Validate
}

// NewSemesterService creates a new SemesterService.
func NewSemesterService(repo semesterRepository, logger *zap.Logger) *SemesterService {
	return &SemesterService{repo: repo, logger: logger, validate: validator.New()}
}

// List returns semesters ordered by codename.
func (s *SemesterService) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one semester by codename.
func (s *SemesterService) Get(ctx context.Context, codename int) (*models.Semester, error) {
	semester, err := s.repo.FindByCodename(ctx, codename)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, fmt.Errorf("find semester: %w", err)
	}
	return semester, nil
}

// GetActive returns the single active semester. More than one active row
// means the invariant broke outside this service, which is reported as an
// integrity failure rather than picked from arbitrarily.
func (s *SemesterService) GetActive(ctx context.Context) (*models.Semester, error) {
	count, err := s.repo.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active semesters: %w", err)
	}
	if count > 1 {
		s.logger.Error("multiple active semesters detected", zap.Int("count", count))
		return nil, appErrors.Clone(appErrors.ErrIntegrity, "multiple active semesters")
	}

	semester, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active semester")
		}
		return nil, fmt.Errorf("find active semester: %w", err)
	}
	return semester, nil
}

// Create registers a new semester. New terms always start inactive;
// activation is a separate, explicit step.
func (s *SemesterService) Create(ctx context.Context, req CreateSemesterRequest) (*models.Semester, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	semester := &models.Semester{
		Codename:  req.Codename,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Active:    false,
	}
	if err := s.repo.Create(ctx, semester); err != nil {
		return nil, fmt.Errorf("create semester: %w", err)
	}

	s.logger.Info("semester created", zap.Int("codename", semester.Codename))
	return semester, nil
}

// Update changes the date window of a semester.
func (s *SemesterService) Update(ctx context.Context, codename int, req UpdateSemesterRequest) (*models.Semester, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	semester := &models.Semester{
		Codename:  codename,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.repo.Update(ctx, semester); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, fmt.Errorf("update semester: %w", err)
	}
	return s.Get(ctx, codename)
}

// Activate makes the given semester the active one. The repository
// deactivates every other term and activates the target in a single
// transaction, so no observer ever sees two active semesters. Activating
// the already-active semester is a no-op success.
func (s *SemesterService) Activate(ctx context.Context, codename int) (*models.Semester, error) {
	if err := s.repo.SetActive(ctx, codename); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, fmt.Errorf("activate semester: %w", err)
	}

	s.logger.Info("semester activated", zap.Int("codename", codename))
	return s.Get(ctx, codename)
}
