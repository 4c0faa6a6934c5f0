package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	Register(ctx context.Context, user *models.User, student *models.Student, prefix string, attempts int) error
	SetVerified(ctx context.Context, id string, verified bool) error
}

type roleUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CreateInstructor(ctx context.Context, user *models.User, instructor *models.Instructor) error
	CreateAdmin(ctx context.Context, user *models.User, admin *models.Admin) error
}

type majorReader interface {
	FindMajorByID(ctx context.Context, id string) (*models.Major, error)
}

// RegisterUserRequest carries the identity fields shared by every role.
type RegisterUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FullName    string `json:"full_name" validate:"required,min=2"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	NationalID  string `json:"national_id" validate:"required"`
}

// RegisterStudentRequest registers a student account.
type RegisterStudentRequest struct {
	RegisterUserRequest
	MajorID string `json:"major_id" validate:"required,uuid4"`
	Funded  bool   `json:"funded"`
}

// RegisterInstructorRequest registers an instructor account.
type RegisterInstructorRequest struct {
	RegisterUserRequest
	Specialty     string `json:"specialty" validate:"required"`
	AcademicTitle int    `json:"academic_title" validate:"gte=0"`
}

// RegisterAdminRequest registers an administrator account.
type RegisterAdminRequest struct {
	RegisterUserRequest
	Title string `json:"title" validate:"required"`
}

// StudentService registers accounts for all three roles and serves
// student read models. Each factory sets the role exactly once; there is
// no generic signup that accepts a caller-chosen role.
type StudentService struct {
	students      studentRepository
	users         roleUserStore
	majors        majorReader
	semesters     activeSemesterReader
	numberRetries int
	logger        *zap.Logger
	validate      *validator.Validate
}

// NewStudentService creates a new StudentService.
func NewStudentService(
	students studentRepository,
	users roleUserStore,
	majors majorReader,
	semesters activeSemesterReader,
	numberRetries int,
	logger *zap.Logger,
) *StudentService {
	if numberRetries < 1 {
		numberRetries = 3
	}
	return &StudentService{
		students:      students,
		users:         users,
		majors:        majors,
		semesters:     semesters,
		numberRetries: numberRetries,
		logger:        logger,
		validate:      validator.New(),
	}
}

// RegisterStudent creates a student account. The student number is
// generated inside the repository transaction from the major codename
// and the active semester's year digits, so it exists from the first
// committed state on and never changes.
func (s *StudentService) RegisterStudent(ctx context.Context, req RegisterStudentRequest) (*models.StudentDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration")
	}
	if err := s.ensureEmailFree(ctx, req.Email); err != nil {
		return nil, err
	}

	major, err := s.majors.FindMajorByID(ctx, req.MajorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "major not found")
		}
		return nil, fmt.Errorf("find major: %w", err)
	}

	semester, err := s.semesters.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.newUser(req.RegisterUserRequest, models.RoleStudent)
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		MajorID:       req.MajorID,
		Funded:        req.Funded,
		FirstSemester: semester.Codename,
	}

	prefix := major.Codename + semester.YearDigits()
	if err := s.students.Register(ctx, user, student, prefix, s.numberRetries); err != nil {
		return nil, fmt.Errorf("register student: %w", err)
	}

	s.logger.Info("student registered",
		zap.String("student_id", student.ID),
		zap.String("student_no", student.StudentNo),
		zap.String("major_id", student.MajorID),
	)
	return s.Get(ctx, student.ID)
}

// RegisterInstructor creates an instructor account.
func (s *StudentService) RegisterInstructor(ctx context.Context, req RegisterInstructorRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration")
	}
	if err := s.ensureEmailFree(ctx, req.Email); err != nil {
		return nil, err
	}

	user, err := s.newUser(req.RegisterUserRequest, models.RoleInstructor)
	if err != nil {
		return nil, err
	}
	instructor := &models.Instructor{Specialty: req.Specialty, AcademicTitle: req.AcademicTitle}

	if err := s.users.CreateInstructor(ctx, user, instructor); err != nil {
		return nil, fmt.Errorf("register instructor: %w", err)
	}

	s.logger.Info("instructor registered", zap.String("user_id", user.ID))
	return user, nil
}

// RegisterAdmin creates an administrator account.
func (s *StudentService) RegisterAdmin(ctx context.Context, req RegisterAdminRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration")
	}
	if err := s.ensureEmailFree(ctx, req.Email); err != nil {
		return nil, err
	}

	user, err := s.newUser(req.RegisterUserRequest, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	admin := &models.Admin{Title: req.Title}

	if err := s.users.CreateAdmin(ctx, user, admin); err != nil {
		return nil, fmt.Errorf("register admin: %w", err)
	}

	s.logger.Info("admin registered", zap.String("user_id", user.ID))
	return user, nil
}

// Get returns a student with identity and major context.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return student, nil
}

// GetByUserID resolves the student owned by an authenticated identity.
func (s *StudentService) GetByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return student, nil
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return s.students.List(ctx, filter)
}

// SetVerified flips the administrative verification flag on a student.
func (s *StudentService) SetVerified(ctx context.Context, id string, verified bool) (*models.StudentDetail, error) {
	if err := s.students.SetVerified(ctx, id, verified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("set verified: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *StudentService) newUser(req RegisterUserRequest, role models.UserRole) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		PhoneNumber:  req.PhoneNumber,
		NationalID:   req.NationalID,
		Role:         role,
		Active:       true,
	}, nil
}

func (s *StudentService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return fmt.Errorf("check email: %w", err)
}
