package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
)

type mockSemesterRepo struct {
	semesters map[int]models.Semester
	created   *models.Semester
}

func (m *mockSemesterRepo) List(_ context.Context, _ models.SemesterFilter) ([]models.Semester, int, error) {
	out := make([]models.Semester, 0, len(m.semesters))
	for _, s := range m.semesters {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockSemesterRepo) FindByCodename(_ context.Context, codename int) (*models.Semester, error) {
	if s, ok := m.semesters[codename]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSemesterRepo) FindActive(_ context.Context) (*models.Semester, error) {
	for _, s := range m.semesters {
		if s.Active {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSemesterRepo) CountActive(_ context.Context) (int, error) {
	count := 0
	for _, s := range m.semesters {
		if s.Active {
			count++
		}
	}
	return count, nil
}

func (m *mockSemesterRepo) Create(_ context.Context, semester *models.Semester) error {
	if m.semesters == nil {
		m.semesters = map[int]models.Semester{}
	}
	semester.Active = false
	m.semesters[semester.Codename] = *semester
	m.created = semester
	return nil
}

func (m *mockSemesterRepo) Update(_ context.Context, semester *models.Semester) error {
	s, ok := m.semesters[semester.Codename]
	if !ok {
		return sql.ErrNoRows
	}
	s.StartDate = semester.StartDate
	s.EndDate = semester.EndDate
	m.semesters[semester.Codename] = s
	return nil
}

func (m *mockSemesterRepo) SetActive(_ context.Context, codename int) error {
	if _, ok := m.semesters[codename]; !ok {
		return sql.ErrNoRows
	}
	for key, s := range m.semesters {
		s.Active = key == codename
		m.semesters[key] = s
	}
	return nil
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestSemesterServiceActivateSwitchesActive(t *testing.T) {
	repo := &mockSemesterRepo{semesters: map[int]models.Semester{
		403: {Codename: 403, Active: true},
		404: {Codename: 404},
	}}
	svc := NewSemesterService(repo, zap.NewNop())

	semester, err := svc.Activate(context.Background(), 404)
	require.NoError(t, err)
	assert.True(t, semester.Active)
	assert.False(t, repo.semesters[403].Active)

	// Re-activating the active semester is a no-op success.
	semester, err = svc.Activate(context.Background(), 404)
	require.NoError(t, err)
	assert.True(t, semester.Active)
}

func TestSemesterServiceActivateUnknown(t *testing.T) {
	svc := NewSemesterService(&mockSemesterRepo{}, zap.NewNop())

	_, err := svc.Activate(context.Background(), 999)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSemesterServiceGetActiveReportsIntegrityBreak(t *testing.T) {
	repo := &mockSemesterRepo{semesters: map[int]models.Semester{
		403: {Codename: 403, Active: true},
		404: {Codename: 404, Active: true},
	}}
	svc := NewSemesterService(repo, zap.NewNop())

	_, err := svc.GetActive(context.Background())
	require.True(t, appErrors.Is(err, appErrors.ErrIntegrity))
}

func TestSemesterServiceGetActiveNone(t *testing.T) {
	svc := NewSemesterService(&mockSemesterRepo{}, zap.NewNop())

	_, err := svc.GetActive(context.Background())
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSemesterServiceCreateStartsInactive(t *testing.T) {
	repo := &mockSemesterRepo{}
	svc := NewSemesterService(repo, zap.NewNop())

	semester, err := svc.Create(context.Background(), CreateSemesterRequest{
		Codename:  404,
		StartDate: date(2024, 9, 1),
		EndDate:   date(2025, 1, 20),
	})
	require.NoError(t, err)
	assert.False(t, semester.Active)
}

func TestSemesterServiceCreateRejectsInvertedDates(t *testing.T) {
	svc := NewSemesterService(&mockSemesterRepo{}, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateSemesterRequest{
		Codename:  404,
		StartDate: date(2025, 1, 20),
		EndDate:   date(2024, 9, 1),
	})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
