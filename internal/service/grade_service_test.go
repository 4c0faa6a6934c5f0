package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/repository"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
	"github.com/noah-isme/uni-registrar-api/pkg/jobs"
)

type mockGradeEnrollments struct {
	records map[string]models.EnrollmentDetail
}

func (m *mockGradeEnrollments) FindDetailByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	if r, ok := m.records[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeEnrollments) List(_ context.Context, _ models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	out := make([]models.EnrollmentDetail, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockGradeEnrollments) SetGrade(_ context.Context, id string, grade float64, passed bool) error {
	r, ok := m.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Grade = &grade
	r.Passed = &passed
	m.records[id] = r
	return nil
}

func (m *mockGradeEnrollments) SetCanceled(_ context.Context, id string) error {
	r, ok := m.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Canceled = true
	m.records[id] = r
	return nil
}

func (m *mockGradeEnrollments) SetPaid(_ context.Context, id string, paid bool) error {
	r, ok := m.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Paid = paid
	m.records[id] = r
	return nil
}

type mockGPAStudents struct {
	aggregate repository.GPAAggregate
	saved     map[string]float64
}

func (m *mockGPAStudents) PassedGradeAggregate(_ context.Context, _ string) (*repository.GPAAggregate, error) {
	agg := m.aggregate
	return &agg, nil
}

func (m *mockGPAStudents) UpdateGPA(_ context.Context, id string, gpa float64) (bool, error) {
	if m.saved == nil {
		m.saved = map[string]float64{}
	}
	prev, existed := m.saved[id]
	m.saved[id] = gpa
	return !existed || prev != gpa, nil
}

type mockQueue struct {
	jobs []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

type mockGPAMetrics struct {
	results []string
}

func (m *mockGPAMetrics) ObserveGPARecompute(result string) {
	m.results = append(m.results, result)
}

func newGradeFixture() (*GradeService, *mockGradeEnrollments, *mockGPAStudents, *mockQueue, *mockGPAMetrics) {
	enrollments := &mockGradeEnrollments{records: map[string]models.EnrollmentDetail{
		"enr-1": {
			EnrollmentRecord: models.EnrollmentRecord{ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1"},
			UnitName:         "Algorithms",
			UnitSize:         3,
		},
	}}
	students := &mockGPAStudents{}
	queue := &mockQueue{}
	metrics := &mockGPAMetrics{}
	svc := NewGradeService(enrollments, students, queue, nil, metrics, zap.NewNop())
	return svc, enrollments, students, queue, metrics
}

func TestGradeServiceRecordGradeClampsAboveScale(t *testing.T) {
	svc, _, _, queue, _ := newGradeFixture()

	record, err := svc.RecordGrade(context.Background(), "enr-1", RecordGradeRequest{Grade: 25})
	require.NoError(t, err)
	require.NotNil(t, record.Grade)
	assert.Equal(t, 20.0, *record.Grade)
	require.NotNil(t, record.Passed)
	assert.True(t, *record.Passed)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeGPARecompute, queue.jobs[0].Type)
	assert.Equal(t, GPARecomputePayload{StudentID: "stu-1"}, queue.jobs[0].Payload)
}

func TestGradeServiceRecordGradeBelowPassMark(t *testing.T) {
	svc, _, _, _, _ := newGradeFixture()

	record, err := svc.RecordGrade(context.Background(), "enr-1", RecordGradeRequest{Grade: 9.99})
	require.NoError(t, err)
	assert.Equal(t, 9.99, *record.Grade)
	assert.False(t, *record.Passed)
}

func TestGradeServiceRecordGradeAtPassMark(t *testing.T) {
	svc, _, _, _, _ := newGradeFixture()

	record, err := svc.RecordGrade(context.Background(), "enr-1", RecordGradeRequest{Grade: 10})
	require.NoError(t, err)
	assert.True(t, *record.Passed)
}

func TestGradeServiceRecordGradeRejectsNegative(t *testing.T) {
	svc, _, _, _, _ := newGradeFixture()

	_, err := svc.RecordGrade(context.Background(), "enr-1", RecordGradeRequest{Grade: -1})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGradeServiceRecordGradeOnCanceledEnrollment(t *testing.T) {
	svc, enrollments, _, queue, _ := newGradeFixture()
	r := enrollments.records["enr-1"]
	r.Canceled = true
	enrollments.records["enr-1"] = r

	_, err := svc.RecordGrade(context.Background(), "enr-1", RecordGradeRequest{Grade: 15})
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Empty(t, queue.jobs)
}

func TestGradeServiceCancel(t *testing.T) {
	svc, _, _, queue, _ := newGradeFixture()

	record, err := svc.Cancel(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.True(t, record.Canceled)
	require.Len(t, queue.jobs, 1, "cancellation must trigger a GPA recompute")

	_, err = svc.Cancel(context.Background(), "enr-1")
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Len(t, queue.jobs, 1)
}

func TestGradeServiceRecomputeGPAWeightsBySize(t *testing.T) {
	svc, _, students, _, _ := newGradeFixture()
	// 14.0 over a size-3 unit plus 12.0 over a size-2 unit:
	// (14*3 + 12*2) / 5 = 13.2
	students.aggregate = repository.GPAAggregate{Weighted: 66, TotalSize: 5}

	gpa, err := svc.RecomputeGPA(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.InDelta(t, 13.2, gpa, 1e-9)
	assert.InDelta(t, 13.2, students.saved["stu-1"], 1e-9)
}

func TestGradeServiceRecomputeGPANoPassedRecords(t *testing.T) {
	svc, _, students, _, _ := newGradeFixture()
	students.aggregate = repository.GPAAggregate{}

	gpa, err := svc.RecomputeGPA(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Zero(t, gpa)
}

func TestGradeServiceHandleRecomputeJob(t *testing.T) {
	svc, _, students, _, metrics := newGradeFixture()
	students.aggregate = repository.GPAAggregate{Weighted: 30, TotalSize: 2}

	err := svc.HandleRecomputeJob(context.Background(), jobs.Job{
		ID:      "job-1",
		Type:    JobTypeGPARecompute,
		Payload: GPARecomputePayload{StudentID: "stu-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, metrics.results)
	assert.InDelta(t, 15.0, students.saved["stu-1"], 1e-9)

	err = svc.HandleRecomputeJob(context.Background(), jobs.Job{ID: "job-2", Payload: "bogus"})
	require.Error(t, err)
	assert.Equal(t, []string{"ok", "invalid_payload"}, metrics.results)
}
