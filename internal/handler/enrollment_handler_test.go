package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-registrar-api/internal/middleware"
	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/service"
)

type fakeAdmissions struct {
	lastReq *service.EnrollRequest
}

func (f *fakeAdmissions) Enroll(_ context.Context, req service.EnrollRequest) (*models.EnrollmentRecord, error) {
	f.lastReq = &req
	return &models.EnrollmentRecord{ID: "enr-new", StudentID: req.StudentID, OfferingID: req.OfferingID}, nil
}

type fakeEnrollments struct {
	records  map[string]models.EnrollmentDetail
	canceled []string
}

func (f *fakeEnrollments) Get(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	if r, ok := f.records[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollments) List(_ context.Context, _ models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeEnrollments) RecordGrade(_ context.Context, id string, _ service.RecordGradeRequest) (*models.EnrollmentDetail, error) {
	return f.Get(context.Background(), id)
}

func (f *fakeEnrollments) Cancel(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	f.canceled = append(f.canceled, id)
	return f.Get(context.Background(), id)
}

func (f *fakeEnrollments) SetPaid(_ context.Context, id string, _ bool) (*models.EnrollmentDetail, error) {
	return f.Get(context.Background(), id)
}

type fakeCallerStudents struct {
	byUserID map[string]models.StudentDetail
}

func (f *fakeCallerStudents) GetByUserID(_ context.Context, userID string) (*models.StudentDetail, error) {
	if s, ok := f.byUserID[userID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentHandlerFixture() (*EnrollmentHandler, *fakeAdmissions, *fakeEnrollments) {
	admissions := &fakeAdmissions{}
	enrollments := &fakeEnrollments{records: map[string]models.EnrollmentDetail{
		"enr-1": {EnrollmentRecord: models.EnrollmentRecord{ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1"}},
	}}
	students := &fakeCallerStudents{byUserID: map[string]models.StudentDetail{
		"user-1": {Student: models.Student{ID: "stu-1", UserID: "user-1"}},
	}}
	return NewEnrollmentHandler(admissions, enrollments, students), admissions, enrollments
}

func authedContext(t *testing.T, role models.UserRole, userID string, req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Set(middleware.ContextUserID, userID)
	c.Set(middleware.ContextRole, role)
	return c, rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestEnrollmentHandlerStudentCannotEnrollAnother(t *testing.T) {
	handler, admissions, _ := newEnrollmentHandlerFixture()

	c, rec := authedContext(t, models.RoleStudent, "user-1",
		jsonRequest(http.MethodPost, "/enrollments", `{"student_id":"stu-2","offering_id":"off-1"}`))
	handler.Enroll(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, admissions.lastReq)
}

func TestEnrollmentHandlerStudentEnrollsSelf(t *testing.T) {
	handler, admissions, _ := newEnrollmentHandlerFixture()

	// The student id is derived from the token, not the payload.
	c, rec := authedContext(t, models.RoleStudent, "user-1",
		jsonRequest(http.MethodPost, "/enrollments", `{"offering_id":"off-1"}`))
	handler.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, admissions.lastReq)
	assert.Equal(t, "stu-1", admissions.lastReq.StudentID)
	assert.Equal(t, "off-1", admissions.lastReq.OfferingID)
}

func TestEnrollmentHandlerAdminEnrollsOnBehalf(t *testing.T) {
	handler, admissions, _ := newEnrollmentHandlerFixture()

	c, rec := authedContext(t, models.RoleAdmin, "user-admin",
		jsonRequest(http.MethodPost, "/enrollments", `{"student_id":"stu-2","offering_id":"off-1"}`))
	handler.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, admissions.lastReq)
	assert.Equal(t, "stu-2", admissions.lastReq.StudentID)
}

func TestEnrollmentHandlerStudentCannotCancelAnothers(t *testing.T) {
	handler, _, enrollments := newEnrollmentHandlerFixture()
	enrollments.records["enr-2"] = models.EnrollmentDetail{
		EnrollmentRecord: models.EnrollmentRecord{ID: "enr-2", StudentID: "stu-2", OfferingID: "off-1"},
	}

	c, rec := authedContext(t, models.RoleStudent, "user-1",
		httptest.NewRequest(http.MethodPost, "/enrollments/enr-2/cancel", nil))
	c.Params = gin.Params{{Key: "id", Value: "enr-2"}}
	handler.Cancel(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, enrollments.canceled)
}

func TestEnrollmentHandlerStudentCancelsOwn(t *testing.T) {
	handler, _, enrollments := newEnrollmentHandlerFixture()

	c, rec := authedContext(t, models.RoleStudent, "user-1",
		httptest.NewRequest(http.MethodPost, "/enrollments/enr-1/cancel", nil))
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	handler.Cancel(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"enr-1"}, enrollments.canceled)
}

func TestEnrollmentHandlerStudentCannotReadAnothers(t *testing.T) {
	handler, _, enrollments := newEnrollmentHandlerFixture()
	enrollments.records["enr-2"] = models.EnrollmentDetail{
		EnrollmentRecord: models.EnrollmentRecord{ID: "enr-2", StudentID: "stu-2", OfferingID: "off-1"},
	}

	c, rec := authedContext(t, models.RoleStudent, "user-1",
		httptest.NewRequest(http.MethodGet, "/enrollments/enr-2", nil))
	c.Params = gin.Params{{Key: "id", Value: "enr-2"}}
	handler.Get(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
