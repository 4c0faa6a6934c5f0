package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/uni-registrar-api/internal/models"
)

type fakeStudentResolver struct {
	byUserID map[string]models.StudentDetail
}

func (f *fakeStudentResolver) GetByUserID(_ context.Context, userID string) (*models.StudentDetail, error) {
	if s, ok := f.byUserID[userID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func selfOrStaffContext(t *testing.T, role models.UserRole, userID, pathID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/"+pathID, nil)
	c.Params = gin.Params{{Key: "id", Value: pathID}}
	c.Set(ContextUserID, userID)
	c.Set(ContextRole, role)
	return c, rec
}

func TestRequireSelfOrRolesAllowsStaff(t *testing.T) {
	resolver := &fakeStudentResolver{}
	guard := RequireSelfOrRoles(resolver, "id", models.RoleAdmin, models.RoleInstructor)

	c, rec := selfOrStaffContext(t, models.RoleInstructor, "user-staff", "stu-2")
	guard(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSelfOrRolesAllowsOwner(t *testing.T) {
	resolver := &fakeStudentResolver{byUserID: map[string]models.StudentDetail{
		"user-1": {Student: models.Student{ID: "stu-1", UserID: "user-1"}},
	}}
	guard := RequireSelfOrRoles(resolver, "id", models.RoleAdmin)

	c, rec := selfOrStaffContext(t, models.RoleStudent, "user-1", "stu-1")
	guard(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSelfOrRolesRejectsOtherStudent(t *testing.T) {
	resolver := &fakeStudentResolver{byUserID: map[string]models.StudentDetail{
		"user-1": {Student: models.Student{ID: "stu-1", UserID: "user-1"}},
	}}
	guard := RequireSelfOrRoles(resolver, "id", models.RoleAdmin)

	c, rec := selfOrStaffContext(t, models.RoleStudent, "user-1", "stu-2")
	guard(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireSelfOrRolesRejectsUnresolvedIdentity(t *testing.T) {
	guard := RequireSelfOrRoles(&fakeStudentResolver{}, "id", models.RoleAdmin)

	c, rec := selfOrStaffContext(t, models.RoleStudent, "user-ghost", "stu-1")
	guard(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesRejectsMissingRole(t *testing.T) {
	guard := RequireRoles(models.RoleAdmin)

	c, rec := selfOrStaffContext(t, models.RoleStudent, "user-1", "stu-1")
	guard(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
