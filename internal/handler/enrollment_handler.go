package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-registrar-api/internal/middleware"
	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/service"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
	"github.com/noah-isme/uni-registrar-api/pkg/response"
)

type admissionService interface {
	Enroll(ctx context.Context, req service.EnrollRequest) (*models.EnrollmentRecord, error)
}

type enrollmentService interface {
	Get(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	RecordGrade(ctx context.Context, enrollmentID string, req service.RecordGradeRequest) (*models.EnrollmentDetail, error)
	Cancel(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error)
	SetPaid(ctx context.Context, enrollmentID string, paid bool) (*models.EnrollmentDetail, error)
}

type callerStudents interface {
	GetByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

// EnrollmentHandler wires HTTP endpoints to admission and grading.
// Student-role callers are scoped to their own records; staff roles pass
// through unrestricted.
type EnrollmentHandler struct {
	admissions admissionService
	grades     enrollmentService
	students   callerStudents
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(admissions admissionService, grades enrollmentService, students callerStudents) *EnrollmentHandler {
	return &EnrollmentHandler{admissions: admissions, grades: grades, students: students}
}

// Enroll godoc
// @Summary Enroll a student into a course offering
// @Description Runs the admission checks in order: duplicate, capacity, already passed, prerequisites, schedule conflict. Student callers always enroll themselves.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	if middleware.Role(c) == models.RoleStudent {
		self, err := h.students.GetByUserID(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		if req.StudentID != "" && req.StudentID != self.ID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students can only enroll themselves"))
			return
		}
		req.StudentID = self.ID
	}

	record, err := h.admissions.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// List godoc
// @Summary List enrollment records
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param offering_id query string false "Filter by offering"
// @Param semester query int false "Filter by semester codename"
// @Param canceled query bool false "Filter by canceled flag"
// @Param passed query bool false "Filter by passed flag"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID:        c.Query("student_id"),
		OfferingID:       c.Query("offering_id"),
		SemesterCodename: queryInt(c, "semester", 0),
		Canceled:         queryBool(c, "canceled"),
		Passed:           queryBool(c, "passed"),
		Page:             queryInt(c, "page", 1),
		PageSize:         queryInt(c, "page_size", 20),
	}

	records, total, err := h.grades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get an enrollment record
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	record, err := h.grades.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.ensureOwner(c, record.StudentID); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// RecordGrade godoc
// @Summary Record a grade on an enrollment
// @Description Grades above the scale maximum are clamped; the passed flag derives from the clamped value
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.RecordGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id}/grade [put]
func (h *EnrollmentHandler) RecordGrade(c *gin.Context) {
	var req service.RecordGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	record, err := h.grades.RecordGrade(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Cancel godoc
// @Summary Cancel an enrollment
// @Description The record is flagged, not deleted; it stops counting toward capacity, conflicts and GPA. Students can only cancel their own enrollments.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	record, err := h.grades.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.ensureOwner(c, record.StudentID); err != nil {
		response.Error(c, err)
		return
	}

	record, err = h.grades.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// SetPaid godoc
// @Summary Set the payment flag on an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body map[string]bool true "Paid flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/paid [put]
func (h *EnrollmentHandler) SetPaid(c *gin.Context) {
	var payload struct {
		Paid *bool `json:"paid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "paid flag required"))
		return
	}

	record, err := h.grades.SetPaid(c.Request.Context(), c.Param("id"), *payload.Paid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// ensureOwner rejects student-role callers acting on a record that is not
// their own. Staff roles are never restricted here; the route gates
// decide which of them get in at all.
func (h *EnrollmentHandler) ensureOwner(c *gin.Context, studentID string) error {
	if middleware.Role(c) != models.RoleStudent {
		return nil
	}
	self, err := h.students.GetByUserID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	if self.ID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	return nil
}
