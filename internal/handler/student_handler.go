package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/service"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
	"github.com/noah-isme/uni-registrar-api/pkg/response"
)

// StudentHandler wires HTTP endpoints to registration, student read
// models and transcript export.
type StudentHandler struct {
	service     *service.StudentService
	transcripts *service.TranscriptService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(svc *service.StudentService, transcripts *service.TranscriptService) *StudentHandler {
	return &StudentHandler{service: svc, transcripts: transcripts}
}

// RegisterStudent godoc
// @Summary Register a student account
// @Description Creates the identity and the student record; the student number is generated here and never changes
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.RegisterStudentRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) RegisterStudent(c *gin.Context) {
	var req service.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	student, err := h.service.RegisterStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, student)
}

// RegisterInstructor godoc
// @Summary Register an instructor account
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.RegisterInstructorRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructors [post]
func (h *StudentHandler) RegisterInstructor(c *gin.Context) {
	var req service.RegisterInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	user, err := h.service.RegisterInstructor(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// RegisterAdmin godoc
// @Summary Register an administrator account
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.RegisterAdminRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admins [post]
func (h *StudentHandler) RegisterAdmin(c *gin.Context) {
	var req service.RegisterAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	user, err := h.service.RegisterAdmin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param major_id query string false "Filter by major"
// @Param first_semester query int false "Filter by entry semester"
// @Param funded query bool false "Filter by funding flag"
// @Param verified query bool false "Filter by verification flag"
// @Param search query string false "Search by name or student number"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:        c.Query("search"),
		MajorID:       c.Query("major_id"),
		FirstSemester: queryInt(c, "first_semester", 0),
		Funded:        queryBool(c, "funded"),
		Verified:      queryBool(c, "verified"),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", 20),
	}

	students, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, students, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, student, nil)
}

// SetVerified godoc
// @Summary Set a student's verification flag
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body map[string]bool true "Verified flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/verify [put]
func (h *StudentHandler) SetVerified(c *gin.Context) {
	var payload struct {
		Verified *bool `json:"verified" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "verified flag required"))
		return
	}

	student, err := h.service.SetVerified(c.Request.Context(), c.Param("id"), *payload.Verified)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, student, nil)
}

// Transcript godoc
// @Summary Export a student's transcript
// @Description Full academic record including canceled rows, as CSV or PDF
// @Tags Students
// @Produce application/octet-stream
// @Param id path string true "Student ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/transcript [get]
func (h *StudentHandler) Transcript(c *gin.Context) {
	format := service.TranscriptFormat(c.DefaultQuery("format", "csv"))

	transcript, err := h.transcripts.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+transcript.FileName+`"`)
	c.Data(http.StatusOK, transcript.ContentType, transcript.Content)
}
