package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/service"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
	"github.com/noah-isme/uni-registrar-api/pkg/response"
)

// SemesterHandler wires HTTP endpoints to the semester service.
type SemesterHandler struct {
	service *service.SemesterService
}

// NewSemesterHandler creates a new handler.
func NewSemesterHandler(svc *service.SemesterService) *SemesterHandler {
	return &SemesterHandler{service: svc}
}

// List godoc
// @Summary List semesters
// @Tags Semesters
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *SemesterHandler) List(c *gin.Context) {
	filter := models.SemesterFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if raw, ok := c.GetQuery("active"); ok {
		active := raw == "true"
		filter.Active = &active
	}

	semesters, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, semesters, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get semester by codename
// @Tags Semesters
// @Produce json
// @Param codename path int true "Semester codename"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{codename} [get]
func (h *SemesterHandler) Get(c *gin.Context) {
	codename, err := pathCodename(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	semester, err := h.service.Get(c.Request.Context(), codename)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, semester, nil)
}

// GetActive godoc
// @Summary Get the active semester
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/active [get]
func (h *SemesterHandler) GetActive(c *gin.Context) {
	semester, err := h.service.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, semester, nil)
}

// Create godoc
// @Summary Register a new semester
// @Description New semesters always start inactive
// @Tags Semesters
// @Accept json
// @Produce json
// @Param payload body service.CreateSemesterRequest true "Semester payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /semesters [post]
func (h *SemesterHandler) Create(c *gin.Context) {
	var req service.CreateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid semester payload"))
		return
	}

	semester, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, semester)
}

// Update godoc
// @Summary Update a semester's date window
// @Tags Semesters
// @Accept json
// @Produce json
// @Param codename path int true "Semester codename"
// @Param payload body service.UpdateSemesterRequest true "Semester payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{codename} [put]
func (h *SemesterHandler) Update(c *gin.Context) {
	codename, err := pathCodename(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.UpdateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid semester payload"))
		return
	}

	semester, err := h.service.Update(c.Request.Context(), codename, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, semester, nil)
}

// Activate godoc
// @Summary Activate a semester
// @Description Deactivates every other semester in the same transaction
// @Tags Semesters
// @Produce json
// @Param codename path int true "Semester codename"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{codename}/activate [post]
func (h *SemesterHandler) Activate(c *gin.Context) {
	codename, err := pathCodename(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	semester, err := h.service.Activate(c.Request.Context(), codename)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, semester, nil)
}

func pathCodename(c *gin.Context) (int, error) {
	codename, err := strconv.Atoi(c.Param("codename"))
	if err != nil || codename < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid semester codename")
	}
	return codename, nil
}
