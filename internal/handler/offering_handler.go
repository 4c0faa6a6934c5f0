package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/service"
	appErrors "github.com/noah-isme/uni-registrar-api/pkg/errors"
	"github.com/noah-isme/uni-registrar-api/pkg/response"
)

// OfferingHandler wires HTTP endpoints to the offering catalog.
type OfferingHandler struct {
	service *service.OfferingService
}

// NewOfferingHandler creates a new handler.
func NewOfferingHandler(svc *service.OfferingService) *OfferingHandler {
	return &OfferingHandler{service: svc}
}

// List godoc
// @Summary List course offerings
// @Tags Offerings
// @Produce json
// @Param semester query int false "Filter by semester codename"
// @Param unit_id query string false "Filter by unit"
// @Param instructor_id query string false "Filter by instructor"
// @Param active query bool false "Only offerings of the active semester"
// @Param search query string false "Search by unit or instructor name"
// @Success 200 {object} response.Envelope
// @Router /offerings [get]
func (h *OfferingHandler) List(c *gin.Context) {
	filter := models.OfferingFilter{
		SemesterCodename: queryInt(c, "semester", 0),
		UnitID:           c.Query("unit_id"),
		InstructorID:     c.Query("instructor_id"),
		ActiveSemester:   queryBool(c, "active"),
		Search:           c.Query("search"),
		Page:             queryInt(c, "page", 1),
		PageSize:         queryInt(c, "page_size", 20),
	}

	offerings, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, offerings, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get a course offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /offerings/{id} [get]
func (h *OfferingHandler) Get(c *gin.Context) {
	offering, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, offering, nil)
}

// Create godoc
// @Summary Register a course offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param payload body service.CreateOfferingRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /offerings [post]
func (h *OfferingHandler) Create(c *gin.Context) {
	var req service.CreateOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid offering payload"))
		return
	}

	offering, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, offering)
}

// ListEligible godoc
// @Summary List offerings a student is eligible for
// @Description Active-semester offerings of the student's major passing every admission check right now
// @Tags Offerings
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/eligible-offerings [get]
func (h *OfferingHandler) ListEligible(c *gin.Context) {
	offerings, err := h.service.ListEligible(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, offerings, nil)
}
