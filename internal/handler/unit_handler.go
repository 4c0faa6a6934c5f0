package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-registrar-api/internal/models"
	"github.com/noah-isme/uni-registrar-api/internal/service"
	"github.com/noah-isme/uni-registrar-api/pkg/response"
)

// UnitHandler wires HTTP endpoints to the unit catalog.
type UnitHandler struct {
	service *service.UnitService
}

// NewUnitHandler creates a new handler.
func NewUnitHandler(svc *service.UnitService) *UnitHandler {
	return &UnitHandler{service: svc}
}

// List godoc
// @Summary List course units
// @Tags Units
// @Produce json
// @Param major_id query string false "Filter by major"
// @Param search query string false "Search by name"
// @Success 200 {object} response.Envelope
// @Router /units [get]
func (h *UnitHandler) List(c *gin.Context) {
	filter := models.UnitFilter{
		MajorID:  c.Query("major_id"),
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	units, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, units, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get a course unit
// @Tags Units
// @Produce json
// @Param id path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /units/{id} [get]
func (h *UnitHandler) Get(c *gin.Context) {
	unit, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, unit, nil)
}

// Prerequisites godoc
// @Summary List a unit's direct prerequisites
// @Tags Units
// @Produce json
// @Param id path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /units/{id}/prerequisites [get]
func (h *UnitHandler) Prerequisites(c *gin.Context) {
	units, err := h.service.Prerequisites(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, units, nil)
}
