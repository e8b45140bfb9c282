package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hums-platform/academics-api/internal/models"
	"github.com/hums-platform/academics-api/internal/service"
	appErrors "github.com/hums-platform/academics-api/pkg/errors"
	"github.com/hums-platform/academics-api/pkg/response"
)

// GradeComponentHandler exposes grade component endpoints.
type GradeComponentHandler struct {
	components *service.GradeComponentService
}

// NewGradeComponentHandler constructs handler.
func NewGradeComponentHandler(components *service.GradeComponentService) *GradeComponentHandler {
	return &GradeComponentHandler{components: components}
}

// List godoc
// @Summary List grade components of a class
// @Tags Grade Components
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grade-components [get]
func (h *GradeComponentHandler) List(c *gin.Context) {
	components, err := h.components.List(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, components, nil)
}

// Create godoc
// @Summary Create grade component
// @Tags Grade Components
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body service.CreateGradeComponentRequest true "Component payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/grade-components [post]
func (h *GradeComponentHandler) Create(c *gin.Context) {
	var req service.CreateGradeComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	component, err := h.components.Create(c.Request.Context(), c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, component)
}

// Update godoc
// @Summary Patch grade component
// @Tags Grade Components
// @Accept json
// @Produce json
// @Param id path string true "Component ID"
// @Param payload body models.GradeComponentPatch true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /grade-components/{id} [patch]
func (h *GradeComponentHandler) Update(c *gin.Context) {
	var patch models.GradeComponentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	component, err := h.components.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, component, nil)
}

// Delete godoc
// @Summary Delete grade component
// @Tags Grade Components
// @Param id path string true "Component ID"
// @Success 204
// @Router /grade-components/{id} [delete]
func (h *GradeComponentHandler) Delete(c *gin.Context) {
	if err := h.components.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ValidateWeights godoc
// @Summary Validate the weight budget of a class
// @Tags Grade Components
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grade-components/validate [get]
func (h *GradeComponentHandler) ValidateWeights(c *gin.Context) {
	summary, err := h.components.ValidateWeights(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
