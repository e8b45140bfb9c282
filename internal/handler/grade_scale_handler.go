package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hums-platform/academics-api/internal/middleware"
	"github.com/hums-platform/academics-api/internal/service"
	"github.com/hums-platform/academics-api/pkg/response"
)

// GradeScaleHandler exposes the letter-grade scale endpoint.
type GradeScaleHandler struct {
	scales *service.GradeScaleService
}

// NewGradeScaleHandler constructs handler.
func NewGradeScaleHandler(scales *service.GradeScaleService) *GradeScaleHandler {
	return &GradeScaleHandler{scales: scales}
}

// Default godoc
// @Summary Default letter-grade scale
// @Tags Grade Scales
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grade-scales/default [get]
func (h *GradeScaleHandler) Default(c *gin.Context) {
	scale, hit, err := h.scales.DefaultCached(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, scale, nil, middleware.ExtractMeta(c))
}
