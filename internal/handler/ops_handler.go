package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hums-platform/academics-api/internal/service"
	"github.com/hums-platform/academics-api/pkg/response"
)

// OpsHandler serves operational status endpoints.
type OpsHandler struct {
	metrics *service.MetricsService
}

// NewOpsHandler constructs handler.
func NewOpsHandler(metrics *service.MetricsService) *OpsHandler {
	return &OpsHandler{metrics: metrics}
}

// Status godoc
// @Summary Aggregated runtime metrics snapshot
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ops/status [get]
func (h *OpsHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
