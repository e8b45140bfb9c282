package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hums-platform/academics-api/internal/middleware"
	"github.com/hums-platform/academics-api/internal/service"
	appErrors "github.com/hums-platform/academics-api/pkg/errors"
	"github.com/hums-platform/academics-api/pkg/response"
)

// GradeHandler exposes grade entry, calculation and finalization endpoints.
type GradeHandler struct {
	grades          *service.GradeService
	transcriptTitle string
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades *service.GradeService, transcriptTitle string) *GradeHandler {
	if transcriptTitle == "" {
		transcriptTitle = "Academic Transcript"
	}
	return &GradeHandler{grades: grades, transcriptTitle: transcriptTitle}
}

// BulkEntries godoc
// @Summary Record scores for a component
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Component ID"
// @Param payload body service.BulkGradeEntriesRequest true "Entries payload"
// @Success 200 {object} response.Envelope
// @Router /grade-components/{id}/entries [put]
func (h *GradeHandler) BulkEntries(c *gin.Context) {
	var req service.BulkGradeEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entries, err := h.grades.BulkUpsertEntries(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// EnrollmentBreakdown godoc
// @Summary Weighted grade breakdown for one enrollment
// @Tags Grades
// @Produce json
// @Param enrollmentId path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{enrollmentId}/grade [get]
func (h *GradeHandler) EnrollmentBreakdown(c *gin.Context) {
	breakdown, err := h.grades.BreakdownForEnrollment(c.Request.Context(), c.Param("enrollmentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakdown, nil)
}

// ClassResults godoc
// @Summary Grade results for every registered enrollment of a class
// @Tags Grades
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grades [get]
func (h *GradeHandler) ClassResults(c *gin.Context) {
	breakdowns, err := h.grades.ClassBreakdowns(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakdowns, nil)
}

// Finalize godoc
// @Summary Finalize a class's grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body service.FinalizeGradesRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grades/finalize [post]
func (h *GradeHandler) Finalize(c *gin.Context) {
	var req service.FinalizeGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.grades.Finalize(c.Request.Context(), c.Param("classId"), req, middleware.ActorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"finalized": true}, nil)
}

// Unfinalize godoc
// @Summary Reverse grade finalization
// @Tags Grades
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body service.UnfinalizeGradesRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grades/unfinalize [post]
func (h *GradeHandler) Unfinalize(c *gin.Context) {
	var req service.UnfinalizeGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.grades.Unfinalize(c.Request.Context(), c.Param("classId"), req, middleware.ActorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"finalized": false}, nil)
}

// AuditTrail godoc
// @Summary Finalization history of a class
// @Tags Grades
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/grades/audit [get]
func (h *GradeHandler) AuditTrail(c *gin.Context) {
	logs, err := h.grades.AuditTrail(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// GPA godoc
// @Summary GPA over finalized courses
// @Tags Grades
// @Produce json
// @Param studentId path string true "Student ID"
// @Param semester_id query string false "Scope to one semester"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/gpa [get]
func (h *GradeHandler) GPA(c *gin.Context) {
	summary, err := h.grades.GPA(c.Request.Context(), c.Param("studentId"), c.Query("semester_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Transcript godoc
// @Summary Export a student's transcript
// @Tags Grades
// @Produce text/csv
// @Produce application/pdf
// @Param studentId path string true "Student ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /students/{studentId}/transcript [get]
func (h *GradeHandler) Transcript(c *gin.Context) {
	studentID := c.Param("studentId")
	format := c.DefaultQuery("format", "csv")
	raw, contentType, err := h.grades.Transcript(c.Request.Context(), studentID, format, h.transcriptTitle)
	if err != nil {
		response.Error(c, err)
		return
	}
	ext := "csv"
	if format == "pdf" {
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=transcript-%s.%s", studentID, ext))
	c.Data(http.StatusOK, contentType, raw)
}
