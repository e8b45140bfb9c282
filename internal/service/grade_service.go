package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hums-platform/academics-api/internal/models"
	appErrors "github.com/hums-platform/academics-api/pkg/errors"
	"github.com/hums-platform/academics-api/pkg/export"
)

type componentReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.GradeComponent, error)
	FindByID(ctx context.Context, id string) (*models.GradeComponent, error)
}

type gradeEntryRepo interface {
	BulkUpsert(ctx context.Context, entries []models.GradeEntry) error
	FetchByEnrollments(ctx context.Context, enrollmentIDs []string, classID string) (map[string][]models.GradeEntry, error)
}

type gradeResultRepo interface {
	Upsert(ctx context.Context, results []models.EnrollmentGrade) error
	FetchByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]models.EnrollmentGrade, error)
	SetFinalized(ctx context.Context, classID string, finalized bool) error
	CountFinalized(ctx context.Context, classID string) (int, error)
	CourseRows(ctx context.Context, studentID, semesterID string) ([]models.CourseGradeRow, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListRegisteredByClass(ctx context.Context, classID string) ([]models.Enrollment, error)
}

type scaleProvider interface {
	Default(ctx context.Context) (*models.GradeScale, error)
}

type auditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

// GradeEntryItem is one row of a bulk entry payload.
type GradeEntryItem struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Score        float64 `json:"score" validate:"gte=0"`
	Remarks      *string `json:"remarks"`
}

// BulkGradeEntriesRequest carries scores for one component.
type BulkGradeEntriesRequest struct {
	Items    []GradeEntryItem `json:"items" validate:"required,min=1,dive"`
	GradedBy *string          `json:"graded_by"`
}

// FinalizeGradesRequest locks a class's grades.
type FinalizeGradesRequest struct {
	Confirm bool `json:"confirm"`
}

// UnfinalizeGradesRequest reverses finalization; the reason is audited.
type UnfinalizeGradesRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// GradeService orchestrates grade entry, calculation and finalization.
type GradeService struct {
	components  componentReader
	entries     gradeEntryRepo
	results     gradeResultRepo
	enrollments enrollmentReader
	scales      scaleProvider
	audits      auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
}

// NewGradeService constructs GradeService. audits may be nil when audit
// logging is disabled.
func NewGradeService(components componentReader, entries gradeEntryRepo, results gradeResultRepo, enrollments enrollmentReader, scales scaleProvider, audits auditRecorder, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		components:  components,
		entries:     entries,
		results:     results,
		enrollments: enrollments,
		scales:      scales,
		audits:      audits,
		validator:   validate,
		logger:      logger,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
	}
}

// BulkUpsertEntries records scores for one component and recalculates the
// affected enrollments. Blocked once the class's grades are finalized.
func (s *GradeService) BulkUpsertEntries(ctx context.Context, componentID string, req BulkGradeEntriesRequest) ([]models.GradeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade entries payload")
	}
	component, err := s.components.FindByID(ctx, componentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade component")
	}
	finalized, err := s.results.CountFinalized(ctx, component.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect finalization state")
	}
	if finalized > 0 {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "class grades are finalized")
	}

	entries := make([]models.GradeEntry, 0, len(req.Items))
	affected := make([]models.Enrollment, 0, len(req.Items))
	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if _, ok := seen[item.EnrollmentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate entry for enrollment %s", item.EnrollmentID))
		}
		seen[item.EnrollmentID] = struct{}{}
		enrollment, err := s.enrollments.FindByID(ctx, item.EnrollmentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("enrollment %s not found", item.EnrollmentID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if enrollment.ClassID != component.ClassID {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("enrollment %s does not belong to this class", item.EnrollmentID))
		}
		if item.Score < 0 || item.Score > component.MaxScore {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("score %.2f out of range [0, %.2f] for enrollment %s", item.Score, component.MaxScore, item.EnrollmentID))
		}
		entries = append(entries, models.GradeEntry{
			ComponentID:  componentID,
			EnrollmentID: item.EnrollmentID,
			Score:        item.Score,
			Remarks:      item.Remarks,
			GradedBy:     req.GradedBy,
		})
		affected = append(affected, *enrollment)
	}

	if err := s.entries.BulkUpsert(ctx, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade entries")
	}
	if err := s.recalculate(ctx, component.ClassID, affected); err != nil {
		return nil, err
	}
	return entries, nil
}

// BreakdownForEnrollment computes the live weighted result for one enrollment.
func (s *GradeService) BreakdownForEnrollment(ctx context.Context, enrollmentID string) (*models.GradeBreakdown, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	breakdowns, err := s.breakdowns(ctx, enrollment.ClassID, []models.Enrollment{*enrollment})
	if err != nil {
		return nil, err
	}
	return &breakdowns[0], nil
}

// ClassBreakdowns computes results for every registered enrollment of a class.
func (s *GradeService) ClassBreakdowns(ctx context.Context, classID string) ([]models.GradeBreakdown, error) {
	enrollments, err := s.enrollments.ListRegisteredByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return s.breakdowns(ctx, classID, enrollments)
}

// Finalize recalculates and locks a class's grades. One-way under normal
// operation; see Unfinalize for the audited administrative override.
func (s *GradeService) Finalize(ctx context.Context, classID string, req FinalizeGradesRequest, actorID string) error {
	if !req.Confirm {
		return appErrors.Clone(appErrors.ErrValidation, "finalization requires confirmation")
	}
	enrollments, err := s.enrollments.ListRegisteredByClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if err := s.recalculate(ctx, classID, enrollments); err != nil {
		return err
	}
	if err := s.results.SetFinalized(ctx, classID, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize grades")
	}
	s.audit(ctx, actorID, models.AuditActionGradesFinalize, classID, map[string]interface{}{"enrollments": len(enrollments)})
	return nil
}

// Unfinalize reverses finalization. Requires a reason, which lands in the
// audit trail.
func (s *GradeService) Unfinalize(ctx context.Context, classID string, req UnfinalizeGradesRequest, actorID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unfinalization requires a reason")
	}
	finalized, err := s.results.CountFinalized(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect finalization state")
	}
	if finalized == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "class grades are not finalized")
	}
	if err := s.results.SetFinalized(ctx, classID, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unfinalize grades")
	}
	s.logger.Warn("grades unfinalized",
		zap.String("class_id", classID),
		zap.String("actor_id", actorID),
		zap.String("reason", req.Reason),
	)
	s.audit(ctx, actorID, models.AuditActionGradesUnfinalize, classID, map[string]interface{}{"reason": req.Reason})
	return nil
}

// AuditTrail returns the finalization history of a class, newest first.
func (s *GradeService) AuditTrail(ctx context.Context, classID string) ([]models.AuditLog, error) {
	if s.audits == nil {
		return nil, nil
	}
	logs, err := s.audits.ListByResource(ctx, "class_grades", classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	return logs, nil
}

// GPA aggregates grade points over finalized courses. A non-empty semesterID
// scopes the aggregate to that semester; otherwise it is cumulative.
func (s *GradeService) GPA(ctx context.Context, studentID, semesterID string) (*models.GPASummary, error) {
	rows, err := s.results.CourseRows(ctx, studentID, semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course grades")
	}
	summary := &models.GPASummary{StudentID: studentID, SemesterID: semesterID}
	var points float64
	for _, row := range rows {
		if !row.IsFinalized {
			continue
		}
		summary.Courses = append(summary.Courses, row)
		summary.TotalCredits += row.Credits
		points += row.GradePoints * row.Credits
	}
	if summary.TotalCredits > 0 {
		summary.GPA = roundTwo(points / summary.TotalCredits)
	}
	return summary, nil
}

// Transcript renders a student's finalized course grades as CSV or PDF.
func (s *GradeService) Transcript(ctx context.Context, studentID, format, title string) ([]byte, string, error) {
	summary, err := s.GPA(ctx, studentID, "")
	if err != nil {
		return nil, "", err
	}
	data := export.Dataset{
		Headers: []string{"Semester", "Code", "Course", "Credits", "Grade", "Points"},
		Summary: []string{
			fmt.Sprintf("Cumulative GPA: %.2f", summary.GPA),
			fmt.Sprintf("Total credits: %.1f", summary.TotalCredits),
		},
	}
	for _, row := range summary.Courses {
		data.Rows = append(data.Rows, map[string]string{
			"Semester": row.SemesterID,
			"Code":     row.ClassCode,
			"Course":   row.ClassName,
			"Credits":  fmt.Sprintf("%.1f", row.Credits),
			"Grade":    row.LetterGrade,
			"Points":   fmt.Sprintf("%.2f", row.GradePoints),
		})
	}
	switch format {
	case "pdf":
		raw, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return raw, "application/pdf", nil
	case "", "csv":
		raw, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return raw, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported transcript format")
	}
}

func (s *GradeService) breakdowns(ctx context.Context, classID string, enrollments []models.Enrollment) ([]models.GradeBreakdown, error) {
	components, err := s.components.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade components")
	}
	scale, err := s.scales.Default(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		ids = append(ids, enrollment.ID)
	}
	entries, err := s.entries.FetchByEnrollments(ctx, ids, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grade entries")
	}
	stored, err := s.results.FetchByEnrollments(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grade results")
	}

	breakdowns := make([]models.GradeBreakdown, 0, len(enrollments))
	for _, enrollment := range enrollments {
		breakdown := computeBreakdown(classID, enrollment.ID, components, entries[enrollment.ID], scale)
		if result, ok := stored[enrollment.ID]; ok {
			breakdown.IsFinalized = result.IsFinalized
		}
		breakdowns = append(breakdowns, breakdown)
	}
	return breakdowns, nil
}

func (s *GradeService) recalculate(ctx context.Context, classID string, enrollments []models.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	components, err := s.components.ListByClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade components")
	}
	scale, err := s.scales.Default(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		ids = append(ids, enrollment.ID)
	}
	entries, err := s.entries.FetchByEnrollments(ctx, ids, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grade entries")
	}
	existing, err := s.results.FetchByEnrollments(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grade results")
	}

	results := make([]models.EnrollmentGrade, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if result, ok := existing[enrollment.ID]; ok && result.IsFinalized {
			continue
		}
		breakdown := computeBreakdown(classID, enrollment.ID, components, entries[enrollment.ID], scale)
		results = append(results, models.EnrollmentGrade{
			ID:              existing[enrollment.ID].ID,
			EnrollmentID:    enrollment.ID,
			ClassID:         classID,
			TotalPercentage: breakdown.TotalPercentage,
			LetterGrade:     breakdown.LetterGrade,
			GradePoints:     breakdown.GradePoints,
			IsFinalized:     false,
			CalculatedAt:    time.Now().UTC(),
		})
	}
	if len(results) == 0 {
		return nil
	}
	if err := s.results.Upsert(ctx, results); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade results")
	}
	return nil
}

// computeBreakdown accumulates weighted scores over the components that have
// an entry. Components without entries are skipped, not counted as zero, and
// the total is deliberately not renormalized: partial grading yields partial
// credit out of the full weight budget.
func computeBreakdown(classID, enrollmentID string, components []models.GradeComponent, entries []models.GradeEntry, scale *models.GradeScale) models.GradeBreakdown {
	byComponent := make(map[string]models.GradeEntry, len(entries))
	for _, entry := range entries {
		byComponent[entry.ComponentID] = entry
	}
	breakdown := models.GradeBreakdown{EnrollmentID: enrollmentID, ClassID: classID}
	for _, component := range components {
		entry, ok := byComponent[component.ID]
		if !ok {
			continue
		}
		weighted := 0.0
		if component.MaxScore > 0 {
			weighted = entry.Score / component.MaxScore * component.Weight
		}
		breakdown.Components = append(breakdown.Components, models.ComponentScore{
			ComponentID:   component.ID,
			ComponentName: component.Name,
			Score:         entry.Score,
			MaxScore:      component.MaxScore,
			Weight:        component.Weight,
			WeightedScore: roundTwo(weighted),
		})
		breakdown.TotalPercentage += weighted
	}
	breakdown.TotalPercentage = roundTwo(breakdown.TotalPercentage)
	def := LetterFor(scale, breakdown.TotalPercentage)
	breakdown.LetterGrade = def.Letter
	breakdown.GradePoints = def.GradePoints
	return breakdown
}

func (s *GradeService) audit(ctx context.Context, actorID, action, classID string, values map[string]interface{}) {
	if s.audits == nil {
		return
	}
	payload, _ := json.Marshal(values)
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	log := &models.AuditLog{
		ActorID:    actor,
		Action:     action,
		Resource:   "class_grades",
		ResourceID: &classID,
		NewValues:  payload,
	}
	if err := s.audits.Create(ctx, log); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func roundTwo(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
