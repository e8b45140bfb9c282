package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hums-platform/academics-api/internal/models"
	appErrors "github.com/hums-platform/academics-api/pkg/errors"
)

type mockGradeComponents struct {
	components []models.GradeComponent
}

func (m *mockGradeComponents) ListByClass(ctx context.Context, classID string) ([]models.GradeComponent, error) {
	var out []models.GradeComponent
	for _, c := range m.components {
		if c.ClassID == classID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockGradeComponents) FindByID(ctx context.Context, id string) (*models.GradeComponent, error) {
	for _, c := range m.components {
		if c.ID == id {
			copied := c
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockGradeEntries struct {
	entries map[string][]models.GradeEntry // keyed by enrollment
}

func (m *mockGradeEntries) BulkUpsert(ctx context.Context, entries []models.GradeEntry) error {
	if m.entries == nil {
		m.entries = make(map[string][]models.GradeEntry)
	}
	for _, entry := range entries {
		existing := m.entries[entry.EnrollmentID]
		replaced := false
		for i := range existing {
			if existing[i].ComponentID == entry.ComponentID {
				existing[i] = entry
				replaced = true
			}
		}
		if !replaced {
			existing = append(existing, entry)
		}
		m.entries[entry.EnrollmentID] = existing
	}
	return nil
}

func (m *mockGradeEntries) FetchByEnrollments(ctx context.Context, enrollmentIDs []string, classID string) (map[string][]models.GradeEntry, error) {
	out := make(map[string][]models.GradeEntry)
	for _, id := range enrollmentIDs {
		if entries, ok := m.entries[id]; ok {
			out[id] = entries
		}
	}
	return out, nil
}

type mockGradeResults struct {
	results map[string]models.EnrollmentGrade // keyed by enrollment
}

func (m *mockGradeResults) Upsert(ctx context.Context, results []models.EnrollmentGrade) error {
	if m.results == nil {
		m.results = make(map[string]models.EnrollmentGrade)
	}
	for _, result := range results {
		m.results[result.EnrollmentID] = result
	}
	return nil
}

func (m *mockGradeResults) FetchByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]models.EnrollmentGrade, error) {
	out := make(map[string]models.EnrollmentGrade)
	for _, id := range enrollmentIDs {
		if result, ok := m.results[id]; ok {
			out[id] = result
		}
	}
	return out, nil
}

func (m *mockGradeResults) SetFinalized(ctx context.Context, classID string, finalized bool) error {
	for key, result := range m.results {
		if result.ClassID == classID {
			result.IsFinalized = finalized
			m.results[key] = result
		}
	}
	return nil
}

func (m *mockGradeResults) CountFinalized(ctx context.Context, classID string) (int, error) {
	count := 0
	for _, result := range m.results {
		if result.ClassID == classID && result.IsFinalized {
			count++
		}
	}
	return count, nil
}

func (m *mockGradeResults) CourseRows(ctx context.Context, studentID, semesterID string) ([]models.CourseGradeRow, error) {
	return nil, nil
}

type mockEnrollments struct {
	enrollments map[string]*models.Enrollment
}

func (m *mockEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollments) ListRegisteredByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.ClassID == classID && e.Status == models.EnrollmentStatusRegistered {
			out = append(out, *e)
		}
	}
	return out, nil
}

type mockScales struct {
	scale *models.GradeScale
}

func (m *mockScales) Default(ctx context.Context) (*models.GradeScale, error) {
	return m.scale, nil
}

type mockAudits struct {
	logs []models.AuditLog
}

func (m *mockAudits) Create(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockAudits) ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, log := range m.logs {
		if log.Resource == resource && log.ResourceID != nil && *log.ResourceID == resourceID {
			out = append(out, log)
		}
	}
	return out, nil
}

func testScale() *models.GradeScale {
	return &models.GradeScale{
		ID: "scale1", Name: "Standard", IsDefault: true,
		Definitions: []models.GradeDefinition{
			{Letter: "F", MinPercentage: 0, MaxPercentage: 49.99, GradePoints: 0},
			{Letter: "D", MinPercentage: 50, MaxPercentage: 59.99, GradePoints: 1},
			{Letter: "C", MinPercentage: 60, MaxPercentage: 69.99, GradePoints: 2},
			{Letter: "B", MinPercentage: 70, MaxPercentage: 79.99, GradePoints: 3},
			{Letter: "A", MinPercentage: 80, MaxPercentage: 100, GradePoints: 4},
		},
	}
}

type gradeFixture struct {
	svc         *GradeService
	components  *mockGradeComponents
	entries     *mockGradeEntries
	results     *mockGradeResults
	enrollments *mockEnrollments
	audits      *mockAudits
}

func newGradeFixture() *gradeFixture {
	components := &mockGradeComponents{components: []models.GradeComponent{
		{ID: "mid", ClassID: "class1", Name: "Midterm", Weight: 40, MaxScore: 100},
		{ID: "fin", ClassID: "class1", Name: "Final", Weight: 60, MaxScore: 100},
	}}
	entries := &mockGradeEntries{}
	results := &mockGradeResults{}
	enrollments := &mockEnrollments{enrollments: map[string]*models.Enrollment{
		"enr1": {ID: "enr1", StudentID: "stu1", ClassID: "class1", Status: models.EnrollmentStatusRegistered},
		"enr2": {ID: "enr2", StudentID: "stu2", ClassID: "class1", Status: models.EnrollmentStatusRegistered},
	}}
	audits := &mockAudits{}
	svc := NewGradeService(components, entries, results, enrollments, &mockScales{scale: testScale()},
		audits, validator.New(), zap.NewNop())
	return &gradeFixture{svc: svc, components: components, entries: entries, results: results, enrollments: enrollments, audits: audits}
}

func TestBulkEntriesAndWeightedTotal(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()

	_, err := f.svc.BulkUpsertEntries(ctx, "mid", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 80}},
	})
	require.NoError(t, err)
	_, err = f.svc.BulkUpsertEntries(ctx, "fin", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 70}},
	})
	require.NoError(t, err)

	// 80/100*40 + 70/100*60 = 32 + 42 = 74 -> B
	breakdown, err := f.svc.BreakdownForEnrollment(ctx, "enr1")
	require.NoError(t, err)
	assert.Equal(t, 74.0, breakdown.TotalPercentage)
	assert.Equal(t, "B", breakdown.LetterGrade)
	assert.Equal(t, 3.0, breakdown.GradePoints)
	assert.Len(t, breakdown.Components, 2)
}

func TestPartialGradingIsNotRenormalized(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()

	// Full marks on the midterm only: 40 out of 100, not 100.
	_, err := f.svc.BulkUpsertEntries(ctx, "mid", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 100}},
	})
	require.NoError(t, err)

	breakdown, err := f.svc.BreakdownForEnrollment(ctx, "enr1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, breakdown.TotalPercentage)
	assert.Equal(t, "F", breakdown.LetterGrade)
	assert.Len(t, breakdown.Components, 1)
}

func TestFullScoreYieldsFullWeight(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()

	_, err := f.svc.BulkUpsertEntries(ctx, "mid", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 100}},
	})
	require.NoError(t, err)
	_, err = f.svc.BulkUpsertEntries(ctx, "fin", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 100}},
	})
	require.NoError(t, err)

	breakdown, err := f.svc.BreakdownForEnrollment(ctx, "enr1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, breakdown.TotalPercentage)
	assert.Equal(t, "A", breakdown.LetterGrade)
	for _, component := range breakdown.Components {
		assert.Equal(t, component.Weight, component.WeightedScore)
	}
}

func TestBulkEntriesScoreOutOfRange(t *testing.T) {
	f := newGradeFixture()

	_, err := f.svc.BulkUpsertEntries(context.Background(), "mid", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 101}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBulkEntriesWrongClass(t *testing.T) {
	f := newGradeFixture()
	f.enrollments.enrollments["enr3"] = &models.Enrollment{
		ID: "enr3", StudentID: "stu3", ClassID: "other", Status: models.EnrollmentStatusRegistered,
	}

	_, err := f.svc.BulkUpsertEntries(context.Background(), "mid", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr3", Score: 50}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBulkEntriesBlockedWhenFinalized(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()

	_, err := f.svc.BulkUpsertEntries(ctx, "mid", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 80}},
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Finalize(ctx, "class1", FinalizeGradesRequest{Confirm: true}, "dean"))

	_, err = f.svc.BulkUpsertEntries(ctx, "mid", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 90}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrFinalized.Code, appErr.Code)
}

func TestFinalizeRequiresConfirm(t *testing.T) {
	f := newGradeFixture()

	err := f.svc.Finalize(context.Background(), "class1", FinalizeGradesRequest{}, "dean")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestFinalizeAndUnfinalizeAudited(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()

	_, err := f.svc.BulkUpsertEntries(ctx, "mid", BulkGradeEntriesRequest{
		Items: []GradeEntryItem{{EnrollmentID: "enr1", Score: 80}, {EnrollmentID: "enr2", Score: 60}},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Finalize(ctx, "class1", FinalizeGradesRequest{Confirm: true}, "dean"))
	count, err := f.results.CountFinalized(ctx, "class1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Unfinalize without a reason is rejected.
	err = f.svc.Unfinalize(ctx, "class1", UnfinalizeGradesRequest{}, "dean")
	require.Error(t, err)

	require.NoError(t, f.svc.Unfinalize(ctx, "class1", UnfinalizeGradesRequest{Reason: "entry correction"}, "dean"))
	count, err = f.results.CountFinalized(ctx, "class1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.Len(t, f.audits.logs, 2)
	assert.Equal(t, models.AuditActionGradesFinalize, f.audits.logs[0].Action)
	assert.Equal(t, models.AuditActionGradesUnfinalize, f.audits.logs[1].Action)
	assert.Contains(t, string(f.audits.logs[1].NewValues), "entry correction")

	trail, err := f.svc.AuditTrail(ctx, "class1")
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestUnfinalizeNotFinalized(t *testing.T) {
	f := newGradeFixture()

	err := f.svc.Unfinalize(context.Background(), "class1", UnfinalizeGradesRequest{Reason: "oops"}, "dean")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

type mockCourseRows struct {
	mockGradeResults
	rows []models.CourseGradeRow
}

func (m *mockCourseRows) CourseRows(ctx context.Context, studentID, semesterID string) ([]models.CourseGradeRow, error) {
	if semesterID == "" {
		return m.rows, nil
	}
	var out []models.CourseGradeRow
	for _, row := range m.rows {
		if row.SemesterID == semesterID {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestGPAOverFinalizedCourses(t *testing.T) {
	results := &mockCourseRows{rows: []models.CourseGradeRow{
		{ClassID: "c1", SemesterID: "s1", Credits: 3, LetterGrade: "A", GradePoints: 4, IsFinalized: true},
		{ClassID: "c2", SemesterID: "s1", Credits: 2, LetterGrade: "C", GradePoints: 2, IsFinalized: true},
		{ClassID: "c3", SemesterID: "s2", Credits: 4, LetterGrade: "B", GradePoints: 3, IsFinalized: false},
	}}
	svc := NewGradeService(&mockGradeComponents{}, &mockGradeEntries{}, results,
		&mockEnrollments{}, &mockScales{scale: testScale()}, nil, validator.New(), zap.NewNop())

	// Pending c3 is excluded: (4*3 + 2*2) / 5 = 3.2
	summary, err := svc.GPA(context.Background(), "stu1", "")
	require.NoError(t, err)
	assert.Equal(t, 3.2, summary.GPA)
	assert.Equal(t, 5.0, summary.TotalCredits)
	assert.Len(t, summary.Courses, 2)
}

func TestGPAEmptyTranscript(t *testing.T) {
	svc := NewGradeService(&mockGradeComponents{}, &mockGradeEntries{}, &mockCourseRows{},
		&mockEnrollments{}, &mockScales{scale: testScale()}, nil, validator.New(), zap.NewNop())

	summary, err := svc.GPA(context.Background(), "stu1", "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.GPA)
	assert.Equal(t, 0.0, summary.TotalCredits)
}

func TestTranscriptCSV(t *testing.T) {
	results := &mockCourseRows{rows: []models.CourseGradeRow{
		{ClassID: "c1", ClassCode: "CS101", ClassName: "Programming", SemesterID: "s1", Credits: 3, LetterGrade: "A", GradePoints: 4, IsFinalized: true},
	}}
	svc := NewGradeService(&mockGradeComponents{}, &mockGradeEntries{}, results,
		&mockEnrollments{}, &mockScales{scale: testScale()}, nil, validator.New(), zap.NewNop())

	raw, contentType, err := svc.Transcript(context.Background(), "stu1", "csv", "Transcript")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(raw), "CS101")
	assert.Contains(t, string(raw), "Cumulative GPA: 4.00")
}

func TestTranscriptUnsupportedFormat(t *testing.T) {
	svc := NewGradeService(&mockGradeComponents{}, &mockGradeEntries{}, &mockCourseRows{},
		&mockEnrollments{}, &mockScales{scale: testScale()}, nil, validator.New(), zap.NewNop())

	_, _, err := svc.Transcript(context.Background(), "stu1", "xlsx", "Transcript")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
