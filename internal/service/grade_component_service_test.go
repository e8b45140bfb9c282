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

type mockComponentRepo struct {
	components map[string]*models.GradeComponent
	nextID     int
}

func (m *mockComponentRepo) ListByClass(ctx context.Context, classID string) ([]models.GradeComponent, error) {
	var out []models.GradeComponent
	for _, c := range m.components {
		if c.ClassID == classID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockComponentRepo) FindByID(ctx context.Context, id string) (*models.GradeComponent, error) {
	if c, ok := m.components[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockComponentRepo) SumWeights(ctx context.Context, classID, excludeID string) (float64, error) {
	total := 0.0
	for _, c := range m.components {
		if c.ClassID == classID && c.ID != excludeID {
			total += c.Weight
		}
	}
	return total, nil
}

func (m *mockComponentRepo) Create(ctx context.Context, component *models.GradeComponent) error {
	if m.components == nil {
		m.components = make(map[string]*models.GradeComponent)
	}
	m.nextID++
	component.ID = "comp" + string(rune('0'+m.nextID))
	stored := *component
	m.components[component.ID] = &stored
	return nil
}

func (m *mockComponentRepo) Update(ctx context.Context, component *models.GradeComponent) error {
	stored := *component
	m.components[component.ID] = &stored
	return nil
}

func (m *mockComponentRepo) Delete(ctx context.Context, id string) error {
	delete(m.components, id)
	return nil
}

type mockEntryCounter struct {
	counts map[string]int
}

func (m *mockEntryCounter) CountByComponent(ctx context.Context, componentID string) (int, error) {
	return m.counts[componentID], nil
}

type mockClassReader struct {
	classes map[string]*models.Class
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func newComponentService(repo *mockComponentRepo, counter *mockEntryCounter) *GradeComponentService {
	classes := &mockClassReader{classes: map[string]*models.Class{"class1": {ID: "class1", Code: "CS101"}}}
	return NewGradeComponentService(repo, counter, classes, validator.New(), zap.NewNop())
}

func TestGradeComponentCreate(t *testing.T) {
	repo := &mockComponentRepo{}
	svc := newComponentService(repo, &mockEntryCounter{})

	component, err := svc.Create(context.Background(), "class1", CreateGradeComponentRequest{
		Name: "Midterm", Type: models.ComponentTypeMidterm, Weight: 40, MaxScore: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "class1", component.ClassID)
	assert.Equal(t, 40.0, component.Weight)
}

func TestGradeComponentCreateExceedsBudget(t *testing.T) {
	repo := &mockComponentRepo{components: map[string]*models.GradeComponent{
		"comp1": {ID: "comp1", ClassID: "class1", Weight: 70},
	}}
	svc := newComponentService(repo, &mockEntryCounter{})

	_, err := svc.Create(context.Background(), "class1", CreateGradeComponentRequest{
		Name: "Final", Type: models.ComponentTypeFinal, Weight: 40, MaxScore: 100,
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErr.Code)
}

func TestGradeComponentCreateExactHundred(t *testing.T) {
	repo := &mockComponentRepo{components: map[string]*models.GradeComponent{
		"comp1": {ID: "comp1", ClassID: "class1", Weight: 60},
	}}
	svc := newComponentService(repo, &mockEntryCounter{})

	_, err := svc.Create(context.Background(), "class1", CreateGradeComponentRequest{
		Name: "Final", Type: models.ComponentTypeFinal, Weight: 40, MaxScore: 100,
	})
	assert.NoError(t, err)
}

func TestGradeComponentCreateUnknownClass(t *testing.T) {
	svc := newComponentService(&mockComponentRepo{}, &mockEntryCounter{})

	_, err := svc.Create(context.Background(), "nope", CreateGradeComponentRequest{
		Name: "Quiz", Type: models.ComponentTypeQuiz, Weight: 10, MaxScore: 20,
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestGradeComponentUpdateWeightExcludesSelf(t *testing.T) {
	repo := &mockComponentRepo{components: map[string]*models.GradeComponent{
		"comp1": {ID: "comp1", ClassID: "class1", Name: "Midterm", Type: models.ComponentTypeMidterm, Weight: 40, MaxScore: 100},
		"comp2": {ID: "comp2", ClassID: "class1", Name: "Final", Type: models.ComponentTypeFinal, Weight: 60, MaxScore: 100},
	}}
	svc := newComponentService(repo, &mockEntryCounter{})

	// 40 -> 35 keeps the total under 100 because comp1's old weight is excluded.
	weight := 35.0
	component, err := svc.Update(context.Background(), "comp1", models.GradeComponentPatch{Weight: &weight})
	require.NoError(t, err)
	assert.Equal(t, 35.0, component.Weight)

	weight = 45.0
	_, err = svc.Update(context.Background(), "comp1", models.GradeComponentPatch{Weight: &weight})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErr.Code)
}

func TestGradeComponentMaxScoreLockedByEntries(t *testing.T) {
	repo := &mockComponentRepo{components: map[string]*models.GradeComponent{
		"comp1": {ID: "comp1", ClassID: "class1", Name: "Quiz", Type: models.ComponentTypeQuiz, Weight: 10, MaxScore: 20},
	}}
	counter := &mockEntryCounter{counts: map[string]int{"comp1": 3}}
	svc := newComponentService(repo, counter)

	maxScore := 50.0
	_, err := svc.Update(context.Background(), "comp1", models.GradeComponentPatch{MaxScore: &maxScore})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	// Same value is a no-op, not a conflict.
	same := 20.0
	_, err = svc.Update(context.Background(), "comp1", models.GradeComponentPatch{MaxScore: &same})
	assert.NoError(t, err)
}

func TestGradeComponentDeleteProtectedByEntries(t *testing.T) {
	repo := &mockComponentRepo{components: map[string]*models.GradeComponent{
		"comp1": {ID: "comp1", ClassID: "class1", Weight: 10, MaxScore: 20},
	}}
	counter := &mockEntryCounter{counts: map[string]int{"comp1": 1}}
	svc := newComponentService(repo, counter)

	err := svc.Delete(context.Background(), "comp1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	counter.counts["comp1"] = 0
	require.NoError(t, svc.Delete(context.Background(), "comp1"))
}

func TestValidateWeights(t *testing.T) {
	repo := &mockComponentRepo{components: map[string]*models.GradeComponent{
		"comp1": {ID: "comp1", ClassID: "class1", Weight: 30},
		"comp2": {ID: "comp2", ClassID: "class1", Weight: 30},
	}}
	svc := newComponentService(repo, &mockEntryCounter{})

	summary, err := svc.ValidateWeights(context.Background(), "class1")
	require.NoError(t, err)
	assert.False(t, summary.Valid)
	assert.Equal(t, 60.0, summary.Total)

	repo.components["comp3"] = &models.GradeComponent{ID: "comp3", ClassID: "class1", Weight: 40}
	summary, err = svc.ValidateWeights(context.Background(), "class1")
	require.NoError(t, err)
	assert.True(t, summary.Valid)
	assert.Equal(t, 100.0, summary.Total)
}

func TestValidateWeightsFloatNoise(t *testing.T) {
	repo := &mockComponentRepo{components: map[string]*models.GradeComponent{
		"comp1": {ID: "comp1", ClassID: "class1", Weight: 33.33},
		"comp2": {ID: "comp2", ClassID: "class1", Weight: 33.33},
		"comp3": {ID: "comp3", ClassID: "class1", Weight: 33.34},
	}}
	svc := newComponentService(repo, &mockEntryCounter{})

	summary, err := svc.ValidateWeights(context.Background(), "class1")
	require.NoError(t, err)
	assert.True(t, summary.Valid)
}
