package service

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hums-platform/academics-api/internal/models"
	appErrors "github.com/hums-platform/academics-api/pkg/errors"
)

// weightCapEpsilon lets an exact 100 total pass under float noise.
const weightCapEpsilon = 1e-9

type gradeComponentRepo interface {
	ListByClass(ctx context.Context, classID string) ([]models.GradeComponent, error)
	FindByID(ctx context.Context, id string) (*models.GradeComponent, error)
	SumWeights(ctx context.Context, classID, excludeID string) (float64, error)
	Create(ctx context.Context, component *models.GradeComponent) error
	Update(ctx context.Context, component *models.GradeComponent) error
	Delete(ctx context.Context, id string) error
}

type gradeEntryCounter interface {
	CountByComponent(ctx context.Context, componentID string) (int, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// CreateGradeComponentRequest describes creation payload.
type CreateGradeComponentRequest struct {
	Name     string                    `json:"name" validate:"required"`
	Type     models.GradeComponentType `json:"type" validate:"required"`
	Weight   float64                   `json:"weight" validate:"gte=0,lte=100"`
	MaxScore float64                   `json:"max_score" validate:"gt=0"`
	DueDate  *time.Time                `json:"due_date"`
}

// GradeComponentService manages the weighted component registry of a class.
type GradeComponentService struct {
	repo      gradeComponentRepo
	entries   gradeEntryCounter
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeComponentService constructs service.
func NewGradeComponentService(repo gradeComponentRepo, entries gradeEntryCounter, classes classReader, validate *validator.Validate, logger *zap.Logger) *GradeComponentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeComponentService{repo: repo, entries: entries, classes: classes, validator: validate, logger: logger}
}

// List returns the components of a class.
func (s *GradeComponentService) List(ctx context.Context, classID string) ([]models.GradeComponent, error) {
	components, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade components")
	}
	return components, nil
}

// Create inserts a new component, enforcing the 100% class weight budget.
func (s *GradeComponentService) Create(ctx context.Context, classID string, req CreateGradeComponentRequest) (*models.GradeComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade component payload")
	}
	if !models.ValidComponentType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown component type")
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	total, err := s.repo.SumWeights(ctx, classID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum component weights")
	}
	if total+req.Weight > 100+weightCapEpsilon {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "total component weight would exceed 100")
	}
	component := &models.GradeComponent{
		ClassID:  classID,
		Name:     strings.TrimSpace(req.Name),
		Type:     req.Type,
		Weight:   req.Weight,
		MaxScore: req.MaxScore,
		DueDate:  req.DueDate,
	}
	if err := s.repo.Create(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade component")
	}
	return component, nil
}

// Update applies a partial patch. Weight changes re-validate the class budget
// excluding this component; the max score is immutable once entries exist.
func (s *GradeComponentService) Update(ctx context.Context, id string, patch models.GradeComponentPatch) (*models.GradeComponent, error) {
	component, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade component not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade component")
	}
	entryCount, err := s.entries.CountByComponent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count grade entries")
	}
	if patch.Weight != nil {
		if *patch.Weight < 0 || *patch.Weight > 100 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "weight must be between 0 and 100")
		}
		others, err := s.repo.SumWeights(ctx, component.ClassID, component.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum component weights")
		}
		if others+*patch.Weight > 100+weightCapEpsilon {
			return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "total component weight would exceed 100")
		}
		component.Weight = *patch.Weight
	}
	if patch.MaxScore != nil && *patch.MaxScore != component.MaxScore {
		if entryCount > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cannot change max score with existing entries")
		}
		if *patch.MaxScore <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "max score must be positive")
		}
		component.MaxScore = *patch.MaxScore
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name must not be empty")
		}
		component.Name = name
	}
	if patch.Type != nil {
		if !models.ValidComponentType(*patch.Type) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown component type")
		}
		component.Type = *patch.Type
	}
	if patch.DueDate != nil {
		component.DueDate = patch.DueDate
	}
	if patch.IsPublished != nil {
		component.IsPublished = *patch.IsPublished
	}
	if err := s.repo.Update(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade component")
	}
	return component, nil
}

// Delete removes a component. Components with recorded entries are protected;
// entries must be deleted first.
func (s *GradeComponentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "grade component not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade component")
	}
	entryCount, err := s.entries.CountByComponent(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count grade entries")
	}
	if entryCount > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "cannot delete component with existing entries")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade component")
	}
	return nil
}

// ValidateWeights reports the weight budget of a class. A class is complete
// when its weights sum to 100 within a hundredth of a percent.
func (s *GradeComponentService) ValidateWeights(ctx context.Context, classID string) (*models.WeightSummary, error) {
	components, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade components")
	}
	total := 0.0
	for _, component := range components {
		total += component.Weight
	}
	return &models.WeightSummary{
		Valid:      math.Abs(total-100) < 0.01,
		Total:      total,
		Components: components,
	}, nil
}
