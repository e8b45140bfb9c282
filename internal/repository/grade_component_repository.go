package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hums-platform/academics-api/internal/models"
)

// GradeComponentRepository manages grade component persistence.
type GradeComponentRepository struct {
	db *sqlx.DB
}

// NewGradeComponentRepository creates a repository instance.
func NewGradeComponentRepository(db *sqlx.DB) *GradeComponentRepository {
	return &GradeComponentRepository{db: db}
}

const componentColumns = "id, class_id, name, type, weight, max_score, due_date, is_published, created_at, updated_at"

// ListByClass returns all components of a class ordered by creation.
func (r *GradeComponentRepository) ListByClass(ctx context.Context, classID string) ([]models.GradeComponent, error) {
	query := fmt.Sprintf("SELECT %s FROM grade_components WHERE class_id = $1 ORDER BY created_at", componentColumns)
	var components []models.GradeComponent
	if err := r.db.SelectContext(ctx, &components, query, classID); err != nil {
		return nil, fmt.Errorf("list grade components: %w", err)
	}
	return components, nil
}

// FindByID returns a component by its ID.
func (r *GradeComponentRepository) FindByID(ctx context.Context, id string) (*models.GradeComponent, error) {
	query := fmt.Sprintf("SELECT %s FROM grade_components WHERE id = $1", componentColumns)
	var component models.GradeComponent
	if err := r.db.GetContext(ctx, &component, query, id); err != nil {
		return nil, err
	}
	return &component, nil
}

// SumWeights returns the total weight of a class's components, optionally
// excluding one component (used when re-validating an update).
func (r *GradeComponentRepository) SumWeights(ctx context.Context, classID, excludeID string) (float64, error) {
	query := "SELECT COALESCE(SUM(weight), 0) FROM grade_components WHERE class_id = $1"
	args := []interface{}{classID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var total float64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum component weights: %w", err)
	}
	return total, nil
}

// Create inserts a new grade component.
func (r *GradeComponentRepository) Create(ctx context.Context, component *models.GradeComponent) error {
	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if component.CreatedAt.IsZero() {
		component.CreatedAt = now
	}
	component.UpdatedAt = now
	const query = `INSERT INTO grade_components (id, class_id, name, type, weight, max_score, due_date, is_published, created_at, updated_at)
        VALUES (:id, :class_id, :name, :type, :weight, :max_score, :due_date, :is_published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("create grade component: %w", err)
	}
	return nil
}

// Update persists an edited grade component.
func (r *GradeComponentRepository) Update(ctx context.Context, component *models.GradeComponent) error {
	component.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grade_components
        SET name = :name, type = :type, weight = :weight, max_score = :max_score,
            due_date = :due_date, is_published = :is_published, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("update grade component: %w", err)
	}
	return nil
}

// Delete removes a grade component.
func (r *GradeComponentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM grade_components WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete grade component: %w", err)
	}
	return nil
}
