package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hums-platform/academics-api/internal/models"
)

// GradeScaleRepository loads letter-grade scales.
type GradeScaleRepository struct {
	db *sqlx.DB
}

// NewGradeScaleRepository creates a repository instance.
func NewGradeScaleRepository(db *sqlx.DB) *GradeScaleRepository {
	return &GradeScaleRepository{db: db}
}

// FindDefault returns the default scale with its definitions ordered by
// ascending minimum percentage.
func (r *GradeScaleRepository) FindDefault(ctx context.Context) (*models.GradeScale, error) {
	const scaleQuery = `SELECT id, name, is_default, created_at FROM grade_scales WHERE is_default = TRUE LIMIT 1`
	var scale models.GradeScale
	if err := r.db.GetContext(ctx, &scale, scaleQuery); err != nil {
		return nil, err
	}
	const defQuery = `SELECT id, scale_id, letter, min_percentage, max_percentage, grade_points
        FROM grade_definitions WHERE scale_id = $1 ORDER BY min_percentage`
	if err := r.db.SelectContext(ctx, &scale.Definitions, defQuery, scale.ID); err != nil {
		return nil, fmt.Errorf("load grade definitions: %w", err)
	}
	return &scale, nil
}
