package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hums-platform/academics-api/internal/models"
)

// EnrollmentRepository reads enrollment rosters.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a repository instance.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns a single enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, semester_id, status, registered_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListRegisteredByClass returns the active roster of a class.
func (r *EnrollmentRepository) ListRegisteredByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, semester_id, status, registered_at
        FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY registered_at`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, classID, models.EnrollmentStatusRegistered); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}
