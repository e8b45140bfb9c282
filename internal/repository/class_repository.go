package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hums-platform/academics-api/internal/models"
)

// ClassRepository reads the class catalog.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a repository instance.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, code, name, credits, semester_id, lecturer_id, created_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}
