package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hums-platform/academics-api/internal/models"
)

// GradeEntryRepository handles grade entry persistence.
type GradeEntryRepository struct {
	db *sqlx.DB
}

// NewGradeEntryRepository creates a new grade entry repository.
func NewGradeEntryRepository(db *sqlx.DB) *GradeEntryRepository {
	return &GradeEntryRepository{db: db}
}

// CountByComponent returns the number of entries recorded for a component.
func (r *GradeEntryRepository) CountByComponent(ctx context.Context, componentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM grade_entries WHERE component_id = $1", componentID); err != nil {
		return 0, fmt.Errorf("count grade entries: %w", err)
	}
	return count, nil
}

// ListByComponent returns all entries for a component.
func (r *GradeEntryRepository) ListByComponent(ctx context.Context, componentID string) ([]models.GradeEntry, error) {
	const query = `SELECT id, component_id, enrollment_id, score, remarks, graded_by, created_at, updated_at
        FROM grade_entries WHERE component_id = $1 ORDER BY created_at`
	var entries []models.GradeEntry
	if err := r.db.SelectContext(ctx, &entries, query, componentID); err != nil {
		return nil, fmt.Errorf("list grade entries: %w", err)
	}
	return entries, nil
}

// BulkUpsert inserts or updates multiple entries in a transaction.
func (r *GradeEntryRepository) BulkUpsert(ctx context.Context, entries []models.GradeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		entries[i].UpdatedAt = now
		const query = `INSERT INTO grade_entries (id, component_id, enrollment_id, score, remarks, graded_by, created_at, updated_at)
                VALUES (:id, :component_id, :enrollment_id, :score, :remarks, :graded_by, :created_at, :updated_at)
                ON CONFLICT (component_id, enrollment_id)
                DO UPDATE SET score = EXCLUDED.score, remarks = EXCLUDED.remarks, graded_by = EXCLUDED.graded_by, updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, query, entries[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert grade entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade entries: %w", err)
	}
	return nil
}

// FetchByEnrollments returns entries keyed by enrollment ID for one class.
func (r *GradeEntryRepository) FetchByEnrollments(ctx context.Context, enrollmentIDs []string, classID string) (map[string][]models.GradeEntry, error) {
	if len(enrollmentIDs) == 0 {
		return map[string][]models.GradeEntry{}, nil
	}
	placeholders := make([]string, len(enrollmentIDs))
	args := make([]interface{}, len(enrollmentIDs)+1)
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	args[len(args)-1] = classID
	query := fmt.Sprintf(`SELECT e.id, e.component_id, e.enrollment_id, e.score, e.remarks, e.graded_by, e.created_at, e.updated_at
        FROM grade_entries e
        JOIN grade_components c ON c.id = e.component_id
        WHERE e.enrollment_id IN (%s) AND c.class_id = $%d`, strings.Join(placeholders, ","), len(args))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch grade entries: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.GradeEntry, len(enrollmentIDs))
	for rows.Next() {
		var entry models.GradeEntry
		if err := rows.StructScan(&entry); err != nil {
			return nil, fmt.Errorf("scan grade entry: %w", err)
		}
		result[entry.EnrollmentID] = append(result[entry.EnrollmentID], entry)
	}
	return result, nil
}

// DeleteByComponent removes all entries of a component.
func (r *GradeEntryRepository) DeleteByComponent(ctx context.Context, componentID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM grade_entries WHERE component_id = $1", componentID); err != nil {
		return fmt.Errorf("delete grade entries: %w", err)
	}
	return nil
}
