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

// GradeResultRepository stores computed enrollment grades.
type GradeResultRepository struct {
	db *sqlx.DB
}

// NewGradeResultRepository creates a repository instance.
func NewGradeResultRepository(db *sqlx.DB) *GradeResultRepository {
	return &GradeResultRepository{db: db}
}

// Upsert inserts or updates computed results in a transaction.
func (r *GradeResultRepository) Upsert(ctx context.Context, results []models.EnrollmentGrade) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range results {
		if results[i].ID == "" {
			results[i].ID = uuid.NewString()
		}
		if results[i].CalculatedAt.IsZero() {
			results[i].CalculatedAt = time.Now().UTC()
		}
		const query = `INSERT INTO enrollment_grades (id, enrollment_id, class_id, total_percentage, letter_grade, grade_points, is_finalized, calculated_at)
                VALUES (:id, :enrollment_id, :class_id, :total_percentage, :letter_grade, :grade_points, :is_finalized, :calculated_at)
                ON CONFLICT (enrollment_id)
                DO UPDATE SET total_percentage = EXCLUDED.total_percentage, letter_grade = EXCLUDED.letter_grade,
                    grade_points = EXCLUDED.grade_points, calculated_at = EXCLUDED.calculated_at`
		if _, err := tx.NamedExecContext(ctx, query, results[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert enrollment grade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment grades: %w", err)
	}
	return nil
}

// FetchByEnrollments returns computed results keyed by enrollment ID.
func (r *GradeResultRepository) FetchByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]models.EnrollmentGrade, error) {
	if len(enrollmentIDs) == 0 {
		return map[string]models.EnrollmentGrade{}, nil
	}
	placeholders := make([]string, len(enrollmentIDs))
	args := make([]interface{}, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, enrollment_id, class_id, total_percentage, letter_grade, grade_points, is_finalized, calculated_at
        FROM enrollment_grades WHERE enrollment_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch enrollment grades: %w", err)
	}
	defer rows.Close()
	result := make(map[string]models.EnrollmentGrade, len(enrollmentIDs))
	for rows.Next() {
		var grade models.EnrollmentGrade
		if err := rows.StructScan(&grade); err != nil {
			return nil, fmt.Errorf("scan enrollment grade: %w", err)
		}
		result[grade.EnrollmentID] = grade
	}
	return result, nil
}

// SetFinalized flips the finalized flag for every result of a class.
func (r *GradeResultRepository) SetFinalized(ctx context.Context, classID string, finalized bool) error {
	const query = `UPDATE enrollment_grades SET is_finalized = $2 WHERE class_id = $1`
	if _, err := r.db.ExecContext(ctx, query, classID, finalized); err != nil {
		return fmt.Errorf("set finalized: %w", err)
	}
	return nil
}

// CountFinalized returns how many results of a class are locked.
func (r *GradeResultRepository) CountFinalized(ctx context.Context, classID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM enrollment_grades WHERE class_id = $1 AND is_finalized = TRUE`
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count finalized grades: %w", err)
	}
	return count, nil
}

// CourseRows returns per-course results for a student, scoped to a semester
// when semesterID is non-empty. Rows join through enrollments and classes so
// credits and course names travel with the grade.
func (r *GradeResultRepository) CourseRows(ctx context.Context, studentID, semesterID string) ([]models.CourseGradeRow, error) {
	query := `SELECT g.class_id, c.code AS class_code, c.name AS class_name, c.semester_id, c.credits,
            g.letter_grade, g.grade_points, g.is_finalized
        FROM enrollment_grades g
        JOIN enrollments e ON e.id = g.enrollment_id
        JOIN classes c ON c.id = g.class_id
        WHERE e.student_id = $1`
	args := []interface{}{studentID}
	if semesterID != "" {
		query += " AND c.semester_id = $2"
		args = append(args, semesterID)
	}
	query += " ORDER BY c.semester_id, c.code"
	var rows []models.CourseGradeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list course grades: %w", err)
	}
	return rows, nil
}
