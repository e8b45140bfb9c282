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

// ExamRepository manages exam persistence.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a repository instance.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

const examColumns = "id, class_id, room_id, title, date, start_time, end_time, status, created_at, updated_at"

// FindByID returns an exam by its ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := fmt.Sprintf("SELECT %s FROM exams WHERE id = $1", examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// List returns exams matching the filter with a total count.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.ClassID != "" {
		where += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.RoomID != "" {
		where += fmt.Sprintf(" AND room_id = $%d", len(args)+1)
		args = append(args, filter.RoomID)
	}
	if filter.Date != nil {
		where += fmt.Sprintf(" AND date = $%d", len(args)+1)
		args = append(args, *filter.Date)
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM exams"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM exams%s ORDER BY date, start_time", examColumns, where)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, size, (page-1)*size)

	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}
	return exams, total, nil
}

// ListByRoomAndDate returns non-cancelled exams booked in a room on a day.
func (r *ExamRepository) ListByRoomAndDate(ctx context.Context, roomID string, date time.Time) ([]models.Exam, error) {
	query := fmt.Sprintf(`SELECT %s FROM exams
        WHERE room_id = $1 AND date = $2 AND status <> $3 ORDER BY start_time`, examColumns)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, roomID, date, models.ExamStatusCancelled); err != nil {
		return nil, fmt.Errorf("list room exams: %w", err)
	}
	return exams, nil
}

// ListByDateForStudents returns non-cancelled exams on a day whose class has
// any of the given students registered, excluding the class being scheduled.
func (r *ExamRepository) ListByDateForStudents(ctx context.Context, date time.Time, studentIDs []string, excludeClassID string) ([]models.Exam, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(studentIDs))
	args := []interface{}{date, models.ExamStatusCancelled, excludeClassID, models.EnrollmentStatusRegistered}
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT DISTINCT x.id, x.class_id, x.room_id, x.title, x.date, x.start_time, x.end_time, x.status, x.created_at, x.updated_at
        FROM exams x
        JOIN enrollments e ON e.class_id = x.class_id
        WHERE x.date = $1 AND x.status <> $2 AND x.class_id <> $3
          AND e.status = $4 AND e.student_id IN (%s)
        ORDER BY x.start_time`, strings.Join(placeholders, ","))
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("list student exams: %w", err)
	}
	return exams, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, class_id, room_id, title, date, start_time, end_time, status, created_at, updated_at)
        VALUES (:id, :class_id, :room_id, :title, :date, :start_time, :end_time, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update persists a rescheduled exam.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams
        SET room_id = :room_id, title = :title, date = :date, start_time = :start_time,
            end_time = :end_time, status = :status, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// UpdateStatus transitions an exam's status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id string, status models.ExamStatus) error {
	const query = `UPDATE exams SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update exam status: %w", err)
	}
	return nil
}

// Delete removes an exam.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM exams WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}
