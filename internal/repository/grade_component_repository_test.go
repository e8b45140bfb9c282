package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/hums-platform/academics-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradeComponentRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeComponentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_components")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	component := &models.GradeComponent{
		ClassID:  "class-1",
		Name:     "Midterm",
		Type:     models.ComponentTypeMidterm,
		Weight:   40,
		MaxScore: 100,
	}
	require.NoError(t, repo.Create(context.Background(), component))
	require.NotEmpty(t, component.ID)

	rows := sqlmock.NewRows([]string{"id", "class_id", "name", "type", "weight", "max_score", "due_date", "is_published", "created_at", "updated_at"}).
		AddRow(component.ID, "class-1", "Midterm", "MIDTERM", 40.0, 100.0, nil, false, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, name, type, weight, max_score")).
		WithArgs(component.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), component.ID)
	require.NoError(t, err)
	require.Equal(t, "Midterm", found.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeComponentRepositorySumWeights(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeComponentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(weight), 0) FROM grade_components WHERE class_id = $1")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(70.0))

	total, err := repo.SumWeights(context.Background(), "class-1", "")
	require.NoError(t, err)
	require.Equal(t, 70.0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeComponentRepositorySumWeightsExcluding(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeComponentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(weight), 0) FROM grade_components WHERE class_id = $1 AND id <> $2")).
		WithArgs("class-1", "comp-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(30.0))

	total, err := repo.SumWeights(context.Background(), "class-1", "comp-1")
	require.NoError(t, err)
	require.Equal(t, 30.0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeComponentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeComponentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grade_components WHERE id = $1")).
		WithArgs("comp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "comp-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeEntryRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeEntryRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entries := []models.GradeEntry{
		{ComponentID: "comp-1", EnrollmentID: "enr-1", Score: 80},
		{ComponentID: "comp-1", EnrollmentID: "enr-2", Score: 65},
	}
	require.NoError(t, repo.BulkUpsert(context.Background(), entries))
	require.NotEmpty(t, entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeResultRepositorySetFinalized(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewGradeResultRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_grades SET is_finalized")).
		WithArgs("class-1", true).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.SetFinalized(context.Background(), "class-1", true))
	require.NoError(t, mock.ExpectationsWereMet())
}
