package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/ucms-api/internal/models"
)

func TestReportRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO report_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeGrades,
		Params:    models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatCSV},
		CreatedBy: "user-1",
	}
	err := repo.Create(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.ReportStatusQueued, job.Status)
	require.False(t, job.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryFindByIDScansParams(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "type", "params", "status", "result_url", "created_by", "created_at", "finished_at", "error_message"}).
		AddRow("job-1", models.ReportTypeTimetable, []byte(`{"userId":"user-1","format":"pdf"}`), models.ReportStatusFinished, "/api/v1/reports/download/tok", "user-1", time.Now(), time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, params, status, result_url, created_by, created_at, finished_at, error_message FROM report_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := repo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatPDF, job.Params.Format)
	require.Equal(t, "user-1", job.Params.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryMarkFailed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1")).
		WithArgs("job-1", models.ReportStatusFailed, "queue unavailable", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), "job-1", "queue unavailable")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryDeleteFinishedBefore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM report_jobs WHERE status IN ($1, $2) AND finished_at < $3")).
		WithArgs(models.ReportStatusFinished, models.ReportStatusFailed, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteFinishedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
