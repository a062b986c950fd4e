package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/models"
)

func TestExportJobRepositoryLifecycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	mock.ExpectExec("INSERT INTO export_jobs").WillReturnResult(sqlmock.NewResult(1, 1))
	job := &models.ExportJob{Type: models.ExportTypeClassTeacherRoster, Format: "csv", Params: models.ExportParams{TermID: "term1"}, CreatedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.NotEmpty(t, job.ID)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $2, progress = $3")).
		WithArgs(job.ID, models.ExportStatusProcessing, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkProcessing(context.Background(), job.ID, 10))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $2, progress = 100")).
		WithArgs(job.ID, models.ExportStatusFinished, "exports/a.csv", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkFinished(context.Background(), job.ID, "exports/a.csv", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryFindByIDScansParams(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	now := time.Now()
	mock.ExpectQuery("FROM export_jobs WHERE id = \\$1").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "format", "params", "status", "progress", "result_path", "error", "created_by", "created_at", "finished_at"}).
			AddRow("job-1", "attendance_summary", "pdf", []byte(`{"termId":"term1","classId":"c1"}`), "QUEUED", 0, nil, nil, "u1", now, nil))

	job, err := repo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "term1", job.Params.TermID)
	require.NotNil(t, job.Params.ClassID)
	assert.Equal(t, "c1", *job.Params.ClassID)
}
