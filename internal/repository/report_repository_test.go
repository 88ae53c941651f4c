package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhaven/petcare-api/internal/models"
)

func TestReportRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO report_jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeOccupancy,
		CreatedBy: "mgr-1",
		Params: models.ReportJobParams{
			From:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			To:     time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
			Format: models.ReportFormatCSV,
		},
	}
	err := repo.Create(context.Background(), job)

	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateBuildsSetClause(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	status := models.ReportStatusFinished
	progress := 100
	url := "/api/v1/export/token-1"
	mock.ExpectExec(`UPDATE report_jobs SET status = \$1, progress = \$2, result_url = \$3 WHERE id = \$4`).
		WithArgs(status, progress, url, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateReportJobParams{
		Status:    &status,
		Progress:  &progress,
		ResultURL: &url,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateNoFieldsIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	err := repo.Update(context.Background(), "job-1", UpdateReportJobParams{})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}).
		AddRow("job-1", string(models.ReportTypeStaffLoad), []byte(`{"format":"pdf"}`), string(models.ReportStatusQueued), 0, nil, "mgr-1", now, nil, nil)
	mock.ExpectQuery("SELECT (.+) FROM report_jobs WHERE status = 'QUEUED'").
		WithArgs(20).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ReportTypeStaffLoad, jobs[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}
