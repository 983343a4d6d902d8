package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus/ucms-api/internal/models"
)

// ReportRepository provides persistence for asynchronous report jobs.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportJobColumns = `id, type, params, status, result_url, created_by, created_at, finished_at, error_message`

// Create stores a queued job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	const query = `INSERT INTO report_jobs (id, type, params, status, created_by, created_at) VALUES (:id, :type, :params, :status, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID loads a job by id.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE id = $1`, reportJobColumns)
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report job by id: %w", err)
	}
	return &job, nil
}

// ListByUser returns a user's jobs, newest first.
func (r *ReportRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_jobs WHERE created_by = $1 ORDER BY created_at DESC LIMIT $2`, reportJobColumns)
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

// MarkProcessing transitions a job out of the queue.
func (r *ReportRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE report_jobs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusProcessing); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}
	return nil
}

// MarkFinished records the result URL on success.
func (r *ReportRepository) MarkFinished(ctx context.Context, id, resultURL string) error {
	const query = `UPDATE report_jobs SET status = $2, result_url = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFinished, resultURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job finished: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure.
func (r *ReportRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE report_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFailed, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job failed: %w", err)
	}
	return nil
}

// DeleteFinishedBefore removes finished/failed jobs older than the cutoff
// and returns how many rows went away.
func (r *ReportRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM report_jobs WHERE status IN ($1, $2) AND finished_at < $3`
	res, err := r.db.ExecContext(ctx, query, models.ReportStatusFinished, models.ReportStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete finished report jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
