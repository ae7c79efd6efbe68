package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
)

// JobRepository implements repository.JobStore using PostgreSQL.
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// Create persists a freshly queued job.
func (r *JobRepository) Create(ctx context.Context, job *model.Job) error {
	const query = `
		INSERT INTO jobs (
			job_id, video_id, language, clean_flag, status,
			enqueued_at, started_at, ended_at, error_kind,
			webhook_url, webhook_delivery_status, attempts
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		job.JobID,
		job.Fingerprint.VideoID,
		job.Fingerprint.Language,
		job.Fingerprint.CleanFlag,
		string(job.Status),
		job.EnqueuedAt,
		job.StartedAt,
		job.EndedAt,
		nullString(string(job.ErrorKind)),
		nullString(job.WebhookURL),
		string(job.WebhookDeliveryStatus),
		job.Attempts,
	)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpsert, metrics.TableJobs).Inc()
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get retrieves a job by id.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*model.Job, error) {
	const query = `
		SELECT job_id, video_id, language, clean_flag, status,
		       enqueued_at, started_at, ended_at, error_kind,
		       webhook_url, webhook_delivery_status, attempts
		FROM jobs
		WHERE job_id = $1
	`

	job, err := scanJob(r.db.QueryRow(ctx, query, jobID))
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableJobs).Inc()
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists the full job state.
func (r *JobRepository) Update(ctx context.Context, job *model.Job) error {
	const query = `
		UPDATE jobs SET
			status = $2, started_at = $3, ended_at = $4, error_kind = $5,
			webhook_delivery_status = $6, attempts = $7
		WHERE job_id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		job.JobID,
		string(job.Status),
		job.StartedAt,
		job.EndedAt,
		nullString(string(job.ErrorKind)),
		string(job.WebhookDeliveryStatus),
		job.Attempts,
	)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpsert, metrics.TableJobs).Inc()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}
	return nil
}

// ResetStaleRunning resets jobs stuck in running past their lease back to
// queued, for reaper use (spec §4.7 crash recovery).
func (r *JobRepository) ResetStaleRunning(ctx context.Context, leaseExpiry time.Time) ([]string, error) {
	const query = `
		UPDATE jobs SET status = 'queued', started_at = NULL
		WHERE status = 'running' AND started_at < $1
		RETURNING job_id
	`

	rows, err := r.db.Query(ctx, query, leaseExpiry)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpsert, metrics.TableJobs).Inc()
	if err != nil {
		return nil, fmt.Errorf("reset stale running jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reset job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reset job ids: %w", err)
	}

	return ids, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		jobID, videoID, language, status string
		cleanFlag                        bool
		enqueuedAt                       time.Time
		startedAt, endedAt               *time.Time
		errorKind, webhookURL            *string
		webhookDeliveryStatus            string
		attempts                         int
	)

	err := row.Scan(
		&jobID, &videoID, &language, &cleanFlag, &status,
		&enqueuedAt, &startedAt, &endedAt, &errorKind,
		&webhookURL, &webhookDeliveryStatus, &attempts,
	)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		JobID: jobID,
		Fingerprint: model.Fingerprint{
			VideoID:   videoID,
			Language:  language,
			CleanFlag: cleanFlag,
		},
		Status:                model.JobStatus(status),
		EnqueuedAt:            enqueuedAt,
		StartedAt:             startedAt,
		EndedAt:               endedAt,
		WebhookDeliveryStatus: model.WebhookDeliveryStatus(webhookDeliveryStatus),
		Attempts:              attempts,
	}
	if errorKind != nil {
		job.ErrorKind = model.ErrorKind(*errorKind)
	}
	if webhookURL != nil {
		job.WebhookURL = *webhookURL
	}

	return job, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that JobRepository implements repository.JobStore.
var _ repository.JobStore = (*JobRepository)(nil)
