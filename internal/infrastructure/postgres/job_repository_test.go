package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/transcriptapi/core/internal/domain/model"
)

func TestJobRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewJobRepository(mock)
	fp := model.Fingerprint{VideoID: "dQw4w9WgXcQ", Language: "en", CleanFlag: true}
	job := model.NewJob("job-1", fp, "")

	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestJobRepository_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(pgxmock.NewRows([]string{
		"job_id", "video_id", "language", "clean_flag", "status",
		"enqueued_at", "started_at", "ended_at", "error_kind",
		"webhook_url", "webhook_delivery_status", "attempts",
	}))

	repo := NewJobRepository(mock)
	_, err = repo.Get(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error for missing job")
	}
}

func TestJobRepository_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE jobs").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewJobRepository(mock)
	fp := model.Fingerprint{VideoID: "dQw4w9WgXcQ", Language: "en", CleanFlag: true}
	job := model.NewJob("job-1", fp, "")
	if err := job.TransitionTo(model.JobRunning); err != nil {
		t.Fatalf("TransitionTo failed: %v", err)
	}

	if err := repo.Update(context.Background(), job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}
