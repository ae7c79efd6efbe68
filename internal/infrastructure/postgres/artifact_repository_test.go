package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/domain/repository"
)

func newTestArtifact(t *testing.T) *model.Artifact {
	t.Helper()
	fp := model.Fingerprint{VideoID: "dQw4w9WgXcQ", Language: "en", CleanFlag: true}
	a, err := model.NewArtifact(fp, "title", model.EnginePrimary, []model.Segment{{Text: "hi", StartSeconds: 0, DurationSeconds: 1}}, 100, time.Minute)
	if err != nil {
		t.Fatalf("NewArtifact failed: %v", err)
	}
	return a
}

func TestArtifactRepository_Upsert(t *testing.T) {
	tests := []struct {
		name    string
		mockFn  func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "successful upsert",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("INSERT INTO artifacts").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate artifact error",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("INSERT INTO artifacts").
					WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			wantErr: repository.ErrDuplicateArtifact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock pool: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			repo := NewArtifactRepository(mock)
			artifact := newTestArtifact(t)

			err = repo.Upsert(context.Background(), artifact)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("expected error %v, got nil", tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestArtifactRepository_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(pgxmock.NewRows([]string{
		"video_id", "language", "clean_flag", "title", "engine_used",
		"segments", "plain_text", "integrity", "extraction_duration_ms",
		"created_at", "expires_at",
	}))

	repo := NewArtifactRepository(mock)
	fp := model.Fingerprint{VideoID: "dQw4w9WgXcQ", Language: "en", CleanFlag: true}

	_, err = repo.Get(context.Background(), fp)
	if err == nil {
		t.Fatalf("expected ErrArtifactNotFound, got nil")
	}
}

func TestArtifactRepository_SweepExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("DELETE FROM artifacts").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	repo := NewArtifactRepository(mock)
	n, err := repo.SweepExpired(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("got %d, want 3", n)
	}
}
