package repository

import (
	"context"
	"time"

	"github.com/transcriptapi/core/internal/domain/model"
)

// ArtifactStore is the Tier-3 (C4) durable, authoritative persistence for
// artifacts. Implementations must support transactional upsert keyed by
// the unique (video_id, language, clean_flag) index and must allow reads
// without holding write locks.
type ArtifactStore interface {
	// Upsert writes an artifact, replacing any existing row for the same
	// fingerprint (last-writer-wins; safe because only a single-flight
	// leader ever calls commit for a given fingerprint).
	Upsert(ctx context.Context, artifact *model.Artifact) error

	// Get retrieves the artifact for a fingerprint.
	// Returns ErrArtifactNotFound if none exists.
	Get(ctx context.Context, fp model.Fingerprint) (*model.Artifact, error)

	// DeleteByFingerprint removes the artifact row for a fingerprint, if any.
	DeleteByFingerprint(ctx context.Context, fp model.Fingerprint) error

	// SweepExpired deletes artifacts older than the retention window,
	// returning the number of rows removed. Invoked periodically by a
	// retention sweeper.
	SweepExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// JobStore is the Tier-3 durable record of job lifecycle, indexed by job_id.
type JobStore interface {
	// Create persists a freshly queued job.
	Create(ctx context.Context, job *model.Job) error

	// Get retrieves a job by id. Returns ErrJobNotFound if none exists.
	Get(ctx context.Context, jobID string) (*model.Job, error)

	// Update persists the full job state (status, timestamps, error_kind,
	// webhook_delivery_status, attempts).
	Update(ctx context.Context, job *model.Job) error

	// ResetStaleRunning resets jobs stuck in running past their lease to
	// queued, for reaper use. Returns the job ids reset.
	ResetStaleRunning(ctx context.Context, leaseExpiry time.Time) ([]string, error)
}
