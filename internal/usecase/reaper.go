package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/transcriptapi/core/internal/domain/repository"
)

// ReaperConfig controls the background lease-reaper and retention-sweeper
// intervals (spec §4.7, §4.4).
type ReaperConfig struct {
	// ReaperInterval is how often stale running jobs are checked.
	ReaperInterval time.Duration
	// ReaperGrace extends the extraction timeout before a running job is
	// considered abandoned: a job is reclaimed once
	// now - started_at > extraction_timeout + ReaperGrace.
	ReaperGrace time.Duration
	// ExtractionTimeout is the per-job deadline used to compute lease expiry.
	ExtractionTimeout time.Duration
	// SweepInterval is how often expired durable artifacts are purged.
	SweepInterval time.Duration
	// RetentionWindow is the C4 durable retention window; artifacts older
	// than this are swept.
	RetentionWindow time.Duration
}

// DefaultReaperConfig returns sensible reaper/sweeper timing.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		ReaperInterval:    30 * time.Second,
		ReaperGrace:       15 * time.Second,
		ExtractionTimeout: 30 * time.Second,
		SweepInterval:     time.Hour,
		RetentionWindow:   30 * 24 * time.Hour,
	}
}

// Reaper reclaims jobs abandoned by a crashed worker and purges artifacts
// past their durable retention window. Neither loop depends on the other;
// both run for the lifetime of the worker process.
type Reaper struct {
	jobs      repository.JobStore
	queue     repository.JobQueue
	artifacts repository.ArtifactStore
	cfg       ReaperConfig
}

// NewReaper builds a Reaper.
func NewReaper(jobs repository.JobStore, queue repository.JobQueue, artifacts repository.ArtifactStore, cfg ReaperConfig) *Reaper {
	return &Reaper{jobs: jobs, queue: queue, artifacts: artifacts, cfg: cfg}
}

// Run drives the reaper and sweeper loops until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	reaperTicker := time.NewTicker(r.cfg.ReaperInterval)
	defer reaperTicker.Stop()
	sweepTicker := time.NewTicker(r.cfg.SweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reaperTicker.C:
			r.reclaimStaleJobs(ctx)
		case <-sweepTicker.C:
			r.sweepExpiredArtifacts(ctx)
		}
	}
}

// reclaimStaleJobs resets jobs whose lease has expired back to queued and
// re-enqueues them so a live worker picks them up. The job record already
// reflects status=queued by the time it lands back on the queue, so a
// worker that dequeues it concurrently with this call just finds a job
// already runnable rather than racing a transition.
func (r *Reaper) reclaimStaleJobs(ctx context.Context) {
	leaseExpiry := time.Now().Add(-(r.cfg.ExtractionTimeout + r.cfg.ReaperGrace))

	jobIDs, err := r.jobs.ResetStaleRunning(ctx, leaseExpiry)
	if err != nil {
		slog.Error("reaper: failed to reset stale running jobs", "error", err)
		return
	}
	if len(jobIDs) == 0 {
		return
	}

	for _, jobID := range jobIDs {
		if err := r.queue.Enqueue(ctx, jobID); err != nil {
			slog.Error("reaper: failed to re-enqueue reclaimed job", "job_id", jobID, "error", err)
			continue
		}
		slog.Warn("reaper: reclaimed abandoned job", "job_id", jobID)
	}
}

// sweepExpiredArtifacts deletes durable artifacts past their retention
// window (spec §4.4's retention sweep). C2/C3 entries expire on their own
// TTLs and need no sweep.
func (r *Reaper) sweepExpiredArtifacts(ctx context.Context) {
	deleted, err := r.artifacts.SweepExpired(ctx, time.Now().Add(-r.cfg.RetentionWindow))
	if err != nil {
		slog.Error("reaper: retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("reaper: swept expired artifacts", "count", deleted)
	}
}
