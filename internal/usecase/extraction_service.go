package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/extractor"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
	"github.com/transcriptapi/core/internal/infrastructure/storage"
)

// ExtractionServiceConfig controls worker concurrency and polling.
type ExtractionServiceConfig struct {
	// Concurrency bounds how many jobs this worker runs at once.
	Concurrency int
	// DequeueTimeout bounds a single blocking Dequeue call.
	DequeueTimeout time.Duration
	// ArtifactTTL is passed through to the committed artifact.
	ArtifactTTL time.Duration
}

// DefaultExtractionServiceConfig returns sensible worker defaults.
func DefaultExtractionServiceConfig() ExtractionServiceConfig {
	return ExtractionServiceConfig{
		Concurrency:    4,
		DequeueTimeout: 5 * time.Second,
		ArtifactTTL:    24 * time.Hour,
	}
}

// ExtractionService is the worker runtime (C9): it dequeues jobs, runs the
// extraction ladder, commits the result through the Cache Coordinator and
// hands the terminal job off to the webhook dispatch queue.
type ExtractionService struct {
	queue       repository.JobQueue
	jobs        repository.JobStore
	coordinator *Coordinator
	extractor   *extractor.Extractor
	webhooks    repository.WebhookQueue
	archive     repository.RawArchive

	concurrency    int
	dequeueTimeout time.Duration
	artifactTTL    time.Duration
}

// NewExtractionService builds an ExtractionService. archive is optional
// (nil disables raw payload archiving, the raw_archive_enabled default).
func NewExtractionService(
	queue repository.JobQueue,
	jobs repository.JobStore,
	coordinator *Coordinator,
	x *extractor.Extractor,
	webhooks repository.WebhookQueue,
	archive repository.RawArchive,
	cfg ExtractionServiceConfig,
) *ExtractionService {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}
	return &ExtractionService{
		queue:          queue,
		jobs:           jobs,
		coordinator:    coordinator,
		extractor:      x,
		webhooks:       webhooks,
		archive:        archive,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		artifactTTL:    cfg.ArtifactTTL,
	}
}

// Run starts concurrency worker goroutines that dequeue and process jobs
// until ctx is cancelled, then waits for in-flight jobs to finish.
func (s *ExtractionService) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(s.concurrency)
	for i := 0; i < s.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			s.loop(ctx, workerID)
		}(i)
	}
	wg.Wait()
	return nil
}

func (s *ExtractionService) loop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			return
		}
		jobID, err := s.queue.Dequeue(ctx, s.dequeueTimeout)
		if err != nil {
			if errors.Is(err, repository.ErrQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.Error("dequeue failed", "worker", workerID, "error", err)
			continue
		}

		if err := s.processJob(ctx, jobID); err != nil {
			slog.Error("job processing failed", "worker", workerID, "job_id", jobID, "error", err)
		}
	}
}

// processJob implements exactly-once completion per job: it always ends
// by transitioning the job to a terminal state and committing through the
// coordinator exactly once, regardless of which rung of the ladder
// succeeded or failed.
func (s *ExtractionService) processJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			slog.Warn("dequeued job id has no record, dropping", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if job.Status.IsTerminal() {
		// Already completed by a prior attempt (e.g. reaper re-enqueue
		// race); nothing left to do.
		return nil
	}

	if err := job.TransitionTo(model.JobRunning); err != nil {
		return fmt.Errorf("transition job %s to running: %w", jobID, err)
	}
	job.Attempts++
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist running job %s: %w", jobID, err)
	}

	result, extractErr := s.extractor.Run(ctx, job.Fingerprint)

	if extractErr == nil {
		return s.complete(ctx, job, result, "")
	}

	var kind model.ErrorKind
	var extErr *extractor.Error
	if errors.As(extractErr, &extErr) {
		kind = extErr.Kind
	} else {
		kind = model.ErrorKindInternal
	}
	return s.complete(ctx, job, nil, kind)
}

// complete finalises the job's terminal state, commits (or clears) the
// coordinator's reservation, persists the job record and hands off
// webhook delivery. Order: coordinator commit first (authoritative data
// and lock release), then job record, then webhook hand-off — a crash
// after commit but before hand-off just delays delivery; the dispatcher
// and reaper both tolerate that.
func (s *ExtractionService) complete(ctx context.Context, job *model.Job, result *extractor.Result, errKind model.ErrorKind) error {
	var artifact *model.Artifact
	nextStatus := model.JobFinished
	if result == nil {
		nextStatus = model.JobFailed
		job.ErrorKind = errKind
	} else {
		a, err := model.NewArtifact(job.Fingerprint, result.Title, result.EngineUsed, result.Segments, result.ExtractionDuration.Milliseconds(), s.artifactTTL)
		if err != nil {
			nextStatus = model.JobFailed
			job.ErrorKind = model.ErrorKindInternal
		} else {
			artifact = a
		}
	}

	if err := s.coordinator.Commit(ctx, job.Fingerprint, artifact); err != nil {
		return fmt.Errorf("commit fingerprint %s: %w", job.Fingerprint.Encode(), err)
	}

	s.archiveRaw(ctx, job, result)

	if err := job.TransitionTo(nextStatus); err != nil {
		return fmt.Errorf("transition job %s to %s: %w", job.JobID, nextStatus, err)
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist terminal job %s: %w", job.JobID, err)
	}

	metrics.JobsTotal.WithLabelValues(string(nextStatus), string(job.ErrorKind)).Inc()

	if job.WebhookURL == "" {
		return nil
	}
	if err := s.webhooks.Publish(ctx, repository.WebhookTask{JobID: job.JobID}); err != nil {
		slog.Error("failed to hand off webhook delivery, dispatch will miss this job until reaper retries", "job_id", job.JobID, "error", err)
	}
	return nil
}

// archiveRaw stores the ladder's successful output alongside the engine
// that produced it, for debugging and replay. Best-effort: a failure here
// never fails the job, since the committed artifact is already authoritative.
func (s *ExtractionService) archiveRaw(ctx context.Context, job *model.Job, result *extractor.Result) {
	if s.archive == nil || result == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		slog.Warn("failed to encode raw extraction payload", "job_id", job.JobID, "error", err)
		return
	}

	key := storage.RawArchiveKey(job.Fingerprint.Encode(), job.JobID)
	if err := s.archive.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		slog.Warn("failed to archive raw extraction payload", "job_id", job.JobID, "error", err)
	}
}
