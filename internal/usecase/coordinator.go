package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/infrastructure/cache"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
)

// ErrServiceUnavailable is returned by Reserve when the single-flight lock
// cannot be acquired or resolved after the bounded retry budget.
var ErrServiceUnavailable = errors.New("coordinator: service unavailable")

const (
	lockKeyPrefix  = "lock:"
	indexKeyPrefix = "job:index:"

	reserveRetries = 3
	reserveBackoff = 20 * time.Millisecond
	lockTTLMargin  = 30 * time.Second
)

// InvalidateScope selects which tiers Invalidate clears.
type InvalidateScope int

const (
	InvalidateLocal InvalidateScope = iota
	InvalidateShared
	InvalidateAll
)

// CoordinatorConfig controls tier TTLs and lock timing.
type CoordinatorConfig struct {
	// ArtifactTTL is the durable (C4) retention window stamped onto each
	// committed artifact's ExpiresAt.
	ArtifactTTL time.Duration
	// SharedCacheTTL bounds how long a committed or promoted entry lives in
	// C3, independent of the durable retention window. Zero falls back to
	// ArtifactTTL.
	SharedCacheTTL time.Duration
	// LocalCacheTTL bounds how long C2 entries live regardless of ArtifactTTL.
	LocalCacheTTL time.Duration
	// ExtractionTimeout bounds a single extraction; the reservation lock's
	// TTL is ExtractionTimeout plus a fixed margin so crashed leaders
	// cannot wedge a fingerprint indefinitely.
	ExtractionTimeout time.Duration
}

// DefaultCoordinatorConfig returns sensible tier timing.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		ArtifactTTL:       24 * time.Hour,
		SharedCacheTTL:    10 * time.Minute,
		LocalCacheTTL:     5 * time.Minute,
		ExtractionTimeout: 30 * time.Second,
	}
}

// Coordinator implements the tiered cache coordinator (C5): lookup,
// reserve, commit and invalidate across the process-local cache (C2), the
// shared Redis store (C3) and the durable Postgres store (C4).
type Coordinator struct {
	local     repository.LocalCache
	shared    repository.SharedCache
	durable   repository.ArtifactStore
	jobs      repository.JobStore
	jobQueue  repository.JobQueue
	sfGroup   singleflight.Group

	artifactTTL       time.Duration
	sharedCacheTTL    time.Duration
	localCacheTTL     time.Duration
	extractionTimeout time.Duration
}

// NewCoordinator builds a Coordinator.
func NewCoordinator(
	local repository.LocalCache,
	shared repository.SharedCache,
	durable repository.ArtifactStore,
	jobs repository.JobStore,
	jobQueue repository.JobQueue,
	cfg CoordinatorConfig,
) *Coordinator {
	sharedTTL := cfg.SharedCacheTTL
	if sharedTTL <= 0 {
		sharedTTL = cfg.ArtifactTTL
	}
	return &Coordinator{
		local:             local,
		shared:            shared,
		durable:           durable,
		jobs:              jobs,
		jobQueue:          jobQueue,
		artifactTTL:       cfg.ArtifactTTL,
		sharedCacheTTL:    sharedTTL,
		localCacheTTL:     cfg.LocalCacheTTL,
		extractionTimeout: cfg.ExtractionTimeout,
	}
}

// Lookup tries C2, then C3, then C4, promoting on each hit. A durable hit
// whose artifact has expired is treated as a miss (the caller should
// reserve a refresh).
func (c *Coordinator) Lookup(ctx context.Context, fp model.Fingerprint) (*model.Artifact, bool, error) {
	key := fp.Encode()

	if raw, ok := c.local.Get(key); ok {
		artifact, err := cache.DecodeArtifact(raw)
		if err == nil {
			metrics.CacheOperationsTotal.WithLabelValues(metrics.TierLocal, metrics.CacheOpGet, metrics.CacheStatusHit).Inc()
			return artifact, true, nil
		}
		slog.Warn("local cache entry failed to decode, treating as miss", "fingerprint", key, "error", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.TierLocal, metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()

	if raw, found, err := c.shared.Get(ctx, key); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.TierShared, metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		slog.Warn("shared cache get failed, falling through to durable store", "fingerprint", key, "error", err)
	} else if found {
		artifact, decErr := cache.DecodeArtifact([]byte(raw))
		if decErr == nil {
			metrics.CacheOperationsTotal.WithLabelValues(metrics.TierShared, metrics.CacheOpGet, metrics.CacheStatusHit).Inc()
			c.promoteToLocal(key, []byte(raw))
			return artifact, true, nil
		}
		slog.Warn("shared cache entry failed to decode, treating as miss", "fingerprint", key, "error", decErr)
	} else {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.TierShared, metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
	}

	artifact, err := c.durable.Get(ctx, fp)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			metrics.CacheOperationsTotal.WithLabelValues(metrics.TierDurable, metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
			return nil, false, nil
		}
		metrics.CacheOperationsTotal.WithLabelValues(metrics.TierDurable, metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		return nil, false, fmt.Errorf("durable lookup: %w", err)
	}

	if artifact.IsExpired(time.Now()) {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.TierDurable, metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
		return nil, false, nil
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.TierDurable, metrics.CacheOpGet, metrics.CacheStatusHit).Inc()
	c.promoteFromDurable(ctx, key, artifact)
	return artifact, true, nil
}

// promoteToLocal writes a shared-cache hit into the local tier.
func (c *Coordinator) promoteToLocal(key string, raw []byte) {
	c.local.Put(key, raw, c.localCacheTTL)
	metrics.CacheOperationsTotal.WithLabelValues(metrics.TierLocal, metrics.CacheOpPromote, metrics.CacheStatusSuccess).Inc()
}

// promoteFromDurable writes a durable hit into both C3 and C2.
func (c *Coordinator) promoteFromDurable(ctx context.Context, key string, artifact *model.Artifact) {
	raw, err := cache.EncodeArtifact(artifact)
	if err != nil {
		slog.Warn("failed to encode artifact for promotion", "fingerprint", key, "error", err)
		return
	}
	if err := c.shared.Set(ctx, key, string(raw), c.sharedCacheTTL); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.TierShared, metrics.CacheOpPromote, metrics.CacheStatusError).Inc()
		slog.Warn("failed to promote artifact into shared cache", "fingerprint", key, "error", err)
	} else {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.TierShared, metrics.CacheOpPromote, metrics.CacheStatusSuccess).Inc()
	}
	c.promoteToLocal(key, raw)
}

// ReserveResult is the outcome of Reserve: exactly one of Leader/Follower
// branches applies.
type ReserveResult struct {
	Leader bool
	JobID  string
}

// Reserve implements the single-flight admission protocol (spec §4.5): the
// caller that wins the CAS on lock:<F> becomes leader and must create and
// enqueue a job; everyone else learns the in-flight job id and becomes a
// follower. A bounded number of retries absorbs the race where the lock
// holder has not yet published job:index:<F>.
// Concurrent Reserve calls for the same fingerprint within this process
// are coalesced through an in-process singleflight group before any of
// them touch the cross-process CAS lock in C3 — the fast path the cross-
// process lock exists to back up, not replace.
func (c *Coordinator) Reserve(ctx context.Context, fp model.Fingerprint, webhookURL string) (ReserveResult, error) {
	result, err, _ := c.sfGroup.Do(fp.Encode(), func() (any, error) {
		return c.reserveViaLock(ctx, fp, webhookURL)
	})
	if err != nil {
		return ReserveResult{}, err
	}
	return result.(ReserveResult), nil
}

// reserveViaLock runs the cross-process CAS protocol against C3.
func (c *Coordinator) reserveViaLock(ctx context.Context, fp model.Fingerprint, webhookURL string) (ReserveResult, error) {
	key := fp.Encode()
	lockKey := lockKeyPrefix + key
	indexKey := indexKeyPrefix + key
	lockTTL := c.extractionTimeout + lockTTLMargin

	for attempt := 0; attempt < reserveRetries; attempt++ {
		acquired, err := c.shared.SetNX(ctx, lockKey, "held", lockTTL)
		if err != nil {
			return ReserveResult{}, fmt.Errorf("acquire reservation lock: %w", err)
		}

		if acquired {
			jobID := uuid.NewString()
			job := model.NewJob(jobID, fp, webhookURL)
			if err := c.jobs.Create(ctx, job); err != nil {
				_ = c.shared.Del(ctx, lockKey)
				return ReserveResult{}, fmt.Errorf("create job: %w", err)
			}
			if err := c.shared.Set(ctx, indexKey, jobID, lockTTL); err != nil {
				slog.Warn("failed to publish job index, followers may retry", "fingerprint", key, "error", err)
			}
			if err := c.jobQueue.Enqueue(ctx, jobID); err != nil {
				return ReserveResult{}, fmt.Errorf("enqueue job: %w", err)
			}
			metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightLeader).Inc()
			return ReserveResult{Leader: true, JobID: jobID}, nil
		}

		jobID, found, err := c.shared.Get(ctx, indexKey)
		if err != nil {
			return ReserveResult{}, fmt.Errorf("read job index: %w", err)
		}
		if found {
			metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightFollower).Inc()
			return ReserveResult{Leader: false, JobID: jobID}, nil
		}

		time.Sleep(reserveBackoff)
	}

	return ReserveResult{}, ErrServiceUnavailable
}

// Commit writes the final state durably first, then promotes into C3 and
// C2, then releases the reservation lock. Artifact is nil for a failed
// extraction (nothing to cache, only the lock is released).
func (c *Coordinator) Commit(ctx context.Context, fp model.Fingerprint, artifact *model.Artifact) error {
	key := fp.Encode()

	if artifact != nil {
		if err := c.durable.Upsert(ctx, artifact); err != nil {
			return fmt.Errorf("durable commit: %w", err)
		}

		raw, err := cache.EncodeArtifact(artifact)
		if err != nil {
			slog.Warn("failed to encode committed artifact for cache promotion", "fingerprint", key, "error", err)
		} else {
			if err := c.shared.Set(ctx, key, string(raw), c.sharedCacheTTL); err != nil {
				slog.Warn("failed to write shared cache on commit", "fingerprint", key, "error", err)
			}
			c.local.Put(key, raw, c.localCacheTTL)
		}
	}

	if err := c.shared.Del(ctx, lockKeyPrefix+key); err != nil {
		slog.Warn("failed to release reservation lock", "fingerprint", key, "error", err)
	}
	if err := c.shared.Del(ctx, indexKeyPrefix+key); err != nil {
		slog.Warn("failed to release job index", "fingerprint", key, "error", err)
	}
	return nil
}

// Invalidate evicts a fingerprint's artifact from the requested tiers.
func (c *Coordinator) Invalidate(ctx context.Context, fp model.Fingerprint, scope InvalidateScope) error {
	key := fp.Encode()

	c.local.Invalidate(key)
	metrics.CacheOperationsTotal.WithLabelValues(metrics.TierLocal, metrics.CacheOpDelete, metrics.CacheStatusSuccess).Inc()

	if scope == InvalidateLocal {
		return nil
	}

	if err := c.shared.Del(ctx, key); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.TierShared, metrics.CacheOpDelete, metrics.CacheStatusError).Inc()
		return fmt.Errorf("invalidate shared cache: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.TierShared, metrics.CacheOpDelete, metrics.CacheStatusSuccess).Inc()

	if scope == InvalidateShared {
		return nil
	}

	if err := c.durable.DeleteByFingerprint(ctx, fp); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.TierDurable, metrics.CacheOpDelete, metrics.CacheStatusError).Inc()
		return fmt.Errorf("invalidate durable store: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.TierDurable, metrics.CacheOpDelete, metrics.CacheStatusSuccess).Inc()
	return nil
}
