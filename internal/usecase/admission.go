package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
	"github.com/transcriptapi/core/internal/infrastructure/ratelimit"
)

// AdmissionOutcome classifies how a single admission request resolved.
type AdmissionOutcome string

const (
	AdmissionReady   AdmissionOutcome = "ready"
	AdmissionQueued  AdmissionOutcome = "queued"
	AdmissionDenied  AdmissionOutcome = "rate_limited"
	AdmissionInvalid AdmissionOutcome = "invalid_input"
)

// AdmissionResult is the per-fingerprint result of an admission request.
type AdmissionResult struct {
	Outcome     AdmissionOutcome
	Fingerprint model.Fingerprint
	Artifact    *model.Artifact
	JobID       string
	RetryAfter  int
	Err         error
}

// AdmissionRequest is a single caller-supplied extraction request before
// canonicalisation.
type AdmissionRequest struct {
	VideoRef   string
	Language   string
	CleanFlag  *bool
	WebhookURL string
}

// AdmissionService implements the per-request admission flow (C11):
// canonicalise, rate-limit, cache lookup, then reserve-and-enqueue on miss.
type AdmissionService struct {
	coordinator *Coordinator
	limiter     *ratelimit.Limiter
}

// NewAdmissionService builds an AdmissionService.
func NewAdmissionService(coordinator *Coordinator, limiter *ratelimit.Limiter) *AdmissionService {
	return &AdmissionService{coordinator: coordinator, limiter: limiter}
}

// Submit runs the admission flow for a single request on behalf of principal.
func (s *AdmissionService) Submit(ctx context.Context, principal string, req AdmissionRequest) AdmissionResult {
	fp, err := model.Canonicalise(req.VideoRef, req.Language, req.CleanFlag)
	if err != nil {
		return AdmissionResult{Outcome: AdmissionInvalid, Err: err}
	}

	decision, err := s.limiter.Allow(ctx, principal, "extract")
	if err != nil {
		return AdmissionResult{Outcome: AdmissionInvalid, Fingerprint: fp, Err: fmt.Errorf("rate limit check: %w", err)}
	}
	if !decision.Allowed {
		return AdmissionResult{Outcome: AdmissionDenied, Fingerprint: fp, RetryAfter: decision.RetryAfterSeconds}
	}

	artifact, hit, err := s.coordinator.Lookup(ctx, fp)
	if err != nil {
		return AdmissionResult{Outcome: AdmissionInvalid, Fingerprint: fp, Err: fmt.Errorf("cache lookup: %w", err)}
	}
	if hit {
		return AdmissionResult{Outcome: AdmissionReady, Fingerprint: fp, Artifact: artifact}
	}

	reservation, err := s.coordinator.Reserve(ctx, fp, req.WebhookURL)
	if err != nil {
		return AdmissionResult{Outcome: AdmissionInvalid, Fingerprint: fp, Err: fmt.Errorf("reserve: %w", err)}
	}

	return AdmissionResult{Outcome: AdmissionQueued, Fingerprint: fp, JobID: reservation.JobID}
}

// SubmitBatch runs Submit for each request, deduplicating identical
// canonicalised fingerprints within the batch so only one reservation is
// attempted per distinct fingerprint; duplicate entries share that
// fingerprint's result.
func (s *AdmissionService) SubmitBatch(ctx context.Context, principal string, reqs []AdmissionRequest) []AdmissionResult {
	results := make([]AdmissionResult, len(reqs))
	seen := make(map[string]int) // fingerprint key -> index into results already resolved

	for i, req := range reqs {
		fp, err := model.Canonicalise(req.VideoRef, req.Language, req.CleanFlag)
		if err != nil {
			results[i] = AdmissionResult{Outcome: AdmissionInvalid, Err: err}
			continue
		}

		key := fp.Encode()
		if j, ok := seen[key]; ok {
			metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightFollower).Inc()
			results[i] = results[j]
			continue
		}

		results[i] = s.Submit(ctx, principal, req)
		seen[key] = i
	}

	return results
}

// ErrAdmissionUnavailable wraps transient admission failures distinct
// from invalid input, so callers can map them to 503 rather than 400.
var ErrAdmissionUnavailable = errors.New("admission: temporarily unavailable")
