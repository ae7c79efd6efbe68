package usecase

import (
	"context"
	"testing"

	"github.com/transcriptapi/core/internal/infrastructure/ratelimit"
)

func newTestAdmissionService() *AdmissionService {
	c, _ := newTestCoordinator()
	limiter := ratelimit.New(newFakeSharedCache(), 60, 10, true)
	return NewAdmissionService(c, limiter)
}

func TestAdmissionService_Submit_InvalidInput(t *testing.T) {
	s := newTestAdmissionService()
	result := s.Submit(context.Background(), "user-1", AdmissionRequest{VideoRef: ""})
	if result.Outcome != AdmissionInvalid {
		t.Errorf("Outcome = %v, want invalid_input", result.Outcome)
	}
}

func TestAdmissionService_Submit_MissQueuesAsLeader(t *testing.T) {
	s := newTestAdmissionService()
	result := s.Submit(context.Background(), "user-1", AdmissionRequest{
		VideoRef: "abc123xyz90",
		Language: "en",
	})
	if result.Outcome != AdmissionQueued {
		t.Fatalf("Outcome = %v, want queued", result.Outcome)
	}
	if result.JobID == "" {
		t.Error("expected a job id on queued result")
	}
}

func TestAdmissionService_Submit_SecondRequestIsFollowerWithSameJob(t *testing.T) {
	s := newTestAdmissionService()
	req := AdmissionRequest{VideoRef: "abc123xyz90", Language: "en"}

	first := s.Submit(context.Background(), "user-1", req)
	second := s.Submit(context.Background(), "user-2", req)

	if first.Outcome != AdmissionQueued || second.Outcome != AdmissionQueued {
		t.Fatalf("expected both queued, got %v and %v", first.Outcome, second.Outcome)
	}
	if first.JobID != second.JobID {
		t.Errorf("expected follower to share the leader's job id, got %q and %q", first.JobID, second.JobID)
	}
}

func TestAdmissionService_Submit_RateLimited(t *testing.T) {
	c, _ := newTestCoordinator()
	limiter := ratelimit.New(newFakeSharedCache(), 60, 1, true)
	s := NewAdmissionService(c, limiter)

	req := AdmissionRequest{VideoRef: "abc123xyz90", Language: "en"}
	first := s.Submit(context.Background(), "user-1", req)
	if first.Outcome != AdmissionQueued {
		t.Fatalf("first request Outcome = %v, want queued", first.Outcome)
	}

	second := s.Submit(context.Background(), "user-1", AdmissionRequest{VideoRef: "zzz999yyy11", Language: "en"})
	if second.Outcome != AdmissionDenied {
		t.Fatalf("second request Outcome = %v, want rate_limited", second.Outcome)
	}
	if second.RetryAfter <= 0 {
		t.Error("expected a positive RetryAfter on denial")
	}
}

func TestAdmissionService_SubmitBatch_DedupesIdenticalFingerprints(t *testing.T) {
	s := newTestAdmissionService()
	reqs := []AdmissionRequest{
		{VideoRef: "abc123xyz90", Language: "en"},
		{VideoRef: "https://www.youtube.com/watch?v=abc123xyz90", Language: "en"},
		{VideoRef: "zzz999yyy11", Language: "en"},
	}

	results := s.SubmitBatch(context.Background(), "user-1", reqs)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].JobID == "" || results[0].JobID != results[1].JobID {
		t.Errorf("expected requests 0 and 1 to share a job id, got %q and %q", results[0].JobID, results[1].JobID)
	}
	if results[2].JobID == results[0].JobID {
		t.Error("expected the distinct video id to get its own job")
	}
}
