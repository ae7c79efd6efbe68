// Package ratelimit implements the token bucket rate limiter (C6): one
// bucket per (principal, endpoint), refilled proportionally to elapsed real
// time and updated via compare-and-swap against the shared cache so
// concurrent requests never double-spend a token.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
)

// maxCASAttempts bounds the compare-and-swap retry loop under contention.
const maxCASAttempts = 8

// bucketTTL bounds how long an idle bucket lingers in the shared cache.
const bucketTTL = time.Hour

// bucketState is the persisted record for a single principal/endpoint bucket.
type bucketState struct {
	Tokens       float64   `json:"tokens"`
	LastRefillAt time.Time `json:"last_refill_at"`
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed           bool
	RemainingTokens   float64
	ResetAt           time.Time
	RetryAfterSeconds int
}

// Limiter checks and updates token buckets against a shared cache.
type Limiter struct {
	store         repository.SharedCache
	ratePerMinute float64
	burst         float64
	failOpen      bool
}

// New creates a Limiter. ratePerMinute and burst are the token bucket's
// refill rate and capacity; failOpen governs behaviour when the shared
// cache is unreachable.
func New(store repository.SharedCache, ratePerMinute, burst float64, failOpen bool) *Limiter {
	return &Limiter{
		store:         store,
		ratePerMinute: ratePerMinute,
		burst:         burst,
		failOpen:      failOpen,
	}
}

// Allow checks and consumes one token for (principal, endpoint), refilling
// the bucket first for the time elapsed since its last observed state.
func (l *Limiter) Allow(ctx context.Context, principal, endpoint string) (Decision, error) {
	key := bucketKey(principal, endpoint)
	now := time.Now()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		raw, found, err := l.store.Get(ctx, key)
		if err != nil {
			return l.degradedDecision(now), fmt.Errorf("read rate limit bucket: %w", err)
		}

		var state bucketState
		if !found {
			state = bucketState{Tokens: l.burst, LastRefillAt: now}
			encoded, encErr := json.Marshal(state)
			if encErr != nil {
				return l.degradedDecision(now), fmt.Errorf("encode rate limit bucket: %w", encErr)
			}
			created, err := l.store.SetNX(ctx, key, string(encoded), bucketTTL)
			if err != nil {
				return l.degradedDecision(now), fmt.Errorf("initialise rate limit bucket: %w", err)
			}
			if !created {
				continue // another request initialised it first; re-read and race for the CAS
			}
			raw = string(encoded)
			found = true
		}

		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return l.degradedDecision(now), fmt.Errorf("decode rate limit bucket: %w", err)
		}

		refilled := l.refill(state, now)
		decision := l.evaluate(refilled, now)

		next := bucketState{Tokens: refilled.Tokens, LastRefillAt: now}
		if decision.Allowed {
			next.Tokens--
		}

		encodedNext, err := json.Marshal(next)
		if err != nil {
			return l.degradedDecision(now), fmt.Errorf("encode rate limit bucket: %w", err)
		}

		swapped, err := l.store.CompareAndSwap(ctx, key, raw, string(encodedNext))
		if err != nil {
			return l.degradedDecision(now), fmt.Errorf("update rate limit bucket: %w", err)
		}
		if swapped {
			metrics.RateLimitDecisionsTotal.WithLabelValues(decisionLabel(decision.Allowed)).Inc()
			return decision, nil
		}
		// Lost the race to a concurrent request; retry against fresh state.
	}

	return l.degradedDecision(now), fmt.Errorf("exhausted rate limit retries for %s", key)
}

// refill advances a bucket's tokens for elapsed wall-clock time, capped at
// burst capacity.
func (l *Limiter) refill(state bucketState, now time.Time) bucketState {
	elapsed := now.Sub(state.LastRefillAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	refillRatePerSecond := l.ratePerMinute / 60
	tokens := math.Min(l.burst, state.Tokens+elapsed*refillRatePerSecond)
	return bucketState{Tokens: tokens, LastRefillAt: now}
}

// evaluate decides whether the refilled bucket has a token to spend.
func (l *Limiter) evaluate(state bucketState, now time.Time) Decision {
	if state.Tokens >= 1 {
		return Decision{
			Allowed:         true,
			RemainingTokens: state.Tokens - 1,
			ResetAt:         now,
		}
	}

	refillRatePerSecond := l.ratePerMinute / 60
	var retryAfter int
	if refillRatePerSecond > 0 {
		retryAfter = int(math.Ceil((1 - state.Tokens) / refillRatePerSecond))
	}
	return Decision{
		Allowed:           false,
		RemainingTokens:   state.Tokens,
		ResetAt:           now.Add(time.Duration(retryAfter) * time.Second),
		RetryAfterSeconds: retryAfter,
	}
}

// degradedDecision reports the fail-open/fail-closed outcome when the shared
// cache cannot be reached.
func (l *Limiter) degradedDecision(now time.Time) Decision {
	metrics.RateLimitDecisionsTotal.WithLabelValues(decisionLabel(l.failOpen)).Inc()
	return Decision{
		Allowed:         l.failOpen,
		RemainingTokens: 0,
		ResetAt:         now,
	}
}

// Stats reports a principal/endpoint bucket's current state without
// consuming a token, for admin inspection. A bucket that has never been
// touched reports a full, unspent burst.
func (l *Limiter) Stats(ctx context.Context, principal, endpoint string) (Decision, error) {
	key := bucketKey(principal, endpoint)
	now := time.Now()

	raw, found, err := l.store.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("read rate limit bucket: %w", err)
	}
	if !found {
		return Decision{Allowed: true, RemainingTokens: l.burst, ResetAt: now}, nil
	}

	var state bucketState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return Decision{}, fmt.Errorf("decode rate limit bucket: %w", err)
	}

	refilled := l.refill(state, now)
	return l.evaluate(refilled, now), nil
}

// Reset clears a principal/endpoint bucket so its next request starts with
// a full burst allowance.
func (l *Limiter) Reset(ctx context.Context, principal, endpoint string) error {
	return l.store.Del(ctx, bucketKey(principal, endpoint))
}

func bucketKey(principal, endpoint string) string {
	return fmt.Sprintf("ratelimit:%s:%s", principal, endpoint)
}

func decisionLabel(allowed bool) string {
	if allowed {
		return metrics.RateLimitAllow
	}
	return metrics.RateLimitDeny
}
