// Package retrypolicy implements the single reusable retry/backoff policy
// (attempts, base, cap, jitter) shared by the extractor (C8) and the
// webhook dispatcher (C10), replacing what would otherwise be two ad-hoc
// retry loops.
package retrypolicy

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes an exponential backoff schedule: base*2^attempt, capped,
// optionally randomised with full jitter.
type Policy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
	FullJitter  bool
}

// Default returns the extractor's attempt schedule (spec §4.8): exponential
// backoff with full jitter, base 1s, cap 8s, 4 attempts total.
func Default() Policy {
	return Policy{Base: time.Second, Cap: 8 * time.Second, MaxAttempts: 4, FullJitter: true}
}

// Webhook returns the webhook dispatcher's retry schedule (spec §4.10):
// deterministic waits of 1s then 2s between three attempts total.
func Webhook() Policy {
	return Policy{Base: time.Second, Cap: 2 * time.Second, MaxAttempts: 3, FullJitter: false}
}

// exponent computes base*2^attempt capped at Cap.
func (p Policy) exponent(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	exp := p.Base << attempt
	if exp <= 0 || exp > p.Cap {
		exp = p.Cap
	}
	return exp
}

// Wait returns the delay before the given attempt (0-indexed: 0 is the
// delay after the first attempt failed, before the second attempt). With
// FullJitter set, the delay is randomised uniformly between 0 and the
// exponential value; otherwise it is the exponential value itself.
func (p Policy) Wait(attempt int) time.Duration {
	exp := p.exponent(attempt)
	if !p.FullJitter {
		return exp
	}
	return time.Duration(rand.Int63n(int64(exp) + 1))
}

// Sleep blocks for Wait(attempt) or until ctx is cancelled, whichever comes
// first. Returns ctx.Err() if the context won the race.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Wait(attempt)):
		return nil
	}
}

// Exhausted reports whether attempt (0-indexed, counting attempts already
// made) has used up the policy's budget.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
