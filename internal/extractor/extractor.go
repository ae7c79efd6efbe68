package extractor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
	"github.com/transcriptapi/core/internal/retrypolicy"
)

// ErrLadderExhausted is returned when every rung of the ladder has been
// tried without success.
var ErrLadderExhausted = errors.New("extraction ladder exhausted")

// rung is one step of the primary/fallback x direct/proxy ladder.
type rung struct {
	engine    Engine
	engineTag string
	useProxy  bool
}

// Config controls the ladder's timing.
type Config struct {
	// Budget is the wall-clock ceiling for one Run call across every rung
	// and retry. Defaults to 30s.
	Budget time.Duration
}

// DefaultConfig returns the ladder's default timing.
func DefaultConfig() Config {
	return Config{Budget: 30 * time.Second}
}

// Extractor runs the primary -> fallback engine ladder with proxy rotation
// and bounded retries (spec §4.8). Rungs are tried in order: primary
// direct, primary proxy, fallback direct, fallback proxy. A non-retryable
// error other than UpstreamBlocked short-circuits the remaining rungs
// immediately; UpstreamBlocked (HTTP 403/429) falls through to the next rung.
type Extractor struct {
	primary  Engine
	fallback Engine
	rotator  *ProxyRotator
	policy   retrypolicy.Policy
	budget   time.Duration
}

// New builds an Extractor. rotator may be nil to disable proxy rungs.
func New(primary, fallback Engine, rotator *ProxyRotator, policy retrypolicy.Policy, cfg Config) *Extractor {
	budget := cfg.Budget
	if budget <= 0 {
		budget = DefaultConfig().Budget
	}
	return &Extractor{
		primary:  primary,
		fallback: fallback,
		rotator:  rotator,
		policy:   policy,
		budget:   budget,
	}
}

// Result is the successful outcome of a ladder run.
type Result struct {
	Title              string
	Segments           []model.Segment
	EngineUsed         model.Engine
	ExtractionDuration time.Duration
}

// Run drives the ladder to completion or exhaustion for fp. The returned
// error, when non-nil, is always a *Error so callers can inspect Kind.
func (x *Extractor) Run(ctx context.Context, fp model.Fingerprint) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, x.budget)
	defer cancel()

	rungs := x.rungs()

	var lastErr error
	attempt := 0
	for i, r := range rungs {
		if x.policy.Exhausted(attempt) {
			break
		}

		var proxy *Proxy
		if r.useProxy {
			if x.rotator == nil {
				continue
			}
			p, ok := x.rotator.Select()
			if !ok {
				slog.Warn("extraction rung skipped: no healthy proxy", "engine", r.engineTag)
				continue
			}
			proxy = p
		}

		if err := ctx.Err(); err != nil {
			return nil, NewError(model.ErrorKindDependencyDown, err)
		}

		title, segments, err := r.engine.Fetch(ctx, fp, proxy)
		if err == nil {
			duration := time.Since(start)
			metrics.ExtractionAttemptsTotal.WithLabelValues(r.engineTag, proxyLabel(r.useProxy), metrics.ExtractionOutcomeSuccess).Inc()
			metrics.ExtractionDurationSeconds.Observe(duration.Seconds())
			if proxy != nil {
				x.rotator.RecordSuccess(proxy)
			}
			return &Result{
				Title:              title,
				Segments:           segments,
				EngineUsed:         engineTagToModel(r.engineTag),
				ExtractionDuration: duration,
			}, nil
		}

		kind := classify(err)
		lastErr = NewError(kind, err)
		attempt++

		if proxy != nil {
			x.rotator.RecordFailure(proxy)
		}

		if !kind.Retryable() && kind != model.ErrorKindUpstreamBlocked {
			metrics.ExtractionAttemptsTotal.WithLabelValues(r.engineTag, proxyLabel(r.useProxy), metrics.ExtractionOutcomeTerminal).Inc()
			return nil, lastErr
		}

		metrics.ExtractionAttemptsTotal.WithLabelValues(r.engineTag, proxyLabel(r.useProxy), metrics.ExtractionOutcomeRetryable).Inc()

		if i == len(rungs)-1 {
			break
		}
		if sleepErr := x.policy.Sleep(ctx, attempt-1); sleepErr != nil {
			return nil, NewError(model.ErrorKindDependencyDown, sleepErr)
		}
	}

	if lastErr == nil {
		lastErr = NewError(model.ErrorKindDependencyDown, ErrLadderExhausted)
	}
	return nil, lastErr
}

// rungs builds the ordered rung list, omitting engines that are nil.
func (x *Extractor) rungs() []rung {
	var rungs []rung
	if x.primary != nil {
		rungs = append(rungs, rung{engine: x.primary, engineTag: "primary", useProxy: false})
		rungs = append(rungs, rung{engine: x.primary, engineTag: "primary", useProxy: true})
	}
	if x.fallback != nil {
		rungs = append(rungs, rung{engine: x.fallback, engineTag: "fallback", useProxy: false})
		rungs = append(rungs, rung{engine: x.fallback, engineTag: "fallback", useProxy: true})
	}
	return rungs
}

func proxyLabel(useProxy bool) string {
	if useProxy {
		return metrics.ProxyLegProxy
	}
	return metrics.ProxyLegDirect
}

func engineTagToModel(tag string) model.Engine {
	if tag == "fallback" {
		return model.EngineFallback
	}
	return model.EnginePrimary
}
