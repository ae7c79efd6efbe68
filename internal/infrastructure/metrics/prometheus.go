// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcriptapi"

var (
	// CacheOperationsTotal tracks tiered cache operations.
	// Labels:
	//   - tier: local, shared, durable
	//   - operation: get, set, delete, promote
	//   - status: hit, miss, success, error
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations across all tiers",
		},
		[]string{"tier", "operation", "status"},
	)

	// SingleflightRequestsTotal tracks reserve() single-flight behavior.
	// Labels:
	//   - result: leader (new extraction), follower (existing job)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of single-flight reservations by result",
		},
		[]string{"result"},
	)

	// DBQueriesTotal tracks durable store queries.
	// Labels:
	//   - query_type: select, upsert, delete, sweep
	//   - table: artifacts, jobs
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of durable store queries",
		},
		[]string{"query_type", "table"},
	)

	// QueueDepth reports the current job queue length.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of jobs waiting in the extraction queue",
		},
	)

	// ExtractionAttemptsTotal tracks each rung of the extractor ladder.
	// Labels:
	//   - engine: primary, fallback
	//   - proxy: direct, proxy
	//   - outcome: success, retryable, terminal
	ExtractionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_attempts_total",
			Help:      "Total number of extractor attempts by rung and outcome",
		},
		[]string{"engine", "proxy", "outcome"},
	)

	// ExtractionDurationSeconds measures the full ladder wall-clock per job.
	ExtractionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Wall-clock duration of a full extraction ladder",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// ProxyPoolHealthy reports the number of proxies currently out of cooldown.
	ProxyPoolHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "proxy_pool_healthy",
			Help:      "Number of proxies currently out of cooldown",
		},
	)

	// WebhookDeliveriesTotal tracks webhook attempts.
	// Labels:
	//   - outcome: delivered, failed, retried
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Total number of webhook delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RateLimitDecisionsTotal tracks admission decisions from the limiter.
	// Labels:
	//   - decision: allow, deny
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Total number of rate limit decisions",
		},
		[]string{"decision"},
	)

	// JobsTotal tracks terminal job outcomes.
	// Labels:
	//   - status: finished, failed
	//   - error_kind: empty string on success
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of terminal jobs by status and error kind",
		},
		[]string{"status", "error_kind"},
	)
)

// Cache tier constants.
const (
	TierLocal   = "local"
	TierShared  = "shared"
	TierDurable = "durable"
)

// Cache operation constants.
const (
	CacheOpGet     = "get"
	CacheOpSet     = "set"
	CacheOpDelete  = "delete"
	CacheOpPromote = "promote"
)

// Cache status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Single-flight result constants.
const (
	SingleflightLeader   = "leader"
	SingleflightFollower = "follower"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryUpsert = "upsert"
	DBQueryDelete = "delete"
	DBQuerySweep  = "sweep"
)

// Table name constants.
const (
	TableArtifacts = "artifacts"
	TableJobs      = "jobs"
)

// Extraction proxy-leg constants.
const (
	ProxyLegDirect = "direct"
	ProxyLegProxy  = "proxy"
)

// Extraction outcome constants.
const (
	ExtractionOutcomeSuccess   = "success"
	ExtractionOutcomeRetryable = "retryable"
	ExtractionOutcomeTerminal  = "terminal"
)

// Webhook outcome constants.
const (
	WebhookOutcomeDelivered = "delivered"
	WebhookOutcomeFailed    = "failed"
	WebhookOutcomeRetried   = "retried"
)

// Rate limit decision constants.
const (
	RateLimitAllow = "allow"
	RateLimitDeny  = "deny"
)
