package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
	"github.com/transcriptapi/core/internal/retrypolicy"
)

// Payload is the JSON body POSTed to a webhook_url on job completion.
type Payload struct {
	Event       string          `json:"event"`
	JobID       string          `json:"job_id"`
	Fingerprint string          `json:"fingerprint"`
	Status      model.JobStatus `json:"status"`
	Result      *ResultPayload  `json:"result,omitempty"`
	Error       *ErrorPayload   `json:"error,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// ResultPayload carries the successful extraction result.
type ResultPayload struct {
	Title      string          `json:"title"`
	Segments   []model.Segment `json:"segments"`
	PlainText  string          `json:"plain_text,omitempty"`
	EngineUsed model.Engine    `json:"engine_used"`
}

// ErrorPayload carries the failure reason.
type ErrorPayload struct {
	Kind model.ErrorKind `json:"kind"`
}

// Config controls dispatch timing.
type Config struct {
	// RequestTimeout bounds a single HTTP attempt. Defaults to 10s.
	RequestTimeout time.Duration
	// Secret signs outgoing payloads with HMAC-SHA256.
	Secret []byte
}

// DefaultConfig returns the dispatcher's default timing.
func DefaultConfig(secret []byte) Config {
	return Config{RequestTimeout: 10 * time.Second, Secret: secret}
}

// Dispatcher drains the webhook hand-off queue and delivers signed POSTs
// to terminal jobs' webhook_url, per spec §4.10.
type Dispatcher struct {
	jobs       repository.JobStore
	artifacts  repository.ArtifactStore
	queue      repository.WebhookQueue
	httpClient *http.Client
	policy     retrypolicy.Policy
	secret     []byte
}

// New builds a Dispatcher.
func New(jobs repository.JobStore, artifacts repository.ArtifactStore, queue repository.WebhookQueue, cfg Config) *Dispatcher {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		jobs:       jobs,
		artifacts:  artifacts,
		queue:      queue,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retrypolicy.Webhook(),
		secret:     cfg.Secret,
	}
}

// Run drains the webhook queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.queue.Consume(ctx, d.handle)
}

// handle delivers one task's terminal job to its webhook_url, retrying
// per the shared retry policy's deterministic schedule (1s, 2s). If every
// in-call attempt fails, handle returns an error so the queue's hand-off
// mechanism can re-home the task for another dispatch goroutine to retry.
func (d *Dispatcher) handle(task repository.WebhookTask) error {
	ctx := context.Background()

	job, err := d.jobs.Get(ctx, task.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			slog.Warn("webhook task references unknown job", "job_id", task.JobID)
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	if job.WebhookURL == "" || job.WebhookDeliveryStatus == model.WebhookDelivered {
		return nil
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("job %s not yet terminal, deferring delivery", task.JobID)
	}

	body, err := d.buildPayload(ctx, job)
	if err != nil {
		return fmt.Errorf("build payload for job %s: %w", task.JobID, err)
	}

	var lastErr error
	for attempt := 0; attempt < d.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := d.policy.Sleep(ctx, attempt-1); err != nil {
				return fmt.Errorf("webhook retry wait interrupted for job %s: %w", task.JobID, err)
			}
		}

		if err := d.send(ctx, job.WebhookURL, body); err != nil {
			lastErr = err
			metrics.WebhookDeliveriesTotal.WithLabelValues(metrics.WebhookOutcomeRetried).Inc()
			slog.Warn("webhook delivery attempt failed", "job_id", task.JobID, "attempt", attempt+1, "error", err)
			continue
		}

		job.WebhookDeliveryStatus = model.WebhookDelivered
		if uerr := d.jobs.Update(ctx, job); uerr != nil {
			return fmt.Errorf("record delivered webhook for job %s: %w", task.JobID, uerr)
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues(metrics.WebhookOutcomeDelivered).Inc()
		return nil
	}

	job.WebhookDeliveryStatus = model.WebhookFailed
	if uerr := d.jobs.Update(ctx, job); uerr != nil {
		return fmt.Errorf("record failed webhook for job %s: %w", task.JobID, uerr)
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues(metrics.WebhookOutcomeFailed).Inc()
	return fmt.Errorf("webhook delivery exhausted for job %s: %w", task.JobID, lastErr)
}

func (d *Dispatcher) buildPayload(ctx context.Context, job *model.Job) ([]byte, error) {
	payload := Payload{
		Event:       "job." + string(job.Status),
		JobID:       job.JobID,
		Fingerprint: job.Fingerprint.Encode(),
		Status:      job.Status,
		Timestamp:   time.Now().Unix(),
	}

	switch job.Status {
	case model.JobFinished:
		artifact, err := d.artifacts.Get(ctx, job.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("load artifact: %w", err)
		}
		payload.Result = &ResultPayload{
			Title:      artifact.Title,
			Segments:   artifact.Segments,
			PlainText:  artifact.PlainText,
			EngineUsed: artifact.EngineUsed,
		}
	case model.JobFailed:
		payload.Error = &ErrorPayload{Kind: job.ErrorKind}
	}

	return json.Marshal(payload)
}

func (d *Dispatcher) send(ctx context.Context, url string, body []byte) error {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Timestamp", timestamp)
	req.Header.Set("X-Webhook-Signature", Sign(d.secret, body, timestamp))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
