package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/domain/repository"
)

// JobHandler serves job status polling.
type JobHandler struct {
	jobs      repository.JobStore
	artifacts repository.ArtifactStore
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(jobs repository.JobStore, artifacts repository.ArtifactStore) *JobHandler {
	return &JobHandler{jobs: jobs, artifacts: artifacts}
}

type jobResponse struct {
	JobID      string            `json:"job_id"`
	Status     model.JobStatus   `json:"status"`
	ErrorKind  model.ErrorKind   `json:"error_kind,omitempty"`
	Attempts   int               `json:"attempts"`
	Artifact   *artifactPayload  `json:"artifact,omitempty"`
}

// Get handles GET /v1/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			Error(w, http.StatusNotFound, "job_not_found", "job not found")
			return
		}
		Error(w, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}

	resp := jobResponse{
		JobID:     job.JobID,
		Status:    job.Status,
		ErrorKind: job.ErrorKind,
		Attempts:  job.Attempts,
	}

	if job.Status == model.JobFinished {
		artifact, err := h.artifacts.Get(r.Context(), job.Fingerprint)
		if err != nil {
			Error(w, http.StatusInternalServerError, "internal_error", "failed to load artifact")
			return
		}
		resp.Artifact = &artifactPayload{
			Title:      artifact.Title,
			Segments:   artifact.Segments,
			PlainText:  artifact.PlainText,
			EngineUsed: artifact.EngineUsed,
		}
	}

	JSON(w, http.StatusOK, resp)
}
