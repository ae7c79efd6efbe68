package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/usecase"
)

// principalHeader identifies the caller for rate-limit bucketing. Missing
// or empty values fall back to a shared anonymous bucket.
const principalHeader = "X-API-Key"

// ExtractionHandler serves the admission orchestrator (C11) over HTTP.
type ExtractionHandler struct {
	admission *usecase.AdmissionService
}

// NewExtractionHandler creates an ExtractionHandler.
func NewExtractionHandler(admission *usecase.AdmissionService) *ExtractionHandler {
	return &ExtractionHandler{admission: admission}
}

type extractRequest struct {
	VideoRef   string `json:"video_ref"`
	Language   string `json:"language"`
	Clean      *bool  `json:"clean"`
	WebhookURL string `json:"webhook_url"`
}

type extractResponse struct {
	Status      string           `json:"status"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	JobID       string           `json:"job_id,omitempty"`
	Artifact    *artifactPayload `json:"artifact,omitempty"`
}

type artifactPayload struct {
	Title      string          `json:"title"`
	Segments   []model.Segment `json:"segments"`
	PlainText  string          `json:"plain_text,omitempty"`
	EngineUsed model.Engine    `json:"engine_used"`
}

func principal(r *http.Request) string {
	if key := r.Header.Get(principalHeader); key != "" {
		return key
	}
	return "anonymous"
}

func toExtractRequest(req extractRequest) usecase.AdmissionRequest {
	return usecase.AdmissionRequest{
		VideoRef:   req.VideoRef,
		Language:   req.Language,
		CleanFlag:  req.Clean,
		WebhookURL: req.WebhookURL,
	}
}

// Submit handles POST /v1/extract.
func (h *ExtractionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result := h.admission.Submit(r.Context(), principal(r), toExtractRequest(req))
	writeAdmissionResult(w, result)
}

// SubmitBatch handles POST /v1/extract/batch.
func (h *ExtractionHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []extractRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	admissionReqs := make([]usecase.AdmissionRequest, len(reqs))
	for i, req := range reqs {
		admissionReqs[i] = toExtractRequest(req)
	}

	results := h.admission.SubmitBatch(r.Context(), principal(r), admissionReqs)
	responses := make([]extractResponse, len(results))
	for i, result := range results {
		responses[i] = toExtractResponse(result)
	}
	JSON(w, http.StatusOK, responses)
}

func writeAdmissionResult(w http.ResponseWriter, result usecase.AdmissionResult) {
	switch result.Outcome {
	case usecase.AdmissionInvalid:
		Error(w, http.StatusBadRequest, "invalid_input", errMessage(result))
	case usecase.AdmissionDenied:
		w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
		Error(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	case usecase.AdmissionReady:
		JSON(w, http.StatusOK, toExtractResponse(result))
	case usecase.AdmissionQueued:
		JSON(w, http.StatusAccepted, toExtractResponse(result))
	}
}

func errMessage(result usecase.AdmissionResult) string {
	if result.Err != nil {
		return result.Err.Error()
	}
	return "invalid video reference"
}

func toExtractResponse(result usecase.AdmissionResult) extractResponse {
	resp := extractResponse{
		Status: string(result.Outcome),
		JobID:  result.JobID,
	}
	if result.Outcome != usecase.AdmissionInvalid {
		resp.Fingerprint = result.Fingerprint.Encode()
	}
	if result.Artifact != nil {
		resp.Artifact = &artifactPayload{
			Title:      result.Artifact.Title,
			Segments:   result.Artifact.Segments,
			PlainText:  result.Artifact.PlainText,
			EngineUsed: result.Artifact.EngineUsed,
		}
	}
	return resp
}
