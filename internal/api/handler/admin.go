package handler

import (
	"encoding/json"
	"net/http"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/infrastructure/ratelimit"
	"github.com/transcriptapi/core/internal/usecase"
)

// AdminHandler exposes operational endpoints for cache invalidation, queue
// depth and rate limit inspection. None of these are authenticated here;
// they're expected to sit behind a separate operator-only ingress.
type AdminHandler struct {
	coordinator *usecase.Coordinator
	queue       repository.JobQueue
	limiter     *ratelimit.Limiter
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(coordinator *usecase.Coordinator, queue repository.JobQueue, limiter *ratelimit.Limiter) *AdminHandler {
	return &AdminHandler{coordinator: coordinator, queue: queue, limiter: limiter}
}

type clearCacheRequest struct {
	Scope     string `json:"scope"`
	VideoID   string `json:"video_id"`
	Language  string `json:"language"`
	CleanFlag bool   `json:"clean_flag"`
	// PurgeDB, when the scope is "all", additionally purges the durable
	// artifact row. It never cancels an in-flight extraction job for the
	// same fingerprint: a leader already holding the reservation lock runs
	// to completion and will simply re-populate the tiers it purged.
	PurgeDB bool `json:"purge_db"`
}

// ClearCache handles POST /v1/admin/cache/clear.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	var req clearCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.VideoID == "" {
		Error(w, http.StatusBadRequest, "invalid_request", "video_id is required")
		return
	}

	scope, err := parseInvalidateScope(req.Scope, req.PurgeDB)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	fp := model.Fingerprint{VideoID: req.VideoID, Language: model.DefaultLanguage, CleanFlag: req.CleanFlag}
	if req.Language != "" {
		fp.Language = req.Language
	}

	if err := h.coordinator.Invalidate(r.Context(), fp, scope); err != nil {
		Error(w, http.StatusInternalServerError, "internal_error", "failed to invalidate cache")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func parseInvalidateScope(scope string, purgeDB bool) (usecase.InvalidateScope, error) {
	switch scope {
	case "", "local":
		return usecase.InvalidateLocal, nil
	case "shared":
		return usecase.InvalidateShared, nil
	case "all":
		if purgeDB {
			return usecase.InvalidateAll, nil
		}
		return usecase.InvalidateShared, nil
	default:
		return 0, errUnknownScope(scope)
	}
}

type errUnknownScope string

func (e errUnknownScope) Error() string {
	return "unknown cache scope: " + string(e)
}

type queueStatsResponse struct {
	Depth int64 `json:"depth"`
}

// QueueStats handles GET /v1/admin/queue/stats.
func (h *AdminHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal_error", "failed to read queue depth")
		return
	}
	JSON(w, http.StatusOK, queueStatsResponse{Depth: depth})
}

type rateLimitStatsResponse struct {
	Principal         string  `json:"principal"`
	Endpoint          string  `json:"endpoint"`
	Allowed           bool    `json:"allowed"`
	RemainingTokens   float64 `json:"remaining_tokens"`
	RetryAfterSeconds int     `json:"retry_after_seconds,omitempty"`
}

// RateLimitStats handles GET /v1/admin/ratelimit/stats?principal=&endpoint=.
func (h *AdminHandler) RateLimitStats(w http.ResponseWriter, r *http.Request) {
	principal, endpoint := adminRateLimitParams(r)

	decision, err := h.limiter.Stats(r.Context(), principal, endpoint)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal_error", "failed to read rate limit bucket")
		return
	}

	JSON(w, http.StatusOK, rateLimitStatsResponse{
		Principal:         principal,
		Endpoint:          endpoint,
		Allowed:           decision.Allowed,
		RemainingTokens:   decision.RemainingTokens,
		RetryAfterSeconds: decision.RetryAfterSeconds,
	})
}

// RateLimitReset handles POST /v1/admin/ratelimit/reset?principal=&endpoint=.
func (h *AdminHandler) RateLimitReset(w http.ResponseWriter, r *http.Request) {
	principal, endpoint := adminRateLimitParams(r)

	if err := h.limiter.Reset(r.Context(), principal, endpoint); err != nil {
		Error(w, http.StatusInternalServerError, "internal_error", "failed to reset rate limit bucket")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func adminRateLimitParams(r *http.Request) (principal, endpoint string) {
	principal = r.URL.Query().Get("principal")
	if principal == "" {
		principal = "anonymous"
	}
	endpoint = r.URL.Query().Get("endpoint")
	if endpoint == "" {
		endpoint = "extract"
	}
	return principal, endpoint
}
