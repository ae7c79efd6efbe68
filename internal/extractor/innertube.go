package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/transcriptapi/core/internal/domain/model"
)

const innertubeBaseURL = "https://www.youtube.com/youtubei/v1/player"

// InnertubeEngine is the primary engine: it talks to YouTube's internal
// player endpoint to resolve a video's timed-text caption tracks.
type InnertubeEngine struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewInnertubeEngine builds the primary engine. apiKey is the Innertube
// client key issued to the configured client context.
func NewInnertubeEngine(apiKey string, timeout time.Duration) *InnertubeEngine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InnertubeEngine{
		baseURL:    innertubeBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithBaseURL overrides the Innertube endpoint, for tests.
func (e *InnertubeEngine) WithBaseURL(baseURL string) *InnertubeEngine {
	e.baseURL = baseURL
	return e
}

func (e *InnertubeEngine) Name() string { return "primary" }

type innertubePlayerRequest struct {
	VideoID string `json:"videoId"`
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
		} `json:"client"`
	} `json:"context"`
}

type innertubePlayerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []struct {
				BaseURL      string `json:"baseUrl"`
				LanguageCode string `json:"languageCode"`
			} `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails struct {
		Title string `json:"title"`
	} `json:"videoDetails"`
}

type timedTextDocument struct {
	Events []struct {
		TStartMs int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs     []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Fetch resolves the caption track for fp.Language and downloads its
// timed-text payload.
func (e *InnertubeEngine) Fetch(ctx context.Context, fp model.Fingerprint, proxy *Proxy) (string, []model.Segment, error) {
	player, err := e.fetchPlayerResponse(ctx, fp.VideoID, proxy)
	if err != nil {
		return "", nil, err
	}

	switch player.PlayabilityStatus.Status {
	case "OK":
	case "ERROR", "UNPLAYABLE":
		return "", nil, NewError(model.ErrorKindVideoUnavailable, errors.New(player.PlayabilityStatus.Reason))
	default:
		return "", nil, NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("unexpected playability status %q", player.PlayabilityStatus.Status))
	}

	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", nil, NewError(model.ErrorKindSubtitlesDisabled, errors.New("no caption tracks available"))
	}

	var trackURL string
	for _, t := range tracks {
		if t.LanguageCode == fp.Language {
			trackURL = t.BaseURL
			break
		}
	}
	if trackURL == "" {
		return "", nil, NewError(model.ErrorKindLanguageUnavailable, fmt.Errorf("no caption track for language %q", fp.Language))
	}

	segments, err := e.fetchTimedText(ctx, trackURL, proxy)
	if err != nil {
		return "", nil, err
	}

	return player.VideoDetails.Title, segments, nil
}

func (e *InnertubeEngine) fetchPlayerResponse(ctx context.Context, videoID string, proxy *Proxy) (*innertubePlayerResponse, error) {
	reqBody := innertubePlayerRequest{VideoID: videoID}
	reqBody.Context.Client.ClientName = "WEB"
	reqBody.Context.Client.ClientVersion = "2.20240101.00.00"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, NewError(model.ErrorKindInternal, fmt.Errorf("encode innertube request: %w", err))
	}

	endpoint := e.baseURL + "?key=" + url.QueryEscape(e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytesReader(body))
	if err != nil {
		return nil, NewError(model.ErrorKindInternal, fmt.Errorf("build innertube request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client(proxy).Do(req)
	if err != nil {
		return nil, NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("innertube request: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var player innertubePlayerResponse
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return nil, NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("decode innertube response: %w", err))
	}
	return &player, nil
}

func (e *InnertubeEngine) fetchTimedText(ctx context.Context, trackURL string, proxy *Proxy) ([]model.Segment, error) {
	u, err := url.Parse(trackURL)
	if err != nil {
		return nil, NewError(model.ErrorKindInternal, fmt.Errorf("parse timedtext url: %w", err))
	}
	q := u.Query()
	q.Set("fmt", "json3")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, NewError(model.ErrorKindInternal, fmt.Errorf("build timedtext request: %w", err))
	}

	resp, err := e.client(proxy).Do(req)
	if err != nil {
		return nil, NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("timedtext request: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var doc timedTextDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("decode timedtext document: %w", err))
	}

	segments := make([]model.Segment, 0, len(doc.Events))
	for _, ev := range doc.Events {
		var text string
		for _, seg := range ev.Segs {
			text += seg.UTF8
		}
		if text == "" {
			continue
		}
		segments = append(segments, model.Segment{
			Text:            text,
			StartSeconds:    float64(ev.TStartMs) / 1000,
			DurationSeconds: float64(ev.DurationMs) / 1000,
		})
	}
	return segments, nil
}

func (e *InnertubeEngine) client(proxy *Proxy) *http.Client {
	if proxy == nil {
		return e.httpClient
	}
	return proxiedClient(proxy, e.httpClient.Timeout)
}

// classifyHTTPStatus maps an HTTP status code to an error-kind taxonomy
// entry shared by both engines.
func classifyHTTPStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return NewError(model.ErrorKindUpstreamBlocked, fmt.Errorf("http %d", status))
	case status >= 500:
		return NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("http %d", status))
	default:
		return NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("http %d", status))
	}
}
