package extractor

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/transcriptapi/core/internal/domain/model"
)

const timedTextBaseURL = "https://video.google.com/timedtext"

// TimedTextEngine is the fallback engine: it queries the public timedtext
// endpoint directly, bypassing Innertube. It has a narrower reach (not
// every video exposes a direct timedtext track) but survives outages that
// take the primary engine down.
type TimedTextEngine struct {
	baseURL    string
	httpClient *http.Client
}

// NewTimedTextEngine builds the fallback engine.
func NewTimedTextEngine(timeout time.Duration) *TimedTextEngine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TimedTextEngine{
		baseURL:    timedTextBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithBaseURL overrides the timedtext endpoint, for tests.
func (e *TimedTextEngine) WithBaseURL(baseURL string) *TimedTextEngine {
	e.baseURL = baseURL
	return e
}

func (e *TimedTextEngine) Name() string { return "fallback" }

type timedTextXMLDocument struct {
	XMLName xml.Name        `xml:"transcript"`
	Texts   []timedTextNode `xml:"text"`
}

type timedTextNode struct {
	Start    string `xml:"start,attr"`
	Duration string `xml:"dur,attr"`
	Body     string `xml:",chardata"`
}

// Fetch downloads and parses the XML timedtext track for fp.Language.
// It cannot discover a video's title, so it leaves Title empty; the
// caller is expected to already know the title from a prior attempt or
// to leave it blank when this is the only successful rung.
func (e *TimedTextEngine) Fetch(ctx context.Context, fp model.Fingerprint, proxy *Proxy) (string, []model.Segment, error) {
	reqURL := fmt.Sprintf("%s?v=%s&lang=%s", e.baseURL, fp.VideoID, fp.Language)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", nil, NewError(model.ErrorKindInternal, fmt.Errorf("build timedtext request: %w", err))
	}

	client := e.httpClient
	if proxy != nil {
		client = proxiedClient(proxy, e.httpClient.Timeout)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("timedtext request: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus(resp.StatusCode); err != nil {
		return "", nil, err
	}

	var doc timedTextXMLDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", nil, NewError(model.ErrorKindUpstreamTransient, fmt.Errorf("decode timedtext xml: %w", err))
	}

	if len(doc.Texts) == 0 {
		return "", nil, NewError(model.ErrorKindSubtitlesDisabled, fmt.Errorf("no timedtext track for %q", fp.Language))
	}

	segments := make([]model.Segment, 0, len(doc.Texts))
	for _, node := range doc.Texts {
		start, err := strconv.ParseFloat(node.Start, 64)
		if err != nil {
			continue
		}
		duration, _ := strconv.ParseFloat(node.Duration, 64)
		text := html.UnescapeString(node.Body)
		if text == "" {
			continue
		}
		segments = append(segments, model.Segment{
			Text:            text,
			StartSeconds:    start,
			DurationSeconds: duration,
		})
	}

	return "", segments, nil
}
