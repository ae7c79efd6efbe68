package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/transcriptapi/core/internal/domain/model"
)

func TestInnertubeEngine_Fetch_Success(t *testing.T) {
	timedText := `{"events":[{"tStartMs":0,"dDurationMs":1500,"segs":[{"utf8":"hello"}]},{"tStartMs":1500,"dDurationMs":2000,"segs":[{"utf8":"world"}]}]}`

	mux := http.NewServeMux()
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, timedText)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	player := map[string]any{
		"playabilityStatus": map[string]any{"status": "OK"},
		"captions": map[string]any{
			"playerCaptionsTracklistRenderer": map[string]any{
				"captionTracks": []map[string]any{
					{"baseUrl": srv.URL + "/timedtext", "languageCode": "en"},
				},
			},
		},
		"videoDetails": map[string]any{"title": "Test Video"},
	}
	playerJSON, err := json.Marshal(player)
	if err != nil {
		t.Fatal(err)
	}
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		w.Write(playerJSON)
	})

	engine := NewInnertubeEngine("test-key", 0).WithBaseURL(srv.URL + "/player")

	fp := model.Fingerprint{VideoID: "abc123xyz90", Language: "en"}
	title, segments, err := engine.Fetch(context.Background(), fp, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if title != "Test Video" {
		t.Errorf("title = %q, want %q", title, "Test Video")
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "hello" || segments[0].StartSeconds != 0 || segments[0].DurationSeconds != 1.5 {
		t.Errorf("segments[0] = %+v", segments[0])
	}
}

func TestInnertubeEngine_Fetch_VideoUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"playabilityStatus":{"status":"ERROR","reason":"Video removed"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewInnertubeEngine("test-key", 0).WithBaseURL(srv.URL + "/player")

	_, _, err := engine.Fetch(context.Background(), model.Fingerprint{VideoID: "gone0000000", Language: "en"}, nil)
	var extErr *Error
	if !errors.As(err, &extErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if extErr.Kind != model.ErrorKindVideoUnavailable {
		t.Errorf("Kind = %v, want %v", extErr.Kind, model.ErrorKindVideoUnavailable)
	}
}

func TestInnertubeEngine_Fetch_LanguageUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"x","languageCode":"fr"}]}}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewInnertubeEngine("test-key", 0).WithBaseURL(srv.URL + "/player")

	_, _, err := engine.Fetch(context.Background(), model.Fingerprint{VideoID: "abc123xyz90", Language: "en"}, nil)
	var extErr *Error
	if !errors.As(err, &extErr) || extErr.Kind != model.ErrorKindLanguageUnavailable {
		t.Fatalf("expected LanguageUnavailable, got %v", err)
	}
}

func TestInnertubeEngine_Fetch_SubtitlesDisabled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"playabilityStatus":{"status":"OK"},"captions":{}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewInnertubeEngine("test-key", 0).WithBaseURL(srv.URL + "/player")

	_, _, err := engine.Fetch(context.Background(), model.Fingerprint{VideoID: "abc123xyz90", Language: "en"}, nil)
	var extErr *Error
	if !errors.As(err, &extErr) || extErr.Kind != model.ErrorKindSubtitlesDisabled {
		t.Fatalf("expected SubtitlesDisabled, got %v", err)
	}
}

func TestInnertubeEngine_Fetch_UpstreamBlocked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewInnertubeEngine("test-key", 0).WithBaseURL(srv.URL + "/player")

	_, _, err := engine.Fetch(context.Background(), model.Fingerprint{VideoID: "abc123xyz90", Language: "en"}, nil)
	var extErr *Error
	if !errors.As(err, &extErr) || extErr.Kind != model.ErrorKindUpstreamBlocked {
		t.Fatalf("expected UpstreamBlocked, got %v", err)
	}
}
