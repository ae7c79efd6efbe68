package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/transcriptapi/core/internal/domain/model"
)

func TestTimedTextEngine_Fetch_Success(t *testing.T) {
	body := `<transcript><text start="0.0" dur="1.5">hello &amp; world</text><text start="1.5" dur="2.0">second line</text></transcript>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	engine := NewTimedTextEngine(0).WithBaseURL(srv.URL)

	fp := model.Fingerprint{VideoID: "abc123xyz90", Language: "en"}
	title, segments, err := engine.Fetch(context.Background(), fp, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if title != "" {
		t.Errorf("title = %q, want empty (fallback engine cannot discover titles)", title)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "hello & world" {
		t.Errorf("segments[0].Text = %q, want unescaped ampersand", segments[0].Text)
	}
	if segments[0].StartSeconds != 0.0 || segments[0].DurationSeconds != 1.5 {
		t.Errorf("segments[0] timing = %+v", segments[0])
	}
}

func TestTimedTextEngine_Fetch_SubtitlesDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<transcript></transcript>`)
	}))
	defer srv.Close()

	engine := NewTimedTextEngine(0).WithBaseURL(srv.URL)

	_, _, err := engine.Fetch(context.Background(), model.Fingerprint{VideoID: "abc123xyz90", Language: "en"}, nil)
	var extErr *Error
	if !errors.As(err, &extErr) || extErr.Kind != model.ErrorKindSubtitlesDisabled {
		t.Fatalf("expected SubtitlesDisabled, got %v", err)
	}
}

func TestTimedTextEngine_Fetch_UpstreamTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := NewTimedTextEngine(0).WithBaseURL(srv.URL)

	_, _, err := engine.Fetch(context.Background(), model.Fingerprint{VideoID: "abc123xyz90", Language: "en"}, nil)
	var extErr *Error
	if !errors.As(err, &extErr) || extErr.Kind != model.ErrorKindUpstreamTransient {
		t.Fatalf("expected UpstreamTransient, got %v", err)
	}
	if !extErr.Kind.Retryable() {
		t.Error("expected UpstreamTransient to be retryable")
	}
}

func TestTimedTextEngine_Name(t *testing.T) {
	if got := NewTimedTextEngine(0).Name(); got != "fallback" {
		t.Errorf("Name() = %q, want %q", got, "fallback")
	}
}
