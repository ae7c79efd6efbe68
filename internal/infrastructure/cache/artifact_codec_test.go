package cache

import (
	"testing"
	"time"

	"github.com/transcriptapi/core/internal/domain/model"
)

func TestEncodeDecodeArtifact_RoundTrip(t *testing.T) {
	fp := model.Fingerprint{VideoID: "dQw4w9WgXcQ", Language: "en", CleanFlag: true}
	segments := []model.Segment{
		{Text: "hello", StartSeconds: 0, DurationSeconds: 1.5},
		{Text: "world", StartSeconds: 1.5, DurationSeconds: 2},
	}

	original, err := model.NewArtifact(fp, "Rick Astley - Never Gonna Give You Up", model.EnginePrimary, segments, 1200, 10*time.Minute)
	if err != nil {
		t.Fatalf("NewArtifact failed: %v", err)
	}

	data, err := EncodeArtifact(original)
	if err != nil {
		t.Fatalf("EncodeArtifact failed: %v", err)
	}

	decoded, err := DecodeArtifact(data)
	if err != nil {
		t.Fatalf("DecodeArtifact failed: %v", err)
	}

	if decoded.Fingerprint != original.Fingerprint {
		t.Fatalf("fingerprint mismatch: got %v, want %v", decoded.Fingerprint, original.Fingerprint)
	}
	if decoded.Integrity != original.Integrity {
		t.Fatalf("integrity mismatch: got %q, want %q", decoded.Integrity, original.Integrity)
	}
	if decoded.PlainText != original.PlainText {
		t.Fatalf("plain text mismatch: got %q, want %q", decoded.PlainText, original.PlainText)
	}
	if len(decoded.Segments) != len(original.Segments) {
		t.Fatalf("segment count mismatch: got %d, want %d", len(decoded.Segments), len(original.Segments))
	}
}
