package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/transcriptapi/core/internal/domain/model"
)

// artifactJSON is the wire representation of an Artifact for the shared
// and local caches. Using an explicit struct avoids coupling cache
// encoding to the domain model's field layout.
type artifactJSON struct {
	VideoID              string         `json:"video_id"`
	Language             string         `json:"language"`
	CleanFlag            bool           `json:"clean_flag"`
	Title                string         `json:"title"`
	EngineUsed           string         `json:"engine_used"`
	Segments             []segmentJSON  `json:"segments"`
	PlainText            string         `json:"plain_text"`
	ExtractionDurationMS int64          `json:"extraction_duration_ms"`
	CreatedAt            string         `json:"created_at"`
	ExpiresAt            string         `json:"expires_at"`
	Integrity            string         `json:"integrity"`
}

type segmentJSON struct {
	Text            string  `json:"text"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// EncodeArtifact serialises an Artifact to JSON bytes for cache storage.
func EncodeArtifact(a *model.Artifact) ([]byte, error) {
	segments := make([]segmentJSON, len(a.Segments))
	for i, s := range a.Segments {
		segments[i] = segmentJSON{
			Text:            s.Text,
			StartSeconds:    s.StartSeconds,
			DurationSeconds: s.DurationSeconds,
		}
	}

	v := artifactJSON{
		VideoID:              a.Fingerprint.VideoID,
		Language:              a.Fingerprint.Language,
		CleanFlag:            a.Fingerprint.CleanFlag,
		Title:                a.Title,
		EngineUsed:           string(a.EngineUsed),
		Segments:             segments,
		PlainText:            a.PlainText,
		ExtractionDurationMS: a.ExtractionDurationMS,
		CreatedAt:            a.CreatedAt.Format(time.RFC3339Nano),
		ExpiresAt:            a.ExpiresAt.Format(time.RFC3339Nano),
		Integrity:            a.Integrity,
	}

	return json.Marshal(v)
}

// DecodeArtifact deserialises JSON bytes into an Artifact.
func DecodeArtifact(data []byte) (*model.Artifact, error) {
	var v artifactJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, v.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	segments := make([]model.Segment, len(v.Segments))
	for i, s := range v.Segments {
		segments[i] = model.Segment{
			Text:            s.Text,
			StartSeconds:    s.StartSeconds,
			DurationSeconds: s.DurationSeconds,
		}
	}

	return &model.Artifact{
		Fingerprint: model.Fingerprint{
			VideoID:   v.VideoID,
			Language:  v.Language,
			CleanFlag: v.CleanFlag,
		},
		Title:                v.Title,
		EngineUsed:           model.Engine(v.EngineUsed),
		Segments:             segments,
		PlainText:            v.PlainText,
		ExtractionDurationMS: v.ExtractionDurationMS,
		CreatedAt:            createdAt,
		ExpiresAt:            expiresAt,
		Integrity:            v.Integrity,
	}, nil
}
