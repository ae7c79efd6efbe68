package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Engine identifies which extraction engine produced an artifact.
type Engine string

const (
	EnginePrimary  Engine = "primary"
	EngineFallback Engine = "fallback"
)

// Segment is a single caption cue.
type Segment struct {
	Text            string
	StartSeconds    float64
	DurationSeconds float64
}

// Artifact is the immutable, committed extraction result for a Fingerprint.
// Once built by NewArtifact it is not mutated in place.
type Artifact struct {
	Fingerprint           Fingerprint
	Title                 string
	EngineUsed            Engine
	Segments              []Segment
	PlainText             string
	ExtractionDurationMS  int64
	CreatedAt             time.Time
	ExpiresAt             time.Time
	Integrity             string
}

// NewArtifact builds an Artifact, composing PlainText from Segments when
// fingerprint.CleanFlag is set, and computing the content-hash Integrity.
func NewArtifact(fp Fingerprint, title string, engine Engine, segments []Segment, extractionMS int64, ttl time.Duration) (*Artifact, error) {

	now := time.Now()
	a := &Artifact{
		Fingerprint:          fp,
		Title:                title,
		EngineUsed:           engine,
		Segments:             segments,
		ExtractionDurationMS: extractionMS,
		CreatedAt:            now,
		ExpiresAt:            now.Add(ttl),
	}

	if fp.CleanFlag {
		a.PlainText = CleanPlainText(segments)
	}

	a.Integrity = ComputeIntegrity(fp, segments)
	return a, nil
}

// ComputeIntegrity derives a stable content hash over a fingerprint and its
// segments, used for change detection and tier-coherence checks.
func ComputeIntegrity(fp Fingerprint, segments []Segment) string {
	h := sha256.New()
	h.Write([]byte(fp.Encode()))
	for _, s := range segments {
		fmt.Fprintf(h, "|%s|%f|%f", s.Text, s.StartSeconds, s.DurationSeconds)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CleanPlainText normalises segment text (collapsing whitespace, stripping
// bracketed cue tags, joining soft-broken lines) and concatenates the
// result with single spaces. It is a pure function of segments.
func CleanPlainText(segments []Segment) string {
	cleaned := make([]string, 0, len(segments))
	for _, s := range segments {
		text := stripBracketedCueTags(s.Text)
		text = collapseWhitespace(text)
		if text == "" {
			continue
		}
		cleaned = append(cleaned, text)
	}
	return strings.Join(cleaned, " ")
}

func stripBracketedCueTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(strings.ReplaceAll(s, "\n", " "))
	return strings.Join(fields, " ")
}

// IsExpired reports whether the artifact's expiry has passed as of now.
func (a *Artifact) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
